package service

import (
	"testing"

	"dealroom/internal/models"
)

func TestSuccessor(t *testing.T) {
	tests := []struct {
		phase    models.DealPhase
		expected models.DealPhase
	}{
		{models.PhaseListingReceived, models.PhaseUnderReview},
		{models.PhaseUnderReview, models.PhaseListingApproved},
		{models.PhaseListingApproved, models.PhaseDataRoomBuild},
		{models.PhaseDataRoomBuild, models.PhaseQACompliance},
		{models.PhaseQACompliance, models.PhaseReadyForDistribution},
		{models.PhaseReadyForDistribution, ""}, // only publish leaves here
		{models.PhaseLiveActive, models.PhaseUnderLOI},
		{models.PhaseUnderLOI, models.PhaseDueDiligence},
		{models.PhaseDueDiligence, models.PhaseClosing},
		{models.PhaseClosing, models.PhaseClosed},
		{models.PhaseClosed, ""},
	}

	for _, tt := range tests {
		if got := Successor(tt.phase); got != tt.expected {
			t.Errorf("Successor(%s) = %q, expected %q", tt.phase, got, tt.expected)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.DealPhase
		to      models.DealPhase
		allowed bool
	}{
		{"preparation successor", models.PhaseListingReceived, models.PhaseUnderReview, true},
		{"active successor", models.PhaseLiveActive, models.PhaseUnderLOI, true},
		{"publish from first preparation phase", models.PhaseListingReceived, models.PhaseLiveActive, true},
		{"publish from mid preparation", models.PhaseDataRoomBuild, models.PhaseLiveActive, true},
		{"publish from last preparation phase", models.PhaseReadyForDistribution, models.PhaseLiveActive, true},
		{"skip within preparation", models.PhaseListingReceived, models.PhaseListingApproved, false},
		{"skip within active", models.PhaseLiveActive, models.PhaseDueDiligence, false},
		{"backwards within preparation", models.PhaseUnderReview, models.PhaseListingReceived, false},
		{"backwards within active", models.PhaseUnderLOI, models.PhaseLiveActive, false},
		{"active back to preparation", models.PhaseLiveActive, models.PhaseDataRoomBuild, false},
		{"preparation to non-initial active phase", models.PhaseReadyForDistribution, models.PhaseUnderLOI, false},
		{"terminal phase has no exit", models.PhaseClosed, models.PhaseLiveActive, false},
		{"self transition", models.PhaseLiveActive, models.PhaseLiveActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, expected %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}
