package service

import (
	"testing"

	"dealroom/internal/accesslevel"
	"dealroom/internal/models"
)

func TestRoleFloor(t *testing.T) {
	tests := []struct {
		role     string
		expected accesslevel.Level
	}{
		{models.RoleAdmin, accesslevel.Full},
		{models.RoleStaff, accesslevel.Full},
		{models.RoleViewer, accesslevel.Public},
		{"unknown", accesslevel.Public},
	}

	for _, tt := range tests {
		if got := RoleFloor(tt.role); got != tt.expected {
			t.Errorf("RoleFloor(%s) = %s, expected %s", tt.role, got, tt.expected)
		}
	}
}

func TestApplyNdaCeiling(t *testing.T) {
	tests := []struct {
		name     string
		floor    accesslevel.Level
		hasNda   bool
		expected accesslevel.Level
	}{
		{"no NDA caps financials at teaser", accesslevel.Financials, false, accesslevel.Teaser},
		{"no NDA caps full at teaser", accesslevel.Full, false, accesslevel.Teaser},
		{"no NDA leaves public alone", accesslevel.Public, false, accesslevel.Public},
		{"no NDA leaves teaser alone", accesslevel.Teaser, false, accesslevel.Teaser},
		{"active NDA lifts the cap", accesslevel.Financials, true, accesslevel.Financials},
		{"active NDA with public floor grants nothing extra", accesslevel.Public, true, accesslevel.Public},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyNdaCeiling(tt.floor, tt.hasNda); got != tt.expected {
				t.Errorf("ApplyNdaCeiling(%s, %v) = %s, expected %s", tt.floor, tt.hasNda, got, tt.expected)
			}
		})
	}
}
