package service_test

import (
	"errors"
	"testing"

	"dealroom/internal/accesslevel"
	"dealroom/internal/models"
	"dealroom/internal/repository"
	"dealroom/internal/service"
	"dealroom/internal/testutil"
)

func TestDealLifecycle(t *testing.T) {
	env := setupEnv(t)
	actor := env.Fixtures.StaffUser

	deal, err := env.Workflow.CreateDeal(env.Fixtures.Company.ID, "Project Gamma", actor.ID)
	if err != nil {
		t.Fatalf("Failed to create deal: %v", err)
	}
	if deal.CurrentPhase != models.PhaseListingReceived {
		t.Fatalf("New deal should start in listing_received, got %s", deal.CurrentPhase)
	}
	if deal.ListingReceivedAt == nil {
		t.Error("listing_received_at should be stamped on creation")
	}

	deal, err = env.Workflow.Transition(deal.ID, models.PhaseUnderReview, models.TriggeredByManual, actor.ID)
	if err != nil {
		t.Fatalf("Failed to transition: %v", err)
	}
	if deal.CurrentPhase != models.PhaseUnderReview {
		t.Fatalf("Expected under_review, got %s", deal.CurrentPhase)
	}

	// Skipping a phase is rejected
	if _, err := env.Workflow.Transition(deal.ID, models.PhaseDataRoomBuild, models.TriggeredByManual, actor.ID); !errors.Is(err, service.ErrInvalidPhaseTransition) {
		t.Errorf("Expected ErrInvalidPhaseTransition, got %v", err)
	}

	deal, err = env.Workflow.Transition(deal.ID, models.PhaseListingApproved, models.TriggeredByManual, actor.ID)
	if err != nil {
		t.Fatalf("Failed to transition: %v", err)
	}
	if deal.ListingApprovedAt == nil {
		t.Error("listing_approved_at should be stamped on arrival")
	}

	// Publish from mid-preparation crosses into the active sequence
	deal, err = env.Workflow.Publish(deal.ID, actor.ID)
	if err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
	if deal.CurrentPhase != models.PhaseLiveActive {
		t.Fatalf("Expected live_active, got %s", deal.CurrentPhase)
	}
	if deal.PublishedAt == nil {
		t.Fatal("published_at should be set on publish")
	}
	firstPublish := *deal.PublishedAt

	// Publishing an active deal is an idempotent no-op
	deal, err = env.Workflow.Publish(deal.ID, actor.ID)
	if err != nil {
		t.Fatalf("Repeat publish failed: %v", err)
	}
	if !deal.PublishedAt.Equal(firstPublish) {
		t.Error("Repeat publish must not move published_at")
	}

	// There is no way back into preparation
	if _, err := env.Workflow.Transition(deal.ID, models.PhaseDataRoomBuild, models.TriggeredByManual, actor.ID); !errors.Is(err, service.ErrInvalidPhaseTransition) {
		t.Errorf("Expected ErrInvalidPhaseTransition, got %v", err)
	}

	history, err := env.Workflow.GetStageHistory(deal.ID)
	if err != nil {
		t.Fatalf("Failed to get stage history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("Expected 4 history entries, got %d", len(history))
	}
	for i, entry := range history[:3] {
		if entry.ExitedAt == nil || entry.DurationDays == nil {
			t.Errorf("History entry %d should be closed", i)
		}
	}
	last := history[len(history)-1]
	if last.Phase != models.PhaseLiveActive || last.ExitedAt != nil {
		t.Errorf("Last entry should be the open live_active span, got %s", last.Phase)
	}
}

func TestStageDurationRoundsUp(t *testing.T) {
	env := setupEnv(t)
	actor := env.Fixtures.StaffUser

	deal, err := env.Workflow.CreateDeal(env.Fixtures.Company.ID, "Project Zeta", actor.ID)
	if err != nil {
		t.Fatalf("Failed to create deal: %v", err)
	}

	backdate := func(hours int) {
		t.Helper()
		if _, err := env.Containers.DB.Exec(`
			UPDATE deal_stage_history
			SET entered_at = NOW() - make_interval(hours => $1)
			WHERE deal_id = $2 AND exited_at IS NULL
		`, hours, deal.ID); err != nil {
			t.Fatalf("Failed to backdate stage entry: %v", err)
		}
	}

	// Six hours in listing_received still counts as a full day
	backdate(6)
	if _, err := env.Workflow.Transition(deal.ID, models.PhaseUnderReview, models.TriggeredByManual, actor.ID); err != nil {
		t.Fatalf("Failed to transition: %v", err)
	}

	// A day and a quarter in under_review counts as two
	backdate(30)
	if _, err := env.Workflow.Transition(deal.ID, models.PhaseListingApproved, models.TriggeredByManual, actor.ID); err != nil {
		t.Fatalf("Failed to transition: %v", err)
	}

	history, err := env.Workflow.GetStageHistory(deal.ID)
	if err != nil {
		t.Fatalf("Failed to get stage history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 history entries, got %d", len(history))
	}

	days := make(map[models.DealPhase]*int)
	for _, entry := range history {
		days[entry.Phase] = entry.DurationDays
	}
	if d := days[models.PhaseListingReceived]; d == nil || *d != 1 {
		t.Errorf("Expected 6h span to record 1 day, got %v", d)
	}
	if d := days[models.PhaseUnderReview]; d == nil || *d != 2 {
		t.Errorf("Expected 30h span to record 2 days, got %v", d)
	}
}

func TestTransitionConflict(t *testing.T) {
	env := setupEnv(t)

	deal, err := env.Workflow.CreateDeal(env.Fixtures.Company.ID, "Project Delta", env.Fixtures.StaffUser.ID)
	if err != nil {
		t.Fatalf("Failed to create deal: %v", err)
	}

	// A transition applied on a stale phase read matches nothing
	err = env.DealRepo.ApplyPhaseTransition(deal.ID, models.PhaseUnderReview, models.PhaseListingApproved, models.TriggeredByManual, nil)
	if !errors.Is(err, repository.ErrPhaseConflict) {
		t.Fatalf("Expected ErrPhaseConflict, got %v", err)
	}

	// The losing write left no trace
	fresh, err := env.DealRepo.GetByID(deal.ID)
	if err != nil {
		t.Fatalf("Failed to re-read deal: %v", err)
	}
	if fresh.CurrentPhase != models.PhaseListingReceived || fresh.PhaseVersion != deal.PhaseVersion {
		t.Errorf("Conflicting transition must not mutate the deal: %s v%d", fresh.CurrentPhase, fresh.PhaseVersion)
	}

	history, err := env.DealRepo.GetStageHistory(deal.ID)
	if err != nil {
		t.Fatalf("Failed to get stage history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Conflicting transition must not add history, got %d entries", len(history))
	}
}

func TestAdvanceIfComplete(t *testing.T) {
	env := setupEnv(t)
	actor := env.Fixtures.StaffUser

	deal := testutil.CreateDeal(t, env.Containers.DB, env.Fixtures.Company.ID, "Project Epsilon", models.PhaseDataRoomBuild, nil)
	required := testutil.CreateFolder(t, env.Containers.DB, deal.ID, "Financials", true)
	naFolder := testutil.CreateFolder(t, env.Containers.DB, deal.ID, "Litigation", true)
	testutil.CreateFolder(t, env.Containers.DB, deal.ID, "Misc", false)

	// Required folder empty: no advance
	advanced, err := env.Workflow.AdvanceIfComplete(deal.ID, actor.ID)
	if err != nil {
		t.Fatalf("AdvanceIfComplete failed: %v", err)
	}
	if advanced {
		t.Fatal("Deal should not advance with an empty required folder")
	}

	completeness, err := env.Workflow.GetCompleteness(deal.ID)
	if err != nil {
		t.Fatalf("Failed to get completeness: %v", err)
	}
	if completeness.IsComplete || completeness.TotalRequired != 2 {
		t.Errorf("Expected 2 required folders incomplete, got %+v", completeness)
	}

	// Flag one required folder not applicable, populate the other
	if err := env.DocumentRepo.SetFolderNotApplicable(naFolder.ID, true); err != nil {
		t.Fatalf("Failed to flag folder: %v", err)
	}
	testutil.CreateDocument(t, env.Containers.DB, deal.ID, required.ID, actor.ID, "balance.xlsx", accesslevel.Financials)

	advanced, err = env.Workflow.AdvanceIfComplete(deal.ID, actor.ID)
	if err != nil {
		t.Fatalf("AdvanceIfComplete failed: %v", err)
	}
	if !advanced {
		t.Fatal("Deal should advance once the data room is complete")
	}

	fresh, err := env.DealRepo.GetByID(deal.ID)
	if err != nil {
		t.Fatalf("Failed to re-read deal: %v", err)
	}
	if fresh.CurrentPhase != models.PhaseQACompliance {
		t.Errorf("Expected qa_compliance, got %s", fresh.CurrentPhase)
	}
	if fresh.DataRoomCompleteAt == nil {
		t.Error("data_room_complete_at should be stamped")
	}

	// Already past data_room_build: a repeat call is a no-op
	advanced, err = env.Workflow.AdvanceIfComplete(deal.ID, actor.ID)
	if err != nil {
		t.Fatalf("AdvanceIfComplete failed: %v", err)
	}
	if advanced {
		t.Error("Repeat call should not advance again")
	}
}

func TestDealVisibility(t *testing.T) {
	env := setupEnv(t)

	// The preparation-phase fixture deal is hidden from viewers
	if _, err := env.Workflow.GetDeal(env.Fixtures.Deal.ID, env.Fixtures.ViewerUser); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for viewer, got %v", err)
	}
	if _, err := env.Workflow.GetDeal(env.Fixtures.Deal.ID, env.Fixtures.StaffUser); err != nil {
		t.Errorf("Staff should see preparation deals: %v", err)
	}

	viewerDeals, err := env.Workflow.ListDeals(env.Fixtures.ViewerUser)
	if err != nil {
		t.Fatalf("Failed to list deals: %v", err)
	}
	for _, d := range viewerDeals {
		if d.PublishedAt == nil {
			t.Errorf("Viewer listing leaked unpublished deal %d", d.ID)
		}
	}

	staffDeals, err := env.Workflow.ListDeals(env.Fixtures.StaffUser)
	if err != nil {
		t.Fatalf("Failed to list deals: %v", err)
	}
	if len(staffDeals) <= len(viewerDeals) {
		t.Errorf("Staff listing should include preparation deals (%d vs %d)", len(staffDeals), len(viewerDeals))
	}
}
