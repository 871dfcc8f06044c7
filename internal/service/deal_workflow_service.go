package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dealroom/internal/models"
	"dealroom/internal/repository"
)

// DealWorkflowService drives deals through the preparation and active phase
// sequences. Phases only move forward; the publish bridge crosses from
// preparation to active exactly once.
type DealWorkflowService struct {
	dealRepo     *repository.DealRepository
	documentRepo *repository.DocumentRepository
	auditService *AuditService
}

// NewDealWorkflowService creates a new deal workflow service
func NewDealWorkflowService(
	dealRepo *repository.DealRepository,
	documentRepo *repository.DocumentRepository,
	auditService *AuditService,
) *DealWorkflowService {
	return &DealWorkflowService{
		dealRepo:     dealRepo,
		documentRepo: documentRepo,
		auditService: auditService,
	}
}

// Successor returns the immediate next phase within the same sequence, or
// "" when the phase is terminal in its sequence.
func Successor(phase models.DealPhase) models.DealPhase {
	for i, p := range models.PreparationPhases {
		if p == phase && i+1 < len(models.PreparationPhases) {
			return models.PreparationPhases[i+1]
		}
	}
	for i, p := range models.ActivePhases {
		if p == phase && i+1 < len(models.ActivePhases) {
			return models.ActivePhases[i+1]
		}
	}
	return ""
}

// CanTransition reports whether moving from one phase to another is legal:
// either the immediate successor in the same sequence, or the publish
// bridge from any preparation phase to live_active.
func CanTransition(from, to models.DealPhase) bool {
	if from.IsPreparation() && to == models.PhaseLiveActive {
		return true
	}
	return Successor(from) == to
}

// Transition moves a deal to the target phase. The write is guarded by the
// phase the caller observed: if another transition lands first the update
// matches nothing and ErrConcurrentModification is returned, with no
// mutation and no history entry. Callers re-read and retry at most once.
func (s *DealWorkflowService) Transition(dealID uint, target models.DealPhase, triggeredBy string, actorID uint) (*models.Deal, error) {
	deal, err := s.dealRepo.GetByID(dealID)
	if errors.Is(err, repository.ErrDealNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !CanTransition(deal.CurrentPhase, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, deal.CurrentPhase, target)
	}

	var publishedAt *time.Time
	if deal.CurrentPhase.IsPreparation() && target == models.PhaseLiveActive && deal.PublishedAt == nil {
		now := time.Now()
		publishedAt = &now
	}

	if err := s.dealRepo.ApplyPhaseTransition(dealID, deal.CurrentPhase, target, triggeredBy, publishedAt); err != nil {
		if errors.Is(err, repository.ErrPhaseConflict) {
			return nil, ErrConcurrentModification
		}
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.stampMilestone(dealID, target)
	s.auditService.LogPhaseTransition(actorID, dealID, deal.CurrentPhase, target, triggeredBy)

	return s.dealRepo.GetByID(dealID)
}

// stampMilestone records set-once milestone timestamps tied to phase
// arrival. Repeat visits never move the original stamp. A failed stamp does
// not undo the transition, but it is permanent, so it is at least logged.
func (s *DealWorkflowService) stampMilestone(dealID uint, target models.DealPhase) {
	var column string
	switch target {
	case models.PhaseListingApproved:
		column = "listing_approved_at"
	case models.PhaseQACompliance:
		column = "data_room_complete_at"
	default:
		return
	}

	if err := s.dealRepo.SetMilestone(dealID, column, time.Now()); err != nil {
		slog.Error("Failed to stamp deal milestone", "deal_id", dealID, "milestone", column, "error", err)
	}
}

// Publish moves a deal from any preparation phase to live_active. Calling
// it on a deal already in an active phase is an idempotent no-op.
func (s *DealWorkflowService) Publish(dealID uint, actorID uint) (*models.Deal, error) {
	deal, err := s.dealRepo.GetByID(dealID)
	if errors.Is(err, repository.ErrDealNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if deal.CurrentPhase.IsActive() {
		return deal, nil
	}

	return s.Transition(dealID, models.PhaseLiveActive, models.TriggeredByManual, actorID)
}

// GetCompleteness reports the data-room readiness of a deal: every required
// folder holds at least one document, not-applicable folders excluded.
func (s *DealWorkflowService) GetCompleteness(dealID uint) (*models.DataRoomCompleteness, error) {
	if _, err := s.dealRepo.GetByID(dealID); err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.documentRepo.GetCompleteness(dealID)
}

// AdvanceIfComplete auto-transitions a deal in data_room_build to
// qa_compliance when its data room is complete. Reports whether the
// transition happened. Deals in any other phase are left alone.
func (s *DealWorkflowService) AdvanceIfComplete(dealID uint, actorID uint) (bool, error) {
	deal, err := s.dealRepo.GetByID(dealID)
	if errors.Is(err, repository.ErrDealNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	if deal.CurrentPhase != models.PhaseDataRoomBuild {
		return false, nil
	}

	completeness, err := s.documentRepo.GetCompleteness(dealID)
	if err != nil {
		return false, err
	}
	if !completeness.IsComplete {
		return false, nil
	}

	if _, err := s.Transition(dealID, models.PhaseQACompliance, models.TriggeredByAuto, actorID); err != nil {
		// Someone else moved the deal first; the goal is reached either way
		if errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInvalidPhaseTransition) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// GetStageHistory returns the full phase history of a deal, oldest first
func (s *DealWorkflowService) GetStageHistory(dealID uint) ([]models.StageHistoryEntry, error) {
	if _, err := s.dealRepo.GetByID(dealID); err != nil {
		if errors.Is(err, repository.ErrDealNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.dealRepo.GetStageHistory(dealID)
}

// GetDeal retrieves a deal, hiding unpublished deals from non-staff
func (s *DealWorkflowService) GetDeal(dealID uint, requester *models.User) (*models.Deal, error) {
	deal, err := s.dealRepo.GetByID(dealID)
	if errors.Is(err, repository.ErrDealNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if deal.CurrentPhase.IsPreparation() && !requester.IsStaff() {
		return nil, ErrNotFound
	}

	return deal, nil
}

// ListDeals lists deals, restricted to published ones for non-staff
func (s *DealWorkflowService) ListDeals(requester *models.User) ([]models.Deal, error) {
	return s.dealRepo.GetAll(!requester.IsStaff())
}

// CreateDeal creates a deal in the initial preparation phase
func (s *DealWorkflowService) CreateDeal(companyID uint, name string, actorID uint) (*models.Deal, error) {
	deal := &models.Deal{
		CompanyID: companyID,
		Name:      name,
	}
	if err := s.dealRepo.Create(deal); err != nil {
		return nil, err
	}

	s.auditService.Log(actorID, "deal_create", "deal", fmt.Sprintf("Created deal %d (%s)", deal.ID, deal.Name))

	return deal, nil
}
