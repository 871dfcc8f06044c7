package service

import (
	"errors"
	"fmt"

	"dealroom/internal/accesslevel"
	"dealroom/internal/handle"
	"dealroom/internal/models"
	"dealroom/internal/repository"
)

// EffectiveLevelCalculator computes a user's disclosure tier for a company.
// The floor (role default raised by approved escalations) and the ceiling
// (teaser cap without an active NDA) are computed independently and combined
// last, so each half stays testable on its own.
type EffectiveLevelCalculator struct {
	requestRepo *repository.AccessRequestRepository
	ndaService  *NdaService
}

// NewEffectiveLevelCalculator creates a new effective level calculator
func NewEffectiveLevelCalculator(requestRepo *repository.AccessRequestRepository, ndaService *NdaService) *EffectiveLevelCalculator {
	return &EffectiveLevelCalculator{
		requestRepo: requestRepo,
		ndaService:  ndaService,
	}
}

// RoleFloor returns the disclosure tier a role grants before escalations.
// Staff and admins are internal users with unrestricted visibility.
func RoleFloor(role string) accesslevel.Level {
	switch role {
	case models.RoleAdmin, models.RoleStaff:
		return accesslevel.Full
	default:
		return accesslevel.Public
	}
}

// FloorLevel returns the user's floor for a company: the role default raised
// by the highest approved escalation. The NDA ceiling is not applied here.
func (c *EffectiveLevelCalculator) FloorLevel(user *models.User, companyID uint) (accesslevel.Level, error) {
	floor := RoleFloor(user.Role)

	approved, err := c.requestRepo.GetApprovedLevels(user.ID, companyID)
	if err != nil {
		return floor, err
	}

	for _, level := range approved {
		floor = accesslevel.Max(floor, accesslevel.Level(level))
	}

	return floor, nil
}

// EffectiveLevel returns the floor capped by the NDA ceiling. Without an
// active acceptance nothing above teaser is reachable, no matter what was
// approved. Staff are exempt from the cap; they do not sign their own NDAs.
func (c *EffectiveLevelCalculator) EffectiveLevel(user *models.User, companyID uint) (accesslevel.Level, error) {
	floor, err := c.FloorLevel(user, companyID)
	if err != nil {
		return accesslevel.Public, err
	}

	if user.IsStaff() {
		return floor, nil
	}

	hasNda, err := c.ndaService.HasActiveAcceptance(user.ID, companyID)
	if err != nil {
		return accesslevel.Public, err
	}

	return ApplyNdaCeiling(floor, hasNda), nil
}

// ApplyNdaCeiling caps a floor at teaser unless an active NDA lifts the cap.
// Pure; the gate's ceiling logic lives here and nowhere else.
func ApplyNdaCeiling(floor accesslevel.Level, hasActiveNda bool) accesslevel.Level {
	if hasActiveNda {
		return floor
	}
	return accesslevel.Cap(floor, accesslevel.Teaser)
}

// DisclosureService is the central authorization decision point for
// documents
type DisclosureService struct {
	documentRepo *repository.DocumentRepository
	dealRepo     *repository.DealRepository
	levels       *EffectiveLevelCalculator
	ndaService   *NdaService
	issuer       *handle.Issuer
	auditService *AuditService
}

// NewDisclosureService creates a new disclosure service
func NewDisclosureService(
	documentRepo *repository.DocumentRepository,
	dealRepo *repository.DealRepository,
	levels *EffectiveLevelCalculator,
	ndaService *NdaService,
	issuer *handle.Issuer,
	auditService *AuditService,
) *DisclosureService {
	return &DisclosureService{
		documentRepo: documentRepo,
		dealRepo:     dealRepo,
		levels:       levels,
		ndaService:   ndaService,
		issuer:       issuer,
		auditService: auditService,
	}
}

// Authorize decides whether a user may retrieve a document. Denials are a
// normal outcome carried in the decision struct; the error return is for
// infrastructure failures only. Every decision, grant or denial, is audited.
func (s *DisclosureService) Authorize(user *models.User, documentID uint, ip, userAgent string) (*models.AccessDecision, error) {
	doc, err := s.documentRepo.GetByID(documentID)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	deal, err := s.dealRepo.GetByID(doc.DealID)
	if err != nil {
		return nil, err
	}

	// Unpublished deals are invisible to non-staff regardless of tier
	if deal.CurrentPhase.IsPreparation() && !user.IsStaff() {
		decision := &models.AccessDecision{
			Granted:        false,
			Reason:         models.ReasonDealNotPublished,
			EffectiveLevel: accesslevel.Public,
			RequiredLevel:  doc.RequiredAccessLevel,
		}
		s.audit(user, doc, decision, ip, userAgent)
		return decision, nil
	}

	floor, err := s.levels.FloorLevel(user, deal.CompanyID)
	if err != nil {
		return nil, err
	}

	hasNda := true
	if !user.IsStaff() {
		hasNda, err = s.ndaService.HasActiveAcceptance(user.ID, deal.CompanyID)
		if err != nil {
			return nil, err
		}
	}

	effective := ApplyNdaCeiling(floor, hasNda)

	decision := &models.AccessDecision{
		EffectiveLevel: effective,
		RequiredLevel:  doc.RequiredAccessLevel,
	}

	if !accesslevel.Satisfies(effective, doc.RequiredAccessLevel) {
		// Tell the user whether signing the NDA would be enough, or
		// whether they also need an escalation approved.
		if !hasNda && accesslevel.Satisfies(floor, doc.RequiredAccessLevel) {
			decision.Reason = models.ReasonNdaRequired
		} else {
			decision.Reason = models.ReasonInsufficientAccessLevel
		}
		s.audit(user, doc, decision, ip, userAgent)
		return decision, nil
	}

	h, err := s.issuer.Issue(doc.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue retrieval handle: %w", err)
	}

	decision.Granted = true
	decision.Handle = h
	s.audit(user, doc, decision, ip, userAgent)

	return decision, nil
}

// Redeem validates a retrieval handle for a document and returns the
// document for serving. Expired or foreign handles are rejected; a valid
// redemption is audited as a download.
func (s *DisclosureService) Redeem(token string, documentID uint, ip, userAgent string) (*models.Document, error) {
	claims, err := s.issuer.Validate(token, documentID)
	if err != nil {
		return nil, err
	}

	doc, err := s.documentRepo.GetByID(documentID)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.auditService.Log(claims.UserID, "download", "document", fmt.Sprintf("Redeemed handle for document %d", doc.ID))

	return doc, nil
}

func (s *DisclosureService) audit(user *models.User, doc *models.Document, decision *models.AccessDecision, ip, userAgent string) {
	outcome := models.DecisionDenied
	if decision.Granted {
		outcome = models.DecisionGranted
	}
	s.auditService.LogAccessDecision(user.ID, user.Email, doc.ID, doc.DealID, decision.EffectiveLevel, outcome, decision.Reason, ip, userAgent)
}
