package service

import (
	"dealroom/internal/accesslevel"
	"dealroom/internal/models"
	"dealroom/internal/repository"
)

// AuditService handles activity audit logging
type AuditService struct {
	auditRepo *repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(auditRepo *repository.AuditRepository) *AuditService {
	return &AuditService{
		auditRepo: auditRepo,
	}
}

// Log creates an audit entry, ignoring errors
// This is the recommended way to log audit events as it won't fail the main operation
func (s *AuditService) Log(userID uint, action, resource, details string) {
	_ = s.auditRepo.Create(&models.ActivityAudit{
		UserID:   &userID,
		Action:   action,
		Resource: resource,
		Details:  details,
	})
}

// LogAccessDecision records a disclosure decision. Grants and denials are
// both recorded; denials carry the reason in details.
func (s *AuditService) LogAccessDecision(userID uint, userEmail string, documentID, dealID uint, effectiveLevel accesslevel.Level, decision, reason, ip, userAgent string) {
	_ = s.auditRepo.Create(&models.ActivityAudit{
		UserID:         &userID,
		UserEmail:      &userEmail,
		Action:         "authorize",
		Resource:       "document",
		DocumentID:     &documentID,
		DealID:         &dealID,
		EffectiveLevel: &effectiveLevel,
		Decision:       &decision,
		Details:        reason,
		IPAddress:      ip,
		UserAgent:      userAgent,
	})
}

// LogPhaseTransition records a deal phase transition
func (s *AuditService) LogPhaseTransition(userID uint, dealID uint, from, to models.DealPhase, triggeredBy string) {
	_ = s.auditRepo.Create(&models.ActivityAudit{
		UserID:   &userID,
		Action:   "phase_transition",
		Resource: "deal",
		DealID:   &dealID,
		Details:  string(from) + " -> " + string(to) + " (" + triggeredBy + ")",
	})
}

// GetAll retrieves audit entries matching the filters with pagination
func (s *AuditService) GetAll(filters repository.AuditFilters, limit, offset int) ([]models.ActivityAudit, int, error) {
	entries, err := s.auditRepo.GetAll(filters, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.auditRepo.Count(filters)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
