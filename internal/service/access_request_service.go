package service

import (
	"errors"
	"fmt"

	"dealroom/internal/accesslevel"
	"dealroom/internal/models"
	"dealroom/internal/repository"
)

// AccessRequestService handles access escalation requests
type AccessRequestService struct {
	requestRepo *repository.AccessRequestRepository
	userRepo    *repository.UserRepository
	auditRepo   *repository.AuditRepository
	levels      *EffectiveLevelCalculator
}

// NewAccessRequestService creates a new access request service
func NewAccessRequestService(
	requestRepo *repository.AccessRequestRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditRepository,
	levels *EffectiveLevelCalculator,
) *AccessRequestService {
	return &AccessRequestService{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		levels:      levels,
	}
}

// Submit files an escalation request. The requested level must strictly
// exceed the caller's current effective level for the company; at most one
// pending request per (user, company, level) may exist.
func (s *AccessRequestService) Submit(userID, companyID uint, requestedLevel accesslevel.Level, reason string) (*models.AccessRequest, error) {
	if !accesslevel.Valid(requestedLevel) {
		return nil, ErrInvalidEscalation
	}

	user, err := s.userRepo.GetByID(userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	current, err := s.levels.EffectiveLevel(user, companyID)
	if err != nil {
		return nil, err
	}

	// Requests are judged against the uncapped floor: a user whose NDA cap
	// holds them at teaser may still request financials and then sign.
	floor, err := s.levels.FloorLevel(user, companyID)
	if err != nil {
		return nil, err
	}

	if accesslevel.Rank(requestedLevel) <= accesslevel.Rank(floor) {
		return nil, ErrInvalidEscalation
	}

	req := &models.AccessRequest{
		UserID:         userID,
		CompanyID:      companyID,
		CurrentLevel:   current,
		RequestedLevel: requestedLevel,
		Reason:         reason,
	}

	if err := s.requestRepo.Create(req); err != nil {
		if errors.Is(err, repository.ErrRequestDuplicate) {
			return nil, ErrDuplicatePending
		}
		return nil, err
	}

	s.log(userID, "access_request_submit", fmt.Sprintf("Requested %s for company %d (request ID: %d)", requestedLevel, companyID, req.ID))

	return req, nil
}

// Decide approves or denies a pending request. A request is decided exactly
// once: the underlying update only matches the pending row, so a second
// reviewer gets ErrAlreadyDecided and the first decision stands.
func (s *AccessRequestService) Decide(requestID uint, approve bool, reviewerID uint) (*models.AccessRequest, error) {
	status := models.RequestDenied
	if approve {
		status = models.RequestApproved
	}

	if err := s.requestRepo.Decide(requestID, status, reviewerID); err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repository.ErrRequestDecided) {
			return nil, ErrAlreadyDecided
		}
		return nil, err
	}

	req, err := s.requestRepo.GetByID(requestID)
	if err != nil {
		return nil, err
	}

	s.log(reviewerID, "access_request_decide", fmt.Sprintf("Request %d %s", requestID, status))

	return req, nil
}

// GetByUser retrieves all requests filed by a user
func (s *AccessRequestService) GetByUser(userID uint) ([]models.AccessRequest, error) {
	return s.requestRepo.GetByUser(userID)
}

// GetPending retrieves the pending review queue
func (s *AccessRequestService) GetPending(limit, offset int) ([]models.AccessRequest, error) {
	return s.requestRepo.GetPending(limit, offset)
}

// GetByID retrieves a request, restricted to its owner or staff
func (s *AccessRequestService) GetByID(requestID uint, requester *models.User) (*models.AccessRequest, error) {
	req, err := s.requestRepo.GetByID(requestID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.UserID != requester.ID && !requester.IsStaff() {
		return nil, ErrPermissionDenied
	}

	return req, nil
}

func (s *AccessRequestService) log(userID uint, action, details string) {
	_ = s.auditRepo.Create(&models.ActivityAudit{
		UserID:   &userID,
		Action:   action,
		Resource: "access_request",
		Details:  details,
	})
}
