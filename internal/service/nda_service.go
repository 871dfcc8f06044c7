package service

import (
	"errors"
	"fmt"
	"time"

	"dealroom/internal/auth"
	"dealroom/internal/config"
	"dealroom/internal/models"
	"dealroom/internal/repository"
)

// NdaService handles NDA acceptance lifecycle and extension tokens
type NdaService struct {
	ndaRepo     *repository.NdaRepository
	requestRepo *repository.AccessRequestRepository
	auditRepo   *repository.AuditRepository
	cfg         config.AccessConfig
}

// NewNdaService creates a new NDA service
func NewNdaService(
	ndaRepo *repository.NdaRepository,
	requestRepo *repository.AccessRequestRepository,
	auditRepo *repository.AuditRepository,
	cfg config.AccessConfig,
) *NdaService {
	return &NdaService{
		ndaRepo:     ndaRepo,
		requestRepo: requestRepo,
		auditRepo:   auditRepo,
		cfg:         cfg,
	}
}

// HasActiveAcceptance reports whether the user holds an active, unlapsed NDA
// for the company. Expiry is evaluated against the clock at read time; a
// record found lapsed is flipped to expired as a side effect, but the answer
// never depends on that flip having happened.
func (s *NdaService) HasActiveAcceptance(userID, companyID uint) (bool, error) {
	nda, err := s.ndaRepo.GetActive(userID, companyID)
	if errors.Is(err, repository.ErrNdaNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if nda.IsLapsed(time.Now()) {
		_ = s.ndaRepo.MarkExpired(nda.ID)
		return false, nil
	}

	return true, nil
}

// Accept records a new NDA acceptance for (user, company). Any previous
// active record is superseded and retained, never deleted. The signature
// snapshot is copied verbatim and immutable from here on.
func (s *NdaService) Accept(userID, companyID uint, signer models.SignerInfo) (*models.NdaRecord, error) {
	now := time.Now()

	nda := &models.NdaRecord{
		UserID:          userID,
		CompanyID:       companyID,
		SignedAt:        now,
		SignerName:      signer.SignerName,
		SignerEmail:     signer.SignerEmail,
		SignatureText:   signer.SignatureText,
		ContentSnapshot: signer.ContentSnapshot,
	}

	if s.cfg.NdaValidityDays > 0 {
		expiresAt := now.AddDate(0, 0, s.cfg.NdaValidityDays)
		nda.ExpiresAt = &expiresAt
	}

	if err := s.ndaRepo.Accept(nda); err != nil {
		if errors.Is(err, repository.ErrNdaConflict) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	s.log(userID, "nda_accept", fmt.Sprintf("Accepted NDA (ID: %d) for company %d", nda.ID, companyID))

	return nda, nil
}

// GetStatus returns the current NDA record for (user, company), or nil if
// the user never accepted one
func (s *NdaService) GetStatus(userID, companyID uint) (*models.NdaRecord, error) {
	nda, err := s.ndaRepo.GetActive(userID, companyID)
	if errors.Is(err, repository.ErrNdaNotFound) {
		history, err := s.ndaRepo.GetHistory(userID, companyID)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			return nil, nil
		}
		return &history[0], nil
	}
	if err != nil {
		return nil, err
	}

	if nda.IsLapsed(time.Now()) {
		_ = s.ndaRepo.MarkExpired(nda.ID)
		nda.Status = models.NdaExpired
	}

	return nda, nil
}

// GetHistory returns all NDA records for (user, company), newest first
func (s *NdaService) GetHistory(userID, companyID uint) ([]models.NdaRecord, error) {
	return s.ndaRepo.GetHistory(userID, companyID)
}

// IssueExtensionToken creates a single-use extension token for an NDA
// record. Delivery of the token to the counterparty happens outside this
// engine.
func (s *NdaService) IssueExtensionToken(ndaID uint, issuerID uint, validFor time.Duration) (*models.NdaExtensionToken, error) {
	nda, err := s.ndaRepo.GetByID(ndaID)
	if errors.Is(err, repository.ErrNdaNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if nda.Status == models.NdaRevoked || nda.Status == models.NdaSuperseded {
		return nil, ErrTokenInvalid
	}
	// A record without an expiry never lapses; there is nothing to extend.
	if nda.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	value, err := auth.GenerateRandomToken(32)
	if err != nil {
		return nil, err
	}

	token := &models.NdaExtensionToken{
		NdaID:     nda.ID,
		Token:     value,
		ExpiresAt: time.Now().Add(validFor),
	}
	if err := s.ndaRepo.CreateExtensionToken(token); err != nil {
		return nil, err
	}

	s.log(issuerID, "nda_extension_token_issue", fmt.Sprintf("Issued extension token for NDA %d", nda.ID))

	return token, nil
}

// Extend consumes an extension token and pushes the NDA expiry forward by
// the configured number of days. The token is single-use: the consume is a
// compare-and-set on used_at, so of two concurrent redemptions exactly one
// wins. A lapsed record is reactivated; a revoked or perpetual one never is.
func (s *NdaService) Extend(userID uint, tokenValue string) (*models.NdaRecord, error) {
	token, err := s.ndaRepo.GetExtensionToken(tokenValue)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if token.UsedAt != nil {
		return nil, ErrTokenAlreadyUsed
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	nda, err := s.ndaRepo.GetByID(token.NdaID)
	if errors.Is(err, repository.ErrNdaNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if nda.Status == models.NdaRevoked || nda.Status == models.NdaSuperseded {
		return nil, ErrTokenInvalid
	}

	// A perpetual record has no expiry to push forward; writing one would
	// shorten the signer's standing. Rejected before the consume so the
	// token is not burned.
	if nda.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	// Consume first: once spent, the token stays spent even if the extend
	// below fails and the caller retries with a fresh token.
	if err := s.ndaRepo.ConsumeExtensionToken(token.ID); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			return nil, ErrTokenAlreadyUsed
		}
		return nil, err
	}

	base := time.Now()
	if nda.ExpiresAt.After(base) {
		base = *nda.ExpiresAt
	}
	newExpiry := base.AddDate(0, 0, s.cfg.ExtensionDays)

	if err := s.ndaRepo.ExtendExpiry(nda.ID, newExpiry); err != nil {
		if errors.Is(err, repository.ErrNdaConflict) {
			return nil, ErrConcurrentModification
		}
		return nil, err
	}

	s.log(userID, "nda_extend", fmt.Sprintf("Extended NDA %d to %s", nda.ID, newExpiry.Format(time.RFC3339)))

	nda.ExpiresAt = &newExpiry
	nda.Status = models.NdaActive
	return nda, nil
}

// Revoke terminates an active NDA. When configured, previously approved
// access escalations for the pair are invalidated with it, dropping the
// user's effective level back to their role floor.
func (s *NdaService) Revoke(ndaID uint, revokerID uint) error {
	nda, err := s.ndaRepo.GetByID(ndaID)
	if errors.Is(err, repository.ErrNdaNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := s.ndaRepo.Revoke(nda.ID); err != nil {
		if errors.Is(err, repository.ErrNdaNotActive) {
			return ErrNotFound
		}
		return err
	}

	s.log(revokerID, "nda_revoke", fmt.Sprintf("Revoked NDA %d for user %d, company %d", nda.ID, nda.UserID, nda.CompanyID))

	if s.cfg.RevokeResetsEscalations {
		reset, err := s.requestRepo.InvalidateApproved(nda.UserID, nda.CompanyID, revokerID)
		if err != nil {
			return fmt.Errorf("NDA revoked but failed to reset escalations: %w", err)
		}
		if reset > 0 {
			s.log(revokerID, "access_request_reset", fmt.Sprintf("Invalidated %d approved escalations for user %d, company %d", reset, nda.UserID, nda.CompanyID))
		}
	}

	return nil
}

func (s *NdaService) log(userID uint, action, details string) {
	_ = s.auditRepo.Create(&models.ActivityAudit{
		UserID:   &userID,
		Action:   action,
		Resource: "nda",
		Details:  details,
	})
}
