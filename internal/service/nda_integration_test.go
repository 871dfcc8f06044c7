package service_test

import (
	"errors"
	"testing"
	"time"

	"dealroom/internal/accesslevel"
	"dealroom/internal/models"
	"dealroom/internal/service"
	"dealroom/internal/testutil"
)

func signer(name string) models.SignerInfo {
	return models.SignerInfo{
		SignerName:      name,
		SignerEmail:     "signer@test.com",
		SignatureText:   name,
		ContentSnapshot: "NDA terms v1",
	}
}

func TestNdaAcceptSupersedesPrevious(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	first, err := env.NdaService.Accept(user.ID, company.ID, signer("First Signature"))
	if err != nil {
		t.Fatalf("Failed to accept NDA: %v", err)
	}

	second, err := env.NdaService.Accept(user.ID, company.ID, signer("Second Signature"))
	if err != nil {
		t.Fatalf("Failed to re-accept NDA: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("Re-acceptance should create a new record")
	}

	history, err := env.NdaService.GetHistory(user.ID, company.ID)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 history records, got %d", len(history))
	}

	// Newest first: the fresh acceptance is active, the old one superseded
	if history[0].ID != second.ID || history[0].Status != models.NdaActive {
		t.Errorf("Expected newest record %d active, got %d %s", second.ID, history[0].ID, history[0].Status)
	}
	if history[1].ID != first.ID || history[1].Status != models.NdaSuperseded {
		t.Errorf("Expected old record %d superseded, got %d %s", first.ID, history[1].ID, history[1].Status)
	}

	// The superseded record keeps its original signature snapshot
	if history[1].SignerName != "First Signature" {
		t.Errorf("Superseded record lost its signature: %s", history[1].SignerName)
	}
}

func TestNdaLazyExpiry(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	expired := time.Now().Add(-time.Hour)
	record := testutil.CreateActiveNda(t, env.Containers.DB, user.ID, company.ID, &expired)

	has, err := env.NdaService.HasActiveAcceptance(user.ID, company.ID)
	if err != nil {
		t.Fatalf("Failed to check acceptance: %v", err)
	}
	if has {
		t.Error("Lapsed NDA should not count as active")
	}

	// The read flipped the stored status
	var status string
	if err := env.Containers.DB.QueryRow("SELECT status FROM nda_records WHERE id = $1", record.ID).Scan(&status); err != nil {
		t.Fatalf("Failed to read NDA status: %v", err)
	}
	if status != string(models.NdaExpired) {
		t.Errorf("Expected stored status expired, got %s", status)
	}
}

func TestNdaExtensionTokenSingleUse(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	nda, err := env.NdaService.Accept(user.ID, company.ID, signer("Signer"))
	if err != nil {
		t.Fatalf("Failed to accept NDA: %v", err)
	}

	token, err := env.NdaService.IssueExtensionToken(nda.ID, env.Fixtures.StaffUser.ID, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue extension token: %v", err)
	}

	extended, err := env.NdaService.Extend(user.ID, token.Token)
	if err != nil {
		t.Fatalf("Failed to extend NDA: %v", err)
	}
	if extended.ExpiresAt == nil || !extended.ExpiresAt.After(*nda.ExpiresAt) {
		t.Error("Extension should push the expiry forward")
	}

	// Second redemption of the same token must fail
	if _, err := env.NdaService.Extend(user.ID, token.Token); !errors.Is(err, service.ErrTokenAlreadyUsed) {
		t.Errorf("Expected ErrTokenAlreadyUsed, got %v", err)
	}
}

func TestNdaExtendReactivatesLapsed(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	expired := time.Now().Add(-time.Hour)
	record := testutil.CreateActiveNda(t, env.Containers.DB, user.ID, company.ID, &expired)

	// Force the lazy expiry flip
	if has, err := env.NdaService.HasActiveAcceptance(user.ID, company.ID); err != nil || has {
		t.Fatalf("Expected lapsed NDA (has=%v, err=%v)", has, err)
	}

	token, err := env.NdaService.IssueExtensionToken(record.ID, env.Fixtures.StaffUser.ID, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token for lapsed NDA: %v", err)
	}

	extended, err := env.NdaService.Extend(user.ID, token.Token)
	if err != nil {
		t.Fatalf("Failed to extend lapsed NDA: %v", err)
	}
	if extended.Status != models.NdaActive {
		t.Errorf("Expected reactivated NDA, got status %s", extended.Status)
	}

	has, err := env.NdaService.HasActiveAcceptance(user.ID, company.ID)
	if err != nil {
		t.Fatalf("Failed to check acceptance: %v", err)
	}
	if !has {
		t.Error("Extended NDA should count as active again")
	}
}

func TestNdaExtendRejectsRevoked(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	nda, err := env.NdaService.Accept(user.ID, company.ID, signer("Signer"))
	if err != nil {
		t.Fatalf("Failed to accept NDA: %v", err)
	}

	token, err := env.NdaService.IssueExtensionToken(nda.ID, env.Fixtures.StaffUser.ID, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	if err := env.NdaService.Revoke(nda.ID, env.Fixtures.AdminUser.ID); err != nil {
		t.Fatalf("Failed to revoke NDA: %v", err)
	}

	if _, err := env.NdaService.Extend(user.ID, token.Token); !errors.Is(err, service.ErrTokenInvalid) {
		t.Errorf("Expected ErrTokenInvalid for revoked NDA, got %v", err)
	}
}

func TestNdaPerpetualNotExtendable(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	// No expiry: the record never lapses
	record := testutil.CreateActiveNda(t, env.Containers.DB, user.ID, company.ID, nil)

	if _, err := env.NdaService.IssueExtensionToken(record.ID, env.Fixtures.StaffUser.ID, time.Hour); !errors.Is(err, service.ErrTokenInvalid) {
		t.Errorf("Expected ErrTokenInvalid issuing a token for a perpetual NDA, got %v", err)
	}

	// A token that reaches redemption anyway must not write an expiry
	var tokenID uint
	if err := env.Containers.DB.QueryRow(`
		INSERT INTO nda_extension_tokens (nda_id, token, expires_at)
		VALUES ($1, 'stray-token', $2)
		RETURNING id
	`, record.ID, time.Now().Add(time.Hour)).Scan(&tokenID); err != nil {
		t.Fatalf("Failed to insert token: %v", err)
	}

	if _, err := env.NdaService.Extend(user.ID, "stray-token"); !errors.Is(err, service.ErrTokenInvalid) {
		t.Errorf("Expected ErrTokenInvalid extending a perpetual NDA, got %v", err)
	}

	var expiresAt, usedAt *time.Time
	if err := env.Containers.DB.QueryRow(`
		SELECT n.expires_at, t.used_at
		FROM nda_records n JOIN nda_extension_tokens t ON t.nda_id = n.id
		WHERE t.id = $1
	`, tokenID).Scan(&expiresAt, &usedAt); err != nil {
		t.Fatalf("Failed to re-read NDA and token: %v", err)
	}
	if expiresAt != nil {
		t.Errorf("Perpetual NDA gained an expiry: %v", expiresAt)
	}
	if usedAt != nil {
		t.Error("Rejected token should not be consumed")
	}

	has, err := env.NdaService.HasActiveAcceptance(user.ID, company.ID)
	if err != nil {
		t.Fatalf("Failed to check acceptance: %v", err)
	}
	if !has {
		t.Error("Perpetual NDA should remain active")
	}
}

func TestNdaRevokeResetsEscalations(t *testing.T) {
	env := setupEnv(t)
	user := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	nda, err := env.NdaService.Accept(user.ID, company.ID, signer("Signer"))
	if err != nil {
		t.Fatalf("Failed to accept NDA: %v", err)
	}
	testutil.CreateApprovedRequest(t, env.Containers.DB, user.ID, company.ID, env.Fixtures.StaffUser.ID, accesslevel.Financials)

	level, err := env.Levels.EffectiveLevel(user, company.ID)
	if err != nil {
		t.Fatalf("Failed to compute effective level: %v", err)
	}
	if level != accesslevel.Financials {
		t.Fatalf("Expected financials before revoke, got %s", level)
	}

	if err := env.NdaService.Revoke(nda.ID, env.Fixtures.AdminUser.ID); err != nil {
		t.Fatalf("Failed to revoke NDA: %v", err)
	}

	// Escalations are invalidated with the NDA, so the user falls all the
	// way back to their role floor, not just to the teaser cap.
	level, err = env.Levels.EffectiveLevel(user, company.ID)
	if err != nil {
		t.Fatalf("Failed to compute effective level: %v", err)
	}
	if level != accesslevel.Public {
		t.Errorf("Expected public after revoke, got %s", level)
	}
}
