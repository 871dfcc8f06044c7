package service_test

import (
	"errors"
	"testing"

	"dealroom/internal/accesslevel"
	"dealroom/internal/handle"
	"dealroom/internal/models"
	"dealroom/internal/testutil"
)

func TestAuthorizeViewerWithoutNda(t *testing.T) {
	env := setupEnv(t)
	viewer := env.Fixtures.ViewerUser

	// No NDA, no escalations: the viewer floor is public, so even the
	// teaser document is out of reach and signing an NDA would not help.
	decision, err := env.Disclosure.Authorize(viewer, env.Fixtures.TeaserDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if decision.Granted {
		t.Fatal("Viewer without escalations should not reach teaser")
	}
	if decision.Reason != models.ReasonInsufficientAccessLevel {
		t.Errorf("Expected reason %s, got %s", models.ReasonInsufficientAccessLevel, decision.Reason)
	}
	if decision.EffectiveLevel != accesslevel.Public {
		t.Errorf("Expected effective level public, got %s", decision.EffectiveLevel)
	}
}

func TestAuthorizeNdaCeiling(t *testing.T) {
	env := setupEnv(t)
	viewer := env.Fixtures.ViewerUser
	company := env.Fixtures.Company

	// Approved escalation to financials, but no NDA: capped at teaser
	testutil.CreateApprovedRequest(t, env.Containers.DB, viewer.ID, company.ID, env.Fixtures.StaffUser.ID, accesslevel.Financials)

	decision, err := env.Disclosure.Authorize(viewer, env.Fixtures.FinancialsDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if decision.Granted {
		t.Fatal("NDA ceiling should block financials")
	}
	if decision.Reason != models.ReasonNdaRequired {
		t.Errorf("Expected reason %s, got %s", models.ReasonNdaRequired, decision.Reason)
	}
	if decision.EffectiveLevel != accesslevel.Teaser {
		t.Errorf("Expected effective level teaser, got %s", decision.EffectiveLevel)
	}

	// The teaser document is within the capped level
	decision, err = env.Disclosure.Authorize(viewer, env.Fixtures.TeaserDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("Teaser should be reachable under the cap (reason: %s)", decision.Reason)
	}
	if decision.Handle == nil {
		t.Fatal("Granted decision should carry a retrieval handle")
	}

	// Signing the NDA lifts the cap
	if _, err := env.NdaService.Accept(viewer.ID, company.ID, signer("Signer")); err != nil {
		t.Fatalf("Failed to accept NDA: %v", err)
	}

	decision, err = env.Disclosure.Authorize(viewer, env.Fixtures.FinancialsDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("Financials should be granted after signing (reason: %s)", decision.Reason)
	}
	if decision.EffectiveLevel != accesslevel.Financials {
		t.Errorf("Expected effective level financials, got %s", decision.EffectiveLevel)
	}
}

func TestAuthorizeUnpublishedDeal(t *testing.T) {
	env := setupEnv(t)

	folder := testutil.CreateFolder(t, env.Containers.DB, env.Fixtures.Deal.ID, "Drafts", false)
	doc := testutil.CreateDocument(t, env.Containers.DB, env.Fixtures.Deal.ID, folder.ID, env.Fixtures.StaffUser.ID, "draft.pdf", accesslevel.Public)

	// Viewers cannot see documents of a deal still in preparation, even at
	// the public tier
	decision, err := env.Disclosure.Authorize(env.Fixtures.ViewerUser, doc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if decision.Granted {
		t.Fatal("Unpublished deal should be invisible to viewers")
	}
	if decision.Reason != models.ReasonDealNotPublished {
		t.Errorf("Expected reason %s, got %s", models.ReasonDealNotPublished, decision.Reason)
	}

	// Staff work inside the data room before publication
	decision, err = env.Disclosure.Authorize(env.Fixtures.StaffUser, doc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !decision.Granted {
		t.Errorf("Staff should reach unpublished documents (reason: %s)", decision.Reason)
	}
}

func TestAuthorizeStaffBypassesNda(t *testing.T) {
	env := setupEnv(t)

	decision, err := env.Disclosure.Authorize(env.Fixtures.StaffUser, env.Fixtures.FinancialsDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("Staff should reach financials without an NDA (reason: %s)", decision.Reason)
	}
	if decision.EffectiveLevel != accesslevel.Full {
		t.Errorf("Expected effective level full, got %s", decision.EffectiveLevel)
	}
}

func TestAuthorizeDecisionsAreAudited(t *testing.T) {
	env := setupEnv(t)

	if _, err := env.Disclosure.Authorize(env.Fixtures.ViewerUser, env.Fixtures.CimDoc.ID, "127.0.0.1", "test"); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if _, err := env.Disclosure.Authorize(env.Fixtures.StaffUser, env.Fixtures.CimDoc.ID, "127.0.0.1", "test"); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	var denied, granted int
	err := env.Containers.DB.QueryRow(`
		SELECT
			COUNT(*) FILTER (WHERE decision = 'denied'),
			COUNT(*) FILTER (WHERE decision = 'granted')
		FROM activity_audits WHERE document_id = $1
	`, env.Fixtures.CimDoc.ID).Scan(&denied, &granted)
	if err != nil {
		t.Fatalf("Failed to count audit entries: %v", err)
	}

	if denied != 1 || granted != 1 {
		t.Errorf("Expected 1 denied and 1 granted audit entry, got %d/%d", denied, granted)
	}
}

func TestRedeemHandle(t *testing.T) {
	env := setupEnv(t)

	decision, err := env.Disclosure.Authorize(env.Fixtures.StaffUser, env.Fixtures.TeaserDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if !decision.Granted || decision.Handle == nil {
		t.Fatal("Expected a granted decision with a handle")
	}

	doc, err := env.Disclosure.Redeem(decision.Handle.Token, env.Fixtures.TeaserDoc.ID, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if doc.ID != env.Fixtures.TeaserDoc.ID {
		t.Errorf("Redeemed wrong document: %d", doc.ID)
	}

	// The handle is bound to one document
	if _, err := env.Disclosure.Redeem(decision.Handle.Token, env.Fixtures.CimDoc.ID, "127.0.0.1", "test"); !errors.Is(err, handle.ErrWrongDocument) {
		t.Errorf("Expected ErrWrongDocument, got %v", err)
	}
}
