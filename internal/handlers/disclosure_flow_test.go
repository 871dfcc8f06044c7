package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"dealroom/internal/config"
	"dealroom/internal/handle"
	"dealroom/internal/handlers"
	"dealroom/internal/middleware"
	"dealroom/internal/models"
	"dealroom/internal/repository"
	"dealroom/internal/service"
	"dealroom/internal/testutil"
)

// buildAPI wires the routes the way the server does, backed by the
// containerized database
func buildAPI(t *testing.T, containers *testutil.TestContainers, authHelper *testutil.AuthHelper) http.Handler {
	t.Helper()

	userRepo := repository.NewUserRepository(containers.DB)
	dealRepo := repository.NewDealRepository(containers.DB)
	documentRepo := repository.NewDocumentRepository(containers.DB)
	ndaRepo := repository.NewNdaRepository(containers.DB)
	requestRepo := repository.NewAccessRequestRepository(containers.DB)
	auditRepo := repository.NewAuditRepository(containers.DB)

	accessCfg := config.AccessConfig{
		RevokeResetsEscalations: true,
		ExtensionDays:           60,
		NdaValidityDays:         365,
	}

	auditService := service.NewAuditService(auditRepo)
	ndaService := service.NewNdaService(ndaRepo, requestRepo, auditRepo, accessCfg)
	levels := service.NewEffectiveLevelCalculator(requestRepo, ndaService)
	requestService := service.NewAccessRequestService(requestRepo, userRepo, auditRepo, levels)

	privateKey, publicKey := authHelper.Service.SigningKey()
	issuer := handle.NewIssuer(privateKey, publicKey, 5*time.Minute)
	disclosureService := service.NewDisclosureService(documentRepo, dealRepo, levels, ndaService, issuer, auditService)

	ndaHandler := handlers.NewNdaHandler(ndaService)
	requestHandler := handlers.NewAccessRequestHandler(requestService)
	documentHandler := handlers.NewDocumentHandler(documentRepo, disclosureService)

	authMw := middleware.NewAuthMiddleware(authHelper.Service, userRepo)
	rbacMw := middleware.NewRBACMiddleware()

	mux := http.NewServeMux()

	mux.Handle("GET /api/v1/documents/{id}/download", http.HandlerFunc(documentHandler.Download))

	mux.Handle("POST /api/v1/documents/{id}/authorize", authMw.Authenticate(http.HandlerFunc(documentHandler.Authorize)))
	mux.Handle("POST /api/v1/companies/{id}/nda", authMw.Authenticate(http.HandlerFunc(ndaHandler.Accept)))
	mux.Handle("POST /api/v1/access-requests", authMw.Authenticate(http.HandlerFunc(requestHandler.Submit)))
	mux.Handle("GET /api/v1/access-requests/pending", authMw.Authenticate(rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(http.HandlerFunc(requestHandler.ListPending))))
	mux.Handle("POST /api/v1/access-requests/{id}/decision", authMw.Authenticate(rbacMw.RequireAnyRole(models.RoleAdmin, models.RoleStaff)(http.HandlerFunc(requestHandler.Decide))))

	return mux
}

func TestDisclosureFlow(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	fixtures := testutil.SetupFixtures(t, containers.DB)
	authHelper := testutil.NewAuthHelper()
	api := buildAPI(t, containers, authHelper)

	viewer := fixtures.ViewerUser
	staff := fixtures.StaffUser
	authorizeURL := fmt.Sprintf("/api/v1/documents/%d/authorize", fixtures.CimDoc.ID)

	// Unauthenticated callers never reach the gate
	rec := testutil.NewTestResponse()
	req := testutil.NewTestRequest(t, "POST", authorizeURL, nil)
	api.ServeHTTP(rec, req)
	rec.AssertStatusUnauthorized(t)

	// The viewer starts at public: denied, but with a decision payload
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequest(t, "POST", authorizeURL, viewer)
	api.ServeHTTP(rec, req)
	rec.AssertStatusOK(t)

	var decision models.AccessDecision
	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("Failed to decode decision: %v", err)
	}
	if decision.Granted || decision.Reason != models.ReasonInsufficientAccessLevel {
		t.Fatalf("Expected insufficient_access_level denial, got %+v", decision)
	}

	// The viewer requests cim access
	body, _ := json.Marshal(map[string]interface{}{
		"company_id":      fixtures.Company.ID,
		"requested_level": "cim",
		"reason":          "evaluating the listing",
	})
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequestWithBody(t, "POST", "/api/v1/access-requests", body, viewer)
	api.ServeHTTP(rec, req)
	rec.AssertStatusCreated(t)

	var request models.AccessRequest
	if err := json.NewDecoder(rec.Body).Decode(&request); err != nil {
		t.Fatalf("Failed to decode request: %v", err)
	}

	// The review queue is staff-only
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequest(t, "GET", "/api/v1/access-requests/pending", viewer)
	api.ServeHTTP(rec, req)
	rec.AssertStatusForbidden(t)

	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequest(t, "GET", "/api/v1/access-requests/pending", staff)
	api.ServeHTTP(rec, req)
	rec.AssertStatusOK(t)

	// Staff approve the request
	body, _ = json.Marshal(map[string]bool{"approve": true})
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequestWithBody(t, "POST", fmt.Sprintf("/api/v1/access-requests/%d/decision", request.ID), body, staff)
	api.ServeHTTP(rec, req)
	rec.AssertStatusOK(t)

	// Approved but no NDA: the cap holds, and the reason now points at it
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequest(t, "POST", authorizeURL, viewer)
	api.ServeHTTP(rec, req)
	rec.AssertStatusOK(t)

	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("Failed to decode decision: %v", err)
	}
	if decision.Granted || decision.Reason != models.ReasonNdaRequired {
		t.Fatalf("Expected nda_required denial, got %+v", decision)
	}

	// The viewer signs the NDA
	body, _ = json.Marshal(map[string]string{
		"signer_name":    "Vera Viewer",
		"signer_email":   viewer.Email,
		"signature_text": "Vera Viewer",
	})
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequestWithBody(t, "POST", fmt.Sprintf("/api/v1/companies/%d/nda", fixtures.Company.ID), body, viewer)
	api.ServeHTTP(rec, req)
	rec.AssertStatusCreated(t)

	// Now the gate opens and hands out a retrieval handle
	rec = testutil.NewTestResponse()
	req = authHelper.CreateAuthenticatedRequest(t, "POST", authorizeURL, viewer)
	api.ServeHTTP(rec, req)
	rec.AssertStatusOK(t)

	if err := json.NewDecoder(rec.Body).Decode(&decision); err != nil {
		t.Fatalf("Failed to decode decision: %v", err)
	}
	if !decision.Granted || decision.Handle == nil {
		t.Fatalf("Expected a grant with a handle, got %+v", decision)
	}

	// The handle is the whole credential on the download route
	rec = testutil.NewTestResponse()
	req = testutil.NewTestRequest(t, "GET", fmt.Sprintf("/api/v1/documents/%d/download?handle=%s", fixtures.CimDoc.ID, decision.Handle.Token), nil)
	api.ServeHTTP(rec, req)
	rec.AssertStatusOK(t)

	var download map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&download); err != nil {
		t.Fatalf("Failed to decode download response: %v", err)
	}
	if download["name"] != fixtures.CimDoc.Name {
		t.Errorf("Expected document %s, got %v", fixtures.CimDoc.Name, download["name"])
	}

	// A handle for one document does not open another
	rec = testutil.NewTestResponse()
	req = testutil.NewTestRequest(t, "GET", fmt.Sprintf("/api/v1/documents/%d/download?handle=%s", fixtures.TeaserDoc.ID, decision.Handle.Token), nil)
	api.ServeHTTP(rec, req)
	rec.AssertStatusForbidden(t)
}
