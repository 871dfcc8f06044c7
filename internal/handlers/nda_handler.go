package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"dealroom/internal/middleware"
	"dealroom/internal/models"
	"dealroom/internal/service"
)

// NdaHandler handles NDA acceptance, extension, and revocation requests
type NdaHandler struct {
	ndaService *service.NdaService
}

// NewNdaHandler creates a new NDA handler
func NewNdaHandler(ndaService *service.NdaService) *NdaHandler {
	return &NdaHandler{
		ndaService: ndaService,
	}
}

type acceptNdaRequest struct {
	SignerName      string `json:"signer_name"`
	SignerEmail     string `json:"signer_email"`
	SignatureText   string `json:"signature_text"`
	ContentSnapshot string `json:"content_snapshot"`
}

// Accept records an NDA acceptance for the authenticated user
// @Summary Accept NDA
// @Description Accept the NDA for a company, superseding any previous acceptance
// @Tags NDA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Param signature body acceptNdaRequest true "Signature data"
// @Success 201 {object} models.NdaRecord "New acceptance record"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 409 {object} map[string]string "Concurrent acceptance"
// @Router /companies/{id}/nda [post]
func (h *NdaHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	companyID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	var req acceptNdaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SignerName == "" || req.SignerEmail == "" || req.SignatureText == "" {
		respondWithError(w, http.StatusBadRequest, "Signer name, email, and signature are required")
		return
	}

	nda, err := h.ndaService.Accept(user.ID, companyID, models.SignerInfo{
		SignerName:      req.SignerName,
		SignerEmail:     req.SignerEmail,
		SignatureText:   req.SignatureText,
		ContentSnapshot: req.ContentSnapshot,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, nda)
}

// Status returns the authenticated user's NDA status for a company
// @Summary NDA status
// @Description Get the caller's current NDA record for a company
// @Tags NDA
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Success 200 {object} map[string]interface{} "NDA status"
// @Router /companies/{id}/nda [get]
func (h *NdaHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	companyID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	nda, err := h.ndaService.GetStatus(user.ID, companyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	active, err := h.ndaService.HasActiveAcceptance(user.ID, companyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"record":     nda,
		"has_active": active,
	})
}

// History lists all NDA records for a user and company (staff only)
// @Summary NDA history
// @Description List all NDA records for a user and company, newest first
// @Tags NDA
// @Produce json
// @Security BearerAuth
// @Param id path int true "Company ID"
// @Param user_id path int true "User ID"
// @Success 200 {array} models.NdaRecord "NDA records"
// @Failure 403 {object} map[string]string "Forbidden - staff only"
// @Router /companies/{id}/nda/history/{user_id} [get]
func (h *NdaHandler) History(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	userID, ok := pathID(r, "user_id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	records, err := h.ndaService.GetHistory(userID, companyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

type issueTokenRequest struct {
	ValidHours int `json:"valid_hours"`
}

// IssueExtensionToken creates a single-use extension token (staff only)
// @Summary Issue extension token
// @Description Create a single-use extension token for an NDA record
// @Tags NDA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "NDA record ID"
// @Param options body issueTokenRequest false "Token validity"
// @Success 201 {object} models.NdaExtensionToken "Extension token"
// @Failure 403 {object} map[string]string "Forbidden - staff only"
// @Router /nda/{id}/extension-tokens [post]
func (h *NdaHandler) IssueExtensionToken(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ndaID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid NDA ID")
		return
	}

	var req issueTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.ValidHours <= 0 {
		req.ValidHours = 14 * 24
	}

	token, err := h.ndaService.IssueExtensionToken(ndaID, user.ID, time.Duration(req.ValidHours)*time.Hour)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, token)
}

type extendRequest struct {
	Token string `json:"token"`
}

// Extend consumes an extension token and pushes the NDA expiry forward
// @Summary Extend NDA
// @Description Redeem a single-use extension token
// @Tags NDA
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param token body extendRequest true "Extension token"
// @Success 200 {object} models.NdaRecord "Extended record"
// @Failure 400 {object} map[string]string "Invalid or expired token"
// @Failure 409 {object} map[string]string "Token already used"
// @Router /nda/extend [post]
func (h *NdaHandler) Extend(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	nda, err := h.ndaService.Extend(user.ID, req.Token)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, nda)
}

// Revoke terminates an active NDA (admin only)
// @Summary Revoke NDA
// @Description Revoke an active NDA record
// @Tags NDA
// @Produce json
// @Security BearerAuth
// @Param id path int true "NDA record ID"
// @Success 204 "Revoked"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Failure 404 {object} map[string]string "Not found or not active"
// @Router /nda/{id} [delete]
func (h *NdaHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	ndaID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid NDA ID")
		return
	}

	if err := h.ndaService.Revoke(ndaID, user.ID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
