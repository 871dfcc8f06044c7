package handlers

import (
	"encoding/json"
	"net/http"

	"dealroom/internal/accesslevel"
	"dealroom/internal/middleware"
	"dealroom/internal/service"
)

// AccessRequestHandler handles access escalation requests
type AccessRequestHandler struct {
	requestService *service.AccessRequestService
}

// NewAccessRequestHandler creates a new access request handler
func NewAccessRequestHandler(requestService *service.AccessRequestService) *AccessRequestHandler {
	return &AccessRequestHandler{
		requestService: requestService,
	}
}

type submitRequest struct {
	CompanyID      uint   `json:"company_id"`
	RequestedLevel string `json:"requested_level"`
	Reason         string `json:"reason"`
}

// Submit files an escalation request for the authenticated user
// @Summary Submit access request
// @Description Request a higher disclosure tier for a company
// @Tags AccessRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body submitRequest true "Request details"
// @Success 201 {object} models.AccessRequest "New request"
// @Failure 400 {object} map[string]string "Invalid escalation"
// @Failure 409 {object} map[string]string "Duplicate pending request"
// @Router /access-requests [post]
func (h *AccessRequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CompanyID == 0 {
		respondWithError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	request, err := h.requestService.Submit(user.ID, req.CompanyID, accesslevel.Level(req.RequestedLevel), req.Reason)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, request)
}

type decideRequest struct {
	Approve bool `json:"approve"`
}

// Decide approves or denies a pending request (staff only)
// @Summary Decide access request
// @Description Approve or deny a pending escalation request, exactly once
// @Tags AccessRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param decision body decideRequest true "Decision"
// @Success 200 {object} models.AccessRequest "Decided request"
// @Failure 403 {object} map[string]string "Forbidden - staff only"
// @Failure 409 {object} map[string]string "Already decided"
// @Router /access-requests/{id}/decision [post]
func (h *AccessRequestHandler) Decide(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	requestID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	request, err := h.requestService.Decide(requestID, req.Approve, user.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, request)
}

// ListMine lists the authenticated user's requests
// @Summary List own access requests
// @Description List all escalation requests filed by the caller
// @Tags AccessRequests
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AccessRequest "Requests"
// @Router /access-requests [get]
func (h *AccessRequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	requests, err := h.requestService.GetByUser(user.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

// ListPending lists the pending review queue (staff only)
// @Summary List pending access requests
// @Description List pending escalation requests, oldest first
// @Tags AccessRequests
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Success 200 {array} models.AccessRequest "Pending requests"
// @Failure 403 {object} map[string]string "Forbidden - staff only"
// @Router /access-requests/pending [get]
func (h *AccessRequestHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	requests, err := h.requestService.GetPending(limit, offset)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

// Get retrieves a single request (owner or staff)
// @Summary Get access request
// @Description Get one escalation request by ID
// @Tags AccessRequests
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.AccessRequest "Request"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Not found"
// @Router /access-requests/{id} [get]
func (h *AccessRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	requestID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	request, err := h.requestService.GetByID(requestID, user)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, request)
}
