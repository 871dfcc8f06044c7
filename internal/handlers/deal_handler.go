package handlers

import (
	"encoding/json"
	"net/http"

	"dealroom/internal/middleware"
	"dealroom/internal/models"
	"dealroom/internal/service"
)

// DealHandler handles deal lifecycle requests
type DealHandler struct {
	workflowService *service.DealWorkflowService
}

// NewDealHandler creates a new deal handler
func NewDealHandler(workflowService *service.DealWorkflowService) *DealHandler {
	return &DealHandler{
		workflowService: workflowService,
	}
}

type createDealRequest struct {
	CompanyID uint   `json:"company_id"`
	Name      string `json:"name"`
}

// Create creates a new deal in the initial preparation phase (staff only)
// @Summary Create deal
// @Description Create a deal in listing_received
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param deal body createDealRequest true "Deal"
// @Success 201 {object} models.Deal "New deal"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /deals [post]
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req createDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CompanyID == 0 || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Company ID and name are required")
		return
	}

	deal, err := h.workflowService.CreateDeal(req.CompanyID, req.Name, user.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, deal)
}

// Get retrieves a deal; unpublished deals are hidden from non-staff
// @Summary Get deal
// @Description Get a deal by ID
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {object} models.Deal "Deal"
// @Failure 404 {object} map[string]string "Not found"
// @Router /deals/{id} [get]
func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	deal, err := h.workflowService.GetDeal(dealID, user)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, deal)
}

// List lists deals; non-staff only see published deals
// @Summary List deals
// @Description List deals visible to the caller
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Deal "Deals"
// @Router /deals [get]
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	deals, err := h.workflowService.ListDeals(user)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, deals)
}

type transitionRequest struct {
	Target string `json:"target"`
}

// Transition moves a deal to the next phase (staff only)
// @Summary Transition deal phase
// @Description Move a deal to its successor phase or publish it
// @Tags Deals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Param transition body transitionRequest true "Target phase"
// @Success 200 {object} models.Deal "Updated deal"
// @Failure 400 {object} map[string]string "Invalid phase transition"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Router /deals/{id}/transition [post]
func (h *DealHandler) Transition(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	target := models.DealPhase(req.Target)
	if !target.IsPreparation() && !target.IsActive() {
		respondWithError(w, http.StatusBadRequest, "Unknown target phase")
		return
	}

	deal, err := h.workflowService.Transition(dealID, target, models.TriggeredByManual, user.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, deal)
}

// Publish moves a deal into live_active (staff only)
// @Summary Publish deal
// @Description Cross the publish bridge from any preparation phase; idempotent for active deals
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {object} models.Deal "Published deal"
// @Failure 409 {object} map[string]string "Concurrent modification"
// @Router /deals/{id}/publish [post]
func (h *DealHandler) Publish(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	deal, err := h.workflowService.Publish(dealID, user.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, deal)
}

// StageHistory returns a deal's phase history (staff only)
// @Summary Deal stage history
// @Description List the spans a deal spent in each phase
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {array} models.StageHistoryEntry "History"
// @Failure 404 {object} map[string]string "Not found"
// @Router /deals/{id}/history [get]
func (h *DealHandler) StageHistory(w http.ResponseWriter, r *http.Request) {
	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	history, err := h.workflowService.GetStageHistory(dealID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

// Completeness reports the data-room readiness of a deal (staff only)
// @Summary Data room completeness
// @Description Report which required folders hold at least one document
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {object} models.DataRoomCompleteness "Completeness"
// @Failure 404 {object} map[string]string "Not found"
// @Router /deals/{id}/completeness [get]
func (h *DealHandler) Completeness(w http.ResponseWriter, r *http.Request) {
	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	completeness, err := h.workflowService.GetCompleteness(dealID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completeness)
}

// Advance auto-transitions a complete data room to qa_compliance (staff only)
// @Summary Advance deal if complete
// @Description Move a deal from data_room_build to qa_compliance when its data room is complete
// @Tags Deals
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {object} map[string]bool "Whether the transition happened"
// @Failure 404 {object} map[string]string "Not found"
// @Router /deals/{id}/advance [post]
func (h *DealHandler) Advance(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	advanced, err := h.workflowService.AdvanceIfComplete(dealID, user.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"advanced": advanced})
}
