package handlers

import (
	"net/http"
	"strconv"
	"time"

	"dealroom/internal/repository"
	"dealroom/internal/service"
)

// AuditHandler handles activity audit requests
type AuditHandler struct {
	auditService *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// List lists audit entries with filters and pagination (admin only)
// @Summary List audit entries
// @Description Get a paginated, filtered list of activity audit entries
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(50)
// @Param user_id query int false "Filter by user ID"
// @Param deal_id query int false "Filter by deal ID"
// @Param document_id query int false "Filter by document ID"
// @Param action query string false "Filter by action"
// @Param decision query string false "Filter by decision (granted, denied)"
// @Param from query string false "Filter from timestamp (RFC3339)"
// @Param to query string false "Filter to timestamp (RFC3339)"
// @Success 200 {object} map[string]interface{} "Paginated audit entries"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden - admin only"
// @Router /admin/audit [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	filters := repository.AuditFilters{
		Action:   r.URL.Query().Get("action"),
		Decision: r.URL.Query().Get("decision"),
	}

	if userIDStr := r.URL.Query().Get("user_id"); userIDStr != "" {
		if userID, err := strconv.ParseUint(userIDStr, 10, 32); err == nil {
			uid := uint(userID)
			filters.UserID = &uid
		}
	}

	if dealIDStr := r.URL.Query().Get("deal_id"); dealIDStr != "" {
		if dealID, err := strconv.ParseUint(dealIDStr, 10, 32); err == nil {
			did := uint(dealID)
			filters.DealID = &did
		}
	}

	if docIDStr := r.URL.Query().Get("document_id"); docIDStr != "" {
		if docID, err := strconv.ParseUint(docIDStr, 10, 32); err == nil {
			did := uint(docID)
			filters.DocumentID = &did
		}
	}

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		if from, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filters.From = &from
		}
	}

	if toStr := r.URL.Query().Get("to"); toStr != "" {
		if to, err := time.Parse(time.RFC3339, toStr); err == nil {
			filters.To = &to
		}
	}

	entries, total, err := h.auditService.GetAll(filters, limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve audit entries")
		return
	}

	totalPages := (total + limit - 1) / limit

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries":     entries,
		"total":       total,
		"limit":       limit,
		"total_pages": totalPages,
	})
}
