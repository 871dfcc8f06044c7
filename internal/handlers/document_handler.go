package handlers

import (
	"encoding/json"
	"net/http"

	"dealroom/internal/accesslevel"
	"dealroom/internal/middleware"
	"dealroom/internal/models"
	"dealroom/internal/repository"
	"dealroom/internal/service"
)

// DocumentHandler handles document and folder requests
type DocumentHandler struct {
	documentRepo      *repository.DocumentRepository
	disclosureService *service.DisclosureService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentRepo *repository.DocumentRepository, disclosureService *service.DisclosureService) *DocumentHandler {
	return &DocumentHandler{
		documentRepo:      documentRepo,
		disclosureService: disclosureService,
	}
}

// Authorize runs the disclosure gate for a document. A denial is a 200 with
// granted=false and a reason, not an error status: the caller needs the
// reason to offer the next step (sign NDA, request escalation).
// @Summary Authorize document access
// @Description Check whether the caller may retrieve a document; grants carry a time-limited retrieval handle
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 200 {object} models.AccessDecision "Access decision"
// @Failure 404 {object} map[string]string "Document not found"
// @Router /documents/{id}/authorize [post]
func (h *DocumentHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	documentID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	decision, err := h.disclosureService.Authorize(user, documentID, getIP(r), r.UserAgent())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, decision)
}

// Download redeems a retrieval handle for a document
// @Summary Download document
// @Description Redeem a retrieval handle issued by a granted authorization
// @Tags Documents
// @Produce json
// @Param id path int true "Document ID"
// @Param handle query string true "Retrieval handle"
// @Success 200 {object} map[string]string "Document location"
// @Failure 403 {object} map[string]string "Invalid handle"
// @Failure 410 {object} map[string]string "Handle expired"
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	documentID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	token := r.URL.Query().Get("handle")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "Missing retrieval handle")
		return
	}

	doc, err := h.disclosureService.Redeem(token, documentID, getIP(r), r.UserAgent())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	// The engine authorizes; serving the bytes is the storage tier's job.
	respondWithJSON(w, http.StatusOK, map[string]string{
		"name":         doc.Name,
		"content_type": doc.ContentType,
		"location":     doc.StorageLocation,
	})
}

type createDocumentRequest struct {
	DealID              uint   `json:"deal_id"`
	FolderID            uint   `json:"folder_id"`
	Name                string `json:"name"`
	StorageLocation     string `json:"storage_location"`
	ContentType         string `json:"content_type"`
	SizeBytes           int64  `json:"size_bytes"`
	RequiredAccessLevel string `json:"required_access_level"`
}

// Create registers a document in a deal's data room (staff only)
// @Summary Create document
// @Description Register a document with its required disclosure tier
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param document body createDocumentRequest true "Document metadata"
// @Success 201 {object} models.Document "New document"
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 403 {object} map[string]string "Forbidden - staff only"
// @Router /documents [post]
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	level := accesslevel.Level(req.RequiredAccessLevel)
	if !accesslevel.Valid(level) {
		respondWithError(w, http.StatusBadRequest, "Invalid required access level")
		return
	}

	if req.DealID == 0 || req.FolderID == 0 || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Deal ID, folder ID, and name are required")
		return
	}

	doc := &models.Document{
		DealID:              req.DealID,
		FolderID:            req.FolderID,
		UploaderID:          user.ID,
		Name:                req.Name,
		StorageLocation:     req.StorageLocation,
		ContentType:         req.ContentType,
		SizeBytes:           req.SizeBytes,
		RequiredAccessLevel: level,
	}

	if err := h.documentRepo.Create(doc); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create document")
		return
	}

	respondWithJSON(w, http.StatusCreated, doc)
}

type updateLevelRequest struct {
	RequiredAccessLevel string `json:"required_access_level"`
}

// UpdateLevel changes a document's required disclosure tier (staff only)
// @Summary Update required access level
// @Description Change the tier required to retrieve a document; takes effect on the next authorization
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Param level body updateLevelRequest true "New level"
// @Success 204 "Updated"
// @Failure 400 {object} map[string]string "Invalid level"
// @Failure 404 {object} map[string]string "Document not found"
// @Router /documents/{id}/level [put]
func (h *DocumentHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	documentID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	var req updateLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	level := accesslevel.Level(req.RequiredAccessLevel)
	if !accesslevel.Valid(level) {
		respondWithError(w, http.StatusBadRequest, "Invalid required access level")
		return
	}

	if err := h.documentRepo.UpdateRequiredAccessLevel(documentID, string(level)); err != nil {
		if err == repository.ErrDocumentNotFound {
			respondWithError(w, http.StatusNotFound, "Document not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a document unless audit entries reference it (admin only)
// @Summary Delete document
// @Description Delete a document; refused while audit history references it
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Document ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]string "Document not found"
// @Failure 409 {object} map[string]string "Referenced by audit entries"
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	documentID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	if err := h.documentRepo.Delete(documentID); err != nil {
		switch err {
		case repository.ErrDocumentNotFound:
			respondWithError(w, http.StatusNotFound, "Document not found")
		case repository.ErrDocumentReferenced:
			respondWithError(w, http.StatusConflict, "Document is referenced by audit entries")
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to delete document")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createFolderRequest struct {
	DealID     uint   `json:"deal_id"`
	Name       string `json:"name"`
	IsRequired bool   `json:"is_required"`
}

// CreateFolder creates a data room folder (staff only)
// @Summary Create folder
// @Description Create a data room folder for a deal
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param folder body createFolderRequest true "Folder"
// @Success 201 {object} models.Folder "New folder"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /folders [post]
func (h *DocumentHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.DealID == 0 || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Deal ID and name are required")
		return
	}

	folder := &models.Folder{
		DealID:     req.DealID,
		Name:       req.Name,
		IsRequired: req.IsRequired,
	}

	if err := h.documentRepo.CreateFolder(folder); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create folder")
		return
	}

	respondWithJSON(w, http.StatusCreated, folder)
}

type folderApplicabilityRequest struct {
	IsNotApplicable bool `json:"is_not_applicable"`
}

// SetFolderApplicability flags a required folder as not applicable (staff only)
// @Summary Set folder applicability
// @Description Exclude or include a required folder in the completeness check
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Folder ID"
// @Param flag body folderApplicabilityRequest true "Applicability"
// @Success 204 "Updated"
// @Failure 404 {object} map[string]string "Folder not found"
// @Router /folders/{id}/applicability [put]
func (h *DocumentHandler) SetFolderApplicability(w http.ResponseWriter, r *http.Request) {
	folderID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid folder ID")
		return
	}

	var req folderApplicabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.documentRepo.SetFolderNotApplicable(folderID, req.IsNotApplicable); err != nil {
		if err == repository.ErrFolderNotFound {
			respondWithError(w, http.StatusNotFound, "Folder not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update folder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListByDeal lists a deal's documents (staff only; viewers go through the gate)
// @Summary List deal documents
// @Description List all documents of a deal's data room
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Deal ID"
// @Success 200 {array} models.Document "Documents"
// @Router /deals/{id}/documents [get]
func (h *DocumentHandler) ListByDeal(w http.ResponseWriter, r *http.Request) {
	dealID, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID")
		return
	}

	docs, err := h.documentRepo.GetByDealID(dealID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	respondWithJSON(w, http.StatusOK, docs)
}
