package handlers

import (
	"encoding/json"
	"net/http"

	"dealroom/internal/models"
	"dealroom/internal/repository"
)

// CompanyHandler handles company requests
type CompanyHandler struct {
	companyRepo *repository.CompanyRepository
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companyRepo *repository.CompanyRepository) *CompanyHandler {
	return &CompanyHandler{
		companyRepo: companyRepo,
	}
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

// Create creates a new company (staff only)
// @Summary Create company
// @Description Register a sell-side company
// @Tags Companies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param company body createCompanyRequest true "Company"
// @Success 201 {object} models.Company "New company"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /companies [post]
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Company name is required")
		return
	}

	company := &models.Company{Name: req.Name}
	if err := h.companyRepo.Create(company); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create company")
		return
	}

	respondWithJSON(w, http.StatusCreated, company)
}

// List lists all companies
// @Summary List companies
// @Description List all registered companies
// @Tags Companies
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Company "Companies"
// @Router /companies [get]
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companyRepo.GetAll()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	respondWithJSON(w, http.StatusOK, companies)
}
