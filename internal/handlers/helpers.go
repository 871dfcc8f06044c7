package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"dealroom/internal/handle"
	"dealroom/internal/service"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.WriteHeader(code)
	if err := JSONResponse(w, payload); err != nil {
		// If marshaling fails, log the error
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error"}`))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func getIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return forwarded
	}
	realIP := r.Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// pathID parses a uint path value ({id} style) from the request
func pathID(r *http.Request, name string) (uint, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// pagination parses page/limit query parameters, capping limit at 100
func pagination(r *http.Request) (limit, offset int) {
	page := 1
	limit = 50

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	return limit, (page - 1) * limit
}

// respondWithServiceError maps sentinel service errors onto HTTP statuses.
// Anything unmapped is an internal error; the message is not leaked.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, "Permission denied")
	case errors.Is(err, service.ErrInvalidEscalation):
		respondWithError(w, http.StatusBadRequest, "Requested level must be above your current level")
	case errors.Is(err, service.ErrDuplicatePending):
		respondWithError(w, http.StatusConflict, "A pending request for this level already exists")
	case errors.Is(err, service.ErrAlreadyDecided):
		respondWithError(w, http.StatusConflict, "Request has already been decided")
	case errors.Is(err, service.ErrTokenInvalid):
		respondWithError(w, http.StatusBadRequest, "Extension token is invalid")
	case errors.Is(err, service.ErrTokenAlreadyUsed):
		respondWithError(w, http.StatusConflict, "Extension token has already been used")
	case errors.Is(err, service.ErrTokenExpired):
		respondWithError(w, http.StatusBadRequest, "Extension token has expired")
	case errors.Is(err, service.ErrInvalidPhaseTransition):
		respondWithError(w, http.StatusBadRequest, "Invalid phase transition")
	case errors.Is(err, service.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, "Resource was modified concurrently, please retry")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, handle.ErrExpiredHandle):
		respondWithError(w, http.StatusGone, "Retrieval handle has expired")
	case errors.Is(err, handle.ErrWrongDocument), errors.Is(err, handle.ErrInvalidHandle), errors.Is(err, handle.ErrUnexpectedAudience):
		respondWithError(w, http.StatusForbidden, "Invalid retrieval handle")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
