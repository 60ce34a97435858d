package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/examvault/internal/common"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps a service error to a response. Validation messages are
// returned to the client; integrity, storage and unknown failures only
// reach the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &maxErr):
		jsonError(w, "file too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, common.ErrValidation):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrAccessDenied):
		jsonError(w, "access denied", http.StatusForbidden)
	case errors.Is(err, common.ErrorNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, common.ErrorAlreadyExists):
		jsonError(w, "already exists", http.StatusConflict)
	case errors.Is(err, common.ErrTokenExpired):
		jsonError(w, "token expired", http.StatusUnauthorized)
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		jsonError(w, "unauthorized", http.StatusUnauthorized)
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
