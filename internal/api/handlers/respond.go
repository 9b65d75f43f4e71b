package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/demandcast/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps pipeline error kinds onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, contracts.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, contracts.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, contracts.ErrInsufficientData),
		errors.Is(err, contracts.ErrTraining):
		status = http.StatusUnprocessableEntity
	}

	respondJSON(w, status, map[string]string{"error": err.Error()})
}
