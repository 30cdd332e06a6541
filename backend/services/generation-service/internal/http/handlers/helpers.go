package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridpulse/backend/libs/auth"
	"gridpulse/backend/services/generation-service/internal/reconcile"
	"gridpulse/backend/services/generation-service/internal/repository"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps domain errors to client responses. Anything unknown is
// logged and reported as a generic 500.
func writeFailure(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var validation *reconcile.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, repository.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrPlantNotFound):
		writeError(w, http.StatusNotFound, "plant not found")
	case errors.Is(err, repository.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan not found")
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func requireSession(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return auth.Session{}, false
	}
	return session, true
}

func parseUUID(value, field string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, &reconcile.ValidationError{Field: field, Reason: "is required"}
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, &reconcile.ValidationError{Field: field, Reason: "must be a UUID"}
	}
	return id, nil
}
