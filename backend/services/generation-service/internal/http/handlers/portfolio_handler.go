package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridpulse/backend/services/generation-service/internal/models"
)

// SnapshotSource builds tenant portfolio snapshots.
type SnapshotSource interface {
	Snapshot(ctx context.Context, tenantID uuid.UUID) (models.PortfolioSnapshot, error)
}

// PortfolioHandler serves the snapshot live sessions receive periodically.
type PortfolioHandler struct {
	snapshots SnapshotSource
	logger    *zap.Logger
}

// NewPortfolioHandler returns handler.
func NewPortfolioHandler(snapshots SnapshotSource, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{snapshots: snapshots, logger: logger}
}

// ServeHTTP handles GET /api/portfolio for the session's effective tenant.
func (h *PortfolioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	snapshot, err := h.snapshots.Snapshot(r.Context(), session.EffectiveTenantID)
	if err != nil {
		writeFailure(w, h.logger, "portfolio snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
