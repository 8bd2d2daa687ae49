package migrations

import (
	"fmt"
	"net/http"
	"sync"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"
)

// Handler exposes schema migration over HTTP. Callers are expected to be
// authenticated by auth.RequireSecret.
type Handler struct {
	Migrator Migrator
	Logger   *logger.Logger

	mu sync.Mutex
}

func NewHandler(m Migrator, log *logger.Logger) *Handler {
	return &Handler{Migrator: m, Logger: log}
}

type migrateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version uint   `json:"version"`
}

func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Logger.Info("MIGRATION", "Running database migrations")
	if err := h.Migrator.MigrateUp(); err != nil {
		h.Logger.Error("MIGRATION", fmt.Sprintf("Migration failed: %v", err))
		_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Migration failed", err.Error()))
		return
	}

	version, _, err := h.Migrator.Version()
	if err != nil {
		h.Logger.Warn("MIGRATION", fmt.Sprintf("Unable to read schema version: %v", err))
	}
	if err := utils.WriteJSON(w, http.StatusOK, migrateResponse{
		Success: true,
		Message: "Migrations completed successfully",
		Version: version,
	}); err != nil {
		h.Logger.Error("MIGRATION", fmt.Sprintf("Failed to encode response: %v", err))
	}
}
