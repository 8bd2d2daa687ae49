package analytics_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ms-attendance/internal/analytics"
	"ms-attendance/internal/domain"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/spreadsheet"
	"ms-attendance/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler serves the dashboard overview and the workbook exports.
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/overview", h.GetOverview)
	r.Route("/export", func(r chi.Router) {
		r.Get("/blocklist", h.ExportBlocklist)
		r.Post("/confirmed", h.ExportConfirmed)
		r.Post("/no-show", h.ExportNoShow)
	})
}

type exportRequest struct {
	EventID string `json:"eventId"`
}

func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("ANALYTICS", "GetOverview: received request")

	overview, err := h.Service.Overview(r.Context())
	if err != nil {
		h.fail(w, "GetOverview", err)
		return
	}
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("GetOverview: %d events, %d blocklisted",
		len(overview.EventHistory), len(overview.Blocklist)))

	if err := utils.WriteJSON(w, http.StatusOK, overview); err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("GetOverview: failed to encode response: %v", err))
	}
}

func (h *Handler) ExportBlocklist(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("ANALYTICS", "ExportBlocklist: received request")

	export, err := h.Service.BlocklistExport(r.Context())
	if err != nil {
		h.fail(w, "ExportBlocklist", err)
		return
	}
	h.writeExport(w, "ExportBlocklist", export)
}

func (h *Handler) ExportConfirmed(w http.ResponseWriter, r *http.Request) {
	eventID, err := decodeExportRequest(r)
	if err != nil {
		h.fail(w, "ExportConfirmed", err)
		return
	}
	h.Logger.Info("ANALYTICS", fmt.Sprintf("ExportConfirmed: eventId=%s", eventID))

	export, err := h.Service.ConfirmedExport(r.Context(), eventID)
	if err != nil {
		h.fail(w, "ExportConfirmed", err)
		return
	}
	h.writeExport(w, "ExportConfirmed", export)
}

func (h *Handler) ExportNoShow(w http.ResponseWriter, r *http.Request) {
	eventID, err := decodeExportRequest(r)
	if err != nil {
		h.fail(w, "ExportNoShow", err)
		return
	}
	h.Logger.Info("ANALYTICS", fmt.Sprintf("ExportNoShow: eventId=%s", eventID))

	export, err := h.Service.NoShowExport(r.Context(), eventID)
	if err != nil {
		h.fail(w, "ExportNoShow", err)
		return
	}
	h.writeExport(w, "ExportNoShow", export)
}

func decodeExportRequest(r *http.Request) (string, error) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", domain.Input("Invalid request body: %v", err)
	}
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return "", domain.Validation("Validation failed: eventId: Event id is required")
	}
	return eventID, nil
}

func (h *Handler) writeExport(w http.ResponseWriter, op string, export *analytics.Export) {
	body, err := spreadsheet.BuildWorkbook(export.Sheets...)
	if err != nil {
		h.fail(w, op, fmt.Errorf("build workbook: %w", err))
		return
	}
	if err := utils.WriteFile(w, spreadsheet.ContentType, export.Filename, body); err != nil {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: failed to write workbook: %v", op, err))
		return
	}
	h.Logger.Info("ANALYTICS", fmt.Sprintf("%s: sent %s (%d bytes)", op, export.Filename, len(body)))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
}
