package volunteer_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"
	"ms-attendance/internal/volunteers"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *volunteers.Service
	Logger  *logger.Logger
}

func NewHandler(service *volunteers.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/blocklist/volunteers", func(r chi.Router) {
		r.Get("/", h.ListVolunteers)
		r.Post("/", h.CreateVolunteer)
		r.Delete("/{id}", h.DeleteVolunteer)
	})
}

func (h *Handler) ListVolunteers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.fail(w, "ListVolunteers", err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("ListVolunteers: %d volunteers", len(list)))
	if err := utils.WriteJSON(w, http.StatusOK, list); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListVolunteers: failed to encode response: %v", err))
	}
}

func (h *Handler) CreateVolunteer(w http.ResponseWriter, r *http.Request) {
	var req volunteers.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "CreateVolunteer", domain.Input("Invalid request body: %v", err))
		return
	}

	v, err := h.Service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateVolunteer", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateVolunteer: created volunteer %s", v.ID))
	if err := utils.WriteJSON(w, http.StatusCreated, v); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateVolunteer: failed to encode response: %v", err))
	}
}

func (h *Handler) DeleteVolunteer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.fail(w, "DeleteVolunteer", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteVolunteer: deleted volunteer %s", id))
	if err := utils.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true}); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteVolunteer: failed to encode response: %v", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
}
