package attendance_api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/domain"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/spreadsheet"
	"ms-attendance/internal/utils"

	"github.com/go-chi/chi/v5"
)

// MaxUploadBytes bounds one multipart request.
const MaxUploadBytes = 32 << 20

// attendanceFields maps the multipart file fields onto list kinds.
var attendanceFields = []struct {
	field string
	kind  attendance.AttendanceKind
}{
	{"attendedFile", attendance.KindAttended},
	{"noShowFile", attendance.KindNoShow},
	{"blocklistedFile", attendance.KindBlocklisted},
}

type Handler struct {
	Service *attendance.Service
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewHandler(service *attendance.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/import", h.ImportEvent)
	r.Post("/events/{eventId}/attendance", h.RecordAttendance)
}

func (h *Handler) ImportEvent(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "ImportEvent: received request")

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.fail(w, "ImportEvent", domain.Input("Invalid multipart form: %v", err))
		return
	}

	data, ok, err := readFormFile(r, "confirmedFile")
	if err != nil {
		h.fail(w, "ImportEvent", err)
		return
	}
	if !ok {
		h.fail(w, "ImportEvent", domain.Input("Confirmed participant Excel file is required"))
		return
	}

	eventName, eventDate := r.FormValue("eventName"), r.FormValue("eventDate")
	if err := attendance.ValidateImport(eventName, eventDate); err != nil {
		h.fail(w, "ImportEvent", err)
		return
	}

	rows, err := spreadsheet.ParseParticipants(data)
	if err != nil {
		h.fail(w, "ImportEvent", err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("ImportEvent: parsed %d rows", len(rows)))

	result, err := h.Service.ImportEvent(r.Context(), attendance.ImportRequest{
		EventName: eventName,
		EventDate: eventDate,
		Rows:      rows,
	})
	if err != nil {
		h.fail(w, "ImportEvent", err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		sheet, filename := result.ExportAll(h.Now())
		body, err := spreadsheet.BuildWorkbook(sheet)
		if err != nil {
			h.fail(w, "ImportEvent", fmt.Errorf("build export workbook: %w", err))
			return
		}
		if err := utils.WriteFile(w, spreadsheet.ContentType, filename, body); err != nil {
			h.Logger.Error("API", fmt.Sprintf("ImportEvent: failed to write workbook: %v", err))
		}
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ImportEvent: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("ImportEvent: event %s imported by %s", result.Event.ID, auth.Username(r.Context())))
}

func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	h.Logger.Info("API", fmt.Sprintf("RecordAttendance: eventId=%s", eventID))

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.fail(w, "RecordAttendance", domain.Input("Invalid multipart form: %v", err))
		return
	}

	uploads := make(map[attendance.AttendanceKind][]byte, len(attendanceFields))
	for _, f := range attendanceFields {
		data, ok, err := readFormFile(r, f.field)
		if err != nil {
			h.fail(w, "RecordAttendance", err)
			return
		}
		if ok {
			uploads[f.kind] = data
		}
	}
	if len(uploads) == 0 {
		h.fail(w, "RecordAttendance", domain.Input("Please upload at least one attendance file"))
		return
	}

	if err := h.Service.CheckEvent(r.Context(), eventID); err != nil {
		h.fail(w, "RecordAttendance", err)
		return
	}

	var lists []attendance.AttendanceList
	for _, f := range attendanceFields {
		data, ok := uploads[f.kind]
		if !ok {
			continue
		}
		rows, err := spreadsheet.ParseParticipants(data)
		if err != nil {
			h.fail(w, "RecordAttendance", err)
			return
		}
		lists = append(lists, attendance.AttendanceList{Kind: f.kind, Rows: rows})
	}

	summary, err := h.Service.RecordAttendance(r.Context(), attendance.AttendanceRequest{EventID: eventID, Lists: lists})
	if err != nil {
		h.fail(w, "RecordAttendance", err)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, map[string]any{"summary": summary}); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RecordAttendance: failed to encode response: %v", err))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RecordAttendance: event %s updated by %s", eventID, auth.Username(r.Context())))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
}

// readFormFile returns the uploaded bytes of field and whether it was sent.
func readFormFile(r *http.Request, field string) ([]byte, bool, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.Input("Unable to read %s: %v", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, false, domain.Input("Unable to read %s: %v", field, err)
	}
	return data, true, nil
}
