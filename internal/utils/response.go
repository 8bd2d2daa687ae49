package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-attendance/internal/domain"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// StatusFor maps a workflow error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrSchema), errors.Is(err, domain.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes err as an ErrorResponse. Internal failures keep their
// cause out of the body.
func WriteError(w http.ResponseWriter, err error) int {
	status := StatusFor(err)
	message := domain.Message(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
		detail = domain.Message(err)
	}
	_ = WriteJSON(w, status, ErrorResponse(message, detail))
	return status
}

// WriteFile sends body as a download.
func WriteFile(w http.ResponseWriter, contentType, filename string, body []byte) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(body)
	return err
}
