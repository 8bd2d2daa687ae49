package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/utils"
)

// Credentials is the single operator account.
type Credentials struct {
	Username string
	Password string
}

type Handler struct {
	Sessions     *Sessions
	Credentials  Credentials
	SecureCookie bool
	Logger       *logger.Logger
}

func NewHandler(sessions *Sessions, creds Credentials, secureCookie bool, log *logger.Logger) *Handler {
	return &Handler{Sessions: sessions, Credentials: creds, SecureCookie: secureCookie, Logger: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	if !h.matches(req) {
		h.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("Failed login for %q from %s", req.Username, r.RemoteAddr))
		_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid username or password", ""))
		return
	}

	token, expiresAt, err := h.Sessions.IssueToken(req.Username)
	if err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("Login: %v", err))
		_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("An error occurred during login", ""))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.Logger.Info("AUTH", fmt.Sprintf("Operator %s logged in", req.Username))
	_ = utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	_ = utils.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) matches(req loginRequest) bool {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Credentials.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.Credentials.Password)) == 1
	return userOK && passOK && h.Credentials.Password != ""
}
