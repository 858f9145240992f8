package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/activity"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// SessionHandler handles sign-in, sign-up and sign-out.
type SessionHandler struct {
	store    *session.Store
	activity activity.Recorder
	logger   *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(store *session.Store, rec activity.Recorder, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, activity: rec, logger: logger}
}

type messageResponse struct {
	Message string `json:"message"`
}

// Get handles GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.store.Current())
}

// Login handles POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := validator.Decode(r, &creds); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	sess, err := h.store.Login(r.Context(), creds)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.activity.Record(r.Context(), activity.Activity{
		Domain: activity.DomainSession,
		Action: activity.ActionLogin,
		UserID: sess.UserID(),
	})
	httputil.WriteData(w, http.StatusOK, sess)
}

// Register handles POST /api/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := validator.Decode(r, &reg); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.store.Register(r.Context(), reg); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.activity.Record(r.Context(), activity.Activity{
		Domain: activity.DomainSession,
		Action: activity.ActionRegister,
		Data:   map[string]string{"email": reg.Email},
	})
	httputil.WriteData(w, http.StatusCreated, messageResponse{Message: "account created, log in to continue"})
}

// ForgotPassword handles POST /api/session/forgot-password
func (h *SessionHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordReset
	if err := validator.Decode(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	msg, err := h.store.ForgotPassword(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, messageResponse{Message: msg})
}

// Logout handles POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	prev := h.store.Current()
	h.store.Logout(r.Context())
	if prev.Authenticated() {
		h.activity.Record(r.Context(), activity.Activity{
			Domain: activity.DomainSession,
			Action: activity.ActionLogout,
			UserID: prev.UserID(),
		})
	}
	httputil.WriteData(w, http.StatusOK, h.store.Current())
}
