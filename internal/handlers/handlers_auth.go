package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wownote/internal/auth"
	"wownote/internal/metrics"
)

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleRequestRegistration(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err := a.accounts.RequestRegistration(ctx, req.Email)
	metrics.ObserveAuth("request_registration", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "Verification email sent")
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	email, err := a.accounts.VerifyEmail(ctx, chi.URLParam(r, "token"))
	metrics.ObserveAuth("verify_email", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"email": email})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	sess, err := a.accounts.Register(ctx, req)
	metrics.ObserveAuth("register", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.setSessionCookie(w, sess)
	respondJSON(w, http.StatusCreated, map[string]any{"user": sess.User})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	sess, err := a.accounts.Login(ctx, req.Email, req.Password)
	metrics.ObserveAuth("login", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.setSessionCookie(w, sess)
	respondJSON(w, http.StatusOK, map[string]any{"user": sess.User})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err := a.accounts.Logout(ctx, id)
	metrics.ObserveAuth("logout", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.clearSessionCookie(w)
	respondMessage(w, http.StatusOK, "Logged out")
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.accounts.Me(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	var req auth.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, err := a.accounts.UpdateProfile(ctx, id, req)
	metrics.ObserveAuth("update_profile", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}
