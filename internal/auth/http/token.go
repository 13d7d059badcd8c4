package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/northbeam/tokend/internal/auth/service"
	"github.com/northbeam/tokend/pkg/httpx"
	"github.com/northbeam/tokend/pkg/slogx"
)

const maxBodyBytes = 1 << 20

// LoginRequest is the body for POST /token/login.
type LoginRequest struct {
	EmailAddress string `json:"emailAddress" example:"alice@example.com"`
	Password     string `json:"password" example:"hunter2"`
}

// MFARequest is the body for POST /token/mfa.
type MFARequest struct {
	Token string `json:"token"`
	Code  string `json:"code" example:"123456"`
}

// RefreshRequest is the body for POST /token/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ErrorResponse is the body returned with 4xx statuses that carry one.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// LoginHandler serves POST /token/login.
type LoginHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Password Login
//	@Description	Verifies email and password. Returns an access/refresh token pair, or a
//	@Description	two-factor challenge when the account has two-factor authentication enabled.
//	@Description	The challenge token must be presented to /token/mfa within its lifetime.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest		true	"Login credentials"
//	@Success		200		{object}	domain.TokenPair	"accessToken, refreshToken"
//	@Success		200		{object}	domain.MFAChallenge	"twoFactorRequired, token"
//	@Failure		400		{object}	ErrorResponse		"error"
//	@Failure		401		"invalid credentials or account state"
//	@Header			200		{string}	Cache-Control		"no-store"
//	@Router			/token/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.EmailAddress = strings.TrimSpace(req.EmailAddress)
	if req.EmailAddress == "" || req.Password == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "emailAddress and password are required"})
		return
	}

	result, err := h.TokenService.Login(ctx, req.EmailAddress, req.Password)
	if err != nil {
		if !errors.Is(err, service.ErrUnauthorized) {
			slogx.FromContext(ctx).Error("login failed", "err", err)
		}
		httpx.WriteUnauthorized(w)
		return
	}

	if result.Challenge != nil {
		httpx.WriteJSON(w, http.StatusOK, result.Challenge)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result.Pair)
}

// MFAHandler serves POST /token/mfa.
type MFAHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Two-Factor Login
//	@Description	Completes a two-factor login. Takes the challenge token returned by
//	@Description	/token/login together with the current authenticator code and returns
//	@Description	an access/refresh token pair. Each challenge token works at most once.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		MFARequest			true	"Challenge token and authenticator code"
//	@Success		200		{object}	domain.TokenPair	"accessToken, refreshToken"
//	@Failure		400		{object}	ErrorResponse		"error"
//	@Failure		401		"invalid challenge token or code"
//	@Header			200		{string}	Cache-Control		"no-store"
//	@Router			/token/mfa [post].
func (h *MFAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req MFARequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Token == "" || req.Code == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "token and code are required"})
		return
	}

	pair, err := h.TokenService.Mfa(ctx, req.Token, req.Code)
	if err != nil {
		if !errors.Is(err, service.ErrUnauthorized) {
			slogx.FromContext(ctx).Error("mfa login failed", "err", err)
		}
		httpx.WriteUnauthorized(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// RefreshHandler serves POST /token/refresh.
type RefreshHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Refresh Session
//	@Description	Exchanges a refresh token for a new access/refresh token pair. The
//	@Description	presented token is invalidated by the exchange; refresh tokens are
//	@Description	single use.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest		true	"Refresh token"
//	@Success		200		{object}	domain.TokenPair	"accessToken, refreshToken"
//	@Failure		400		{object}	ErrorResponse		"error"
//	@Failure		401		"unknown, expired, or superseded refresh token"
//	@Header			200		{string}	Cache-Control		"no-store"
//	@Router			/token/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "refreshToken is required"})
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if !errors.Is(err, service.ErrUnauthorized) {
			slogx.FromContext(ctx).Error("refresh failed", "err", err)
		}
		httpx.WriteUnauthorized(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}

// LogoutHandler serves POST /token/logout.
type LogoutHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Logout
//	@Description	Revokes the caller's refresh token and any pending two-factor challenge.
//	@Description	Outstanding access tokens stay valid until they expire.
//	@Tags			Tokens
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	"session revoked"
//	@Failure		401	"missing or invalid access token"
//	@Router			/token/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		httpx.WriteUnauthorized(w)
		return
	}

	if err := h.TokenService.Logout(ctx, userID); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "user_id", userID, "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "logout failed"})
		return
	}

	w.WriteHeader(http.StatusOK)
}
