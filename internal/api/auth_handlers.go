package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/greenify/plant-store/internal/api/middleware"
	"github.com/greenify/plant-store/internal/auth"
	"github.com/greenify/plant-store/internal/domain/user"
	"github.com/greenify/plant-store/internal/model"
	"go.uber.org/zap"
)

const (
	refreshTokenCookie = "refresh_token"
	refreshCookiePath  = "/api/auth/refresh"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register, login and refresh
type AuthResponse struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

// Register handles user registration
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req user.Registration
	if !decodeJSON(w, r, &req) {
		return
	}

	newUser, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.issueTokens(w, r, http.StatusCreated, newUser)
}

// Login handles user login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.issueTokens(w, r, http.StatusOK, u)
}

// Refresh exchanges the refresh cookie for a new token pair
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no refresh token", nil)
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(cookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}

	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			h.clearAuthCookies(w)
			writeError(w, http.StatusUnauthorized, "unauthorized", "user not found", nil)
			return
		}
		h.writeDomainError(w, r, err)
		return
	}
	if !u.IsActive {
		h.clearAuthCookies(w)
		writeError(w, http.StatusForbidden, "forbidden", "account is deactivated", nil)
		return
	}

	h.issueTokens(w, r, http.StatusOK, u)
}

// Logout clears the auth cookies
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Me returns the current authenticated user's information
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *Handlers) issueTokens(w http.ResponseWriter, r *http.Request, status int, u *model.User) {
	pair, err := h.jwtService.GenerateTokenPair(u)
	if err != nil {
		h.logger.Error("failed to sign tokens", zap.String("user_id", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong", nil)
		return
	}

	h.setAuthCookies(w, pair)
	writeJSON(w, status, AuthResponse{
		User:        u,
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
	})
}

func (h *Handlers) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
