package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/hive-tools/intragate/pkg/auth/providers"
)

// Handler holds the authentication handlers and dependencies.
type Handler struct {
	Config     *Config
	Database   Database
	Middleware *Middleware
	Logger     *logrus.Logger
	Notifier   Notifier // optional, may be nil
}

// NewHandler initializes a new authentication handler.
func NewHandler(config *Config, db Database, logger *logrus.Logger) *Handler {
	return &Handler{
		Config:     config,
		Database:   db,
		Middleware: NewMiddleware(config, db, logger),
		Logger:     logger,
	}
}

// AuthMiddleware returns the authentication middleware.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return h.Middleware.AuthMiddleware(next)
}

// provider resolves the {provider} route variable to a configured provider.
func (h *Handler) provider(r *http.Request) (providers.Provider, bool) {
	name := mux.Vars(r)["provider"]
	provider, ok := h.Config.Providers[name]
	return provider, ok
}

// HandlerProviders lists the configured providers.
func (h *Handler) HandlerProviders(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.Config.Providers))
	for name := range h.Config.Providers {
		names = append(names, name)
	}
	WriteSuccessResponse(w, "", names)
}

// HandleLogin starts the authorization-code flow: it generates a CSRF state,
// persists it in the provider's state cookie and redirects the user to the
// provider's authorization page.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		WriteErrorResponse(w, "Unknown provider", http.StatusNotFound)
		return
	}

	if target := r.URL.Query().Get("redirect"); target != "" {
		if !redirectAllowed(target, h.Config) {
			WriteErrorResponse(w, "Redirect target not allowed", http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     "login_redirect",
			Value:    target,
			Expires:  time.Now().Add(stateCookieMaxAge),
			HttpOnly: true,
			Secure:   h.Config.SecureCookie,
			Path:     "/",
			SameSite: h.Config.CookieSameSite,
		})
	}

	state := generateStateString()
	setStateCookie(w, provider.Config().StateCookieName, state, h.Config)

	url := provider.AuthCodeURL(state)
	h.Logger.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"client":   getClientIP(r),
	}).Debug("Redirecting to authorization endpoint")
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback handles the OAuth2 callback: it classifies provider errors,
// verifies the CSRF state, exchanges the code and resolves the user profile,
// then issues the application's own session tokens.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		WriteErrorResponse(w, "Unknown provider", http.StatusNotFound)
		return
	}

	cfg := provider.Config()
	query := r.URL.Query()

	if provider.AccessDenied(query) {
		h.Logger.WithField("provider", provider.Name()).Info("User denied consent")
		WriteErrorResponse(w, "Access denied by user", http.StatusForbidden)
		return
	}

	if callbackErr := provider.CallbackError(query); callbackErr != "" {
		h.Logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    callbackErr,
		}).Warn("Provider returned an error on callback")
		WriteErrorResponse(w, fmt.Sprintf("Provider error: %s", callbackErr), http.StatusBadRequest)
		return
	}

	expectedState := loadStateCookie(r, cfg.StateCookieName)
	clearStateCookie(w, cfg.StateCookieName, h.Config)
	if expectedState == "" || query.Get(cfg.StateParam) != expectedState {
		h.Logger.WithField("provider", provider.Name()).Warn("OAuth state mismatch")
		WriteErrorResponse(w, ErrStateMismatch.Error(), http.StatusBadRequest)
		return
	}

	code := query.Get(cfg.CodeParam)
	if code == "" {
		WriteErrorResponse(w, "Code not found in the request", http.StatusBadRequest)
		return
	}

	// Exchange the code for tokens
	token, err := provider.ExchangeCode(r.Context(), code)
	if err != nil {
		h.Logger.WithError(err).Error("Token exchange failed")
		WriteErrorResponse(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	// Resolve the user. Providers publishing a JWKS endpoint get their ID
	// token decoded locally; everything else goes through the userinfo fetch.
	var userInfo *providers.ProviderUserInfo
	if _, hasIDToken := token.Extra("id_token").(string); hasIDToken && cfg.WellKnownJwksURL != "" {
		userInfo, err = provider.DecodeIDToken(r.Context(), token)
	} else {
		userInfo, err = provider.FetchUserInfo(r.Context(), token)
	}
	if err != nil {
		h.Logger.WithError(err).Error("Failed to resolve user profile")
		WriteErrorResponse(w, "Failed to retrieve user info", http.StatusBadGateway)
		return
	}

	// Store the provider's tokens so sessions can be refreshed later
	providerTokens := ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	err = h.Database.StoreProviderTokens(r.Context(), userInfo.ID, provider.Name(), providerTokens)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to store provider tokens")
		WriteErrorResponse(w, "Failed to store tokens", http.StatusInternalServerError)
		return
	}

	claims := jwt.MapClaims{
		"sub":      userInfo.ID,
		"login":    userInfo.NickName,
		"name":     userInfo.Name,
		"email":    userInfo.Email,
		"provider": provider.Name(),
	}

	tokens, err := generateTokens(claims, h.Config)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to generate session tokens")
		WriteErrorResponse(w, "Failed to generate tokens", http.StatusInternalServerError)
		return
	}

	err = h.Database.StoreRefreshToken(r.Context(), tokens.RefreshToken, userInfo.ID, time.Now().Add(h.Config.RefreshTokenExpiration))
	if err != nil {
		h.Logger.WithError(err).Error("Failed to store refresh token")
		WriteErrorResponse(w, "Failed to store refresh token", http.StatusInternalServerError)
		return
	}

	setAuthCookies(w, tokens, h.Config)

	if h.Notifier != nil {
		h.Notifier.Send("intragate sign-in",
			fmt.Sprintf("%s (%s) signed in via %s from %s",
				userInfo.NickName, userInfo.Email, provider.Name(), getClientIP(r)))
	}

	h.Logger.WithFields(logrus.Fields{
		"sub":      userInfo.ID,
		"login":    userInfo.NickName,
		"provider": provider.Name(),
	}).Info("User signed in")

	// Honor the whitelisted post-login redirect when one was requested
	if cookie, err := r.Cookie("login_redirect"); err == nil && redirectAllowed(cookie.Value, h.Config) {
		http.SetCookie(w, &http.Cookie{Name: "login_redirect", Value: "", MaxAge: -1, Path: "/"})
		http.Redirect(w, r, cookie.Value, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		*TokenResponse
		User *providers.ProviderUserInfo `json:"user"`
	}{tokens, userInfo})
}

// HandleUserInfo resolves a user profile from a caller-supplied provider
// bearer token, bypassing the session flow entirely.
func (h *Handler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(r)
	if !ok {
		WriteErrorResponse(w, "Unknown provider", http.StatusNotFound)
		return
	}

	var rawToken string
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			rawToken = parts[1]
		}
	}
	if rawToken == "" {
		WriteErrorResponse(w, "Bearer token required", http.StatusUnauthorized)
		return
	}

	userInfo, err := provider.UserFromToken(r.Context(), rawToken)
	if err != nil {
		h.Logger.WithError(err).Warn("Failed to resolve user from raw token")
		WriteErrorResponse(w, err.Error(), http.StatusBadGateway)
		return
	}

	WriteSuccessResponse(w, "", userInfo)
}

// HandleStatus checks authentication status and returns user info.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// Retrieve user claims from context (set by AuthMiddleware)
	claims, ok := r.Context().Value(ContextKeyUser).(jwt.MapClaims)
	if !ok || claims == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(StatusResponse{
			Authenticated: false,
			Message:       "Failed to retrieve user information",
		})
		return
	}

	user := UserInfo{
		Sub:      claimString(claims, "sub"),
		Login:    claimString(claims, "login"),
		Name:     claimString(claims, "name"),
		Email:    claimString(claims, "email"),
		Provider: claimString(claims, "provider"),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Authenticated: true,
		User:          user,
	})
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// HandleLogout logs the user out by clearing cookies and blacklisting the
// session tokens.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	accessTokenString := extractToken(r, "access_token")
	refreshTokenString := extractToken(r, "refresh_token")

	// Revoke access token if present
	if accessTokenString != "" {
		err := h.Database.AddBlacklistedToken(r.Context(), accessTokenString, getTokenExpiration(accessTokenString))
		if err != nil {
			h.Logger.WithError(err).Error("Failed to blacklist access token during logout")
			WriteErrorResponse(w, "Failed to logout", http.StatusInternalServerError)
			return
		}
	}

	// Revoke refresh token if present
	if refreshTokenString != "" {
		err := h.Database.RevokeRefreshToken(r.Context(), refreshTokenString)
		if err != nil {
			h.Logger.WithError(err).Error("Failed to revoke refresh token during logout")
			WriteErrorResponse(w, "Failed to logout", http.StatusInternalServerError)
			return
		}
	}

	clearAuthCookies(w, h.Config)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LogoutResponse{
		Message: "Successfully logged out",
	})
}

// HandleRefresh rotates the session: it validates the refresh token, renews
// the provider tokens when possible, re-fetches the profile and issues a new
// token pair.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshTokenString := extractToken(r, "refresh_token")
	if refreshTokenString == "" {
		WriteErrorResponse(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	userID, err := h.Database.ValidateRefreshToken(r.Context(), refreshTokenString)
	if err != nil {
		WriteErrorResponse(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	claims, err := parseJWT(refreshTokenString, h.Config.JwtSecret)
	if err != nil {
		h.Logger.WithError(err).Error("Invalid refresh token")
		WriteErrorResponse(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	providerName := claimString(claims, "provider")
	provider, ok := h.Config.Providers[providerName]
	if !ok {
		WriteErrorResponse(w, "Unknown provider in refresh token", http.StatusUnauthorized)
		return
	}

	providerTokens, err := h.Database.GetProviderTokens(r.Context(), userID, providerName)
	if err != nil {
		WriteErrorResponse(w, "Failed to retrieve provider tokens", http.StatusInternalServerError)
		return
	}

	if providerTokens.RefreshToken != "" {
		newToken, err := provider.RenewAccessToken(r.Context(), providerTokens.RefreshToken)
		if err != nil {
			h.Database.RevokeRefreshToken(r.Context(), refreshTokenString)
			WriteErrorResponse(w, "Unable to refresh session, please log in again", http.StatusUnauthorized)
			return
		}

		providerTokens = ProviderTokens{
			AccessToken:  newToken.AccessToken,
			RefreshToken: newToken.RefreshToken,
			ExpiresAt:    newToken.Expiry,
		}
		err = h.Database.UpdateProviderTokens(r.Context(), userID, providerName, providerTokens)
		if err != nil {
			WriteErrorResponse(w, "Failed to update provider tokens", http.StatusInternalServerError)
			return
		}
	}

	if !providerTokens.ExpiresAt.IsZero() && providerTokens.ExpiresAt.Before(time.Now()) {
		h.Database.RevokeRefreshToken(r.Context(), refreshTokenString)
		WriteErrorResponse(w, "Provider access token expired", http.StatusUnauthorized)
		return
	}

	// Re-fetch the profile so rotated sessions carry fresh claims
	userInfo, err := provider.UserFromToken(r.Context(), providerTokens.AccessToken)
	if err != nil {
		WriteErrorResponse(w, "Failed to retrieve user info", http.StatusInternalServerError)
		return
	}

	newClaims := jwt.MapClaims{
		"sub":      userInfo.ID,
		"login":    userInfo.NickName,
		"name":     userInfo.Name,
		"email":    userInfo.Email,
		"provider": providerName,
	}

	tokens, err := generateTokens(newClaims, h.Config)
	if err != nil {
		WriteErrorResponse(w, "Failed to generate tokens", http.StatusInternalServerError)
		return
	}

	err = h.Database.StoreRefreshToken(r.Context(), tokens.RefreshToken, userID, time.Now().Add(h.Config.RefreshTokenExpiration))
	if err != nil {
		WriteErrorResponse(w, "Failed to store refresh token", http.StatusInternalServerError)
		return
	}
	h.Database.RevokeRefreshToken(r.Context(), refreshTokenString)

	setAuthCookies(w, tokens, h.Config)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokens)
}
