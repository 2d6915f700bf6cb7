package providers

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// RequestOption mutates an outgoing userinfo request before it is sent.
// Callers use it to add provider-specific headers.
type RequestOption func(*http.Request)

// WithHeader returns a RequestOption that sets a header on the userinfo request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// Provider defines the interface that each OAuth2 provider must implement.
type Provider interface {
	// Name returns the name of the provider (e.g., intra, google).
	Name() string

	// Config returns the provider configuration.
	Config() *ProviderConfig

	// OAuth2Config returns the OAuth2 configuration for the provider.
	OAuth2Config() *oauth2.Config

	// AuthCodeURL builds the authorization redirect URL for the given CSRF
	// state, including any provider-specific query parameters.
	AuthCodeURL(state string) string

	// AccessDenied reports whether the callback query parameters indicate
	// that the user denied consent on the provider's authorization page.
	AccessDenied(query url.Values) bool

	// CallbackError returns the provider error carried in the callback query
	// parameters, or "" when the callback carries none.
	CallbackError(query url.Values) string

	// ExchangeCode exchanges the authorization code for an access token.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// RenewAccessToken refreshes the access token using the refresh token.
	RenewAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// FetchUserInfo retrieves and normalizes user information using a token
	// obtained from ExchangeCode.
	FetchUserInfo(ctx context.Context, token *oauth2.Token, opts ...RequestOption) (*ProviderUserInfo, error)

	// UserFromToken retrieves and normalizes user information using a raw
	// bearer token the caller obtained out-of-band.
	UserFromToken(ctx context.Context, accessToken string, opts ...RequestOption) (*ProviderUserInfo, error)

	// DecodeIDToken decodes and validates the ID token to extract user claims.
	DecodeIDToken(ctx context.Context, token *oauth2.Token) (*ProviderUserInfo, error)
}
