package providers

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// GenericProvider implements the Provider interface for any OpenID-flavored
// OAuth2 provider that returns sub/name/email/picture claims.
type GenericProvider struct {
	config  *ProviderConfig
	limiter *rate.Limiter
}

// NewGenericProvider creates a new instance of GenericProvider.
func NewGenericProvider(config *ProviderConfig) *GenericProvider {
	config.ApplyDefaults()
	return &GenericProvider{
		config:  config,
		limiter: newLimiter(config),
	}
}

// Name returns the name of the provider.
func (p *GenericProvider) Name() string {
	return p.config.Name
}

// Config returns the provider configuration.
func (p *GenericProvider) Config() *ProviderConfig {
	return p.config
}

// OAuth2Config returns the OAuth2 configuration.
func (p *GenericProvider) OAuth2Config() *oauth2.Config {
	return p.config.OAuth2Config
}

// AuthCodeURL builds the authorization redirect URL.
func (p *GenericProvider) AuthCodeURL(state string) string {
	return defaultAuthCodeURL(p, state)
}

// AccessDenied reports whether the user denied consent.
func (p *GenericProvider) AccessDenied(query url.Values) bool {
	return defaultAccessDenied(p, query)
}

// CallbackError returns the provider error carried in the callback query.
func (p *GenericProvider) CallbackError(query url.Values) string {
	return defaultCallbackError(p, query)
}

// ExchangeCode exchanges the authorization code for an access token.
func (p *GenericProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return defaultExchangeCode(ctx, p, code)
}

// RenewAccessToken refreshes the access token using the refresh token.
func (p *GenericProvider) RenewAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return defaultRenewAccessToken(ctx, p, refreshToken)
}

// FetchUserInfo retrieves user information from the provider's userinfo
// endpoint using a token produced by ExchangeCode.
func (p *GenericProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token, opts ...RequestOption) (*ProviderUserInfo, error) {
	return p.userInfo(ctx, token.AccessToken, tokenInfoFromOAuth2(token), opts...)
}

// UserFromToken retrieves user information using a raw bearer token.
func (p *GenericProvider) UserFromToken(ctx context.Context, accessToken string, opts ...RequestOption) (*ProviderUserInfo, error) {
	return p.userInfo(ctx, accessToken, &TokenInfo{Token: accessToken, Type: "bearer"}, opts...)
}

func (p *GenericProvider) userInfo(ctx context.Context, accessToken string, token *TokenInfo, opts ...RequestOption) (*ProviderUserInfo, error) {
	payload, err := fetchUserPayload(ctx, p.config, p.limiter, accessToken, opts...)
	if err != nil {
		return nil, err
	}

	sub, ok := payload["sub"]
	if !ok || !truthy(sub) {
		return nil, fmt.Errorf("invalid userinfo payload: missing 'sub'")
	}

	verification := VerificationStateUnsupported
	if verified, ok := payload["email_verified"].(bool); ok {
		verification = VerificationStateUnverified
		if verified {
			verification = VerificationStateVerified
		}
	}

	var avatarURL *string
	if picture, ok := payload["picture"].(string); ok {
		avatarURL = &picture
	}

	return &ProviderUserInfo{
		ID:                     formatID(sub),
		NickName:               stringField(payload, "preferred_username"),
		Name:                   stringField(payload, "name"),
		Email:                  stringField(payload, "email"),
		EmailVerificationState: verification,
		AvatarURL:              avatarURL,
		Provider:               p.Name(),
		Original:               payload,
		Token:                  token,
	}, nil
}

// DecodeIDToken decodes and validates the ID token using the provider's JWKs.
func (p *GenericProvider) DecodeIDToken(ctx context.Context, token *oauth2.Token) (*ProviderUserInfo, error) {
	idToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in token")
	}

	userClaims, err := defaultDecodeIDToken(ctx, p, idToken)
	if err != nil {
		return nil, err
	}

	userID, ok := userClaims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("invalid user claims: missing 'sub'")
	}

	userInfo := ProviderUserInfo{
		ID:                     userID,
		Name:                   stringFromClaims(userClaims, "name"),
		NickName:               stringFromClaims(userClaims, "preferred_username"),
		Email:                  stringFromClaims(userClaims, "email"),
		EmailVerificationState: VerificationStateUnsupported,
		Provider:               p.Name(),
		Token:                  tokenInfoFromOAuth2(token),
	}
	if verified, ok := userClaims["email_verified"].(bool); ok {
		userInfo.EmailVerificationState = VerificationStateUnverified
		if verified {
			userInfo.EmailVerificationState = VerificationStateVerified
		}
	}
	if picture, ok := userClaims["picture"].(string); ok {
		userInfo.AvatarURL = &picture
	}
	return &userInfo, nil
}

func stringFromClaims(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}
