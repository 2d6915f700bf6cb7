package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/jwk"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// newLimiter builds the outbound rate limiter for a provider config.
// A zero RequestsPerSec means the provider API is not throttled on our side.
func newLimiter(cfg *ProviderConfig) *rate.Limiter {
	if cfg.RequestsPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
}

// defaultAuthCodeURL builds the authorization redirect URL, carrying over the
// provider's additional parameters and honoring a non-standard scope
// separator when the provider requires one.
func defaultAuthCodeURL(p Provider, state string, extra ...oauth2.AuthCodeOption) string {
	cfg := p.Config()
	opts := make([]oauth2.AuthCodeOption, 0, len(cfg.AdditionalParams)+len(extra)+1)
	for k, v := range cfg.AdditionalParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	if cfg.ScopeSeparator != "" && cfg.ScopeSeparator != " " && len(cfg.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", strings.Join(cfg.Scopes, cfg.ScopeSeparator)))
	}
	opts = append(opts, extra...)
	return p.OAuth2Config().AuthCodeURL(state, opts...)
}

// defaultAccessDenied reports whether the callback carries the standard
// consent-denial error. The match is exact; any other value is a different
// provider error.
func defaultAccessDenied(p Provider, query url.Values) bool {
	return query.Get(p.Config().ErrorParam) == "access_denied"
}

func defaultCallbackError(p Provider, query url.Values) string {
	return query.Get(p.Config().ErrorParam)
}

func defaultExchangeCode(ctx context.Context, p Provider, code string) (*oauth2.Token, error) {
	return p.OAuth2Config().Exchange(ctx, code)
}

// Refresh the access token using the refresh token for the oauth2 provider
func defaultRenewAccessToken(ctx context.Context, p Provider, refreshToken string) (*oauth2.Token, error) {
	tokenSource := p.OAuth2Config().TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})

	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, err
	}

	return newToken, nil
}

// fetchUserPayload performs the userinfo round trip and returns the decoded
// JSON object. Numbers are kept as json.Number so numeric user IDs survive
// normalization without float formatting artifacts.
//
// Failure modes, in order: non-200 status, body that is not valid JSON
// (reported with the unparsed body), and a JSON body that is not an object
// (reported with the HTTP status observed).
func fetchUserPayload(ctx context.Context, cfg *ProviderConfig, limiter *rate.Limiter, accessToken string, opts ...RequestOption) (map[string]interface{}, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("userinfo response is not valid JSON: %q", string(body))
	}

	obj, ok := payload.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("userinfo response has no usable object body: status %d", resp.StatusCode)
	}

	return obj, nil
}

// tokenInfoFromOAuth2 converts an exchange-produced token into the TokenInfo
// attached to a normalized user, carrying over the scope and created_at
// extras when the provider returns them.
func tokenInfoFromOAuth2(token *oauth2.Token) *TokenInfo {
	info := &TokenInfo{
		Token: token.AccessToken,
		Type:  "bearer",
	}
	if !token.Expiry.IsZero() {
		info.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	if scope, ok := token.Extra("scope").(string); ok {
		info.Scope = scope
	}
	switch created := token.Extra("created_at").(type) {
	case float64:
		info.CreatedAt = int64(created)
	case json.Number:
		info.CreatedAt, _ = created.Int64()
	}
	return info
}

// truthy mirrors the loose presence check applied to payload fields: nil,
// empty strings, zero numbers and false are all treated as absent.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		return t.String() != "" && t.String() != "0"
	case float64:
		return t != 0
	default:
		return true
	}
}

// stringField returns the payload field as a string, or "" when it is absent
// or not a string.
func stringField(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}

// formatID renders the payload id as a string, keeping numeric IDs intact.
func formatID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// defaultDecodeIDToken decodes and validates an ID token using the provider's JWKs.
func defaultDecodeIDToken(ctx context.Context, p Provider, idToken string) (jwt.MapClaims, error) {
	set, err := jwk.Fetch(ctx, p.Config().WellKnownJwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKs: %w", err)
	}

	token, err := jwt.Parse(idToken, func(token *jwt.Token) (interface{}, error) {
		// Ensure token is signed with the expected signing method
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Get kid from token header
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		// Lookup the key
		key, exists := set.LookupKeyID(kid)
		if !exists {
			return nil, fmt.Errorf("unable to find key %s", kid)
		}

		var publicKey interface{}
		if err := key.Raw(&publicKey); err != nil {
			return nil, fmt.Errorf("failed to parse JWK: %w", err)
		}

		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse ID token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid ID token")
}
