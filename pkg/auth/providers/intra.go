package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// IntraProvider implements the Provider interface for the 42 school intranet
// (api.intra.42.fr). The intra API does not issue OpenID ID tokens, so user
// identity always comes from the /v2/me profile endpoint.
type IntraProvider struct {
	config  *ProviderConfig
	limiter *rate.Limiter
}

// NewIntraProvider creates a new instance of IntraProvider.
func NewIntraProvider(config *ProviderConfig) *IntraProvider {
	config.ApplyDefaults()
	return &IntraProvider{
		config:  config,
		limiter: newLimiter(config),
	}
}

// Name returns the name of the provider.
func (p *IntraProvider) Name() string {
	return p.config.Name
}

// Config returns the provider configuration.
func (p *IntraProvider) Config() *ProviderConfig {
	return p.config
}

// OAuth2Config returns the OAuth2 configuration.
func (p *IntraProvider) OAuth2Config() *oauth2.Config {
	return p.config.OAuth2Config
}

// AuthCodeURL builds the authorization redirect URL. The intra authorize
// endpoint rejects requests without an explicit response_type, so it is
// always forced to "code" on top of whatever the base configuration set.
func (p *IntraProvider) AuthCodeURL(state string) string {
	return defaultAuthCodeURL(p, state, oauth2.SetAuthURLParam("response_type", "code"))
}

// AccessDenied reports whether the user denied consent on the intra
// authorization page.
func (p *IntraProvider) AccessDenied(query url.Values) bool {
	return defaultAccessDenied(p, query)
}

// CallbackError returns the provider error carried in the callback query.
func (p *IntraProvider) CallbackError(query url.Values) string {
	return defaultCallbackError(p, query)
}

// ExchangeCode exchanges the authorization code for an access token.
func (p *IntraProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return defaultExchangeCode(ctx, p, code)
}

// RenewAccessToken refreshes the access token using the refresh token.
func (p *IntraProvider) RenewAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return defaultRenewAccessToken(ctx, p, refreshToken)
}

// FetchUserInfo retrieves user information from the intra profile endpoint
// using a token produced by ExchangeCode and normalizes it.
func (p *IntraProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token, opts ...RequestOption) (*ProviderUserInfo, error) {
	payload, err := fetchUserPayload(ctx, p.config, p.limiter, token.AccessToken, opts...)
	if err != nil {
		return nil, err
	}
	return p.normalize(payload, tokenInfoFromOAuth2(token))
}

// UserFromToken retrieves user information using a raw bearer token the
// caller obtained out-of-band. The returned token info carries only the
// token itself and its type.
func (p *IntraProvider) UserFromToken(ctx context.Context, accessToken string, opts ...RequestOption) (*ProviderUserInfo, error) {
	payload, err := fetchUserPayload(ctx, p.config, p.limiter, accessToken, opts...)
	if err != nil {
		return nil, err
	}
	return p.normalize(payload, &TokenInfo{Token: accessToken, Type: "bearer"})
}

// DecodeIDToken falls back to the profile endpoint; intra does not issue ID tokens.
func (p *IntraProvider) DecodeIDToken(ctx context.Context, token *oauth2.Token) (*ProviderUserInfo, error) {
	return p.FetchUserInfo(ctx, token)
}

// normalize maps an intra profile payload to the normalized user shape.
// A payload without a usable id is rejected; everything else maps as-is.
// When displayname is missing the name degrades to first_name and last_name
// joined with a space, even if either is missing too.
func (p *IntraProvider) normalize(payload map[string]interface{}, token *TokenInfo) (*ProviderUserInfo, error) {
	id, ok := payload["id"]
	if !ok || !truthy(id) {
		serialized, _ := json.Marshal(payload)
		return nil, fmt.Errorf("userinfo payload has no usable id: %s", serialized)
	}

	name := stringField(payload, "displayname")
	if name == "" {
		name = stringField(payload, "first_name") + " " + stringField(payload, "last_name")
	}

	var avatarURL *string
	if image, ok := payload["image"].(map[string]interface{}); ok {
		if link, ok := image["link"].(string); ok {
			avatarURL = &link
		}
	}

	return &ProviderUserInfo{
		ID:                     formatID(id),
		NickName:               stringField(payload, "login"),
		Name:                   name,
		Email:                  stringField(payload, "email"),
		EmailVerificationState: VerificationStateUnsupported,
		AvatarURL:              avatarURL,
		Provider:               p.Name(),
		Original:               payload,
		Token:                  token,
	}, nil
}
