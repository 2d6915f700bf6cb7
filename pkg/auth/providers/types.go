package providers

import "golang.org/x/oauth2"

// Email verification states a provider can report for the user's email.
const (
	VerificationStateVerified    = "verified"
	VerificationStateUnverified  = "unverified"
	VerificationStateUnsupported = "unsupported" // provider does not expose verification
)

// TokenInfo is the token attached to a normalized user. For users resolved
// through the code exchange it carries whatever the provider returned; for
// users resolved from a raw bearer token only Token and Type are set.
type TokenInfo struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
	Scope     string `json:"scope,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// ProviderUserInfo is the normalized user shape every adapter produces.
// Original always holds the full provider payload as decoded, so callers can
// reach fields the normalization does not cover.
type ProviderUserInfo struct {
	ID                     string                 `json:"id"`
	NickName               string                 `json:"nickName"`
	Name                   string                 `json:"name"`
	Email                  string                 `json:"email"`
	EmailVerificationState string                 `json:"emailVerificationState"`
	AvatarURL              *string                `json:"avatarUrl"`
	Provider               string                 `json:"provider"`
	Original               map[string]interface{} `json:"original,omitempty"`
	Token                  *TokenInfo             `json:"token,omitempty"`
}

// ProviderConfig holds the OAuth2 configuration for a single provider.
type ProviderConfig struct {
	Name             string            // Name of the provider (e.g., intra, google)
	Type             string            // Provider type (e.g., intra, generic)
	ClientID         string            // OAuth2 Client ID
	ClientSecret     string            // OAuth2 Client Secret
	RedirectURL      string            // OAuth2 Redirect URL
	AuthURL          string            // OAuth2 Authorization URL
	TokenURL         string            // OAuth2 Token URL
	UserInfoURL      string            // OAuth2 User Info URL
	WellKnownJwksURL string            // URL to fetch JWKs for ID token validation
	EndSessionURL    string            // OAuth2 End Session URL
	Scopes           []string          // OAuth2 Scopes
	ScopeSeparator   string            // Separator used to join scopes in the authorize URL
	CodeParam        string            // Callback query parameter carrying the authorization code
	ErrorParam       string            // Callback query parameter carrying a provider error
	StateParam       string            // Callback query parameter carrying the CSRF state
	StateCookieName  string            // Cookie persisting the CSRF state between legs
	AdditionalParams map[string]string // Additional OAuth2 parameters
	RequestsPerSec   float64           // Outbound userinfo rate limit; 0 means unlimited
	OAuth2Config     *oauth2.Config    // OAuth2 configuration
}

// ApplyDefaults fills the callback parameter names, state-cookie name and
// scope separator that are left empty.
func (c *ProviderConfig) ApplyDefaults() {
	if c.CodeParam == "" {
		c.CodeParam = "code"
	}
	if c.ErrorParam == "" {
		c.ErrorParam = "error"
	}
	if c.StateParam == "" {
		c.StateParam = "state"
	}
	if c.StateCookieName == "" {
		c.StateCookieName = "oauth_" + c.Name
	}
	if c.ScopeSeparator == "" {
		c.ScopeSeparator = " "
	}
}
