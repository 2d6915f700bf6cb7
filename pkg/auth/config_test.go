package auth

import (
	"net/http"
	"os"
	"testing"
	"time"
)

func TestNewConfigDefaultAuthType(t *testing.T) {
	os.Clearenv()
	config, err := NewConfig()
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}
	if config.AuthType != "none" {
		t.Errorf("expected AuthType 'none', got '%s'", config.AuthType)
	}
}

func setIntraEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("AUTH_TYPE", "oauth2")
	os.Setenv("JWT_SECRET", "testjwtsecret")
	os.Setenv("OAUTH_PROVIDERS", "intra")
	os.Setenv("OAUTH_INTRA_CLIENT_ID", "testclientid")
	os.Setenv("OAUTH_INTRA_CLIENT_SECRET", "testclientsecret")
	os.Setenv("OAUTH_INTRA_REDIRECT_URL", "http://localhost/callback")
}

func TestNewConfigIntraDefaults(t *testing.T) {
	setIntraEnv(t)

	config, err := NewConfig()
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}

	provider, ok := config.Providers["intra"]
	if !ok {
		t.Fatal("intra provider not configured")
	}

	cfg := provider.Config()
	if cfg.AuthURL != "https://api.intra.42.fr/oauth/authorize" {
		t.Errorf("unexpected default AuthURL: %s", cfg.AuthURL)
	}
	if cfg.TokenURL != "https://api.intra.42.fr/oauth/token" {
		t.Errorf("unexpected default TokenURL: %s", cfg.TokenURL)
	}
	if cfg.UserInfoURL != "https://api.intra.42.fr/v2/me" {
		t.Errorf("unexpected default UserInfoURL: %s", cfg.UserInfoURL)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != "public" {
		t.Errorf("unexpected default scopes: %v", cfg.Scopes)
	}
	if cfg.StateCookieName != "oauth_intra" {
		t.Errorf("unexpected state cookie name: %s", cfg.StateCookieName)
	}
	if cfg.OAuth2Config == nil {
		t.Fatal("OAuth2Config not initialized")
	}
	if cfg.OAuth2Config.ClientID != "testclientid" {
		t.Errorf("OAuth2Config ClientID mismatch")
	}
}

func TestNewConfigIntraOverrideReplacesOnlyThatURL(t *testing.T) {
	setIntraEnv(t)
	os.Setenv("OAUTH_INTRA_USERINFO_URL", "http://localhost/me")

	config, err := NewConfig()
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}

	cfg := config.Providers["intra"].Config()
	if cfg.UserInfoURL != "http://localhost/me" {
		t.Errorf("UserInfoURL override not applied: %s", cfg.UserInfoURL)
	}
	if cfg.AuthURL != "https://api.intra.42.fr/oauth/authorize" {
		t.Errorf("AuthURL should keep its default, got %s", cfg.AuthURL)
	}
	if cfg.TokenURL != "https://api.intra.42.fr/oauth/token" {
		t.Errorf("TokenURL should keep its default, got %s", cfg.TokenURL)
	}
}

func TestNewConfigMissingClientCredentials(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_TYPE", "oauth2")
	os.Setenv("JWT_SECRET", "testjwtsecret")
	os.Setenv("OAUTH_PROVIDERS", "intra")

	if _, err := NewConfig(); err == nil {
		t.Error("expected error for provider without client credentials")
	}
}

func TestParseDurationString(t *testing.T) {
	duration, err := parseDurationString("minutes=15")
	if err != nil {
		t.Errorf("failed to parse duration: %v", err)
	}
	if duration != 15*time.Minute {
		t.Errorf("expected 15 minutes, got %v", duration)
	}

	duration, err = parseDurationString("hours=1, minutes=30")
	if err != nil {
		t.Errorf("failed to parse duration: %v", err)
	}
	if duration != 90*time.Minute {
		t.Errorf("expected 90 minutes, got %v", duration)
	}
}

func TestParseSameSite(t *testing.T) {
	sameSite, err := parseSameSite("lax")
	if err != nil {
		t.Errorf("failed to parse SameSite: %v", err)
	}
	if sameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSiteLaxMode, got %v", sameSite)
	}

	_, err = parseSameSite("invalid")
	if err == nil {
		t.Errorf("expected error for invalid SameSite value")
	}
}
