package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func newTestGenericProvider(userInfoURL string) *GenericProvider {
	config := &ProviderConfig{
		Name:         "corp",
		Type:         "generic",
		ClientID:     "testclientid",
		ClientSecret: "testclientsecret",
		RedirectURL:  "http://localhost/callback",
		AuthURL:      "http://localhost/auth",
		TokenURL:     "http://localhost/token",
		UserInfoURL:  userInfoURL,
		Scopes:       []string{"openid", "profile", "email"},
	}
	config.OAuth2Config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  config.AuthURL,
			TokenURL: config.TokenURL,
		},
	}
	return NewGenericProvider(config)
}

func TestGenericFetchUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"sub": "abc123",
			"name": "Jane Doe",
			"preferred_username": "jane",
			"email": "jane@example.com",
			"email_verified": true,
			"picture": "http://x/jane.png"
		}`))
	}))
	defer server.Close()

	provider := newTestGenericProvider(server.URL)
	userInfo, err := provider.FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("FetchUserInfo failed: %v", err)
	}

	if userInfo.ID != "abc123" {
		t.Errorf("expected id 'abc123', got %q", userInfo.ID)
	}
	if userInfo.NickName != "jane" {
		t.Errorf("expected nickName 'jane', got %q", userInfo.NickName)
	}
	if userInfo.EmailVerificationState != VerificationStateVerified {
		t.Errorf("expected verified state, got %q", userInfo.EmailVerificationState)
	}
	if userInfo.AvatarURL == nil || *userInfo.AvatarURL != "http://x/jane.png" {
		t.Errorf("unexpected avatarUrl: %v", userInfo.AvatarURL)
	}
}

func TestGenericFetchUserInfoMissingSub(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "Jane Doe"}`))
	}))
	defer server.Close()

	provider := newTestGenericProvider(server.URL)
	if _, err := provider.FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "tok"}); err == nil {
		t.Fatal("expected error for payload without sub")
	}
}

func TestGenericEmailVerificationUnsupported(t *testing.T) {
	// Providers that never report email_verified stay "unsupported"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sub": "abc123", "email": "jane@example.com"}`))
	}))
	defer server.Close()

	provider := newTestGenericProvider(server.URL)
	userInfo, err := provider.FetchUserInfo(context.Background(), &oauth2.Token{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("FetchUserInfo failed: %v", err)
	}
	if userInfo.EmailVerificationState != VerificationStateUnsupported {
		t.Errorf("expected unsupported state, got %q", userInfo.EmailVerificationState)
	}
}
