package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/hive-tools/intragate/pkg/auth/providers"
)

// MockDatabase is a mock implementation of the Database interface for testing.
type MockDatabase struct {
	RefreshTokens      map[string]string
	BlacklistedTokens  map[string]int64
	ProviderTokensData map[string]map[string]ProviderTokens // userID -> provider -> tokens
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		RefreshTokens:      make(map[string]string),
		BlacklistedTokens:  make(map[string]int64),
		ProviderTokensData: make(map[string]map[string]ProviderTokens),
	}
}

func (db *MockDatabase) StoreRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	db.RefreshTokens[token] = userID
	return nil
}

func (db *MockDatabase) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	userID, exists := db.RefreshTokens[token]
	if !exists {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (db *MockDatabase) AddBlacklistedToken(ctx context.Context, token string, expiresAt int64) error {
	db.BlacklistedTokens[token] = expiresAt
	return nil
}

func (db *MockDatabase) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	_, exists := db.BlacklistedTokens[token]
	return exists, nil
}

func (db *MockDatabase) RevokeRefreshToken(ctx context.Context, token string) error {
	delete(db.RefreshTokens, token)
	return nil
}

func (db *MockDatabase) StoreProviderTokens(ctx context.Context, userID, provider string, tokens ProviderTokens) error {
	if _, exists := db.ProviderTokensData[userID]; !exists {
		db.ProviderTokensData[userID] = make(map[string]ProviderTokens)
	}
	db.ProviderTokensData[userID][provider] = tokens
	return nil
}

func (db *MockDatabase) GetProviderTokens(ctx context.Context, userID, provider string) (ProviderTokens, error) {
	userProviders, exists := db.ProviderTokensData[userID]
	if !exists {
		return ProviderTokens{}, ErrTokenNotFound
	}
	tokens, exists := userProviders[provider]
	if !exists {
		return ProviderTokens{}, ErrTokenNotFound
	}
	return tokens, nil
}

func (db *MockDatabase) UpdateProviderTokens(ctx context.Context, userID string, provider string, tokens ProviderTokens) error {
	if _, exists := db.ProviderTokensData[userID]; !exists {
		db.ProviderTokensData[userID] = make(map[string]ProviderTokens)
	}
	db.ProviderTokensData[userID][provider] = tokens
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Discard output during tests
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// newIntraTestProvider builds an intra provider pointed at test servers.
func newIntraTestProvider(authURL, tokenURL, userInfoURL string) providers.Provider {
	config := &providers.ProviderConfig{
		Name:         "intra",
		Type:         "intra",
		ClientID:     "testclientid",
		ClientSecret: "testclientsecret",
		RedirectURL:  "http://localhost/auth/callback/intra",
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		UserInfoURL:  userInfoURL,
		Scopes:       []string{"public"},
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
	return providers.NewIntraProvider(config)
}

// newTestHandler creates a Handler with a mock database and a single intra provider.
func newTestHandler(provider providers.Provider) (*Handler, *MockDatabase) {
	config := &Config{
		AuthType:               "oauth2",
		JwtSecret:              []byte("testsecret"),
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		SecureCookie:           false,
		CookieSameSite:         http.SameSiteLaxMode,
		Providers:              map[string]providers.Provider{"intra": provider},
	}
	db := NewMockDatabase()
	return NewHandler(config, db, testLogger()), db
}

func callbackRequest(target string) *http.Request {
	req := httptest.NewRequest("GET", target, nil)
	return mux.SetURLVars(req, map[string]string{"provider": "intra"})
}

func TestHandleLogin(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	req := httptest.NewRequest("GET", "/auth/login/intra", nil)
	req = mux.SetURLVars(req, map[string]string{"provider": "intra"})
	w := httptest.NewRecorder()

	handler.HandleLogin(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", resp.StatusCode)
	}

	var stateCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "oauth_intra" {
			stateCookie = cookie
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("state cookie not set")
	}

	location := resp.Header.Get("Location")
	if location == "" {
		t.Fatal("no redirect location")
	}
	redirect, err := http.NewRequest("GET", location, nil)
	if err != nil {
		t.Fatalf("invalid redirect location: %v", err)
	}
	query := redirect.URL.Query()
	if query.Get("state") != stateCookie.Value {
		t.Errorf("redirect state %q does not match cookie %q", query.Get("state"), stateCookie.Value)
	}
	if query.Get("response_type") != "code" {
		t.Errorf("expected response_type=code in redirect, got %q", query.Get("response_type"))
	}
}

func TestHandleLoginUnknownProvider(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	req := httptest.NewRequest("GET", "/auth/login/nope", nil)
	req = mux.SetURLVars(req, map[string]string{"provider": "nope"})
	w := httptest.NewRecorder()

	handler.HandleLogin(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Result().StatusCode)
	}
}

func TestHandleCallbackAccessDenied(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	w := httptest.NewRecorder()
	handler.HandleCallback(w, callbackRequest("/auth/callback/intra?error=access_denied"))

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", w.Result().StatusCode)
	}
}

func TestHandleCallbackProviderError(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	w := httptest.NewRecorder()
	handler.HandleCallback(w, callbackRequest("/auth/callback/intra?error=server_error"))

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestHandleCallbackStateMismatch(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	req := callbackRequest("/auth/callback/intra?code=abc&state=wrong")
	req.AddCookie(&http.Cookie{Name: "oauth_intra", Value: "expected"})
	w := httptest.NewRecorder()

	handler.HandleCallback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestHandleCallbackMissingCode(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	req := callbackRequest("/auth/callback/intra?state=expected")
	req.AddCookie(&http.Cookie{Name: "oauth_intra", Value: "expected"})
	w := httptest.NewRecorder()

	handler.HandleCallback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"provider-token","token_type":"bearer","expires_in":7200}`))
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id": 42, "login": "jdoe", "displayname": "John Doe", "email": "j@d.co"}`))
	}))
	defer userInfoServer.Close()

	provider := newIntraTestProvider("http://localhost/authorize", tokenServer.URL, userInfoServer.URL)
	handler, db := newTestHandler(provider)

	req := callbackRequest("/auth/callback/intra?code=goodcode&state=expected")
	req.AddCookie(&http.Cookie{Name: "oauth_intra", Value: "expected"})
	w := httptest.NewRecorder()

	handler.HandleCallback(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID       string `json:"id"`
			NickName string `json:"nickName"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.AccessToken == "" {
		t.Error("response should carry a session access token")
	}
	if body.User.ID != "42" || body.User.NickName != "jdoe" {
		t.Errorf("unexpected user in response: %+v", body.User)
	}

	// Provider tokens must be persisted for later refreshes
	tokens, err := db.GetProviderTokens(context.Background(), "42", "intra")
	if err != nil {
		t.Fatalf("provider tokens not stored: %v", err)
	}
	if tokens.AccessToken != "provider-token" {
		t.Errorf("unexpected stored provider token: %+v", tokens)
	}

	// Session cookies must be set
	var haveAccess, haveRefresh bool
	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case "access_token":
			haveAccess = cookie.Value != ""
		case "refresh_token":
			haveRefresh = cookie.Value != ""
		}
	}
	if !haveAccess || !haveRefresh {
		t.Error("session cookies not set")
	}
}

func TestHandleUserInfo(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id": 1, "login": "jdoe", "displayname": "John Doe", "email": "j@d.co"}`))
	}))
	defer userInfoServer.Close()

	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", userInfoServer.URL)
	handler, _ := newTestHandler(provider)

	req := callbackRequest("/auth/userinfo/intra")
	req.Header.Set("Authorization", "Bearer tok123")
	w := httptest.NewRecorder()

	handler.HandleUserInfo(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			ID    string `json:"id"`
			Token struct {
				Token string `json:"token"`
				Type  string `json:"type"`
			} `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Data.ID != "1" {
		t.Errorf("expected id '1', got %q", body.Data.ID)
	}
	if body.Data.Token.Token != "tok123" || body.Data.Token.Type != "bearer" {
		t.Errorf("expected synthesized {tok123 bearer}, got %+v", body.Data.Token)
	}
}

func TestHandleUserInfoMissingToken(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, _ := newTestHandler(provider)

	w := httptest.NewRecorder()
	handler.HandleUserInfo(w, callbackRequest("/auth/userinfo/intra"))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Result().StatusCode)
	}
}

func TestHandleLogout(t *testing.T) {
	provider := newIntraTestProvider("http://localhost/authorize", "http://localhost/token", "http://localhost/me")
	handler, db := newTestHandler(provider)

	db.RefreshTokens["refresh123"] = "user42"

	req := httptest.NewRequest("GET", "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer access123")
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "refresh123"})
	w := httptest.NewRecorder()

	handler.HandleLogout(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if _, blacklisted := db.BlacklistedTokens["access123"]; !blacklisted {
		t.Error("access token should be blacklisted")
	}
	if _, exists := db.RefreshTokens["refresh123"]; exists {
		t.Error("refresh token should be revoked")
	}
}
