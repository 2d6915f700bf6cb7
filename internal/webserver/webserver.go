package webserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/hive-tools/intragate/pkg/auth"
)

// WebServer holds the data needed for handling HTTP requests.
type WebServer struct {
	config      *WebserverConfig
	authConfig  *auth.Config
	authHandler *auth.Handler
	Logger      *logrus.Logger
}

// NewWebServer initializes a new WebServer.
func NewWebServer(config *WebserverConfig, authConfig *auth.Config, authHandler *auth.Handler, logger *logrus.Logger) *WebServer {
	return &WebServer{
		config:      config,
		authConfig:  authConfig,
		authHandler: authHandler,
		Logger:      logger,
	}
}

// StartWebServer starts the HTTP server.
func StartWebServer(ctx context.Context, ws *WebServer) (*http.Server, error) {
	router := ws.InitRouter()

	// Configure CORS options
	corsOptions := cors.Options{
		AllowedOrigins:   ws.config.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		Debug:            false,
	}

	handler := cors.New(corsOptions).Handler(router)

	server := &http.Server{
		Addr:    ws.config.ListenTo,
		Handler: handler,
	}

	go func() {
		ws.Logger.Infof("Server starting on %s", ws.config.ListenTo)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.Logger.Errorf("ListenAndServe(): %v", err)
		}
	}()

	return server, nil
}

// InitRouter initializes the HTTP routes.
func (ws *WebServer) InitRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	authRouter := r.PathPrefix("/auth").Subrouter()

	// Authentication routes
	if ws.authConfig.AuthType == "oauth2" {
		authRouter.HandleFunc("/providers", ws.authHandler.HandlerProviders).Methods("GET")
		authRouter.HandleFunc("/login/{provider}", ws.authHandler.HandleLogin).Methods("GET")
		authRouter.HandleFunc("/callback/{provider}", ws.authHandler.HandleCallback).Methods("GET")
		authRouter.HandleFunc("/userinfo/{provider}", ws.authHandler.HandleUserInfo).Methods("GET")

		authRouter.Handle("/status", ws.authHandler.AuthMiddleware(http.HandlerFunc(ws.authHandler.HandleStatus))).Methods("GET")
		authRouter.Handle("/logout", ws.authHandler.AuthMiddleware(http.HandlerFunc(ws.authHandler.HandleLogout))).Methods("POST")
		authRouter.Handle("/logout", ws.authHandler.AuthMiddleware(http.HandlerFunc(ws.authHandler.HandleLogout))).Methods("GET")
		authRouter.HandleFunc("/refresh", ws.authHandler.HandleRefresh).Methods("POST")
		authRouter.HandleFunc("/refresh", ws.authHandler.HandleRefresh).Methods("GET")

		api.Use(ws.authHandler.AuthMiddleware)
	}

	// API routes
	api.HandleFunc("/me", ws.handleGetMe).Methods(http.MethodGet)

	// Static file serving
	if ws.config.StaticDir != "" {
		r.PathPrefix("/").Handler(
			http.StripPrefix("/", http.FileServer(http.Dir(ws.config.StaticDir))))
	}
	return r
}

// handleGetMe returns a fresh provider profile for the authenticated user,
// resolved with the provider tokens stored at sign-in.
func (ws *WebServer) handleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := ctx.Value(auth.ContextKeyUser).(jwt.MapClaims)
	if !ok || claims == nil {
		auth.WriteErrorResponse(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}

	sub, _ := claims["sub"].(string)
	providerName, _ := claims["provider"].(string)

	provider, ok := ws.authConfig.Providers[providerName]
	if !ok {
		auth.WriteErrorResponse(w, "Unknown provider in session", http.StatusInternalServerError)
		return
	}

	providerTokens, err := ws.authHandler.Database.GetProviderTokens(ctx, sub, providerName)
	if err != nil {
		ws.Logger.WithError(err).Warn("No provider tokens for session")
		auth.WriteErrorResponse(w, "No provider tokens for session", http.StatusUnauthorized)
		return
	}

	userInfo, err := provider.UserFromToken(ctx, providerTokens.AccessToken)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to fetch profile")
		auth.WriteErrorResponse(w, "Failed to fetch profile", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(userInfo)
}
