package webserver

import (
	"os"
	"strings"
)

// WebserverConfig holds the HTTP server configuration.
type WebserverConfig struct {
	ListenTo           string
	CorsAllowedOrigins []string
	StaticDir          string
}

// LoadConfig loads the webserver configuration from environment variables.
func LoadConfig() (*WebserverConfig, error) {
	config := &WebserverConfig{
		ListenTo:  os.Getenv("LISTEN_TO"),
		StaticDir: os.Getenv("STATIC_DIR"),
	}
	if config.ListenTo == "" {
		config.ListenTo = ":8080"
	}

	originsStr := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CorsAllowedOrigins = append(config.CorsAllowedOrigins, trimmed)
			}
		}
	}

	return config, nil
}
