package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hive-tools/intragate/internal/notifications"
	"github.com/hive-tools/intragate/internal/store"
	"github.com/hive-tools/intragate/internal/webserver"
	"github.com/hive-tools/intragate/pkg/auth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Logrus
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found. Proceeding with environment variables.")
	}

	// Initialize the token store
	storeConfig, err := store.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load store configuration: %v", err)
	}

	var db auth.Database
	switch storeConfig.Type {
	case "bolt":
		boltStore, err := store.NewBoltStore(storeConfig.Path)
		if err != nil {
			logger.Fatalf("Failed to initialize bolt store: %v", err)
		}
		defer boltStore.Close()
		db = boltStore
		logger.Info("Bolt store initialized successfully")
	case "redis":
		redisStore, err := store.NewRedisStore(storeConfig.RedisAddr, storeConfig.RedisPass, storeConfig.RedisDB)
		if err != nil {
			logger.Fatalf("Failed to initialize redis store: %v", err)
		}
		defer redisStore.Close()
		db = redisStore
		logger.Info("Redis store initialized successfully")
	default:
		logger.Fatalf("Unsupported store type: %s", storeConfig.Type)
	}

	// Initialize Auth Config
	authConfig, err := auth.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to initialize auth config: %v", err)
	}

	logger.Infof("Auth type: %v", authConfig.AuthType)
	for _, provider := range authConfig.Providers {
		logger.Infof("Auth provider: %s", provider.Name())
	}

	// Initialize Auth Handler
	authHandler := auth.NewHandler(authConfig, db, logger)

	// Initialize sign-in notifications (optional)
	notificationCfg, err := notifications.LoadNotificationConfig()
	if err != nil {
		logger.Fatalf("Failed to load notification configuration: %v", err)
	}
	notifier, err := notifications.NewNotifier(notificationCfg)
	if err != nil {
		logger.Fatalf("Failed to initialize notifier: %v", err)
	}
	if notifier != nil {
		authHandler.Notifier = notifier
		logger.Info("Notifier initialized successfully")
	}

	// Start the web server
	wsConfig, err := webserver.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load webserver configuration: %v", err)
	}
	ws := webserver.NewWebServer(wsConfig, authConfig, authHandler, logger)
	server, err := webserver.StartWebServer(ctx, ws)
	if err != nil {
		logger.Fatalf("Failed to start web server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
	logger.Info("Server stopped")
}
