package store

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the token-store configuration.
type Config struct {
	Type      string
	Path      string
	RedisAddr string
	RedisPass string
	RedisDB   int
}

// LoadConfig loads the token-store configuration from environment variables.
func LoadConfig() (*Config, error) {
	storeType := os.Getenv("STORE_TYPE")
	if storeType == "" {
		storeType = "bolt"
	}

	config := &Config{
		Type: storeType,
	}

	switch storeType {
	case "bolt":
		config.Path = os.Getenv("STORE_PATH")
		if config.Path == "" {
			config.Path = "intragate.db"
		}
	case "redis":
		config.RedisAddr = os.Getenv("REDIS_ADDR")
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
		config.RedisPass = os.Getenv("REDIS_PASSWORD")
		dbStr := os.Getenv("REDIS_DB")
		if dbStr == "" {
			config.RedisDB = 0 // default DB
		} else {
			db, err := strconv.Atoi(dbStr)
			if err != nil {
				return nil, fmt.Errorf("invalid REDIS_DB value: %v", err)
			}
			config.RedisDB = db
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_TYPE: %s", storeType)
	}

	return config, nil
}
