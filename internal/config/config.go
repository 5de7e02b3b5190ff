// Package config loads the connector configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Data source selection for the Meta Ads gateway.
const (
	DataSourceMock  = "mock"
	DataSourceGraph = "graph"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultPort            = "8080"
	DefaultDataSource      = DataSourceMock
	DefaultSubjectFallback = "claude"
	DefaultAPIVersion      = "v18.0"
	DefaultGraphTimeout    = 15 * time.Second
)

// Config holds all runtime configuration for the server.
type Config struct {
	// Port is the TCP port the HTTP server listens on (PORT).
	Port string

	// BaseURL is the externally visible base URL, used as the OAuth
	// issuer and in discovery documents (BASE_URL).
	BaseURL string

	// JWTSecret signs bearer tokens and authorization codes (JWT_SECRET).
	JWTSecret string

	// DatabaseURL is the SQLite path for the ad-account store. When
	// empty, an in-memory store with demo data is used (DATABASE_URL).
	DatabaseURL string

	// DataSource selects the gateway implementation: "mock" or "graph"
	// (DATA_SOURCE).
	DataSource string

	// DefaultSubject is the subject granted on auto-approved
	// authorization requests (DEFAULT_SUBJECT).
	DefaultSubject string

	// FacebookAppID and FacebookAppSecret belong to the Meta app used
	// for account linking; the secret also enables appsecret_proof on
	// Graph API calls (FACEBOOK_APP_ID, FACEBOOK_APP_SECRET).
	FacebookAppID     string
	FacebookAppSecret string

	// MetaAPIVersion is the Graph API version, e.g. "v18.0"
	// (META_API_VERSION).
	MetaAPIVersion string

	// GraphTimeout bounds each Graph API call (GRAPH_TIMEOUT, seconds).
	GraphTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over .env values.
func Load() (*Config, error) {
	// Ignore a missing .env, it is optional in deployed environments.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnvOr("PORT", DefaultPort),
		BaseURL:           os.Getenv("BASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DataSource:        getEnvOr("DATA_SOURCE", DefaultDataSource),
		DefaultSubject:    getEnvOr("DEFAULT_SUBJECT", DefaultSubjectFallback),
		FacebookAppID:     os.Getenv("FACEBOOK_APP_ID"),
		FacebookAppSecret: os.Getenv("FACEBOOK_APP_SECRET"),
		MetaAPIVersion:    getEnvOr("META_API_VERSION", DefaultAPIVersion),
		GraphTimeout:      DefaultGraphTimeout,
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.DataSource {
	case DataSourceMock, DataSourceGraph:
	default:
		return nil, fmt.Errorf("DATA_SOURCE must be %q or %q, got %q",
			DataSourceMock, DataSourceGraph, cfg.DataSource)
	}

	if v := os.Getenv("GRAPH_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("GRAPH_TIMEOUT must be a positive number of seconds, got %q", v)
		}
		cfg.GraphTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// getEnvOr returns the environment variable value or a default.
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
