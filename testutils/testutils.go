package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"assistbackend/config"
	"assistbackend/core"
	"assistbackend/db"
	"assistbackend/models"
)

// LoadTestConfig loads configuration for tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From a package directory
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
	}, nil
}

// OpenTestDatabase connects to the test database and applies migrations.
// Tests are skipped when no test database is configured.
func OpenTestDatabase(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	cfg, err := LoadTestConfig()
	if err != nil {
		t.Skipf("skipping database test: %v", err)
	}

	require.NoError(t, db.RunMigrations(context.Background(), cfg.DatabaseURL, cfg.DatabaseSchema))

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { dbConn.Close() })

	return dbConn, cfg.DatabaseSchema
}

// UniqueProvider returns a provider name that does not collide across test runs
func UniqueProvider(base string) string {
	return base + "-" + core.NewID("t")
}

// CreateTestConnection builds a connected calendar-style connection with the given tokens
func CreateTestConnection(provider, accessToken, refreshToken string, expiresAt *time.Time) *models.IntegrationConnection {
	conn := &models.IntegrationConnection{
		Provider:       provider,
		Status:         models.ConnectionStatusConnected,
		TokenExpiresAt: expiresAt,
		Config:         models.ConnectionConfig{},
	}
	if accessToken != "" {
		conn.AccessToken = &accessToken
	}
	if refreshToken != "" {
		conn.RefreshToken = &refreshToken
	}
	return conn
}
