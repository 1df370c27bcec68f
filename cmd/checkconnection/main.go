package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"assistbackend/clients/oauth"
	"assistbackend/config"
	"assistbackend/db"
	"assistbackend/middleware"
	"assistbackend/models"
	"assistbackend/observability"
	"assistbackend/secrets"
	"assistbackend/services/calendar"
	"assistbackend/services/connconfig"
	"assistbackend/services/connections"
	"assistbackend/services/tokens"
)

func main() {
	log.Printf("🩺 Starting calendar connection check...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	if cfg.UsesInMemoryStore() {
		log.Fatalf("❌ DB_URL is required, the in-memory store has no connection to check")
	}

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "assistbackend-checkconnection",
		LogsURL:     cfg.ServerLogsURL,
	})

	task := alertMiddleware.WrapBackgroundTask("checkconnection", func() error {
		return checkConnection(context.Background(), cfg)
	})
	if err := task(); err != nil {
		log.Printf("❌ Calendar connection check failed: %v", err)
		os.Exit(1)
	}
}

func checkConnection(ctx context.Context, cfg *config.AppConfig) error {
	codec, err := secrets.NewCodec(cfg.SecretsKey)
	if err != nil {
		return err
	}
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	// The job is short-lived so its counters are never scraped
	metrics := observability.NewMetrics("assist_checkconnection", prometheus.NewRegistry())

	repo := db.NewPostgresIntegrationConnectionsRepository(dbConn, cfg.DatabaseSchema, codec)
	tokenManager := tokens.NewTokenManager(
		repo,
		oauth.NewOAuth2Client(cfg.GoogleCalendarConfig.HTTPTimeout),
		cfg.GoogleCalendarConfig,
		metrics,
	)
	mutator := connconfig.NewConfigMutator(repo, connconfig.DefaultMaxAttempts, metrics)
	calendarClient := calendar.NewCalendarClient(tokenManager, repo, mutator, cfg.GoogleCalendarConfig, metrics)
	connectionsService := connections.NewConnectionsService(repo, mutator, calendarClient)

	before, err := connectionsService.GetConnection(ctx, models.ProviderCalendar)
	if err != nil {
		return fmt.Errorf("failed to load calendar connection: %w", err)
	}
	if existing, ok := before.Get(); ok && existing.TokenExpiresAt != nil {
		log.Printf("🔄 Current calendar token expires in %v", time.Until(*existing.TokenExpiresAt).Round(time.Minute))
	}

	conn, err := connectionsService.CheckHealth(ctx, models.ProviderCalendar)
	if err != nil {
		return fmt.Errorf("failed to check calendar connection: %w", err)
	}

	log.Printf("✅ Calendar connection check completed!")
	log.Printf("📊 Summary:")
	log.Printf("   - Status: %s", conn.Status)
	if conn.TokenExpiresAt != nil {
		log.Printf("   - Token expires at: %s", conn.TokenExpiresAt.Format(time.RFC3339))
	}
	if conn.LastError != nil {
		log.Printf("   - Last error: %s", *conn.LastError)
	}

	if conn.Status != models.ConnectionStatusConnected {
		return fmt.Errorf("calendar connection is %s", conn.Status)
	}
	return nil
}
