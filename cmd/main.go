package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"

	"assistbackend/clients"
	"assistbackend/clients/anthropic"
	"assistbackend/clients/oauth"
	slackclient "assistbackend/clients/slack"
	"assistbackend/clients/telegram"
	"assistbackend/clients/whatsapp"
	"assistbackend/config"
	"assistbackend/db"
	"assistbackend/handlers"
	"assistbackend/middleware"
	"assistbackend/models"
	"assistbackend/observability"
	"assistbackend/secrets"
	"assistbackend/services"
	"assistbackend/services/calendar"
	"assistbackend/services/connconfig"
	"assistbackend/services/connections"
	"assistbackend/services/ingestion"
	"assistbackend/services/resolver"
	"assistbackend/services/tokens"
	"assistbackend/usecases"
	"assistbackend/usecases/calendartools"
	"assistbackend/usecases/channels"
)

const appName = "assistbackend"

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     appName,
		LogsURL:     cfg.ServerLogsURL,
	})

	connectionsRepo, closeRepo, err := newConnectionsRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics("assist", registry)

	configMutator := connconfig.NewConfigMutator(connectionsRepo, connconfig.DefaultMaxAttempts, metrics)
	tokenManager := tokens.NewTokenManager(
		connectionsRepo,
		oauth.NewOAuth2Client(cfg.GoogleCalendarConfig.HTTPTimeout),
		cfg.GoogleCalendarConfig,
		metrics,
	)
	calendarClient := calendar.NewCalendarClient(
		tokenManager,
		connectionsRepo,
		configMutator,
		cfg.GoogleCalendarConfig,
		metrics,
	)
	eventResolver := resolver.NewEventResolver(calendarClient, resolver.OptionsFromConfig(cfg.ResolverConfig))
	ingestionService := ingestion.NewIngestionService(configMutator, metrics)
	connectionsService := connections.NewConnectionsService(connectionsRepo, configMutator, calendarClient)

	senders := map[string]clients.ChannelSender{}
	var slackClient *slackclient.SlackClient
	if cfg.TelegramConfig.IsConfigured() {
		senders[models.ProviderTelegram] = telegram.NewTelegramClient(
			cfg.TelegramConfig.APIBaseURL,
			cfg.TelegramConfig.BotToken,
		)
	}
	if cfg.WhatsAppConfig.IsConfigured() {
		senders[models.ProviderWhatsApp] = whatsapp.NewWhatsAppClient(
			cfg.WhatsAppConfig.APIBaseURL,
			cfg.WhatsAppConfig.AccessToken,
			cfg.WhatsAppConfig.PhoneNumberID,
		)
	}
	if cfg.SlackConfig.IsConfigured() {
		slackClient = slackclient.NewSlackClient(cfg.SlackConfig.BotToken)
		senders[models.ProviderSlack] = slackClient
	}

	if err := ensureConnections(ctx, connectionsService, senders); err != nil {
		return err
	}

	var channelsUseCase usecases.ChannelsUseCaseInterface
	if cfg.AnthropicConfig.IsConfigured() {
		channelsUseCase = channels.NewChannelsUseCase(
			ingestionService,
			configMutator,
			connectionsService,
			anthropic.NewAnthropicChatClient(cfg.AnthropicConfig.APIKey, cfg.AnthropicConfig.Model),
			senders,
		)
	} else {
		channelsUseCase = channels.NewUnconfiguredChannelsUseCase()
	}
	toolsUseCase := calendartools.NewCalendarToolsUseCase(calendarClient, eventResolver)

	authMiddleware := middleware.NewClerkAuthMiddleware(cfg.ClerkConfig.SecretKey)
	router := mux.NewRouter()

	if cfg.TelegramConfig.IsConfigured() {
		handlers.NewTelegramWebhookHandler(cfg.TelegramConfig.WebhookSecret, channelsUseCase).SetupEndpoints(router)
	}
	if cfg.WhatsAppConfig.IsConfigured() {
		handlers.NewWhatsAppWebhookHandler(
			cfg.WhatsAppConfig.VerifyToken,
			cfg.WhatsAppConfig.AppSecret,
			channelsUseCase,
		).SetupEndpoints(router)
	}
	if slackClient != nil {
		handlers.NewSlackEventsHandler(
			cfg.SlackConfig.SigningSecret,
			slackBotUserID(ctx, slackClient),
			slackClient,
			channelsUseCase,
		).SetupEndpoints(router)
	}
	handlers.NewCalendarToolsHandler(toolsUseCase).SetupEndpoints(router, authMiddleware)
	handlers.NewIntegrationsHandler(connectionsService).SetupEndpoints(router, authMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler(registry)).Methods("GET")

	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

// newConnectionsRepository picks Postgres when DB_URL is set and the in-memory store otherwise
func newConnectionsRepository(ctx context.Context, cfg *config.AppConfig) (services.ConnectionsRepository, func(), error) {
	if cfg.UsesInMemoryStore() {
		return db.NewInMemoryIntegrationConnectionsRepository(), func() {}, nil
	}

	codec, err := secrets.NewCodec(cfg.SecretsKey)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(ctx, cfg.DatabaseURL, cfg.DatabaseSchema); err != nil {
		return nil, nil, err
	}

	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := dbConn.Close(); err != nil {
			log.Printf("⚠️ Failed to close database connection: %v", err)
		}
	}
	return db.NewPostgresIntegrationConnectionsRepository(dbConn, cfg.DatabaseSchema, codec), closeFn, nil
}

// ensureConnections creates the calendar row and one row per configured channel
func ensureConnections(
	ctx context.Context,
	connectionsService services.ConnectionsService,
	senders map[string]clients.ChannelSender,
) error {
	providers := []string{models.ProviderCalendar}
	for provider := range senders {
		providers = append(providers, provider)
	}

	for _, provider := range providers {
		if _, err := connectionsService.EnsureConnection(ctx, provider); err != nil {
			return fmt.Errorf("failed to ensure %s connection: %w", provider, err)
		}
	}
	return nil
}

func slackBotUserID(ctx context.Context, slackClient *slackclient.SlackClient) string {
	resp, err := slackClient.AuthTestContext(ctx)
	if err != nil {
		log.Printf("⚠️ Failed to look up Slack bot user, mentions of the bot will not be stripped: %v", err)
		return ""
	}
	log.Printf("✅ Slack bot user resolved: %s", resp.UserID)
	return resp.UserID
}

func handleGracefulShutdown(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
