package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultGoogleTokenURL       = "https://oauth2.googleapis.com/token"
	DefaultGoogleCalendarAPIURL = "https://www.googleapis.com/calendar/v3"
	DefaultManagedCalendarName  = "Assistant"
	DefaultMatchThreshold       = 0.5
	DefaultCandidateThreshold   = 0.2
)

type GoogleCalendarConfig struct {
	ClientID            string
	ClientSecret        string
	TokenURL            string
	APIBaseURL          string
	ManagedCalendarName string
	HTTPTimeout         time.Duration
}

// IsConfigured returns true if the OAuth client used for token refresh is present.
// A per-connection clientId/clientSecret override can still make a connection usable without it.
func (c GoogleCalendarConfig) IsConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
	APIBaseURL    string
}

// IsConfigured returns true if all required Telegram configuration is present
func (c TelegramConfig) IsConfigured() bool {
	return c.BotToken != "" && c.WebhookSecret != ""
}

type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	APIBaseURL    string
}

// IsConfigured returns true if all required WhatsApp configuration is present
func (c WhatsAppConfig) IsConfigured() bool {
	return c.AccessToken != "" &&
		c.PhoneNumberID != "" &&
		c.VerifyToken != "" &&
		c.AppSecret != ""
}

type SlackConfig struct {
	BotToken        string
	SigningSecret   string
	AlertWebhookURL string
}

// IsConfigured returns true if the Slack channel adapter can run.
// AlertWebhookURL is optional and only drives error alerts.
func (c SlackConfig) IsConfigured() bool {
	return c.BotToken != "" && c.SigningSecret != ""
}

type ClerkConfig struct {
	SecretKey string
}

// IsConfigured returns true if all required Clerk configuration is present
func (c ClerkConfig) IsConfigured() bool {
	return c.SecretKey != ""
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

// IsConfigured returns true if the chat core stand-in can call Anthropic
func (c AnthropicConfig) IsConfigured() bool {
	return c.APIKey != ""
}

type ResolverConfig struct {
	MatchThreshold     float64
	CandidateThreshold float64
}

type AppConfig struct {
	// Core configuration
	DatabaseURL        string // Empty selects the in-memory connection store
	DatabaseSchema     string
	Port               string
	CORSAllowedOrigins string
	Environment        string
	ServerLogsURL      string
	SecretsKey         string
	UseStrictConfig    bool // If true, error when any integration is not fully configured

	GoogleCalendarConfig GoogleCalendarConfig
	TelegramConfig       TelegramConfig
	WhatsAppConfig       WhatsAppConfig
	SlackConfig          SlackConfig
	ClerkConfig          ClerkConfig
	AnthropicConfig      AnthropicConfig
	ResolverConfig       ResolverConfig
}

// UsesInMemoryStore reports whether connections are kept in process memory
func (c *AppConfig) UsesInMemoryStore() bool {
	return c.DatabaseURL == ""
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ Could not load .env file, continuing with system env vars")
	}

	httpTimeoutSeconds, err := getEnvInt("CALENDAR_HTTP_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	matchThreshold, err := getEnvFloat("RESOLVER_MATCH_THRESHOLD", DefaultMatchThreshold)
	if err != nil {
		return nil, err
	}
	candidateThreshold, err := getEnvFloat("RESOLVER_CANDIDATE_THRESHOLD", DefaultCandidateThreshold)
	if err != nil {
		return nil, err
	}
	if candidateThreshold > matchThreshold {
		return nil, fmt.Errorf("RESOLVER_CANDIDATE_THRESHOLD (%v) must not exceed RESOLVER_MATCH_THRESHOLD (%v)",
			candidateThreshold, matchThreshold)
	}

	config := &AppConfig{
		DatabaseURL:        os.Getenv("DB_URL"),
		DatabaseSchema:     getEnvWithDefault("DB_SCHEMA", "public"),
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		ServerLogsURL:      getEnvWithDefault("SERVER_LOGS_URL", ""),
		SecretsKey:         os.Getenv("SECRETS_KEY"),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "false") == "true",

		GoogleCalendarConfig: GoogleCalendarConfig{
			ClientID:            os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:        os.Getenv("GOOGLE_CLIENT_SECRET"),
			TokenURL:            getEnvWithDefault("GOOGLE_TOKEN_URL", DefaultGoogleTokenURL),
			APIBaseURL:          getEnvWithDefault("GOOGLE_CALENDAR_API_URL", DefaultGoogleCalendarAPIURL),
			ManagedCalendarName: getEnvWithDefault("MANAGED_CALENDAR_NAME", DefaultManagedCalendarName),
			HTTPTimeout:         time.Duration(httpTimeoutSeconds) * time.Second,
		},

		TelegramConfig: TelegramConfig{
			BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
			WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			APIBaseURL:    getEnvWithDefault("TELEGRAM_API_URL", "https://api.telegram.org"),
		},

		WhatsAppConfig: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			AppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),
			APIBaseURL:    getEnvWithDefault("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		},

		SlackConfig: SlackConfig{
			BotToken:        os.Getenv("SLACK_BOT_TOKEN"),
			SigningSecret:   os.Getenv("SLACK_SIGNING_SECRET"),
			AlertWebhookURL: os.Getenv("SLACK_ALERT_WEBHOOK_URL"),
		},

		ClerkConfig: ClerkConfig{
			SecretKey: os.Getenv("CLERK_SECRET_KEY"),
		},

		AnthropicConfig: AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  getEnvWithDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		},

		ResolverConfig: ResolverConfig{
			MatchThreshold:     matchThreshold,
			CandidateThreshold: candidateThreshold,
		},
	}

	if config.UsesInMemoryStore() {
		log.Printf("⚠️ DB_URL not set - connections are kept in memory and lost on restart")
	}
	if config.SecretsKey == "" {
		log.Printf("⚠️ SECRETS_KEY not set - connection secrets are stored unencrypted")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("SECRETS_KEY is not set (USE_STRICT_CONFIG=true)")
		}
	}

	integrations := []struct {
		name       string
		configured bool
	}{
		{"Google Calendar", config.GoogleCalendarConfig.IsConfigured()},
		{"Telegram", config.TelegramConfig.IsConfigured()},
		{"WhatsApp", config.WhatsAppConfig.IsConfigured()},
		{"Slack", config.SlackConfig.IsConfigured()},
		{"Clerk", config.ClerkConfig.IsConfigured()},
		{"Anthropic", config.AnthropicConfig.IsConfigured()},
	}
	for _, integration := range integrations {
		if integration.configured {
			log.Printf("✅ %s integration configured", integration.name)
			continue
		}
		log.Printf("⚠️ %s integration not configured - its features will be disabled", integration.name)
		if config.UseStrictConfig {
			return nil, fmt.Errorf("%s integration is not fully configured (USE_STRICT_CONFIG=true)", integration.name)
		}
	}

	return config, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return parsed, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return 0, fmt.Errorf("%s must be a number in [0,1], got %q", key, value)
	}
	return parsed, nil
}
