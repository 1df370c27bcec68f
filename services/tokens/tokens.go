package tokens

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"assistbackend/clients"
	"assistbackend/config"
	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/observability"
	"assistbackend/services"
)

// RefreshLeeway is how close to expiry a token is proactively refreshed
const RefreshLeeway = 60 * time.Second

const defaultCalendarID = "primary"

type TokenManager struct {
	connectionsRepo services.ConnectionsRepository
	oauthClient     clients.OAuthClient
	googleConfig    config.GoogleCalendarConfig
	metrics         *observability.Metrics
	now             func() time.Time
}

func NewTokenManager(
	connectionsRepo services.ConnectionsRepository,
	oauthClient clients.OAuthClient,
	googleConfig config.GoogleCalendarConfig,
	metrics *observability.Metrics,
) *TokenManager {
	return &TokenManager{
		connectionsRepo: connectionsRepo,
		oauthClient:     oauthClient,
		googleConfig:    googleConfig,
		metrics:         metrics,
		now:             time.Now,
	}
}

// GetValidContext returns the credential for the calendar connection, refreshing it first
// when it expires within RefreshLeeway and a refresh token exists.
func (m *TokenManager) GetValidContext(ctx context.Context) (*models.CalendarAuthContext, error) {
	return m.getContext(ctx, true)
}

// GetCheckContext is GetValidContext for health checks: a pending or errored connection that still
// holds an access token is usable, so a successful check can move it back to connected.
func (m *TokenManager) GetCheckContext(ctx context.Context) (*models.CalendarAuthContext, error) {
	return m.getContext(ctx, false)
}

func (m *TokenManager) getContext(ctx context.Context, requireConnected bool) (*models.CalendarAuthContext, error) {
	maybeConn, err := m.connectionsRepo.GetConnectionByProvider(ctx, models.ProviderCalendar)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar connection: %w", err)
	}
	if !maybeConn.IsPresent() {
		return nil, fmt.Errorf("calendar connection does not exist: %w", core.ErrNotConnected)
	}
	conn := maybeConn.MustGet()

	if conn.Status == models.ConnectionStatusDisconnected ||
		(requireConnected && conn.Status != models.ConnectionStatusConnected) {
		return nil, fmt.Errorf("calendar connection is %s: %w", conn.Status, core.ErrNotConnected)
	}
	if !conn.HasAccessToken() {
		return nil, fmt.Errorf("calendar connection has no access token: %w", core.ErrNotConnected)
	}

	authCtx := m.buildContext(conn)
	if authCtx.ExpiresAt == nil || authCtx.ExpiresAt.Sub(m.now()) > RefreshLeeway {
		return authCtx, nil
	}

	if authCtx.RefreshToken == "" {
		if !authCtx.ExpiresAt.After(m.now()) {
			return nil, fmt.Errorf("access token expired and no refresh token is stored: %w", core.ErrAuth)
		}
		return authCtx, nil
	}

	log.Printf("🔄 Calendar access token expires at %s, refreshing proactively", authCtx.ExpiresAt.Format(time.RFC3339))
	return m.refresh(ctx, authCtx, "proactive")
}

// Refresh exchanges the refresh token for a new access token and persists the result.
// On failure the connection row is left untouched.
func (m *TokenManager) Refresh(
	ctx context.Context,
	authCtx *models.CalendarAuthContext,
) (*models.CalendarAuthContext, error) {
	return m.refresh(ctx, authCtx, "reactive")
}

func (m *TokenManager) refresh(
	ctx context.Context,
	authCtx *models.CalendarAuthContext,
	trigger string,
) (*models.CalendarAuthContext, error) {
	log.Printf("📋 Starting to refresh calendar access token (%s)", trigger)

	if authCtx == nil || authCtx.RefreshToken == "" {
		m.metrics.ObserveTokenRefresh(trigger, "no_refresh_token")
		return nil, fmt.Errorf("no refresh token available: %w", core.ErrAuth)
	}
	if authCtx.ClientID == "" || authCtx.ClientSecret == "" {
		m.metrics.ObserveTokenRefresh(trigger, "failure")
		return nil, fmt.Errorf("OAuth client credentials are not configured for the calendar connection: %w", core.ErrAuth)
	}

	tokens, err := m.oauthClient.RefreshAccessToken(ctx, clients.OAuthRefreshRequest{
		TokenURL:     m.googleConfig.TokenURL,
		ClientID:     authCtx.ClientID,
		ClientSecret: authCtx.ClientSecret,
		RefreshToken: authCtx.RefreshToken,
	})
	if err != nil {
		m.metrics.ObserveTokenRefresh(trigger, "failure")
		if errors.Is(err, clients.ErrRefreshRejected) {
			log.Printf("❌ Calendar token refresh rejected by provider: %v", err)
			return nil, fmt.Errorf("%w: %v", core.ErrAuth, err)
		}
		return nil, fmt.Errorf("failed to refresh calendar access token: %w", err)
	}

	// Providers only sometimes rotate the refresh token
	refreshToken := tokens.RefreshToken
	if refreshToken == "" {
		refreshToken = authCtx.RefreshToken
	}

	updated, err := m.connectionsRepo.UpdateConnectionTokens(ctx, models.ProviderCalendar, models.ConnectionTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
	if err != nil {
		m.metrics.ObserveTokenRefresh(trigger, "failure")
		return nil, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	m.metrics.ObserveTokenRefresh(trigger, "success")
	log.Printf("📋 Completed successfully - refreshed calendar access token")
	return m.buildContext(updated), nil
}

// buildContext resolves the per-connection client override against process configuration
func (m *TokenManager) buildContext(conn *models.IntegrationConnection) *models.CalendarAuthContext {
	authCtx := &models.CalendarAuthContext{
		CalendarID:   conn.Config.String(models.ConfigKeyCalendarID),
		ClientID:     conn.Config.String(models.ConfigKeyClientID),
		ClientSecret: conn.Config.String(models.ConfigKeyClientSecret),
	}
	if conn.AccessToken != nil {
		authCtx.AccessToken = *conn.AccessToken
	}
	if conn.RefreshToken != nil {
		authCtx.RefreshToken = *conn.RefreshToken
	}
	if conn.TokenExpiresAt != nil {
		expiresAt := *conn.TokenExpiresAt
		authCtx.ExpiresAt = &expiresAt
	}
	if authCtx.CalendarID == "" {
		authCtx.CalendarID = defaultCalendarID
	}
	if authCtx.ClientID == "" || authCtx.ClientSecret == "" {
		authCtx.ClientID = m.googleConfig.ClientID
		authCtx.ClientSecret = m.googleConfig.ClientSecret
	}
	return authCtx
}
