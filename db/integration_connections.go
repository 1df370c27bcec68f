package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/secrets"
)

type PostgresIntegrationConnectionsRepository struct {
	db     *sqlx.DB
	schema string
	codec  secrets.Codec
}

// Column names for integration_connections table
var integrationConnectionsColumns = []string{
	"id",
	"provider",
	"status",
	"access_token",
	"refresh_token",
	"token_expires_at",
	"config",
	"external_account_id",
	"external_account_label",
	"last_error",
	"last_checked_at",
	"created_at",
	"updated_at",
}

// bumpUpdatedAt makes updated_at strictly advance even when two writes land in the same microsecond
const bumpUpdatedAt = `updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')`

// integrationConnectionRow is the encrypted form of models.IntegrationConnection
type integrationConnectionRow struct {
	ID                   string         `db:"id"`
	Provider             string         `db:"provider"`
	Status               string         `db:"status"`
	AccessToken          sql.NullString `db:"access_token"`
	RefreshToken         sql.NullString `db:"refresh_token"`
	TokenExpiresAt       sql.NullTime   `db:"token_expires_at"`
	Config               string         `db:"config"`
	ExternalAccountID    sql.NullString `db:"external_account_id"`
	ExternalAccountLabel sql.NullString `db:"external_account_label"`
	LastError            sql.NullString `db:"last_error"`
	LastCheckedAt        sql.NullTime   `db:"last_checked_at"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func NewPostgresIntegrationConnectionsRepository(
	db *sqlx.DB,
	schema string,
	codec secrets.Codec,
) *PostgresIntegrationConnectionsRepository {
	return &PostgresIntegrationConnectionsRepository{db: db, schema: schema, codec: codec}
}

func (r *PostgresIntegrationConnectionsRepository) CreateConnection(
	ctx context.Context,
	conn *models.IntegrationConnection,
) error {
	if conn.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if conn.ID == "" {
		conn.ID = core.NewID(core.PrefixConnection)
	}
	if conn.Status == "" {
		conn.Status = models.ConnectionStatusDisconnected
	}

	row, err := r.encode(conn)
	if err != nil {
		return err
	}

	insertColumns := []string{
		"id",
		"provider",
		"status",
		"access_token",
		"refresh_token",
		"token_expires_at",
		"config",
		"external_account_id",
		"external_account_label",
		"last_error",
		"last_checked_at",
		"created_at",
		"updated_at",
	}
	columnsStr := strings.Join(insertColumns, ", ")
	returningStr := strings.Join(integrationConnectionsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.integration_connections (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING %s`, r.schema, columnsStr, returningStr)

	var created integrationConnectionRow
	err = r.db.QueryRowxContext(ctx, query,
		row.ID, row.Provider, row.Status, row.AccessToken, row.RefreshToken, row.TokenExpiresAt,
		row.Config, row.ExternalAccountID, row.ExternalAccountLabel, row.LastError, row.LastCheckedAt).
		StructScan(&created)
	if err != nil {
		return fmt.Errorf("failed to create integration connection: %w", err)
	}

	return r.decodeInto(&created, conn)
}

func (r *PostgresIntegrationConnectionsRepository) GetConnectionByProvider(
	ctx context.Context,
	provider string,
) (mo.Option[*models.IntegrationConnection], error) {
	columnsStr := strings.Join(integrationConnectionsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.integration_connections
		WHERE provider = $1`, columnsStr, r.schema)

	var row integrationConnectionRow
	err := r.db.GetContext(ctx, &row, query, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mo.None[*models.IntegrationConnection](), nil
		}
		return mo.None[*models.IntegrationConnection](), fmt.Errorf("failed to get integration connection: %w", err)
	}

	conn := &models.IntegrationConnection{}
	if err := r.decodeInto(&row, conn); err != nil {
		return mo.None[*models.IntegrationConnection](), err
	}
	return mo.Some(conn), nil
}

func (r *PostgresIntegrationConnectionsRepository) ListConnections(
	ctx context.Context,
) ([]*models.IntegrationConnection, error) {
	columnsStr := strings.Join(integrationConnectionsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.integration_connections
		ORDER BY provider ASC`, columnsStr, r.schema)

	rows := []integrationConnectionRow{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list integration connections: %w", err)
	}

	result := make([]*models.IntegrationConnection, 0, len(rows))
	for i := range rows {
		conn := &models.IntegrationConnection{}
		if err := r.decodeInto(&rows[i], conn); err != nil {
			return nil, err
		}
		result = append(result, conn)
	}
	return result, nil
}

// UpdateConnectionState writes the status, credential, account and health columns and refreshes
// conn with the stored row. The config column is left alone so dedup state and the managed
// calendar id written by concurrent CAS writers survive.
func (r *PostgresIntegrationConnectionsRepository) UpdateConnectionState(
	ctx context.Context,
	conn *models.IntegrationConnection,
) error {
	row, err := r.encode(conn)
	if err != nil {
		return err
	}

	returningStr := strings.Join(integrationConnectionsColumns, ", ")
	query := fmt.Sprintf(`
		UPDATE %s.integration_connections
		SET status = $2,
			access_token = $3,
			refresh_token = $4,
			token_expires_at = $5,
			external_account_id = $6,
			external_account_label = $7,
			last_error = $8,
			last_checked_at = $9,
			%s
		WHERE provider = $1
		RETURNING %s`, r.schema, bumpUpdatedAt, returningStr)

	var updated integrationConnectionRow
	err = r.db.QueryRowxContext(ctx, query,
		row.Provider, row.Status, row.AccessToken, row.RefreshToken, row.TokenExpiresAt,
		row.ExternalAccountID, row.ExternalAccountLabel, row.LastError, row.LastCheckedAt).
		StructScan(&updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("integration connection %s: %w", conn.Provider, core.ErrNotFound)
		}
		return fmt.Errorf("failed to update integration connection: %w", err)
	}

	return r.decodeInto(&updated, conn)
}

// UpdateConnectionTokens stores a new token triple and clears the last error
func (r *PostgresIntegrationConnectionsRepository) UpdateConnectionTokens(
	ctx context.Context,
	provider string,
	tokens models.ConnectionTokens,
) (*models.IntegrationConnection, error) {
	accessToken, err := r.encryptOptional(&tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	refreshToken, err := r.encryptOptional(&tokens.RefreshToken)
	if err != nil {
		return nil, err
	}

	returningStr := strings.Join(integrationConnectionsColumns, ", ")
	query := fmt.Sprintf(`
		UPDATE %s.integration_connections
		SET access_token = $2,
			refresh_token = $3,
			token_expires_at = $4,
			last_error = NULL,
			%s
		WHERE provider = $1
		RETURNING %s`, r.schema, bumpUpdatedAt, returningStr)

	var updated integrationConnectionRow
	err = r.db.QueryRowxContext(ctx, query, provider, accessToken, refreshToken, nullTime(tokens.ExpiresAt)).
		StructScan(&updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("integration connection %s: %w", provider, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update integration connection tokens: %w", err)
	}

	conn := &models.IntegrationConnection{}
	if err := r.decodeInto(&updated, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// UpdateConnectionConfigIfVersion replaces config only while updated_at still equals version.
// It returns false when another writer advanced the row first.
func (r *PostgresIntegrationConnectionsRepository) UpdateConnectionConfigIfVersion(
	ctx context.Context,
	provider string,
	config models.ConnectionConfig,
	version time.Time,
) (bool, error) {
	encodedConfig, err := r.encodeConfig(config)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		UPDATE %s.integration_connections
		SET config = $2,
			%s
		WHERE provider = $1 AND updated_at = $3`, r.schema, bumpUpdatedAt)

	result, err := r.db.ExecContext(ctx, query, provider, encodedConfig, version)
	if err != nil {
		return false, fmt.Errorf("failed to conditionally update integration connection config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *PostgresIntegrationConnectionsRepository) DeleteConnection(ctx context.Context, provider string) error {
	if provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}

	query := fmt.Sprintf(`
		DELETE FROM %s.integration_connections
		WHERE provider = $1`, r.schema)

	result, err := r.db.ExecContext(ctx, query, provider)
	if err != nil {
		return fmt.Errorf("failed to delete integration connection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("integration connection %s: %w", provider, core.ErrNotFound)
	}

	return nil
}

func (r *PostgresIntegrationConnectionsRepository) encode(
	conn *models.IntegrationConnection,
) (*integrationConnectionRow, error) {
	if !conn.Status.IsValid() {
		return nil, fmt.Errorf("invalid connection status: %q", conn.Status)
	}

	accessToken, err := r.encryptOptional(conn.AccessToken)
	if err != nil {
		return nil, err
	}
	refreshToken, err := r.encryptOptional(conn.RefreshToken)
	if err != nil {
		return nil, err
	}
	config, err := r.encodeConfig(conn.Config)
	if err != nil {
		return nil, err
	}

	return &integrationConnectionRow{
		ID:                   conn.ID,
		Provider:             conn.Provider,
		Status:               string(conn.Status),
		AccessToken:          accessToken,
		RefreshToken:         refreshToken,
		TokenExpiresAt:       nullTime(conn.TokenExpiresAt),
		Config:               config,
		ExternalAccountID:    nullString(conn.ExternalAccountID),
		ExternalAccountLabel: nullString(conn.ExternalAccountLabel),
		LastError:            nullString(conn.LastError),
		LastCheckedAt:        nullTime(conn.LastCheckedAt),
	}, nil
}

func (r *PostgresIntegrationConnectionsRepository) decodeInto(
	row *integrationConnectionRow,
	conn *models.IntegrationConnection,
) error {
	accessToken, err := r.decryptOptional(row.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt access token for %s: %w", row.Provider, err)
	}
	refreshToken, err := r.decryptOptional(row.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to decrypt refresh token for %s: %w", row.Provider, err)
	}

	config := models.ConnectionConfig{}
	if row.Config != "" {
		plaintext, err := r.codec.Decrypt(row.Config)
		if err != nil {
			return fmt.Errorf("failed to decrypt config for %s: %w", row.Provider, err)
		}
		if err := json.Unmarshal([]byte(plaintext), &config); err != nil {
			return fmt.Errorf("failed to unmarshal config for %s: %w", row.Provider, err)
		}
	}

	*conn = models.IntegrationConnection{
		ID:                   row.ID,
		Provider:             row.Provider,
		Status:               models.ConnectionStatus(row.Status),
		AccessToken:          accessToken,
		RefreshToken:         refreshToken,
		TokenExpiresAt:       timePtr(row.TokenExpiresAt),
		Config:               config,
		ExternalAccountID:    stringPtr(row.ExternalAccountID),
		ExternalAccountLabel: stringPtr(row.ExternalAccountLabel),
		LastError:            stringPtr(row.LastError),
		LastCheckedAt:        timePtr(row.LastCheckedAt),
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
	return nil
}

func (r *PostgresIntegrationConnectionsRepository) encodeConfig(config models.ConnectionConfig) (string, error) {
	if config == nil {
		config = models.ConnectionConfig{}
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal connection config: %w", err)
	}
	encrypted, err := r.codec.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt connection config: %w", err)
	}
	return encrypted, nil
}

func (r *PostgresIntegrationConnectionsRepository) encryptOptional(value *string) (sql.NullString, error) {
	if value == nil || *value == "" {
		return sql.NullString{}, nil
	}
	encrypted, err := r.codec.Encrypt(*value)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encrypt secret: %w", err)
	}
	return sql.NullString{String: encrypted, Valid: true}, nil
}

func (r *PostgresIntegrationConnectionsRepository) decryptOptional(value sql.NullString) (*string, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	plaintext, err := r.codec.Decrypt(value.String)
	if err != nil {
		return nil, err
	}
	return &plaintext, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
