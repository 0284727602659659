package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/signalix/licensing/internal/model"
)

// SystemConfigRepo defines the interface for the single system_config row
type SystemConfigRepo interface {
	Get(ctx context.Context) (model.SystemConfig, error)
	SaveGatewayTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error
	UpdateDeviceFee(ctx context.Context, feeCents int64) error
	SetGatewayCredentials(ctx context.Context, clientID, clientSecret string) error
}

type systemConfigRepo struct {
	db *sql.DB
}

// NewSystemConfigRepo creates a new SystemConfigRepo instance
func NewSystemConfigRepo(db *sql.DB) SystemConfigRepo {
	return &systemConfigRepo{db: db}
}

// Get returns the system configuration
func (r *systemConfigRepo) Get(ctx context.Context) (model.SystemConfig, error) {
	var c model.SystemConfig
	var accessToken, refreshToken sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT device_fee_cents, lytex_client_id, lytex_client_secret,
		       lytex_access_token, lytex_refresh_token, lytex_token_updated_at, updated_at
		FROM system_config
		WHERE id = 1
	`).Scan(
		&c.DeviceFeeCents,
		&c.LytexClientID,
		&c.LytexClientSecret,
		&accessToken,
		&refreshToken,
		&c.LytexTokenUpdated,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SystemConfig{}, fmt.Errorf("system config: %w", ErrNotFound)
		}
		return model.SystemConfig{}, fmt.Errorf("query system config: %w", err)
	}
	c.LytexAccessToken = accessToken.String
	c.LytexRefreshToken = refreshToken.String
	return c, nil
}

// SaveGatewayTokens stores a refreshed gateway token pair. An empty refresh token keeps the stored one.
func (r *systemConfigRepo) SaveGatewayTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE system_config
		SET lytex_access_token = $1,
		    lytex_refresh_token = COALESCE(NULLIF($2, ''), lytex_refresh_token),
		    lytex_token_updated_at = $3,
		    updated_at = $3
		WHERE id = 1
	`, accessToken, refreshToken, at)
	if err != nil {
		return fmt.Errorf("save gateway tokens: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("system config: %w", ErrNotFound)
	}
	return nil
}

// UpdateDeviceFee sets the monthly device fee in cents
func (r *systemConfigRepo) UpdateDeviceFee(ctx context.Context, feeCents int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE system_config SET device_fee_cents = $1, updated_at = now() WHERE id = 1
	`, feeCents)
	if err != nil {
		return fmt.Errorf("update device fee: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("system config: %w", ErrNotFound)
	}
	return nil
}

// SetGatewayCredentials replaces the client credentials and clears cached tokens
func (r *systemConfigRepo) SetGatewayCredentials(ctx context.Context, clientID, clientSecret string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE system_config
		SET lytex_client_id = $1, lytex_client_secret = $2,
		    lytex_access_token = NULL, lytex_refresh_token = NULL, updated_at = now()
		WHERE id = 1
	`, clientID, clientSecret)
	if err != nil {
		return fmt.Errorf("set gateway credentials: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("system config: %w", ErrNotFound)
	}
	return nil
}
