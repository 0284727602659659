package lytex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/signalix/licensing/internal/model"
)

// TokenStore persists gateway credentials and tokens.
type TokenStore interface {
	Get(ctx context.Context) (model.SystemConfig, error)
	SaveGatewayTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error
}

// TokenManager hands out gateway bearer tokens and renews them on rejection.
type TokenManager struct {
	client *Client
	store  TokenStore
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes token exchanges so concurrent callers do not renew twice.
	mu sync.Mutex
}

// NewTokenManager creates a token manager backed by store.
func NewTokenManager(client *Client, store TokenStore, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		client: client,
		store:  store,
		logger: logger.With().Str("component", "lytex_tokens").Logger(),
		now:    time.Now,
	}
}

// Token returns the stored access token, obtaining one first if none is stored.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load gateway tokens: %w", err)
	}
	if cfg.LytexAccessToken != "" {
		return cfg.LytexAccessToken, nil
	}
	return m.obtainLocked(ctx, cfg)
}

// ObtainToken performs a full re-authentication with the stored client credentials.
func (m *TokenManager) ObtainToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load gateway credentials: %w", err)
	}
	return m.obtainLocked(ctx, cfg)
}

// RenewToken exchanges the stored refresh token for a new access token.
// Any renewal failure falls back to ObtainToken; the renewal error itself is only logged.
func (m *TokenManager) RenewToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load gateway tokens: %w", err)
	}
	return m.renewLocked(ctx, cfg)
}

// WithAuthRetry runs op with a bearer token. If op fails with a gateway 401/410, the token is
// renewed once and op is retried once. A second failure is returned; an unauthorized second
// failure comes back as *AuthError.
func (m *TokenManager) WithAuthRetry(ctx context.Context, op func(ctx context.Context, token string) error) error {
	token, err := m.Token(ctx)
	if err != nil {
		return err
	}

	err = op(ctx, token)
	if err == nil || !IsUnauthorized(err) {
		return err
	}

	m.logger.Info().Msg("gateway rejected token, renewing")
	fresh, err := m.refreshStale(ctx, token)
	if err != nil {
		return err
	}

	err = op(ctx, fresh)
	if err != nil && IsUnauthorized(err) {
		return asAuthError(err)
	}
	return err
}

// refreshStale renews unless another caller already replaced the stale token.
func (m *TokenManager) refreshStale(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load gateway tokens: %w", err)
	}
	if cfg.LytexAccessToken != "" && cfg.LytexAccessToken != stale {
		return cfg.LytexAccessToken, nil
	}
	return m.renewLocked(ctx, cfg)
}

func (m *TokenManager) renewLocked(ctx context.Context, cfg model.SystemConfig) (string, error) {
	if cfg.LytexRefreshToken == "" {
		m.client.recorder.TokenRefresh("renew", "skipped")
		return m.obtainLocked(ctx, cfg)
	}

	pair, err := m.client.RenewToken(ctx, cfg.LytexAccessToken, cfg.LytexRefreshToken)
	if err != nil {
		m.client.recorder.TokenRefresh("renew", "failed")
		m.logger.Warn().Err(err).Msg("token renewal failed, re-authenticating")
		return m.obtainLocked(ctx, cfg)
	}
	m.client.recorder.TokenRefresh("renew", "ok")

	if err := m.store.SaveGatewayTokens(ctx, pair.AccessToken, pair.RefreshToken, m.now()); err != nil {
		return "", fmt.Errorf("save renewed gateway token: %w", err)
	}
	return pair.AccessToken, nil
}

func (m *TokenManager) obtainLocked(ctx context.Context, cfg model.SystemConfig) (string, error) {
	if cfg.LytexClientID == "" || cfg.LytexClientSecret == "" {
		m.client.recorder.TokenRefresh("obtain", "failed")
		return "", &AuthError{Detail: "gateway client credentials are not configured"}
	}

	pair, err := m.client.ObtainToken(ctx, cfg.LytexClientID, cfg.LytexClientSecret)
	if err != nil {
		m.client.recorder.TokenRefresh("obtain", "failed")
		return "", asAuthError(err)
	}
	m.client.recorder.TokenRefresh("obtain", "ok")

	if err := m.store.SaveGatewayTokens(ctx, pair.AccessToken, pair.RefreshToken, m.now()); err != nil {
		return "", fmt.Errorf("save gateway token: %w", err)
	}
	m.logger.Info().Msg("obtained new gateway token")
	return pair.AccessToken, nil
}
