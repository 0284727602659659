// Package lytex is a client for the Lytex payment gateway: token exchange, invoice creation
// and invoice status lookups.
package lytex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// maxDetailBytes caps how much of an error body is kept as GatewayError.Detail.
const maxDetailBytes = 4 << 10

// Recorder receives gateway call outcomes for metrics.
type Recorder interface {
	GatewayRequest(operation, outcome string)
	TokenRefresh(kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) GatewayRequest(string, string) {}
func (nopRecorder) TokenRefresh(string, string)   {}

// Options configures the client.
type Options struct {
	BaseURL string
	// Timeout for HTTP requests (default: 30s). Ignored when HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     zerolog.Logger
}

// Client talks to the gateway REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	recorder Recorder
	logger   zerolog.Logger
}

// NewClient creates a gateway client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		recorder: recorder,
		logger:   opts.Logger.With().Str("component", "lytex").Logger(),
	}
}

// TokenPair is the gateway's token exchange response.
type TokenPair struct {
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	ExpireAt        string `json:"expireAt,omitempty"`
	RefreshExpireAt string `json:"refreshExpireAt,omitempty"`
}

type obtainTokenRequest struct {
	GrantType    string `json:"grantType"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type renewTokenRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ObtainToken exchanges client credentials for a token pair.
func (c *Client) ObtainToken(ctx context.Context, clientID, clientSecret string) (TokenPair, error) {
	var pair TokenPair
	body := obtainTokenRequest{GrantType: "clientCredentials", ClientID: clientID, ClientSecret: clientSecret}
	if _, err := c.do(ctx, "obtain_token", http.MethodPost, "/v2/auth/obtain_token", "", body, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return TokenPair{}, &GatewayError{Operation: "obtain_token", StatusCode: http.StatusOK, Detail: "response has no accessToken"}
	}
	return pair, nil
}

// RenewToken exchanges a refresh token for a new access token.
func (c *Client) RenewToken(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	var pair TokenPair
	body := renewTokenRequest{AccessToken: accessToken, RefreshToken: refreshToken}
	if _, err := c.do(ctx, "renew_token", http.MethodPost, "/v2/auth/renew_token", "", body, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return TokenPair{}, &GatewayError{Operation: "renew_token", StatusCode: http.StatusOK, Detail: "response has no accessToken"}
	}
	return pair, nil
}

// CreateInvoice submits an invoice and returns the gateway's created invoice.
func (c *Client) CreateInvoice(ctx context.Context, token string, req InvoiceRequest) (*Invoice, error) {
	raw, err := c.do(ctx, "create_invoice", http.MethodPost, "/v2/invoices", token, req, nil)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(raw)
}

// GetInvoice fetches an invoice snapshot.
func (c *Client) GetInvoice(ctx context.Context, token, invoiceID string) (*Invoice, error) {
	raw, err := c.do(ctx, "get_invoice", http.MethodGet, "/v2/invoices/"+url.PathEscape(invoiceID), token, nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(raw)
}

// GetInvoiceStatus fetches the payment status of an invoice.
func (c *Client) GetInvoiceStatus(ctx context.Context, token, invoiceID string) (*InvoiceStatus, error) {
	raw, err := c.do(ctx, "invoice_status", http.MethodGet, "/v2/invoices/"+url.PathEscape(invoiceID)+"/status", token, nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizeStatus(invoiceID, raw)
}

// do sends a JSON request and returns the raw response body. Non-2xx responses become *GatewayError.
// When out is non-nil the body is also decoded into it.
func (c *Client) do(ctx context.Context, operation, method, path, token string, body, out any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recorder.GatewayRequest(operation, "transport_error")
		c.logger.Warn().Err(err).Str("operation", operation).Msg("gateway request failed")
		return nil, &GatewayError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.GatewayRequest(operation, "transport_error")
		return nil, &GatewayError{Operation: operation, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug().
		Str("operation", operation).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("gateway response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.recorder.GatewayRequest(operation, statusOutcome(resp.StatusCode))
		return nil, &GatewayError{Operation: operation, StatusCode: resp.StatusCode, Detail: detail(raw, resp.Status)}
	}
	c.recorder.GatewayRequest(operation, "ok")

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return raw, nil
}

func statusOutcome(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusGone:
		return "unauthorized"
	case code >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

func detail(body []byte, status string) string {
	d := strings.TrimSpace(string(body))
	if d == "" {
		return status
	}
	if len(d) > maxDetailBytes {
		d = d[:maxDetailBytes]
	}
	return d
}
