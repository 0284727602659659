// Package billing implements device license billing: proportional fee calculation, license
// invoice requests against the payment gateway and license registration.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/lytex"
	"github.com/signalix/licensing/internal/model"
	"github.com/signalix/licensing/internal/repo"
)

// LicenseDuration is how long a registered license keeps a device licensed.
const LicenseDuration = 30 * 24 * time.Hour

// invoiceDueDays is how far out a license invoice falls due.
const invoiceDueDays = 30

// Gateway is the subset of the payment gateway client used for licensing.
type Gateway interface {
	CreateInvoice(ctx context.Context, token string, req lytex.InvoiceRequest) (*lytex.Invoice, error)
	GetInvoice(ctx context.Context, token, invoiceID string) (*lytex.Invoice, error)
	GetInvoiceStatus(ctx context.Context, token, invoiceID string) (*lytex.InvoiceStatus, error)
}

// Authorizer runs gateway calls with a bearer token, renewing it once on rejection.
type Authorizer interface {
	WithAuthRetry(ctx context.Context, op func(ctx context.Context, token string) error) error
}

// Recorder receives licensing outcomes for metrics.
type Recorder interface {
	LicenseRegistered(outcome string)
	LicensesExpired(n int64)
}

type nopRecorder struct{}

func (nopRecorder) LicenseRegistered(string) {}
func (nopRecorder) LicensesExpired(int64)    {}

// Deps are the collaborators of Service.
type Deps struct {
	Users        repo.UserRepo
	Devices      repo.DeviceRepo
	Licenses     repo.LicenseRepo
	SystemConfig repo.SystemConfigRepo
	Gateway      Gateway
	Tokens       Authorizer
	Location     *time.Location
	Recorder     Recorder
	Logger       zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service orchestrates the license billing workflow
type Service struct {
	users    repo.UserRepo
	devices  repo.DeviceRepo
	licenses repo.LicenseRepo
	config   repo.SystemConfigRepo
	gateway  Gateway
	tokens   Authorizer
	loc      *time.Location
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new billing service
func NewService(d Deps) *Service {
	s := &Service{
		users:    d.Users,
		devices:  d.Devices,
		licenses: d.Licenses,
		config:   d.SystemConfig,
		gateway:  d.Gateway,
		tokens:   d.Tokens,
		loc:      d.Location,
		recorder: d.Recorder,
		logger:   d.Logger.With().Str("component", "billing").Logger(),
		now:      d.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// InvoiceResult is the outcome of a license invoice request
type InvoiceResult struct {
	InvoiceID string         `json:"invoiceId"`
	Quote     Quote          `json:"quote"`
	Invoice   *lytex.Invoice `json:"invoice"`
}

// Registration is the outcome of RegisterLicense
type Registration struct {
	License model.DeviceLicense
	Created bool
}

// DeviceFor returns the device if actor may act on it. Devices owned by someone else are
// reported as not found unless actor is an admin.
func (s *Service) DeviceFor(ctx context.Context, actor model.User, deviceID uuid.UUID) (model.Device, error) {
	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return model.Device{}, err
	}
	if !actor.IsAdmin() && device.UserID != actor.ID {
		return model.Device{}, &NotFoundError{Resource: "device", ID: deviceID.String()}
	}
	return device, nil
}

// Quote previews the license invoice amount for a device
func (s *Service) Quote(ctx context.Context, deviceID uuid.UUID) (Quote, error) {
	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return Quote{}, err
	}
	owner, err := s.loadOwner(ctx, device.UserID)
	if err != nil {
		return Quote{}, err
	}
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return Quote{}, err
	}
	return NewQuote(cfg.DeviceFeeCents, anchorDay(owner), s.now().In(s.loc)), nil
}

// RequestInvoice creates a gateway invoice for a device license. proportionalCents is the
// caller's proportional value; nil or zero recomputes it from the owner's anchor day. A supplied
// value is raised to MinimumCharge.
func (s *Service) RequestInvoice(ctx context.Context, deviceID uuid.UUID, proportionalCents *int64) (*InvoiceResult, error) {
	if proportionalCents != nil && *proportionalCents < 0 {
		return nil, &ValidationError{Field: "proportionalValue", Message: "must not be negative"}
	}

	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	owner, err := s.loadOwner(ctx, device.UserID)
	if err != nil {
		return nil, err
	}
	identity := onlyDigits(owner.CPFCNPJ)
	if identity == "" {
		return nil, &ValidationError{Field: "cpfCnpj", Message: "device owner has no CPF/CNPJ"}
	}

	now := s.now().In(s.loc)
	var quote Quote
	if proportionalCents != nil && *proportionalCents > 0 {
		quote = quoteFor(max(*proportionalCents, ToCents(MinimumCharge)))
	} else {
		cfg, err := s.loadConfig(ctx)
		if err != nil {
			return nil, err
		}
		quote = NewQuote(cfg.DeviceFeeCents, anchorDay(owner), now)
	}

	req := lytex.InvoiceRequest{
		Client: lytex.InvoiceClient{
			Type:      ClientType(identity),
			Name:      owner.Name,
			CPFCNPJ:   identity,
			Email:     owner.Email,
			Cellphone: onlyDigits(owner.PhoneNumber),
		},
		Items: []lytex.InvoiceItem{{
			Name:     fmt.Sprintf("Licença de dispositivo - %s", device.DeviceName),
			Quantity: 1,
			Value:    quote.TotalCents,
		}},
		DueDate: DueDate(now),
		PaymentMethods: lytex.PaymentMethods{
			Pix:        lytex.MethodToggle{Enable: true},
			Boleto:     lytex.MethodToggle{Enable: true},
			CreditCard: lytex.MethodToggle{Enable: false},
		},
		ReferenceID: device.ID.String(),
	}

	var invoice *lytex.Invoice
	err = s.tokens.WithAuthRetry(ctx, func(ctx context.Context, token string) error {
		inv, err := s.gateway.CreateInvoice(ctx, token, req)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("device_id", device.ID.String()).Msg("license invoice request failed")
		return nil, fmt.Errorf("create license invoice: %w", err)
	}

	s.logger.Info().
		Str("device_id", device.ID.String()).
		Str("invoice_id", invoice.ID).
		Int64("total_cents", quote.TotalCents).
		Msg("license invoice created")

	return &InvoiceResult{InvoiceID: invoice.ID, Quote: quote, Invoice: invoice}, nil
}

// GetInvoice returns the gateway's snapshot of a device's license invoice. Invoices issued for
// another device are reported as not found.
func (s *Service) GetInvoice(ctx context.Context, deviceID uuid.UUID, invoiceID string) (*lytex.Invoice, error) {
	invoiceID, err := requireInvoiceID(invoiceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	var invoice *lytex.Invoice
	err = s.tokens.WithAuthRetry(ctx, func(ctx context.Context, token string) error {
		inv, err := s.deviceInvoice(ctx, token, deviceID, invoiceID)
		if err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get license invoice: %w", err)
	}
	return invoice, nil
}

// CheckStatus fetches an invoice's payment status and stamps the device's last license check
func (s *Service) CheckStatus(ctx context.Context, deviceID uuid.UUID, invoiceID string) (*lytex.InvoiceStatus, error) {
	invoiceID, err := requireInvoiceID(invoiceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	status, err := s.invoiceStatus(ctx, deviceID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("check license invoice status: %w", err)
	}

	if err := s.devices.TouchLicenseCheck(ctx, deviceID, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("device_id", deviceID.String()).Msg("failed to record license check")
	}
	return status, nil
}

// RegisterLicense records a license for a paid invoice. Registering the same (device, invoice)
// pair again returns the existing record. A new pair is only licensed once the gateway reports
// the invoice paid and issued for this device.
func (s *Service) RegisterLicense(ctx context.Context, deviceID uuid.UUID, invoiceID string, paymentData json.RawMessage) (*Registration, error) {
	invoiceID, err := requireInvoiceID(invoiceID)
	if err != nil {
		return nil, err
	}
	if len(paymentData) > 0 && !json.Valid(paymentData) {
		return nil, &ValidationError{Field: "paymentData", Message: "must be valid JSON"}
	}
	if _, err := s.loadDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	existing, err := s.licenses.FindByDeviceAndInvoice(ctx, deviceID, invoiceID)
	if err == nil {
		s.recorder.LicenseRegistered("existing")
		return &Registration{License: existing, Created: false}, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("look up license: %w", err)
	}

	status, err := s.invoiceStatus(ctx, deviceID, invoiceID)
	if err != nil {
		s.recorder.LicenseRegistered("error")
		return nil, fmt.Errorf("verify license invoice: %w", err)
	}
	if !status.Paid {
		s.recorder.LicenseRegistered("unpaid")
		s.logger.Warn().
			Str("device_id", deviceID.String()).
			Str("invoice_id", invoiceID).
			Str("status", status.Status).
			Msg("license registration for unpaid invoice rejected")
		return nil, &ValidationError{Field: "invoiceId", Message: fmt.Sprintf("invoice is not paid (status %q)", status.Status)}
	}

	now := s.now()
	license, created, err := s.licenses.Activate(ctx, deviceID, invoiceID, paymentData, now.Add(LicenseDuration), now)
	if err != nil {
		s.recorder.LicenseRegistered("error")
		if errors.Is(err, repo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "device", ID: deviceID.String(), Err: err}
		}
		return nil, fmt.Errorf("register license: %w", err)
	}

	if created {
		s.recorder.LicenseRegistered("created")
		s.logger.Info().
			Str("device_id", deviceID.String()).
			Str("invoice_id", invoiceID).
			Time("expires_at", license.ExpiresAt).
			Msg("device licensed")
	} else {
		s.recorder.LicenseRegistered("existing")
	}
	return &Registration{License: license, Created: created}, nil
}

// ListLicenses returns a device's license history, newest first
func (s *Service) ListLicenses(ctx context.Context, deviceID uuid.UUID) ([]model.DeviceLicense, error) {
	if _, err := s.loadDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	licenses, err := s.licenses.ListByDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	return licenses, nil
}

// UpdateDeviceFee sets the monthly device fee
func (s *Service) UpdateDeviceFee(ctx context.Context, feeCents int64) error {
	if feeCents <= 0 {
		return &ValidationError{Field: "deviceFee", Message: "must be positive"}
	}
	if err := s.config.UpdateDeviceFee(ctx, feeCents); err != nil {
		return s.configErr(err)
	}
	return nil
}

// SetGatewayCredentials replaces the gateway client credentials
func (s *Service) SetGatewayCredentials(ctx context.Context, clientID, clientSecret string) error {
	clientID, clientSecret = strings.TrimSpace(clientID), strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return &ValidationError{Field: "clientId", Message: "clientId and clientSecret are required"}
	}
	if err := s.config.SetGatewayCredentials(ctx, clientID, clientSecret); err != nil {
		return s.configErr(err)
	}
	return nil
}

// deviceInvoice fetches an invoice and hides it unless it was issued for deviceID.
func (s *Service) deviceInvoice(ctx context.Context, token string, deviceID uuid.UUID, invoiceID string) (*lytex.Invoice, error) {
	inv, err := s.gateway.GetInvoice(ctx, token, invoiceID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(inv.ReferenceID, deviceID.String()) {
		return nil, &NotFoundError{Resource: "invoice", ID: invoiceID}
	}
	return inv, nil
}

func (s *Service) invoiceStatus(ctx context.Context, deviceID uuid.UUID, invoiceID string) (*lytex.InvoiceStatus, error) {
	var status *lytex.InvoiceStatus
	err := s.tokens.WithAuthRetry(ctx, func(ctx context.Context, token string) error {
		if _, err := s.deviceInvoice(ctx, token, deviceID, invoiceID); err != nil {
			return err
		}
		st, err := s.gateway.GetInvoiceStatus(ctx, token, invoiceID)
		if err != nil {
			return err
		}
		status = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *Service) loadDevice(ctx context.Context, id uuid.UUID) (model.Device, error) {
	if id == uuid.Nil {
		return model.Device{}, &ValidationError{Field: "deviceId", Message: "is required"}
	}
	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Device{}, &NotFoundError{Resource: "device", ID: id.String(), Err: err}
		}
		return model.Device{}, fmt.Errorf("load device: %w", err)
	}
	return device, nil
}

func (s *Service) loadOwner(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, &NotFoundError{Resource: "user", ID: id.String(), Err: err}
		}
		return model.User{}, fmt.Errorf("load device owner: %w", err)
	}
	return user, nil
}

func (s *Service) loadConfig(ctx context.Context) (model.SystemConfig, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return model.SystemConfig{}, s.configErr(err)
	}
	return cfg, nil
}

func (s *Service) configErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return &NotFoundError{Resource: "system config", Err: err}
	}
	return fmt.Errorf("system config: %w", err)
}

func requireInvoiceID(invoiceID string) (string, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return "", &ValidationError{Field: "invoiceId", Message: "is required"}
	}
	return invoiceID, nil
}

func anchorDay(u model.User) int {
	if u.DayOfPayment == nil {
		return 0
	}
	return *u.DayOfPayment
}

// ClientType derives the billed party's nature from its identity digits:
// 11 digits is an individual (CPF), 14 an organization (CNPJ). Anything else defaults to individual.
func ClientType(identity string) string {
	if len(onlyDigits(identity)) == 14 {
		return lytex.ClientTypeOrganization
	}
	return lytex.ClientTypeIndividual
}

// DueDate is the end of the day invoiceDueDays after now, in now's location.
func DueDate(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+invoiceDueDays, 23, 59, 59, 0, now.Location())
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
