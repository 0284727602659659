package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalix/licensing/internal/lytex"
	"github.com/signalix/licensing/internal/model"
	"github.com/signalix/licensing/internal/repo"
)

type fakeUsers struct {
	users map[uuid.UUID]model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, repo.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, u model.User) (model.User, error) {
	u.ID = uuid.New()
	f.users[u.ID] = u
	return u, nil
}

type fakeDevices struct {
	devices map[uuid.UUID]model.Device
}

func (f *fakeDevices) Create(_ context.Context, userID uuid.UUID, name string) (model.Device, error) {
	d := model.Device{ID: uuid.New(), UserID: userID, DeviceName: name}
	f.devices[d.ID] = d
	return d, nil
}

func (f *fakeDevices) GetByID(_ context.Context, id uuid.UUID) (model.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return model.Device{}, fmt.Errorf("device %s: %w", id, repo.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDevices) TouchLicenseCheck(_ context.Context, id uuid.UUID, at time.Time) error {
	d, ok := f.devices[id]
	if !ok {
		return repo.ErrNotFound
	}
	d.LastLicenseCheckAt = &at
	f.devices[id] = d
	return nil
}

func (f *fakeDevices) ExpireLicenses(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, d := range f.devices {
		if d.LicenseActive && d.LicenseExpiresAt != nil && d.LicenseExpiresAt.Before(now) {
			d.LicenseActive = false
			f.devices[id] = d
			n++
		}
	}
	return n, nil
}

type licenseKey struct {
	device  uuid.UUID
	invoice string
}

type fakeLicenses struct {
	devices   *fakeDevices
	licenses  map[licenseKey]model.DeviceLicense
	activates int
}

func (f *fakeLicenses) FindByDeviceAndInvoice(_ context.Context, deviceID uuid.UUID, invoiceID string) (model.DeviceLicense, error) {
	l, ok := f.licenses[licenseKey{deviceID, invoiceID}]
	if !ok {
		return model.DeviceLicense{}, fmt.Errorf("license: %w", repo.ErrNotFound)
	}
	return l, nil
}

func (f *fakeLicenses) Activate(_ context.Context, deviceID uuid.UUID, invoiceID string, data json.RawMessage, expiresAt, now time.Time) (model.DeviceLicense, bool, error) {
	f.activates++
	key := licenseKey{deviceID, invoiceID}
	if l, ok := f.licenses[key]; ok {
		return l, false, nil
	}
	l := model.DeviceLicense{ID: uuid.New(), DeviceID: deviceID, InvoiceID: invoiceID, PaymentData: data, ExpiresAt: expiresAt, CreatedAt: now}
	f.licenses[key] = l

	d := f.devices.devices[deviceID]
	d.LicenseActive = true
	d.LicenseExpiresAt = &expiresAt
	d.LastLicenseCheckAt = &now
	f.devices.devices[deviceID] = d
	return l, true, nil
}

func (f *fakeLicenses) ListByDevice(_ context.Context, deviceID uuid.UUID) ([]model.DeviceLicense, error) {
	out := make([]model.DeviceLicense, 0)
	for k, l := range f.licenses {
		if k.device == deviceID {
			out = append(out, l)
		}
	}
	return out, nil
}

// fakeConfig implements repo.SystemConfigRepo and lytex.TokenStore.
type fakeConfig struct {
	mu  sync.Mutex
	cfg *model.SystemConfig
}

func (f *fakeConfig) Get(context.Context) (model.SystemConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg == nil {
		return model.SystemConfig{}, fmt.Errorf("system config: %w", repo.ErrNotFound)
	}
	return *f.cfg, nil
}

func (f *fakeConfig) SaveGatewayTokens(_ context.Context, access, refresh string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.LytexAccessToken = access
	if refresh != "" {
		f.cfg.LytexRefreshToken = refresh
	}
	f.cfg.LytexTokenUpdated = &at
	return nil
}

func (f *fakeConfig) UpdateDeviceFee(_ context.Context, fee int64) error {
	if f.cfg == nil {
		return repo.ErrNotFound
	}
	f.cfg.DeviceFeeCents = fee
	return nil
}

func (f *fakeConfig) SetGatewayCredentials(_ context.Context, id, secret string) error {
	if f.cfg == nil {
		return repo.ErrNotFound
	}
	f.cfg.LytexClientID, f.cfg.LytexClientSecret = id, secret
	f.cfg.LytexAccessToken, f.cfg.LytexRefreshToken = "", ""
	return nil
}

type fakeGateway struct {
	requests  []lytex.InvoiceRequest
	tokens    []string
	err       error
	status    string
	reference string
	lookups   int
}

func (g *fakeGateway) CreateInvoice(_ context.Context, token string, req lytex.InvoiceRequest) (*lytex.Invoice, error) {
	g.tokens = append(g.tokens, token)
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &lytex.Invoice{ID: "inv_1", Status: "waitingPayment", TotalValueCents: req.Items[0].Value}, nil
}

func (g *fakeGateway) GetInvoice(_ context.Context, token, id string) (*lytex.Invoice, error) {
	g.lookups++
	if g.err != nil {
		return nil, g.err
	}
	return &lytex.Invoice{ID: id, Status: g.status, ReferenceID: g.reference}, nil
}

func (g *fakeGateway) GetInvoiceStatus(_ context.Context, token, id string) (*lytex.InvoiceStatus, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &lytex.InvoiceStatus{InvoiceID: id, Status: g.status, Paid: lytex.IsPaidStatus(g.status)}, nil
}

// passthrough runs op once with a fixed token.
type passthrough struct{}

func (passthrough) WithAuthRetry(ctx context.Context, op func(context.Context, string) error) error {
	return op(ctx, "tok")
}

type recorded struct {
	registered []string
	expired    int64
}

func (r *recorded) LicenseRegistered(outcome string) { r.registered = append(r.registered, outcome) }
func (r *recorded) LicensesExpired(n int64)          { r.expired += n }

type fixture struct {
	svc      *Service
	users    *fakeUsers
	devices  *fakeDevices
	licenses *fakeLicenses
	config   *fakeConfig
	gateway  *fakeGateway
	recorder *recorded
	owner    model.User
	device   model.Device
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	day := 20
	f := &fixture{
		users:    &fakeUsers{users: map[uuid.UUID]model.User{}},
		devices:  &fakeDevices{devices: map[uuid.UUID]model.Device{}},
		config:   &fakeConfig{cfg: &model.SystemConfig{DeviceFeeCents: 5000, LytexClientID: "client", LytexClientSecret: "secret"}},
		gateway:  &fakeGateway{status: "waitingPayment"},
		recorder: &recorded{},
		now:      at(2026, time.October, 25, 10),
	}
	f.licenses = &fakeLicenses{devices: f.devices, licenses: map[licenseKey]model.DeviceLicense{}}

	ctx := context.Background()
	owner, err := f.users.Create(ctx, model.User{
		Name: "Padaria Central", Email: "contato@padaria.test", PhoneNumber: "+55 (11) 98888-7777",
		CPFCNPJ: "123.456.789-01", DayOfPayment: &day, Role: model.RoleClient,
	})
	require.NoError(t, err)
	device, err := f.devices.Create(ctx, owner.ID, "Lobby panel")
	require.NoError(t, err)
	f.owner, f.device = owner, device
	f.gateway.reference = device.ID.String()

	f.svc = NewService(Deps{
		Users:        f.users,
		Devices:      f.devices,
		Licenses:     f.licenses,
		SystemConfig: f.config,
		Gateway:      f.gateway,
		Tokens:       passthrough{},
		Location:     brt,
		Recorder:     f.recorder,
		Logger:       zerolog.Nop(),
		Now:          func() time.Time { return f.now },
	})
	return f
}

func TestRequestInvoice_recomputesProportionalValue(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, "inv_1", res.InvoiceID)
	assert.Equal(t, int64(4333), res.Quote.ProportionalCents)
	assert.Equal(t, int64(4732), res.Quote.TotalCents)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, "pf", req.Client.Type)
	assert.Equal(t, "12345678901", req.Client.CPFCNPJ)
	assert.Equal(t, "5511988887777", req.Client.Cellphone)
	assert.Equal(t, "Padaria Central", req.Client.Name)
	require.Len(t, req.Items, 1)
	assert.Equal(t, int64(4732), req.Items[0].Value)
	assert.Equal(t, 1, req.Items[0].Quantity)
	assert.Equal(t, time.Date(2026, time.November, 24, 23, 59, 59, 0, brt), req.DueDate)
	assert.True(t, req.PaymentMethods.Pix.Enable)
	assert.True(t, req.PaymentMethods.Boleto.Enable)
	assert.False(t, req.PaymentMethods.CreditCard.Enable)
	assert.Equal(t, f.device.ID.String(), req.ReferenceID)
}

func TestRequestInvoice_usesSuppliedProportionalValue(t *testing.T) {
	f := newFixture(t)
	f.config.cfg = nil // must not be needed

	value := int64(1000)
	res, err := f.svc.RequestInvoice(context.Background(), f.device.ID, &value)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), res.Quote.ProportionalCents)
	assert.Equal(t, int64(1399), f.gateway.requests[0].Items[0].Value)
}

func TestRequestInvoice_suppliedValueIsFlooredAtMinimumCharge(t *testing.T) {
	f := newFixture(t)

	value := int64(1)
	res, err := f.svc.RequestInvoice(context.Background(), f.device.ID, &value)
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.Quote.ProportionalCents)
	assert.Equal(t, int64(499), f.gateway.requests[0].Items[0].Value)
}

func TestRequestInvoice_zeroProportionalValueFallsBack(t *testing.T) {
	f := newFixture(t)

	value := int64(0)
	res, err := f.svc.RequestInvoice(context.Background(), f.device.ID, &value)
	require.NoError(t, err)
	assert.Equal(t, int64(4732), res.Quote.TotalCents)
}

func TestRequestInvoice_absentAnchorChargesFullFee(t *testing.T) {
	f := newFixture(t)
	owner := f.users.users[f.owner.ID]
	owner.DayOfPayment = nil
	f.users.users[f.owner.ID] = owner

	res, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Quote.ProportionalCents)
	assert.Equal(t, int64(5399), f.gateway.requests[0].Items[0].Value)
}

func TestRequestInvoice_organizationOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.users.users[f.owner.ID]
	owner.CPFCNPJ = "12.345.678/0001-99"
	f.users.users[f.owner.ID] = owner

	_, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "pj", f.gateway.requests[0].Client.Type)
}

func TestRequestInvoice_errors(t *testing.T) {
	t.Run("negative proportional value", func(t *testing.T) {
		f := newFixture(t)
		value := int64(-1)
		_, err := f.svc.RequestInvoice(context.Background(), f.device.ID, &value)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "proportionalValue", vErr.Field)
	})

	t.Run("nil device id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RequestInvoice(context.Background(), uuid.Nil, nil)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown device", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RequestInvoice(context.Background(), uuid.New(), nil)
		var nfErr *NotFoundError
		require.ErrorAs(t, err, &nfErr)
		assert.Equal(t, "device", nfErr.Resource)
		assert.ErrorIs(t, err, repo.ErrNotFound)
	})

	t.Run("owner without identity", func(t *testing.T) {
		f := newFixture(t)
		owner := f.users.users[f.owner.ID]
		owner.CPFCNPJ = ""
		f.users.users[f.owner.ID] = owner
		_, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "cpfCnpj", vErr.Field)
	})

	t.Run("missing system config", func(t *testing.T) {
		f := newFixture(t)
		f.config.cfg = nil
		_, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
		var nfErr *NotFoundError
		require.ErrorAs(t, err, &nfErr)
		assert.Equal(t, "system config", nfErr.Resource)
	})

	t.Run("gateway error is surfaced", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.err = &lytex.GatewayError{Operation: "create_invoice", StatusCode: http.StatusUnprocessableEntity, Detail: `{"message":"invalid cpfCnpj"}`}
		_, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
		var gwErr *lytex.GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, http.StatusUnprocessableEntity, gwErr.StatusCode)
		assert.Contains(t, gwErr.Detail, "invalid cpfCnpj")
	})
}

func TestRequestInvoice_renewsTokenThroughGateway(t *testing.T) {
	f := newFixture(t)
	f.config.cfg.LytexAccessToken = "stale"
	f.config.cfg.LytexRefreshToken = "refresh"

	var mu sync.Mutex
	calls := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/v2/auth/renew_token":
			w.WriteHeader(http.StatusUnauthorized)
		case "/v2/auth/obtain_token":
			_, _ = w.Write([]byte(`{"accessToken":"fresh","refreshToken":"refresh-2"}`))
		case "/v2/invoices":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"_id":"inv_live","status":"waitingPayment","totalValue":4732}`))
		}
	}))
	defer srv.Close()

	client := lytex.NewClient(lytex.Options{BaseURL: srv.URL, Logger: zerolog.Nop()})
	f.svc.gateway = client
	f.svc.tokens = lytex.NewTokenManager(client, f.config, zerolog.Nop())

	res, err := f.svc.RequestInvoice(context.Background(), f.device.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "inv_live", res.InvoiceID)
	assert.Equal(t, int64(4732), res.Invoice.TotalValueCents)

	assert.Equal(t, 2, calls["/v2/invoices"])
	assert.Equal(t, 1, calls["/v2/auth/renew_token"])
	assert.Equal(t, 1, calls["/v2/auth/obtain_token"])
	assert.Equal(t, "fresh", f.config.cfg.LytexAccessToken)
}

func TestRegisterLicense_isIdempotent(t *testing.T) {
	f := newFixture(t)
	f.gateway.status = "paid"
	ctx := context.Background()
	data := json.RawMessage(`{"status":"paid"}`)

	first, err := f.svc.RegisterLicense(ctx, f.device.ID, "inv_1", data)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, f.now.Add(30*24*time.Hour), first.License.ExpiresAt)

	device := f.devices.devices[f.device.ID]
	assert.True(t, device.LicenseActive)
	require.NotNil(t, device.LicenseExpiresAt)
	assert.Equal(t, first.License.ExpiresAt, *device.LicenseExpiresAt)

	f.now = f.now.Add(time.Hour)
	second, err := f.svc.RegisterLicense(ctx, f.device.ID, " inv_1 ", data)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.License, second.License)
	assert.Equal(t, 1, f.licenses.activates)
	assert.Equal(t, 1, f.gateway.lookups, "existing records are returned without asking the gateway")
	assert.Len(t, f.licenses.licenses, 1)
	assert.Equal(t, []string{"created", "existing"}, f.recorder.registered)
}

func TestRegisterLicense_newInvoiceExtendsLicense(t *testing.T) {
	f := newFixture(t)
	f.gateway.status = "liquidated"
	ctx := context.Background()

	_, err := f.svc.RegisterLicense(ctx, f.device.ID, "inv_1", nil)
	require.NoError(t, err)
	f.now = f.now.Add(29 * 24 * time.Hour)
	second, err := f.svc.RegisterLicense(ctx, f.device.ID, "inv_2", nil)
	require.NoError(t, err)

	assert.True(t, second.Created)
	assert.Equal(t, second.License.ExpiresAt, *f.devices.devices[f.device.ID].LicenseExpiresAt)

	history, err := f.svc.ListLicenses(ctx, f.device.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRegisterLicense_rejectsUnpaidInvoice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterLicense(context.Background(), f.device.ID, "never-issued-invoice", nil)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invoiceId", vErr.Field)
	assert.Contains(t, vErr.Message, "waitingPayment")

	assert.Zero(t, f.licenses.activates)
	assert.False(t, f.devices.devices[f.device.ID].LicenseActive)
	assert.Equal(t, []string{"unpaid"}, f.recorder.registered)
}

func TestRegisterLicense_rejectsInvoiceOfAnotherDevice(t *testing.T) {
	f := newFixture(t)
	f.gateway.status = "paid"
	f.gateway.reference = uuid.NewString()

	_, err := f.svc.RegisterLicense(context.Background(), f.device.ID, "inv_other", nil)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "invoice", nfErr.Resource)

	f.gateway.reference = ""
	_, err = f.svc.RegisterLicense(context.Background(), f.device.ID, "inv_unreferenced", nil)
	require.ErrorAs(t, err, &nfErr)

	assert.Zero(t, f.licenses.activates)
	assert.False(t, f.devices.devices[f.device.ID].LicenseActive)
}

func TestRegisterLicense_gatewayFailureLicensesNothing(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = &lytex.GatewayError{Operation: "get_invoice", StatusCode: http.StatusBadGateway}

	_, err := f.svc.RegisterLicense(context.Background(), f.device.ID, "inv_1", nil)
	var gwErr *lytex.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Zero(t, f.licenses.activates)
	assert.Equal(t, []string{"error"}, f.recorder.registered)
}

func TestRegisterLicense_validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterLicense(ctx, f.device.ID, "  ", nil)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invoiceId", vErr.Field)

	_, err = f.svc.RegisterLicense(ctx, f.device.ID, "inv_1", json.RawMessage(`{not json`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "paymentData", vErr.Field)

	_, err = f.svc.RegisterLicense(ctx, uuid.New(), "inv_1", nil)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestCheckStatus_recordsLicenseCheck(t *testing.T) {
	f := newFixture(t)
	f.gateway.status = "paid"

	st, err := f.svc.CheckStatus(context.Background(), f.device.ID, "inv_1")
	require.NoError(t, err)
	assert.True(t, st.Paid)

	checked := f.devices.devices[f.device.ID].LastLicenseCheckAt
	require.NotNil(t, checked)
	assert.Equal(t, f.now, *checked)
}

func TestCheckStatus_gatewayFailureLeavesDeviceUntouched(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = &lytex.GatewayError{Operation: "invoice_status", StatusCode: http.StatusBadGateway}

	_, err := f.svc.CheckStatus(context.Background(), f.device.ID, "inv_1")
	require.Error(t, err)
	assert.Nil(t, f.devices.devices[f.device.ID].LastLicenseCheckAt)
}

func TestCheckStatus_hidesInvoiceOfAnotherDevice(t *testing.T) {
	f := newFixture(t)
	f.gateway.status = "paid"
	f.gateway.reference = uuid.NewString()

	_, err := f.svc.CheckStatus(context.Background(), f.device.ID, "inv_other")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "invoice", nfErr.Resource)
	assert.Nil(t, f.devices.devices[f.device.ID].LastLicenseCheckAt)
}

func TestGetInvoice(t *testing.T) {
	f := newFixture(t)

	inv, err := f.svc.GetInvoice(context.Background(), f.device.ID, "inv_9")
	require.NoError(t, err)
	assert.Equal(t, "inv_9", inv.ID)

	_, err = f.svc.GetInvoice(context.Background(), f.device.ID, "")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	f.gateway.reference = uuid.NewString()
	_, err = f.svc.GetInvoice(context.Background(), f.device.ID, "inv_other")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "invoice", nfErr.Resource)
}

func TestDeviceFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.DeviceFor(ctx, f.owner, f.device.ID)
	require.NoError(t, err)
	assert.Equal(t, f.device.ID, d.ID)

	stranger := model.User{ID: uuid.New(), Role: model.RoleClient}
	_, err = f.svc.DeviceFor(ctx, stranger, f.device.ID)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)

	admin := model.User{ID: uuid.New(), Role: model.RoleAdmin}
	_, err = f.svc.DeviceFor(ctx, admin, f.device.ID)
	require.NoError(t, err)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	q, err := f.svc.Quote(context.Background(), f.device.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4732), q.TotalCents)
	assert.Equal(t, 26, q.DaysUntilCharge)
}

func TestAdminConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var vErr *ValidationError
	require.ErrorAs(t, f.svc.UpdateDeviceFee(ctx, 0), &vErr)
	require.NoError(t, f.svc.UpdateDeviceFee(ctx, 7990))
	assert.Equal(t, int64(7990), f.config.cfg.DeviceFeeCents)

	require.ErrorAs(t, f.svc.SetGatewayCredentials(ctx, "id", " "), &vErr)
	f.config.cfg.LytexAccessToken = "old"
	require.NoError(t, f.svc.SetGatewayCredentials(ctx, "new-id", "new-secret"))
	assert.Equal(t, "new-id", f.config.cfg.LytexClientID)
	assert.Empty(t, f.config.cfg.LytexAccessToken)

	f.config.cfg = nil
	var nfErr *NotFoundError
	assert.True(t, errors.As(f.svc.UpdateDeviceFee(ctx, 100), &nfErr))
}
