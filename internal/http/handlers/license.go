package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/billing"
	"github.com/signalix/licensing/internal/lytex"
	"github.com/signalix/licensing/internal/middleware"
	"github.com/signalix/licensing/internal/model"
)

// LicenseService is the billing workflow as used by the HTTP layer
type LicenseService interface {
	DeviceFor(ctx context.Context, actor model.User, deviceID uuid.UUID) (model.Device, error)
	Quote(ctx context.Context, deviceID uuid.UUID) (billing.Quote, error)
	RequestInvoice(ctx context.Context, deviceID uuid.UUID, proportionalCents *int64) (*billing.InvoiceResult, error)
	GetInvoice(ctx context.Context, deviceID uuid.UUID, invoiceID string) (*lytex.Invoice, error)
	CheckStatus(ctx context.Context, deviceID uuid.UUID, invoiceID string) (*lytex.InvoiceStatus, error)
	RegisterLicense(ctx context.Context, deviceID uuid.UUID, invoiceID string, paymentData json.RawMessage) (*billing.Registration, error)
	ListLicenses(ctx context.Context, deviceID uuid.UUID) ([]model.DeviceLicense, error)
	UpdateDeviceFee(ctx context.Context, feeCents int64) error
	SetGatewayCredentials(ctx context.Context, clientID, clientSecret string) error
}

// LicenseHandler handles device license endpoints
type LicenseHandler struct {
	svc      LicenseService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(svc LicenseService, logger zerolog.Logger) *LicenseHandler {
	return &LicenseHandler{
		svc:      svc,
		validate: newValidator(),
		logger:   logger.With().Str("component", "license_handler").Logger(),
	}
}

// requestInvoiceRequest is the request body for POST /private/devices/{id}/lytex-license
type requestInvoiceRequest struct {
	ProportionalValue *int64 `json:"proportionalValue" validate:"omitempty,gte=0"`
}

// registerLicenseRequest is the request body for POST /private/devices/{id}/register-license
type registerLicenseRequest struct {
	InvoiceID   string          `json:"invoiceId" validate:"required"`
	PaymentData json.RawMessage `json:"paymentData"`
}

type deviceResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	DeviceName         string     `json:"deviceName"`
	LicenseActive      bool       `json:"licenseActive"`
	LicenseExpiresAt   *time.Time `json:"licenseExpiresAt"`
	LastLicenseCheckAt *time.Time `json:"lastLicenseCheckAt"`
}

type licenseResponse struct {
	ID          string          `json:"id"`
	DeviceID    string          `json:"deviceId"`
	InvoiceID   string          `json:"invoiceId"`
	PaymentData json.RawMessage `json:"paymentData,omitempty"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type registrationResponse struct {
	License licenseResponse `json:"license"`
	Created bool            `json:"created"`
}

// invoiceResponse carries both the canonical and the gateway's own id keys.
type invoiceResponse struct {
	ID         string          `json:"id"`
	GatewayID  string          `json:"_id"`
	Status     string          `json:"status"`
	TotalValue int64           `json:"totalValue"`
	DueDate    *time.Time      `json:"dueDate,omitempty"`
	PaymentURL string          `json:"paymentUrl,omitempty"`
	Quote      *billing.Quote  `json:"quote,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

type statusResponse struct {
	InvoiceID string     `json:"invoiceId"`
	Status    string     `json:"status"`
	Paid      bool       `json:"paid"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

// HandleGetDevice handles GET /private/devices/{id}
func (h *LicenseHandler) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}
	respondOK(w, r, http.StatusOK, toDeviceResponse(device))
}

// HandleListLicenses handles GET /private/devices/{id}/licenses
func (h *LicenseHandler) HandleListLicenses(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}

	licenses, err := h.svc.ListLicenses(r.Context(), device.ID)
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	out := make([]licenseResponse, 0, len(licenses))
	for _, l := range licenses {
		out = append(out, toLicenseResponse(l))
	}
	respondOK(w, r, http.StatusOK, out)
}

// HandleQuote handles GET /private/devices/{id}/license-quote
func (h *LicenseHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}

	quote, err := h.svc.Quote(r.Context(), device.ID)
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, quote)
}

// HandleRequestInvoice handles POST /private/devices/{id}/lytex-license
func (h *LicenseHandler) HandleRequestInvoice(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}

	var req requestInvoiceRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	res, err := h.svc.RequestInvoice(r.Context(), device.ID, req.ProportionalValue)
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	data := toInvoiceResponse(res.Invoice)
	data.Quote = &res.Quote
	respondOK(w, r, http.StatusCreated, data)
}

// HandleGetInvoice handles GET /private/devices/{id}/lytex-invoice/{invoiceId}
func (h *LicenseHandler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.GetInvoice(r.Context(), device.ID, chi.URLParam(r, "invoiceId"))
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, toInvoiceResponse(inv))
}

// HandleInvoiceStatus handles GET /private/devices/{id}/lytex-status/{invoiceId}
func (h *LicenseHandler) HandleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}

	st, err := h.svc.CheckStatus(r.Context(), device.ID, chi.URLParam(r, "invoiceId"))
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}
	respondOK(w, r, http.StatusOK, statusResponse{
		InvoiceID: st.InvoiceID,
		Status:    st.Status,
		Paid:      st.Paid,
		PaidAt:    st.PaidAt,
	})
}

// HandleRegisterLicense handles POST /private/devices/{id}/register-license
func (h *LicenseHandler) HandleRegisterLicense(w http.ResponseWriter, r *http.Request) {
	device, ok := h.authorizedDevice(w, r)
	if !ok {
		return
	}

	var req registerLicenseRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	reg, err := h.svc.RegisterLicense(r.Context(), device.ID, req.InvoiceID, req.PaymentData)
	if err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if reg.Created {
		status = http.StatusCreated
	}
	respondOK(w, r, status, registrationResponse{License: toLicenseResponse(reg.License), Created: reg.Created})
}

// authorizedDevice resolves {id} to a device the caller may act on, writing the error response
// when it cannot.
func (h *LicenseHandler) authorizedDevice(w http.ResponseWriter, r *http.Request) (model.Device, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, r, http.StatusUnauthorized, "unauthorized", nil)
		return model.Device{}, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, "invalid device id", fieldDetails{Field: "id"})
		return model.Device{}, false
	}

	device, err := h.svc.DeviceFor(r.Context(), *user, id)
	if err != nil {
		respondErr(w, r, h.logger, err)
		return model.Device{}, false
	}
	return device, true
}

func toDeviceResponse(d model.Device) deviceResponse {
	return deviceResponse{
		ID:                 d.ID.String(),
		UserID:             d.UserID.String(),
		DeviceName:         d.DeviceName,
		LicenseActive:      d.LicenseActive,
		LicenseExpiresAt:   d.LicenseExpiresAt,
		LastLicenseCheckAt: d.LastLicenseCheckAt,
	}
}

func toLicenseResponse(l model.DeviceLicense) licenseResponse {
	return licenseResponse{
		ID:          l.ID.String(),
		DeviceID:    l.DeviceID.String(),
		InvoiceID:   l.InvoiceID,
		PaymentData: l.PaymentData,
		ExpiresAt:   l.ExpiresAt,
		CreatedAt:   l.CreatedAt,
	}
}

func toInvoiceResponse(inv *lytex.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:         inv.ID,
		GatewayID:  inv.ID,
		Status:     inv.Status,
		TotalValue: inv.TotalValueCents,
		DueDate:    inv.DueDate,
		PaymentURL: inv.PaymentURL,
		Raw:        inv.Raw,
	}
}
