package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler handles system configuration endpoints. Routes must be behind RequireAdmin.
type AdminHandler struct {
	svc      LicenseService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc LicenseService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:      svc,
		validate: newValidator(),
		logger:   logger.With().Str("component", "admin_handler").Logger(),
	}
}

type deviceFeeRequest struct {
	DeviceFee int64 `json:"deviceFee" validate:"gt=0"`
}

type gatewayCredentialsRequest struct {
	ClientID     string `json:"clientId" validate:"required"`
	ClientSecret string `json:"clientSecret" validate:"required"`
}

// HandleUpdateDeviceFee handles PUT /private/admin/system-config/device-fee
func (h *AdminHandler) HandleUpdateDeviceFee(w http.ResponseWriter, r *http.Request) {
	var req deviceFeeRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondErr(w, r, h.logger, err)
		return
	}
	if err := h.svc.UpdateDeviceFee(r.Context(), req.DeviceFee); err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	h.logger.Info().Int64("device_fee_cents", req.DeviceFee).Msg("device fee updated")
	respondOK(w, r, http.StatusOK, nil)
}

// HandleSetGatewayCredentials handles PUT /private/admin/system-config/gateway-credentials
func (h *AdminHandler) HandleSetGatewayCredentials(w http.ResponseWriter, r *http.Request) {
	var req gatewayCredentialsRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		respondErr(w, r, h.logger, err)
		return
	}
	if err := h.svc.SetGatewayCredentials(r.Context(), req.ClientID, req.ClientSecret); err != nil {
		respondErr(w, r, h.logger, err)
		return
	}

	h.logger.Info().Msg("gateway credentials replaced")
	respondOK(w, r, http.StatusOK, nil)
}
