package handlers

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/billing"
	"github.com/signalix/licensing/internal/lytex"
)

// envelope is the JSON body of every /private response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`

	status int
}

// Render implements the chi render.Renderer interface
func (e *envelope) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

type gatewayDetails struct {
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type fieldDetails struct {
	Field string `json:"field"`
}

func respondOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	_ = render.Render(w, r, &envelope{Success: true, Data: data, status: status})
}

func respondWithError(w http.ResponseWriter, r *http.Request, status int, message string, details interface{}) {
	_ = render.Render(w, r, &envelope{Error: message, Details: details, status: status})
}

// respondErr maps service and gateway errors to HTTP responses.
func respondErr(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var (
		vErr    *billing.ValidationError
		nfErr   *billing.NotFoundError
		authErr *lytex.AuthError
		gwErr   *lytex.GatewayError
	)

	switch {
	case errors.As(err, &vErr):
		respondWithError(w, r, http.StatusBadRequest, vErr.Error(), fieldDetails{Field: vErr.Field})
	case errors.As(err, &nfErr):
		respondWithError(w, r, http.StatusNotFound, nfErr.Error(), nil)
	case errors.As(err, &authErr):
		log.Error().Err(err).Msg("payment gateway authentication failed")
		respondWithError(w, r, http.StatusBadGateway, "payment gateway authentication failed",
			gatewayDetails{Status: authErr.StatusCode, Detail: authErr.Detail})
	case errors.As(err, &gwErr):
		log.Error().Err(err).Msg("payment gateway request failed")
		detail := gwErr.Detail
		if gwErr.StatusCode == 0 {
			detail = "gateway unreachable"
		}
		respondWithError(w, r, http.StatusBadGateway, "payment gateway request failed",
			gatewayDetails{Status: gwErr.StatusCode, Detail: detail})
	default:
		log.Error().Err(err).Msg("request failed")
		respondWithError(w, r, http.StatusInternalServerError, "internal error", nil)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation on it.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst interface{}) error {
	// An empty body decodes as {} so required fields are reported by name.
	if err := render.DecodeJSON(r.Body, dst); err != nil && !errors.Is(err, io.EOF) {
		return &billing.ValidationError{Message: "invalid request body"}
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &billing.ValidationError{Field: fe.Field(), Message: validationMessage(fe)}
		}
		return &billing.ValidationError{Message: err.Error()}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
