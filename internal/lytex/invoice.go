package lytex

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Client types accepted by the gateway.
const (
	ClientTypeIndividual   = "pf"
	ClientTypeOrganization = "pj"
)

// InvoiceRequest is the body of POST /v2/invoices. Values are in cents.
type InvoiceRequest struct {
	Client         InvoiceClient  `json:"client"`
	Items          []InvoiceItem  `json:"items"`
	DueDate        time.Time      `json:"dueDate"`
	PaymentMethods PaymentMethods `json:"paymentMethods"`
	ReferenceID    string         `json:"referenceId,omitempty"`
	Observation    string         `json:"observation,omitempty"`
}

// InvoiceClient identifies the billed party.
type InvoiceClient struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	CPFCNPJ   string `json:"cpfCnpj"`
	Email     string `json:"email,omitempty"`
	Cellphone string `json:"cellphone,omitempty"`
}

// InvoiceItem is one charged line.
type InvoiceItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Value    int64  `json:"value"`
}

// PaymentMethods toggles which payment options the invoice offers.
type PaymentMethods struct {
	Pix        MethodToggle `json:"pix"`
	Boleto     MethodToggle `json:"boleto"`
	CreditCard MethodToggle `json:"creditCard"`
}

// MethodToggle enables or disables one payment method.
type MethodToggle struct {
	Enable bool `json:"enable"`
}

// Invoice is the canonical invoice shape, independent of which field names the gateway used.
type Invoice struct {
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	TotalValueCents int64           `json:"totalValue"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	PaymentURL      string          `json:"paymentUrl,omitempty"`
	ReferenceID     string          `json:"referenceId,omitempty"`
	Raw             json.RawMessage `json:"raw"`
}

// InvoiceStatus is the canonical payment status of an invoice.
type InvoiceStatus struct {
	InvoiceID string          `json:"invoiceId"`
	Status    string          `json:"status"`
	Paid      bool            `json:"paid"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
	Raw       json.RawMessage `json:"raw"`
}

var paidStatuses = map[string]bool{
	"paid":       true,
	"liquidated": true,
	"received":   true,
}

// IsPaidStatus reports whether a gateway status string means the invoice was paid.
func IsPaidStatus(status string) bool {
	return paidStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// unwrapData returns the object under "data" when the gateway wraps its payload.
func unwrapData(fields map[string]any) map[string]any {
	if inner, ok := fields["data"].(map[string]any); ok {
		return inner
	}
	return fields
}

func normalizeInvoice(raw []byte) (*Invoice, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	fields = unwrapData(fields)

	inv := &Invoice{
		ID:              firstString(fields, "_id", "id", "invoiceId"),
		Status:          firstString(fields, "status", "invoiceStatus"),
		TotalValueCents: firstInt(fields, "totalValue", "value", "total"),
		PaymentURL:      firstString(fields, "linkCheckout", "paymentUrl", "url"),
		DueDate:         firstTime(fields, "dueDate", "due_date"),
		ReferenceID:     firstString(fields, "referenceId", "reference_id", "externalReference"),
		Raw:             json.RawMessage(raw),
	}
	if inv.ID == "" {
		return nil, fmt.Errorf("decode invoice: response has no invoice id")
	}
	return inv, nil
}

func normalizeStatus(invoiceID string, raw []byte) (*InvoiceStatus, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode invoice status: %w", err)
	}
	fields = unwrapData(fields)

	status := firstString(fields, "status", "invoiceStatus", "paymentStatus")
	if status == "" {
		return nil, fmt.Errorf("decode invoice status: response has no status")
	}
	if id := firstString(fields, "_id", "id", "invoiceId"); id != "" {
		invoiceID = id
	}
	return &InvoiceStatus{
		InvoiceID: invoiceID,
		Status:    status,
		Paid:      IsPaidStatus(status),
		PaidAt:    firstTime(fields, "paidAt", "payedAt", "paymentDate"),
		Raw:       json.RawMessage(raw),
	}, nil
}

func firstString(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstInt(fields map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case float64:
			return int64(math.Round(v))
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func firstTime(fields map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		s, ok := fields[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	return nil
}
