package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role values for User.Role
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User represents an account that owns devices and is billed for their licenses
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PhoneNumber  string
	CPFCNPJ      string
	DayOfPayment *int
	Role         string
	CreatedAt    time.Time
}

// IsAdmin reports whether the user may act on devices it does not own.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Device represents a display panel belonging to a user
type Device struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	DeviceName         string
	LicenseActive      bool
	LicenseExpiresAt   *time.Time
	LastLicenseCheckAt *time.Time
	CreatedAt          time.Time
}

// SystemConfig holds the device fee and payment gateway credentials. There is a single row.
type SystemConfig struct {
	DeviceFeeCents    int64
	LytexClientID     string
	LytexClientSecret string
	LytexAccessToken  string
	LytexRefreshToken string
	LytexTokenUpdated *time.Time
	UpdatedAt         time.Time
}

// DeviceLicense records a paid invoice that licensed a device
type DeviceLicense struct {
	ID          uuid.UUID
	DeviceID    uuid.UUID
	InvoiceID   string
	PaymentData json.RawMessage
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
