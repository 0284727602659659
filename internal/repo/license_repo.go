package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/signalix/licensing/internal/model"
)

// LicenseRepo defines the interface for device license repository operations
type LicenseRepo interface {
	FindByDeviceAndInvoice(ctx context.Context, deviceID uuid.UUID, invoiceID string) (model.DeviceLicense, error)
	// Activate inserts a license for (deviceID, invoiceID) and marks the device licensed
	// until expiresAt, in one transaction. created is false when a record for the pair
	// already existed; the existing record is returned and the device is left untouched.
	Activate(ctx context.Context, deviceID uuid.UUID, invoiceID string, paymentData json.RawMessage, expiresAt, now time.Time) (license model.DeviceLicense, created bool, err error)
	ListByDevice(ctx context.Context, deviceID uuid.UUID) ([]model.DeviceLicense, error)
}

type licenseRepo struct {
	db *sql.DB
}

// NewLicenseRepo creates a new LicenseRepo instance
func NewLicenseRepo(db *sql.DB) LicenseRepo {
	return &licenseRepo{db: db}
}

const licenseColumns = `id, device_id, invoice_id, payment_data, expires_at, created_at`

func scanLicense(row rowScanner) (model.DeviceLicense, error) {
	var l model.DeviceLicense
	var paymentData []byte
	err := row.Scan(&l.ID, &l.DeviceID, &l.InvoiceID, &paymentData, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		return model.DeviceLicense{}, err
	}
	l.PaymentData = json.RawMessage(paymentData)
	return l, nil
}

// FindByDeviceAndInvoice returns the license recorded for the pair
func (r *licenseRepo) FindByDeviceAndInvoice(ctx context.Context, deviceID uuid.UUID, invoiceID string) (model.DeviceLicense, error) {
	query := `SELECT ` + licenseColumns + ` FROM device_licenses WHERE device_id = $1 AND invoice_id = $2`

	license, err := scanLicense(r.db.QueryRowContext(ctx, query, deviceID, invoiceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DeviceLicense{}, fmt.Errorf("license for device %s invoice %s: %w", deviceID, invoiceID, ErrNotFound)
		}
		return model.DeviceLicense{}, fmt.Errorf("find license: %w", err)
	}
	return license, nil
}

// Activate inserts the license and flips the device flags atomically.
// The unique (device_id, invoice_id) constraint makes concurrent activations converge on one row.
func (r *licenseRepo) Activate(ctx context.Context, deviceID uuid.UUID, invoiceID string, paymentData json.RawMessage, expiresAt, now time.Time) (model.DeviceLicense, bool, error) {
	if len(paymentData) == 0 {
		paymentData = json.RawMessage(`{}`)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.DeviceLicense{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	license, err := scanLicense(tx.QueryRowContext(ctx, `
		INSERT INTO device_licenses (device_id, invoice_id, payment_data, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, invoice_id) DO NOTHING
		RETURNING `+licenseColumns,
		deviceID, invoiceID, []byte(paymentData), expiresAt, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// Another request registered the same pair first.
		existing, err := scanLicense(tx.QueryRowContext(ctx,
			`SELECT `+licenseColumns+` FROM device_licenses WHERE device_id = $1 AND invoice_id = $2`,
			deviceID, invoiceID,
		))
		if err != nil {
			return model.DeviceLicense{}, false, fmt.Errorf("read existing license: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return model.DeviceLicense{}, false, fmt.Errorf("insert license: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE devices
		SET license_active = true, license_expires_at = $2, last_license_check_at = $3
		WHERE id = $1
	`, deviceID, expiresAt, now)
	if err != nil {
		return model.DeviceLicense{}, false, fmt.Errorf("activate device: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return model.DeviceLicense{}, false, fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return model.DeviceLicense{}, false, fmt.Errorf("commit: %w", err)
	}
	return license, true, nil
}

// ListByDevice returns the device's licenses, newest first
func (r *licenseRepo) ListByDevice(ctx context.Context, deviceID uuid.UUID) ([]model.DeviceLicense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+licenseColumns+` FROM device_licenses WHERE device_id = $1 ORDER BY created_at DESC`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	licenses := make([]model.DeviceLicense, 0)
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return licenses, nil
}
