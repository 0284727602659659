package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/signalix/licensing/internal/model"
)

// DeviceRepo defines the interface for device repository operations
type DeviceRepo interface {
	Create(ctx context.Context, userID uuid.UUID, deviceName string) (model.Device, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Device, error)
	TouchLicenseCheck(ctx context.Context, id uuid.UUID, at time.Time) error
	ExpireLicenses(ctx context.Context, now time.Time) (int64, error)
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

const deviceColumns = `id, user_id, device_name, license_active, license_expires_at, last_license_check_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (model.Device, error) {
	var d model.Device
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.DeviceName,
		&d.LicenseActive,
		&d.LicenseExpiresAt,
		&d.LastLicenseCheckAt,
		&d.CreatedAt,
	)
	return d, err
}

// Create creates a new, unlicensed device for a user
func (r *deviceRepo) Create(ctx context.Context, userID uuid.UUID, deviceName string) (model.Device, error) {
	query := `
		INSERT INTO devices (user_id, device_name)
		VALUES ($1, $2)
		RETURNING ` + deviceColumns

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, userID, deviceName))
	if err != nil {
		return model.Device{}, fmt.Errorf("failed to create device: %w", err)
	}
	return device, nil
}

// GetByID retrieves a device by ID
func (r *deviceRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Device{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
		return model.Device{}, fmt.Errorf("failed to query device: %w", err)
	}
	return device, nil
}

// TouchLicenseCheck records the moment the device's payment status was last checked
func (r *deviceRepo) TouchLicenseCheck(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_license_check_at = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("touch license check: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExpireLicenses clears license_active on devices whose license expired before now.
// Returns the number of devices updated.
func (r *deviceRepo) ExpireLicenses(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET license_active = false
		WHERE license_active AND license_expires_at IS NOT NULL AND license_expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire licenses: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire licenses rows affected: %w", err)
	}
	return n, nil
}
