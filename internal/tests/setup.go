package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/db"
	"github.com/signalix/licensing/internal/model"
	"github.com/signalix/licensing/internal/repo"
)

// OpenTestDB connects to DATABASE_URL and applies migrations. Tests are skipped when
// DATABASE_URL is not set.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	database, err := db.Open(context.Background(), url, zerolog.Nop())
	if err != nil {
		t.Fatalf("database open must succeed; check DATABASE_URL and that test DB exists: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrations must run successfully: %v", err)
	}
	return database
}

// ResetLicensingTables truncates users, devices and licenses and restores the default
// system config row.
func ResetLicensingTables(ctx context.Context, database *sql.DB) error {
	if _, err := database.ExecContext(ctx, "TRUNCATE TABLE device_licenses, devices, users RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("truncate licensing tables: %w", err)
	}
	_, err := database.ExecContext(ctx, `
		UPDATE system_config
		SET device_fee_cents = 5000,
		    lytex_client_id = '',
		    lytex_client_secret = '',
		    lytex_access_token = NULL,
		    lytex_refresh_token = NULL,
		    lytex_token_updated_at = NULL,
		    updated_at = now()
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("reset system config: %w", err)
	}
	return nil
}

// Fixture is a billed user owning one device.
type Fixture struct {
	Owner  model.User
	Device model.Device
}

// SeedOwnerWithDevice creates a client user with the given anchor day (nil for none) and one device.
func SeedOwnerWithDevice(ctx context.Context, database *sql.DB, dayOfPayment *int) (Fixture, error) {
	owner, err := repo.NewUserRepo(database).Create(ctx, model.User{
		Name:         "Padaria Central",
		Email:        "contato@padaria.test",
		PhoneNumber:  "+55 11 98888-7777",
		CPFCNPJ:      "123.456.789-01",
		DayOfPayment: dayOfPayment,
		Role:         model.RoleClient,
	})
	if err != nil {
		return Fixture{}, fmt.Errorf("seed owner: %w", err)
	}

	device, err := repo.NewDeviceRepo(database).Create(ctx, owner.ID, "Lobby panel")
	if err != nil {
		return Fixture{}, fmt.Errorf("seed device: %w", err)
	}
	return Fixture{Owner: owner, Device: device}, nil
}
