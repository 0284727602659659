package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/signalix/licensing/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	Create(ctx context.Context, user model.User) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `
		SELECT id, name, email, phone_number, cpf_cnpj, day_of_payment, role, created_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	var dayOfPayment sql.NullInt32
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PhoneNumber,
		&user.CPFCNPJ,
		&dayOfPayment,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	if dayOfPayment.Valid {
		day := int(dayOfPayment.Int32)
		user.DayOfPayment = &day
	}
	return user, nil
}

// Create inserts a user and returns it with the generated ID
func (r *userRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	if user.Role == "" {
		user.Role = model.RoleClient
	}
	query := `
		INSERT INTO users (name, email, phone_number, cpf_cnpj, day_of_payment, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PhoneNumber, user.CPFCNPJ, user.DayOfPayment, user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
