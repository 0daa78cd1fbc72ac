package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// PasswordVerifier checks admin passwords against bcrypt hashes in admin_users
type PasswordVerifier struct {
	pool *pgxpool.Pool
}

// NewPasswordVerifier creates a new password verifier
func NewPasswordVerifier(pool *pgxpool.Pool) *PasswordVerifier {
	return &PasswordVerifier{pool: pool}
}

// VerifyPassword reports whether password matches the admin's stored hash
func (v *PasswordVerifier) VerifyPassword(ctx context.Context, adminID, password string) (bool, error) {
	var hash string
	err := v.pool.QueryRow(ctx, `SELECT password_hash FROM admin_users WHERE id = $1`, adminID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(fmt.Errorf("load password hash: %w", err))
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, domain.WrapError(domain.ErrorCodeInternalError, "password hash unreadable", err)
	}
}

// AdminEmail returns the admin's email address from the identity table
func (v *PasswordVerifier) AdminEmail(ctx context.Context, adminID string) (string, error) {
	var email string
	err := v.pool.QueryRow(ctx, `SELECT email FROM admin_users WHERE id = $1`, adminID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", mapError(fmt.Errorf("load admin email: %w", err))
	}
	return email, nil
}

var _ ports.PasswordVerifier = (*PasswordVerifier)(nil)
