package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
)

// Repository is the user directory: it resolves verified user identities to
// profile data for broadcast payloads. User records themselves are written by
// the account module, not here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a user directory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, full_name, role, avatar_url, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetDisplayInfo returns the display fields embedded in broadcast payloads.
func (r *Repository) GetDisplayInfo(ctx context.Context, id uuid.UUID) (*models.DisplayInfo, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	info := u.ToDisplayInfo()
	return &info, nil
}
