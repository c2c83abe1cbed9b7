package identity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyduel/keyduel/go/internal/models"
)

// Repository implements participant data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new identity repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateParticipant inserts a participant profile.
func (r *Repository) CreateParticipant(ctx context.Context, id uuid.UUID, req CreateParticipantRequest) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO participants (identity_id, display_name, cosmetic_ref)
		VALUES ($1, $2, $3)
		RETURNING identity_id, display_name, cosmetic_ref, created_at`,
		id, req.DisplayName, req.CosmeticRef,
	)
	return scanParticipant(row)
}

// GetParticipant retrieves a participant by identity id.
func (r *Repository) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT identity_id, display_name, cosmetic_ref, created_at
		FROM participants WHERE identity_id = $1`, id)
	return scanParticipant(row)
}

// GetParticipantByDisplayName retrieves a participant by display name.
func (r *Repository) GetParticipantByDisplayName(ctx context.Context, name string) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT identity_id, display_name, cosmetic_ref, created_at
		FROM participants WHERE display_name = $1`, name)
	return scanParticipant(row)
}

// UpdateParticipant updates a participant's profile fields.
func (r *Repository) UpdateParticipant(ctx context.Context, id uuid.UUID, req UpdateParticipantRequest) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE participants
		SET display_name = $2, cosmetic_ref = $3
		WHERE identity_id = $1
		RETURNING identity_id, display_name, cosmetic_ref, created_at`,
		id, req.DisplayName, req.CosmeticRef,
	)
	return scanParticipant(row)
}

func scanParticipant(row *sql.Row) (*models.Participant, error) {
	var p models.Participant
	if err := row.Scan(&p.IdentityID, &p.DisplayName, &p.CosmeticRef, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}
	return &p, nil
}
