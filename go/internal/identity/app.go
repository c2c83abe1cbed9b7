package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keyduel/keyduel/go/internal/models"
)

// ParticipantRepository defines what the app layer needs from the repository.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, id uuid.UUID, req CreateParticipantRequest) (*models.Participant, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetParticipantByDisplayName(ctx context.Context, name string) (*models.Participant, error)
	UpdateParticipant(ctx context.Context, id uuid.UUID, req UpdateParticipantRequest) (*models.Participant, error)
}

// App handles participant profile business logic.
type App struct {
	repo ParticipantRepository
}

// NewApp creates a new identity App.
func NewApp(repo ParticipantRepository) *App {
	return &App{repo: repo}
}

// RegisterParticipant creates a participant profile with validation. Display
// names are unique; the duel invite flow addresses opponents by them.
func (a *App) RegisterParticipant(ctx context.Context, req CreateParticipantRequest) (*models.Participant, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if len(req.DisplayName) > 32 {
		return nil, fmt.Errorf("display name too long")
	}

	existing, err := a.repo.GetParticipantByDisplayName(ctx, req.DisplayName)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("display name %s already taken", req.DisplayName)
	}

	participant, err := a.repo.CreateParticipant(ctx, uuid.New(), req)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	log.Info().
		Str("identity_id", participant.IdentityID.String()).
		Str("display_name", participant.DisplayName).
		Msg("participant registered")
	return participant, nil
}

// GetParticipant retrieves a participant by identity id.
func (a *App) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	participant, err := a.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return participant, nil
}

// UpdateParticipant updates profile fields with validation.
func (a *App) UpdateParticipant(ctx context.Context, id uuid.UUID, req UpdateParticipantRequest) (*models.Participant, error) {
	if req.DisplayName == "" {
		return nil, fmt.Errorf("display name cannot be empty")
	}

	existing, err := a.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("participant not found: %w", err)
	}
	if req.DisplayName != existing.DisplayName {
		conflict, err := a.repo.GetParticipantByDisplayName(ctx, req.DisplayName)
		if err == nil && conflict != nil {
			return nil, fmt.Errorf("display name %s already taken", req.DisplayName)
		}
	}

	participant, err := a.repo.UpdateParticipant(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return participant, nil
}
