package identity

// CreateParticipantRequest carries the fields for registering a participant.
type CreateParticipantRequest struct {
	DisplayName string `json:"display_name"`
	CosmeticRef string `json:"cosmetic_ref"`
}

// UpdateParticipantRequest carries updatable profile fields.
type UpdateParticipantRequest struct {
	DisplayName string `json:"display_name"`
	CosmeticRef string `json:"cosmetic_ref"`
}
