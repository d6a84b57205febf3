package entity

import "time"

// IdentityDocument is the searchable projection of an Identity. It never
// carries credentials or billing ids.
type IdentityDocument struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	OAuthProvider    string    `json:"oauth_provider"`
	IsActive         bool      `json:"is_active"`
	IsSuperuser      bool      `json:"is_superuser"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewIdentityDocument(u *Identity) IdentityDocument {
	return IdentityDocument{
		ID:               u.ID,
		Email:            u.Email,
		DisplayName:      u.DisplayName(),
		AvatarURL:        u.AvatarURL,
		OAuthProvider:    u.OAuthProvider,
		IsActive:         u.IsActive,
		IsSuperuser:      u.IsSuperuser,
		SubscriptionTier: u.SubscriptionTier,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
