package entity

import (
	"strings"
	"time"
)

// OAuth providers an Identity can be bound to.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Subscription tiers and statuses owned by the billing flow.
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// Identity is the aggregate root for an authenticated principal.
// PasswordHash is empty for accounts that only sign in through an
// external provider; such accounts can never pass password login.
type Identity struct {
	ID            int64
	Email         string
	PasswordHash  string
	OAuthProvider string
	ExternalID    string // google subject id, unique when set
	IsActive      bool
	IsSuperuser   bool
	EmailVerified bool

	FirstName       string
	LastName        string
	FullName        string
	AvatarURL       string
	Bio             string
	Website         string
	GithubUsername  string
	TwitterUsername string

	SubscriptionTier     string
	SubscriptionStatus   string
	StripeCustomerID     string
	StripeSubscriptionID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIdentity returns an Identity carrying the column defaults.
func NewIdentity(email string) *Identity {
	return &Identity{
		Email:              email,
		IsActive:           true,
		SubscriptionTier:   TierFree,
		SubscriptionStatus: SubscriptionActive,
	}
}

// HasPassword reports whether password login is possible for the identity.
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// DisplayName is computed on read and never stored.
func (i *Identity) DisplayName() string {
	switch {
	case i.FullName != "":
		return i.FullName
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	}
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}

// JoinName builds a full name only when both parts are present.
func JoinName(first, last string) string {
	if first == "" || last == "" {
		return ""
	}
	return first + " " + last
}
