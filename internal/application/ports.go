package application

import (
	"context"
	"io"
	"time"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

// IdentityVerifier validates third-party identity tokens. Implementations
// bound the network call and return an error for every failure.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*entity.ExternalIdentity, error)
}

// TokenDenylist remembers revoked token ids until the token would expire anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// LoginThrottle limits password attempts per key.
type LoginThrottle interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// AvatarStore uploads an object and returns its public URL.
type AvatarStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

type IdentityIndex interface {
	Index(ctx context.Context, doc entity.IdentityDocument) error
	Search(ctx context.Context, q string, size int) ([]entity.IdentityDocument, error)
}

// PaymentProvider is the payment processor collaborator.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, email string, identityID int64) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID string, metadata map[string]string) (string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ParseWebhook(payload []byte, signatureHeader string) (*entity.PaymentEvent, error)
}
