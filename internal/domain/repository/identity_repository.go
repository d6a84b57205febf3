package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// IdentityRepository is the account store. Implementations enforce
// uniqueness of email and external id and report violations as ErrDuplicate.
//
// There is no whole-row update. Each write touches only its own columns so
// a stale copy can never overwrite account state changed by another caller.
type IdentityRepository interface {
	Create(ctx context.Context, u *entity.Identity) error
	GetByID(ctx context.Context, id int64) (*entity.Identity, error)
	GetByEmail(ctx context.Context, email string) (*entity.Identity, error)
	GetByExternalID(ctx context.Context, externalID string) (*entity.Identity, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*entity.Identity, error)
	List(ctx context.Context, offset, limit int) ([]*entity.Identity, error)
	UpdateProfile(ctx context.Context, u *entity.Identity) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	LinkExternal(ctx context.Context, id int64, provider, externalID string, emailVerified bool) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetSuperuser(ctx context.Context, id int64, flag bool) error
	UpdateBilling(ctx context.Context, id int64, b entity.BillingUpdate) error
	Delete(ctx context.Context, id int64) error
}
