package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	"github.com/oksasatya/fluxa/internal/domain/repository"
)

const identityColumns = `id, email, COALESCE(password_hash, ''), oauth_provider, COALESCE(google_id, ''),
		is_active, is_superuser, email_verified,
		first_name, last_name, full_name, avatar_url, bio, website, github_username, twitter_username,
		subscription_tier, subscription_status, COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		created_at, updated_at`

type IdentityRepository struct {
	db DBTX
}

func NewIdentityRepository(db DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, u *entity.Identity) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, oauth_provider, google_id, is_active, is_superuser, email_verified,
			first_name, last_name, full_name, avatar_url, bio, website, github_username, twitter_username,
			subscription_tier, subscription_status, stripe_customer_id, stripe_subscription_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at
	`, u.Email, nullIfEmpty(u.PasswordHash), u.OAuthProvider, nullIfEmpty(u.ExternalID),
		u.IsActive, u.IsSuperuser, u.EmailVerified,
		u.FirstName, u.LastName, u.FullName, u.AvatarURL, u.Bio, u.Website, u.GithubUsername, u.TwitterUsername,
		u.SubscriptionTier, u.SubscriptionStatus, nullIfEmpty(u.StripeCustomerID), nullIfEmpty(u.StripeSubscriptionID))

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id int64) (*entity.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, id)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM users WHERE email = $1`, email)
}

func (r *IdentityRepository) GetByExternalID(ctx context.Context, externalID string) (*entity.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM users WHERE google_id = $1`, externalID)
}

func (r *IdentityRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*entity.Identity, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM users WHERE stripe_subscription_id = $1`, subscriptionID)
}

func (r *IdentityRepository) List(ctx context.Context, offset, limit int) ([]*entity.Identity, error) {
	rows, err := r.db.Query(ctx, `SELECT `+identityColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []*entity.Identity
	for rows.Next() {
		u, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return out, nil
}

// UpdateProfile writes the self-service profile columns only.
func (r *IdentityRepository) UpdateProfile(ctx context.Context, u *entity.Identity) error {
	u.UpdatedAt = time.Now().UTC()
	return r.execOne(ctx, "update profile", `
		UPDATE users
		SET first_name = $1, last_name = $2, full_name = $3, avatar_url = $4, bio = $5, website = $6,
			github_username = $7, twitter_username = $8, updated_at = $9
		WHERE id = $10
	`, u.FirstName, u.LastName, u.FullName, u.AvatarURL, u.Bio, u.Website,
		u.GithubUsername, u.TwitterUsername, u.UpdatedAt, u.ID)
}

func (r *IdentityRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, "set password hash",
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		nullIfEmpty(hash), time.Now().UTC(), id)
}

// LinkExternal binds a provider subject to an existing account.
func (r *IdentityRepository) LinkExternal(ctx context.Context, id int64, provider, externalID string, emailVerified bool) error {
	return r.execOne(ctx, "link external identity",
		`UPDATE users SET oauth_provider = $1, google_id = $2, email_verified = $3, updated_at = $4 WHERE id = $5`,
		provider, nullIfEmpty(externalID), emailVerified, time.Now().UTC(), id)
}

func (r *IdentityRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.execOne(ctx, "set active",
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id)
}

func (r *IdentityRepository) SetSuperuser(ctx context.Context, id int64, flag bool) error {
	return r.execOne(ctx, "set superuser",
		`UPDATE users SET is_superuser = $1, updated_at = $2 WHERE id = $3`,
		flag, time.Now().UTC(), id)
}

// UpdateBilling applies only the non-nil fields of b. A non-nil empty
// processor id clears the column.
func (r *IdentityRepository) UpdateBilling(ctx context.Context, id int64, b entity.BillingUpdate) error {
	return r.execOne(ctx, "update billing", `
		UPDATE users
		SET subscription_tier = COALESCE($1, subscription_tier),
			subscription_status = COALESCE($2, subscription_status),
			stripe_customer_id = CASE WHEN $3::text IS NULL THEN stripe_customer_id ELSE NULLIF($3::text, '') END,
			stripe_subscription_id = CASE WHEN $4::text IS NULL THEN stripe_subscription_id ELSE NULLIF($4::text, '') END,
			updated_at = $5
		WHERE id = $6
	`, b.Tier, b.Status, b.CustomerID, b.SubscriptionID, time.Now().UTC(), id)
}

func (r *IdentityRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) getOne(ctx context.Context, query string, arg any) (*entity.Identity, error) {
	u, err := scanIdentity(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return u, nil
}

func scanIdentity(row pgx.Row) (*entity.Identity, error) {
	u := &entity.Identity{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.OAuthProvider, &u.ExternalID,
		&u.IsActive, &u.IsSuperuser, &u.EmailVerified,
		&u.FirstName, &u.LastName, &u.FullName, &u.AvatarURL, &u.Bio, &u.Website, &u.GithubUsername, &u.TwitterUsername,
		&u.SubscriptionTier, &u.SubscriptionStatus, &u.StripeCustomerID, &u.StripeSubscriptionID,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)
