package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// AuthService turns credentials, provider tokens and session tokens into
// resolved identities. It holds no per-request state.
type AuthService struct {
	Repo     repo.IdentityRepository
	Hasher   *helpers.PasswordHasher
	Tokens   *helpers.TokenCodec
	Verifier IdentityVerifier
	Logger   *logrus.Logger

	// Optional collaborators; nil disables the feature.
	Denylist TokenDenylist
	Throttle LoginThrottle
	Events   EventPublisher

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(r repo.IdentityRepository, hasher *helpers.PasswordHasher, tokens *helpers.TokenCodec, verifier IdentityVerifier, logger *logrus.Logger) *AuthService {
	return &AuthService{
		Repo:     r,
		Hasher:   hasher,
		Tokens:   tokens,
		Verifier: verifier,
		Logger:   loggerOrDefault(logger),
	}
}

type RegisterInput struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"pwd"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	FirstName       string `json:"first_name" validate:"omitempty,max=100"`
	LastName        string `json:"last_name" validate:"omitempty,max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Token is what callers hand back to clients.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
}

type AuthResult struct {
	Identity *entity.Identity
	Token    Token
}

// Register creates a local account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer func() { observeAttempt(methodRegister, err) }()

	if err := validateInput(in); err != nil {
		return nil, err
	}

	switch _, err := s.Repo.GetByEmail(ctx, in.Email); {
	case err == nil:
		return nil, ErrDuplicateAccount
	case !errors.Is(err, repo.ErrNotFound):
		return nil, s.internal(err, "lookup identity by email failed", nil)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(err, "hash password failed", nil)
	}

	u := entity.NewIdentity(in.Email)
	u.PasswordHash = hash
	u.OAuthProvider = entity.ProviderLocal
	u.EmailVerified = false
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.FullName = entity.JoinName(in.FirstName, in.LastName)

	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, s.internal(err, "create identity failed", nil)
	}

	tok, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.Logger.WithField("identity_id", u.ID).Info("identity registered")
	publishIdentityEvent(ctx, s.Events, s.Logger, entity.EventIdentityRegistered, u)
	return &AuthResult{Identity: u, Token: tok}, nil
}

// Login checks credentials first and account state second, so an
// unauthenticated caller learns nothing about whether an account is active.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (res *AuthResult, err error) {
	defer func() { observeAttempt(methodPassword, err) }()

	if err := validateInput(in); err != nil {
		return nil, err
	}

	throttleKey := "login:" + in.Email
	if s.Throttle != nil {
		ok, tErr := s.Throttle.Allow(ctx, throttleKey)
		if tErr != nil {
			s.Logger.WithError(tErr).Warn("login throttle unavailable")
		} else if !ok {
			return nil, ErrTooManyAttempts
		}
	}

	u, err := s.Repo.GetByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, s.internal(err, "lookup identity by email failed", nil)
		}
		// keep the unknown-email path as slow as a real comparison
		s.Hasher.Verify(in.Password, s.timingHash())
		return nil, ErrInvalidCredentials
	}
	if !u.HasPassword() {
		s.Hasher.Verify(in.Password, s.timingHash())
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Verify(in.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveAccount
	}

	if s.Hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, in.Password)
	}
	if s.Throttle != nil {
		if rErr := s.Throttle.Reset(ctx, throttleKey); rErr != nil {
			s.Logger.WithError(rErr).Warn("login throttle reset failed")
		}
	}

	tok, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Identity: u, Token: tok}, nil
}

// OAuthLogin resolves a Google identity by external id, then by email
// (linking the account), and finally creates a password-less account.
func (s *AuthService) OAuthLogin(ctx context.Context, idToken string) (res *AuthResult, err error) {
	defer func() { observeAttempt(methodGoogle, err) }()

	if s.Verifier == nil || idToken == "" {
		return nil, ErrOAuthVerificationFailed
	}
	ext, err := s.Verifier.Verify(ctx, idToken)
	if err != nil || ext == nil || ext.Subject == "" || ext.Email == "" {
		return nil, ErrOAuthVerificationFailed
	}

	u, err := s.resolveExternal(ctx, ext)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInactiveAccount
	}

	tok, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Identity: u, Token: tok}, nil
}

func (s *AuthService) resolveExternal(ctx context.Context, ext *entity.ExternalIdentity) (*entity.Identity, error) {
	u, err := s.Repo.GetByExternalID(ctx, ext.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, s.internal(err, "lookup identity by external id failed", nil)
	}

	u, err = s.Repo.GetByEmail(ctx, ext.Email)
	switch {
	case err == nil:
		if err := s.Repo.LinkExternal(ctx, u.ID, entity.ProviderGoogle, ext.Subject, ext.EmailVerified); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return nil, ErrDuplicateAccount
			}
			return nil, s.internal(err, "link external identity failed", logrus.Fields{"identity_id": u.ID})
		}
		u.ExternalID = ext.Subject
		u.OAuthProvider = entity.ProviderGoogle
		u.EmailVerified = ext.EmailVerified
		s.Logger.WithField("identity_id", u.ID).Info("external identity linked")
		publishIdentityEvent(ctx, s.Events, s.Logger, entity.EventIdentityLinked, u)
		return u, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, s.internal(err, "lookup identity by email failed", nil)
	}

	u = entity.NewIdentity(ext.Email)
	u.OAuthProvider = entity.ProviderGoogle
	u.ExternalID = ext.Subject
	u.EmailVerified = ext.EmailVerified
	u.FirstName = ext.FirstName
	u.LastName = ext.LastName
	u.FullName = entity.JoinName(ext.FirstName, ext.LastName)
	u.AvatarURL = ext.AvatarURL
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, s.internal(err, "create external identity failed", nil)
	}
	s.Logger.WithField("identity_id", u.ID).Info("identity registered via google")
	publishIdentityEvent(ctx, s.Events, s.Logger, entity.EventIdentityRegistered, u)
	return u, nil
}

// ResolveFromToken returns the identity a session token belongs to.
// Activity and role checks are left to the gate.
func (s *AuthService) ResolveFromToken(ctx context.Context, token string) (u *entity.Identity, err error) {
	defer func() {
		if !errors.Is(err, ErrInternal) {
			observeAttempt(methodToken, err)
		}
	}()

	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if s.Denylist != nil {
		revoked, dErr := s.Denylist.IsRevoked(ctx, claims.ID)
		if dErr != nil {
			return nil, s.internal(dErr, "denylist lookup failed", nil)
		}
		if revoked {
			return nil, ErrUnauthenticated
		}
	}

	u, err = s.Repo.GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, s.internal(err, "lookup identity by email failed", nil)
	}
	if u.ID != claims.UserID {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// CurrentActiveUser is ResolveFromToken followed by RequireActive.
func (s *AuthService) CurrentActiveUser(ctx context.Context, token string) (*entity.Identity, error) {
	u, err := s.ResolveFromToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return RequireActive(u)
}

// RefreshToken issues a fresh token for an already resolved identity. The
// previous token stays valid until its own expiry unless revoked.
func (s *AuthService) RefreshToken(ctx context.Context, u *entity.Identity) (*Token, error) {
	if _, err := RequireActive(u); err != nil {
		return nil, err
	}
	tok, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// Logout revokes the token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.Denylist == nil {
		return ErrRevocationDisabled
	}
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return ErrUnauthenticated
	}
	if err := s.Denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return s.internal(err, "revoke token failed", logrus.Fields{"identity_id": claims.UserID})
	}
	s.Logger.WithField("identity_id", claims.UserID).Info("token revoked")
	return nil
}

func (s *AuthService) issue(u *entity.Identity) (Token, error) {
	ttl := s.Tokens.TTL()
	raw, claims, err := s.Tokens.Issue(u.Email, u.ID, ttl)
	if err != nil {
		return Token{}, s.internal(err, "sign token failed", logrus.Fields{"identity_id": u.ID})
	}
	return Token{
		AccessToken: raw,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl / time.Second),
		ExpiresAt:   claims.ExpiresAt.Time,
		UserID:      u.ID,
		Email:       u.Email,
	}, nil
}

func (s *AuthService) rehash(ctx context.Context, u *entity.Identity, plain string) {
	hash, err := s.Hasher.Hash(plain)
	if err != nil {
		s.Logger.WithError(err).WithField("identity_id", u.ID).Warn("password rehash failed")
		return
	}
	if err := s.Repo.SetPasswordHash(ctx, u.ID, hash); err != nil {
		s.Logger.WithError(err).WithField("identity_id", u.ID).Warn("persist rehashed password failed")
		return
	}
	u.PasswordHash = hash
}

func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("fluxa-timing-equalizer")
	})
	return s.dummyHash
}

func (s *AuthService) internal(err error, msg string, fields logrus.Fields) error {
	s.Logger.WithError(err).WithFields(fields).Error(msg)
	return ErrInternal
}
