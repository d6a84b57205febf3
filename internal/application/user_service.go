package application

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

const (
	defaultListLimit   = 100
	maxListLimit       = 100
	defaultSearchSize  = 10
	maxSearchSize      = 50
	maxAvatarNameBytes = 255
)

// UserService covers account self-service and superuser administration.
type UserService struct {
	Repo    repo.IdentityRepository
	Hasher  *helpers.PasswordHasher
	Avatars AvatarStore
	Index   IdentityIndex
	Events  EventPublisher
	Logger  *logrus.Logger
}

func NewUserService(r repo.IdentityRepository, hasher *helpers.PasswordHasher, avatars AvatarStore, index IdentityIndex, events EventPublisher, logger *logrus.Logger) *UserService {
	return &UserService{
		Repo:    r,
		Hasher:  hasher,
		Avatars: avatars,
		Index:   index,
		Events:  events,
		Logger:  loggerOrDefault(logger),
	}
}

// ProfilePatch lists every field a user may change about themselves.
// Nil means "leave as is".
type ProfilePatch struct {
	FirstName       *string `json:"first_name" validate:"omitempty,max=100"`
	LastName        *string `json:"last_name" validate:"omitempty,max=100"`
	FullName        *string `json:"full_name" validate:"omitempty,max=200"`
	AvatarURL       *string `json:"avatar_url" validate:"omitempty,url"`
	Bio             *string `json:"bio" validate:"omitempty,max=1000"`
	Website         *string `json:"website" validate:"omitempty,url"`
	GithubUsername  *string `json:"github_username" validate:"omitempty,max=39,excludesall=/ "`
	TwitterUsername *string `json:"twitter_username" validate:"omitempty,max=15,excludesall=/ "`
}

// Apply merges the patch into u and reports whether anything changed.
func (p ProfilePatch) Apply(u *entity.Identity) bool {
	changed := false
	set := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.FullName, p.FullName)
	set(&u.AvatarURL, p.AvatarURL)
	set(&u.Bio, p.Bio)
	set(&u.Website, p.Website)
	set(&u.GithubUsername, p.GithubUsername)
	set(&u.TwitterUsername, p.TwitterUsername)
	return changed
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"pwd"`
}

// GetProfile reloads the actor so callers see stored state.
func (s *UserService) GetProfile(ctx context.Context, actor *entity.Identity) (*entity.Identity, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.ID)
}

func (s *UserService) UpdateProfile(ctx context.Context, actor *entity.Identity, patch ProfilePatch) (*entity.Identity, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !patch.Apply(u) {
		return u, nil
	}
	if err := s.written(s.Repo.UpdateProfile(ctx, u), "update profile failed", u.ID); err != nil {
		return nil, err
	}
	publishIdentityEvent(ctx, s.Events, s.Logger, entity.EventIdentityUpdated, u)
	return u, nil
}

// ChangePassword fails with ErrInvalidCredentials for provider-only accounts
// as well as for a wrong current password.
func (s *UserService) ChangePassword(ctx context.Context, actor *entity.Identity, in ChangePasswordInput) error {
	if _, err := RequireActive(actor); err != nil {
		return err
	}
	if err := validateInput(in); err != nil {
		return err
	}
	u, err := s.load(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !u.HasPassword() || !s.Hasher.Verify(in.CurrentPassword, u.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		return s.internal(err, "hash password failed", u.ID)
	}
	if err := s.written(s.Repo.SetPasswordHash(ctx, u.ID, hash), "store password hash failed", u.ID); err != nil {
		return err
	}
	s.Logger.WithField("identity_id", u.ID).Info("password changed")
	return nil
}

// UploadAvatar stores the image under avatars/<id>/<uuid><ext> and points
// the profile at its public URL.
func (s *UserService) UploadAvatar(ctx context.Context, actor *entity.Identity, r io.Reader, filename, contentType string) (string, error) {
	if _, err := RequireActive(actor); err != nil {
		return "", err
	}
	if !strings.HasPrefix(contentType, "image/") || len(filename) > maxAvatarNameBytes {
		return "", ErrInvalidInput
	}
	if s.Avatars == nil {
		return "", s.internal(errors.New("avatar storage not configured"), "upload avatar failed", actor.ID)
	}
	u, err := s.load(ctx, actor.ID)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := path.Join("avatars", strconv.FormatInt(u.ID, 10), uuid.NewString()+ext)
	url, err := s.Avatars.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return "", s.internal(err, "upload avatar failed", u.ID)
	}

	u.AvatarURL = url
	if err := s.written(s.Repo.UpdateProfile(ctx, u), "update avatar failed", u.ID); err != nil {
		return "", err
	}
	publishIdentityEvent(ctx, s.Events, s.Logger, entity.EventIdentityUpdated, u)
	return url, nil
}

// GetByID lets identities read themselves and superusers read anyone.
func (s *UserService) GetByID(ctx context.Context, actor *entity.Identity, id int64) (*entity.Identity, error) {
	if _, err := RequireActive(actor); err != nil {
		return nil, err
	}
	if actor.ID != id && !actor.IsSuperuser {
		return nil, ErrInsufficientPrivilege
	}
	return s.load(ctx, id)
}

func (s *UserService) List(ctx context.Context, actor *entity.Identity, offset, limit int) ([]*entity.Identity, error) {
	if _, err := RequireSuperuser(actor); err != nil {
		return nil, err
	}
	offset, limit = clampPage(offset, limit)
	list, err := s.Repo.List(ctx, offset, limit)
	if err != nil {
		return nil, s.internal(err, "list identities failed", actor.ID)
	}
	return list, nil
}

// Search runs a full-text query over the identity index. Without an index
// configured it returns no hits.
func (s *UserService) Search(ctx context.Context, actor *entity.Identity, q string, size int) ([]entity.IdentityDocument, error) {
	if _, err := RequireSuperuser(actor); err != nil {
		return nil, err
	}
	if s.Index == nil {
		return []entity.IdentityDocument{}, nil
	}
	if size <= 0 || size > maxSearchSize {
		size = defaultSearchSize
	}
	hits, err := s.Index.Search(ctx, q, size)
	if err != nil {
		return nil, s.internal(err, "search identities failed", actor.ID)
	}
	return hits, nil
}

func (s *UserService) SetActive(ctx context.Context, actor *entity.Identity, id int64, active bool) (*entity.Identity, error) {
	if _, err := RequireSuperuser(actor); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsActive == active {
		return u, nil
	}
	if err := s.written(s.Repo.SetActive(ctx, u.ID, active), "set active failed", u.ID); err != nil {
		return nil, err
	}
	u.IsActive = active

	typ := entity.EventIdentityDeactivated
	if active {
		typ = entity.EventIdentityActivated
	}
	s.Logger.WithFields(logrus.Fields{"identity_id": u.ID, "actor_id": actor.ID, "active": active}).Info("identity activity changed")
	publishIdentityEvent(ctx, s.Events, s.Logger, typ, u)
	return u, nil
}

func (s *UserService) SetSuperuser(ctx context.Context, actor *entity.Identity, id int64, flag bool) (*entity.Identity, error) {
	if _, err := RequireSuperuser(actor); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsSuperuser == flag {
		return u, nil
	}
	if err := s.written(s.Repo.SetSuperuser(ctx, u.ID, flag), "set superuser failed", u.ID); err != nil {
		return nil, err
	}
	u.IsSuperuser = flag
	s.Logger.WithFields(logrus.Fields{"identity_id": u.ID, "actor_id": actor.ID, "superuser": flag}).Info("identity privilege changed")
	publishIdentityEvent(ctx, s.Events, s.Logger, entity.EventIdentityUpdated, u)
	return u, nil
}

func (s *UserService) load(ctx context.Context, id int64) (*entity.Identity, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal(err, "load identity failed", id)
	}
	return u, nil
}

// written maps the result of a scoped store write.
func (s *UserService) written(err error, msg string, identityID int64) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return s.internal(err, msg, identityID)
}

func (s *UserService) internal(err error, msg string, identityID int64) error {
	s.Logger.WithError(err).WithField("identity_id", identityID).Error(msg)
	return ErrInternal
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return offset, limit
}
