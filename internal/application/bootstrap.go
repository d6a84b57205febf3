package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// BootstrapSuperuser seeds the first admin account. It is a no-op when an
// identity with that email already exists, including one created by a
// concurrent bootstrap. The boolean reports whether a row was inserted.
func BootstrapSuperuser(ctx context.Context, r repo.IdentityRepository, hasher *helpers.PasswordHasher, email, password string, logger *logrus.Logger) (bool, error) {
	logger = loggerOrDefault(logger)
	if email == "" || password == "" {
		return false, ErrInvalidInput
	}

	_, err := r.GetByEmail(ctx, email)
	if err == nil {
		logger.WithField("email", email).Debug("superuser already present")
		return false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		logger.WithError(err).Error("lookup superuser failed")
		return false, ErrInternal
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		logger.WithError(err).Error("hash superuser password failed")
		return false, ErrInternal
	}

	u := entity.NewIdentity(email)
	u.PasswordHash = hash
	u.OAuthProvider = entity.ProviderLocal
	u.IsSuperuser = true
	u.FullName = "Admin User"

	if err := r.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return false, nil
		}
		logger.WithError(err).Error("create superuser failed")
		return false, ErrInternal
	}
	logger.WithFields(logrus.Fields{"email": email, "identity_id": u.ID}).Info("superuser created")
	return true, nil
}
