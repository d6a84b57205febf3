package application

import "github.com/oksasatya/fluxa/internal/domain/entity"

// RequireActive passes an identity that may use authenticated operations.
func RequireActive(u *entity.Identity) (*entity.Identity, error) {
	if u == nil {
		return nil, ErrUnauthenticated
	}
	if !u.IsActive {
		return nil, ErrInactiveAccount
	}
	return u, nil
}

// RequireSuperuser checks activity first, privilege second.
func RequireSuperuser(u *entity.Identity) (*entity.Identity, error) {
	u, err := RequireActive(u)
	if err != nil {
		return nil, err
	}
	if !u.IsSuperuser {
		return nil, ErrInsufficientPrivilege
	}
	return u, nil
}
