package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

func TestGate(t *testing.T) {
	active := entity.NewIdentity("a@x.com")
	inactive := entity.NewIdentity("b@x.com")
	inactive.IsActive = false
	admin := entity.NewIdentity("root@x.com")
	admin.IsSuperuser = true
	inactiveAdmin := entity.NewIdentity("old-root@x.com")
	inactiveAdmin.IsSuperuser = true
	inactiveAdmin.IsActive = false

	tests := []struct {
		name       string
		identity   *entity.Identity
		activeErr  error
		elevateErr error
	}{
		{"nil identity", nil, ErrUnauthenticated, ErrUnauthenticated},
		{"active user", active, nil, ErrInsufficientPrivilege},
		{"inactive user", inactive, ErrInactiveAccount, ErrInactiveAccount},
		{"superuser", admin, nil, nil},
		{"inactive superuser", inactiveAdmin, ErrInactiveAccount, ErrInactiveAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RequireActive(tt.identity)
			if tt.activeErr != nil {
				assert.ErrorIs(t, err, tt.activeErr)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Same(t, tt.identity, got)
			}

			got, err = RequireSuperuser(tt.identity)
			if tt.elevateErr != nil {
				assert.ErrorIs(t, err, tt.elevateErr)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Same(t, tt.identity, got)
			}
		})
	}
}
