package application

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

func newUserService(t *testing.T) (*UserService, *memIdentities) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	store := newMemIdentities()
	return NewUserService(store, testHasher(), nil, nil, nil, logger), store
}

func ptr[T any](v T) *T { return &v }

func seedAdmin(store *memIdentities) *entity.Identity {
	u := localIdentity("root@x.com", "rootpassword")
	u.IsSuperuser = true
	return store.seed(u)
}

func TestUpdateProfile_AllowListedFieldsOnly(t *testing.T) {
	svc, store := newUserService(t)
	u := store.seed(localIdentity("a@x.com", "longenough1"))

	got, err := svc.UpdateProfile(context.Background(), u, ProfilePatch{
		FullName: ptr("Ada Lovelace"),
		Bio:      ptr("math"),
		Website:  ptr("https://ada.example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.FullName)
	assert.Equal(t, "Ada Lovelace", got.DisplayName())
	assert.Equal(t, "math", got.Bio)

	stored, _ := store.GetByID(context.Background(), u.ID)
	assert.Equal(t, u.Email, stored.Email)
	assert.Equal(t, u.PasswordHash, stored.PasswordHash)
	assert.False(t, stored.IsSuperuser)
	assert.Equal(t, "https://ada.example.com", stored.Website)
}

func TestUpdateProfile_ValidationAndGate(t *testing.T) {
	svc, store := newUserService(t)
	u := store.seed(localIdentity("a@x.com", "longenough1"))

	_, err := svc.UpdateProfile(context.Background(), u, ProfilePatch{Website: ptr("not a url")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	u.IsActive = false
	_, err = svc.UpdateProfile(context.Background(), u, ProfilePatch{Bio: ptr("x")})
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestUpdateProfile_PublishesOnlyOnChange(t *testing.T) {
	svc, store := newUserService(t)
	pub := &mockPublisher{}
	svc.Events = pub
	u := store.seed(localIdentity("a@x.com", "longenough1"))
	pub.On("PublishJSON", mock.Anything, mock.MatchedBy(func(ev entity.IdentityEvent) bool {
		return ev.Type == entity.EventIdentityUpdated
	})).Return(nil).Once()

	_, err := svc.UpdateProfile(context.Background(), u, ProfilePatch{Bio: ptr("hello")})
	require.NoError(t, err)
	_, err = svc.UpdateProfile(context.Background(), u, ProfilePatch{Bio: ptr("hello")})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	u := store.seed(localIdentity("a@x.com", "longenough1"))

	err := svc.ChangePassword(ctx, u, ChangePasswordInput{CurrentPassword: "wrong-one", NewPassword: "brandnew123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, u, ChangePasswordInput{CurrentPassword: "longenough1", NewPassword: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.ChangePassword(ctx, u, ChangePasswordInput{CurrentPassword: "longenough1", NewPassword: strings.Repeat("é", 40)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.ChangePassword(ctx, u, ChangePasswordInput{CurrentPassword: "longenough1", NewPassword: "brandnew123"}))
	stored, _ := store.GetByID(ctx, u.ID)
	assert.True(t, testHasher().Verify("brandnew123", stored.PasswordHash))
	assert.False(t, testHasher().Verify("longenough1", stored.PasswordHash))
}

func TestChangePassword_OAuthOnlyAccount(t *testing.T) {
	svc, store := newUserService(t)
	g := entity.NewIdentity("g@x.com")
	g.OAuthProvider = entity.ProviderGoogle
	g.ExternalID = "g-1"
	u := store.seed(g)

	err := svc.ChangePassword(context.Background(), u, ChangePasswordInput{CurrentPassword: "anything", NewPassword: "brandnew123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	avatars := &mockAvatars{}
	svc.Avatars = avatars
	u := store.seed(localIdentity("a@x.com", "longenough1"))

	pathRe := regexp.MustCompile(`^avatars/1/[0-9a-f-]{36}\.png$`)
	avatars.On("Upload", mock.Anything, mock.MatchedBy(pathRe.MatchString), "image/png", mock.Anything).
		Return("https://storage.googleapis.com/bucket/avatars/1/x.png", nil).Once()

	url, err := svc.UploadAvatar(ctx, u, strings.NewReader("png-bytes"), "Me.PNG", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/bucket/avatars/1/x.png", url)

	stored, _ := store.GetByID(ctx, u.ID)
	assert.Equal(t, url, stored.AvatarURL)
	avatars.AssertExpectations(t)

	_, err = svc.UploadAvatar(ctx, u, strings.NewReader("x"), "doc.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrInvalidInput)

	avatars.On("Upload", mock.Anything, mock.Anything, "image/jpeg", mock.Anything).Return("", errors.New("gcs 503")).Once()
	_, err = svc.UploadAvatar(ctx, u, strings.NewReader("x"), "a.jpg", "image/jpeg")
	assert.ErrorIs(t, err, ErrInternal)
}

func TestGetByID_SelfOrSuperuser(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	a := store.seed(localIdentity("a@x.com", "longenough1"))
	b := store.seed(localIdentity("b@x.com", "longenough1"))
	admin := seedAdmin(store)

	got, err := svc.GetByID(ctx, a, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = svc.GetByID(ctx, a, b.ID)
	assert.ErrorIs(t, err, ErrInsufficientPrivilege)

	got, err = svc.GetByID(ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = svc.GetByID(ctx, admin, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_SuperuserOnlyAndClamped(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	a := store.seed(localIdentity("a@x.com", "longenough1"))
	admin := seedAdmin(store)

	_, err := svc.List(ctx, a, 0, 10)
	assert.ErrorIs(t, err, ErrInsufficientPrivilege)

	list, err := svc.List(ctx, admin, -5, 1000)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.List(ctx, admin, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, admin.ID, list[0].ID)

	assert.Equal(t, []int{0, 100}, func() []int { o, l := clampPage(-1, 0); return []int{o, l} }())
	assert.Equal(t, []int{3, 100}, func() []int { o, l := clampPage(3, 500); return []int{o, l} }())
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	admin := seedAdmin(store)

	hits, err := svc.Search(ctx, admin, "ada", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	idx := &mockIndex{}
	svc.Index = idx
	idx.On("Search", mock.Anything, "ada", 10).Return([]entity.IdentityDocument{{ID: 3, Email: "ada@x.com"}}, nil).Once()

	hits, err = svc.Search(ctx, admin, "ada", 500)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ada@x.com", hits[0].Email)
	idx.AssertExpectations(t)
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	pub := &mockPublisher{}
	svc.Events = pub
	a := store.seed(localIdentity("a@x.com", "longenough1"))
	admin := seedAdmin(store)

	pub.On("PublishJSON", mock.Anything, mock.MatchedBy(func(ev entity.IdentityEvent) bool {
		return ev.Type == entity.EventIdentityDeactivated && ev.IdentityID == a.ID
	})).Return(nil).Once()
	pub.On("PublishJSON", mock.Anything, mock.MatchedBy(func(ev entity.IdentityEvent) bool {
		return ev.Type == entity.EventIdentityActivated && ev.IdentityID == a.ID
	})).Return(nil).Once()

	_, err := svc.SetActive(ctx, a, admin.ID, false)
	assert.ErrorIs(t, err, ErrInsufficientPrivilege)

	got, err := svc.SetActive(ctx, admin, a.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// no-op does not publish
	_, err = svc.SetActive(ctx, admin, a.ID, false)
	require.NoError(t, err)

	got, err = svc.SetActive(ctx, admin, a.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	pub.AssertExpectations(t)
}

func TestSetSuperuser(t *testing.T) {
	ctx := context.Background()
	svc, store := newUserService(t)
	a := store.seed(localIdentity("a@x.com", "longenough1"))
	admin := seedAdmin(store)

	got, err := svc.SetSuperuser(ctx, admin, a.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsSuperuser)

	_, err = svc.SetSuperuser(ctx, admin, 4242, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfilePatch_Apply(t *testing.T) {
	u := entity.NewIdentity("a@x.com")
	assert.False(t, ProfilePatch{}.Apply(u))
	assert.True(t, ProfilePatch{GithubUsername: ptr("ada"), TwitterUsername: ptr("ada")}.Apply(u))
	assert.Equal(t, "ada", u.GithubUsername)
	assert.Equal(t, "ada", u.TwitterUsername)
}
