package application

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/fluxa/internal/domain/entity"
	repo "github.com/oksasatya/fluxa/internal/domain/repository"
	"github.com/oksasatya/fluxa/pkg/helpers"
)

// memIdentities mimics the Postgres store: unique email and external id,
// copies in and out.
type memIdentities struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]entity.Identity

	failNext error
	// afterRead runs once, after the next successful lookup returns its copy.
	afterRead func(id int64)
}

func newMemIdentities() *memIdentities {
	return &memIdentities{rows: map[int64]entity.Identity{}}
}

func (m *memIdentities) fail() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memIdentities) conflicts(u *entity.Identity) bool {
	for id, row := range m.rows {
		if id == u.ID {
			continue
		}
		if row.Email == u.Email || (u.ExternalID != "" && row.ExternalID == u.ExternalID) {
			return true
		}
	}
	return false
}

func (m *memIdentities) Create(_ context.Context, u *entity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if m.conflicts(u) {
		return repo.ErrDuplicate
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.rows[u.ID] = *u
	return nil
}

func (m *memIdentities) find(match func(entity.Identity) bool) (*entity.Identity, error) {
	u, err := m.lookup(match)
	if err == nil && m.afterRead != nil {
		hook := m.afterRead
		m.afterRead = nil
		hook(u.ID)
	}
	return u, err
}

func (m *memIdentities) lookup(match func(entity.Identity) bool) (*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	for _, row := range m.rows {
		if match(row) {
			cp := row
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memIdentities) GetByID(_ context.Context, id int64) (*entity.Identity, error) {
	return m.find(func(r entity.Identity) bool { return r.ID == id })
}

func (m *memIdentities) GetByEmail(_ context.Context, email string) (*entity.Identity, error) {
	return m.find(func(r entity.Identity) bool { return r.Email == email })
}

func (m *memIdentities) GetByExternalID(_ context.Context, externalID string) (*entity.Identity, error) {
	return m.find(func(r entity.Identity) bool { return externalID != "" && r.ExternalID == externalID })
}

func (m *memIdentities) GetByStripeSubscriptionID(_ context.Context, subscriptionID string) (*entity.Identity, error) {
	return m.find(func(r entity.Identity) bool { return subscriptionID != "" && r.StripeSubscriptionID == subscriptionID })
}

func (m *memIdentities) List(_ context.Context, offset, limit int) ([]*entity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []*entity.Identity
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		cp := m.rows[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}

// mutate applies fn to the stored row, like a column-scoped UPDATE.
func (m *memIdentities) mutate(id int64, fn func(*entity.Identity) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	row, ok := m.rows[id]
	if !ok {
		return repo.ErrNotFound
	}
	if err := fn(&row); err != nil {
		return err
	}
	row.UpdatedAt = time.Now().UTC()
	m.rows[id] = row
	return nil
}

func (m *memIdentities) UpdateProfile(_ context.Context, u *entity.Identity) error {
	return m.mutate(u.ID, func(row *entity.Identity) error {
		row.FirstName, row.LastName, row.FullName = u.FirstName, u.LastName, u.FullName
		row.AvatarURL, row.Bio, row.Website = u.AvatarURL, u.Bio, u.Website
		row.GithubUsername, row.TwitterUsername = u.GithubUsername, u.TwitterUsername
		return nil
	})
}

func (m *memIdentities) SetPasswordHash(_ context.Context, id int64, hash string) error {
	return m.mutate(id, func(row *entity.Identity) error {
		row.PasswordHash = hash
		return nil
	})
}

func (m *memIdentities) LinkExternal(_ context.Context, id int64, provider, externalID string, emailVerified bool) error {
	return m.mutate(id, func(row *entity.Identity) error {
		for otherID, other := range m.rows {
			if otherID != id && externalID != "" && other.ExternalID == externalID {
				return repo.ErrDuplicate
			}
		}
		row.OAuthProvider, row.ExternalID, row.EmailVerified = provider, externalID, emailVerified
		return nil
	})
}

func (m *memIdentities) SetActive(_ context.Context, id int64, active bool) error {
	return m.mutate(id, func(row *entity.Identity) error {
		row.IsActive = active
		return nil
	})
}

func (m *memIdentities) SetSuperuser(_ context.Context, id int64, flag bool) error {
	return m.mutate(id, func(row *entity.Identity) error {
		row.IsSuperuser = flag
		return nil
	})
}

func (m *memIdentities) UpdateBilling(_ context.Context, id int64, b entity.BillingUpdate) error {
	return m.mutate(id, func(row *entity.Identity) error {
		b.Apply(row)
		return nil
	})
}

func (m *memIdentities) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memIdentities) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// seed stores u as-is and returns the stored copy.
func (m *memIdentities) seed(u *entity.Identity) *entity.Identity {
	if err := m.Create(context.Background(), u); err != nil {
		panic(err)
	}
	cp := *u
	return &cp
}

type memProjects struct {
	mu       sync.Mutex
	nextID   int64
	projects map[int64]entity.Project
	files    map[int64]entity.ProjectFile
}

func newMemProjects() *memProjects {
	return &memProjects{projects: map[int64]entity.Project{}, files: map[int64]entity.ProjectFile{}}
}

func (m *memProjects) Create(_ context.Context, p *entity.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.projects[p.ID] = *p
	return nil
}

func (m *memProjects) GetByID(_ context.Context, id int64) (*entity.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &p, nil
}

func (m *memProjects) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]*entity.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Project
	for id := int64(1); id <= m.nextID; id++ {
		p, ok := m.projects[id]
		if ok && p.OwnerID == ownerID {
			out = append(out, &p)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, p *entity.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return repo.ErrNotFound
	}
	m.projects[p.ID] = *p
	return nil
}

func (m *memProjects) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.projects, id)
	for fid, f := range m.files {
		if f.ProjectID == id {
			delete(m.files, fid)
		}
	}
	return nil
}

func (m *memProjects) CreateFile(_ context.Context, f *entity.ProjectFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f.ID = m.nextID
	m.files[f.ID] = *f
	return nil
}

func (m *memProjects) GetFile(_ context.Context, projectID, fileID int64) (*entity.ProjectFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.ProjectID != projectID {
		return nil, repo.ErrNotFound
	}
	return &f, nil
}

func (m *memProjects) ListFiles(_ context.Context, projectID int64) ([]*entity.ProjectFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ProjectFile
	for id := int64(1); id <= m.nextID; id++ {
		f, ok := m.files[id]
		if ok && f.ProjectID == projectID {
			out = append(out, &f)
		}
	}
	return out, nil
}

func (m *memProjects) UpdateFile(_ context.Context, f *entity.ProjectFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.files[f.ID]
	if !ok || cur.ProjectID != f.ProjectID {
		return repo.ErrNotFound
	}
	m.files[f.ID] = *f
	return nil
}

func (m *memProjects) DeleteFile(_ context.Context, projectID, fileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.ProjectID != projectID {
		return repo.ErrNotFound
	}
	delete(m.files, fileID)
	return nil
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*entity.ExternalIdentity, error) {
	args := m.Called(ctx, idToken)
	ext, _ := args.Get(0).(*entity.ExternalIdentity)
	return ext, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishJSON(ctx context.Context, body any) error {
	return m.Called(ctx, body).Error(0)
}

type mockDenylist struct{ mock.Mock }

func (m *mockDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return m.Called(ctx, jti, expiresAt).Error(0)
}

func (m *mockDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

type mockThrottle struct{ mock.Mock }

func (m *mockThrottle) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockThrottle) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockAvatars struct{ mock.Mock }

func (m *mockAvatars) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, objectPath, contentType, r)
	return args.String(0), args.Error(1)
}

type mockIndex struct{ mock.Mock }

func (m *mockIndex) Index(ctx context.Context, doc entity.IdentityDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockIndex) Search(ctx context.Context, q string, size int) ([]entity.IdentityDocument, error) {
	args := m.Called(ctx, q, size)
	hits, _ := args.Get(0).([]entity.IdentityDocument)
	return hits, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) CreateCustomer(ctx context.Context, email string, identityID int64) (string, error) {
	args := m.Called(ctx, email, identityID)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) CreateCheckoutSession(ctx context.Context, customerID, priceID string, metadata map[string]string) (string, error) {
	args := m.Called(ctx, customerID, priceID, metadata)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *mockPayments) ParseWebhook(payload []byte, signatureHeader string) (*entity.PaymentEvent, error) {
	args := m.Called(payload, signatureHeader)
	ev, _ := args.Get(0).(*entity.PaymentEvent)
	return ev, args.Error(1)
}

func testHasher() *helpers.PasswordHasher {
	return helpers.NewPasswordHasher(bcrypt.MinCost)
}

func testCodec() *helpers.TokenCodec {
	return helpers.NewTokenCodec("test-secret-key-for-testing", 2*time.Hour)
}

// localIdentity returns an active local account whose password is pw.
func localIdentity(email, pw string) *entity.Identity {
	hash, err := testHasher().Hash(pw)
	if err != nil {
		panic(err)
	}
	u := entity.NewIdentity(email)
	u.PasswordHash = hash
	u.OAuthProvider = entity.ProviderLocal
	return u
}
