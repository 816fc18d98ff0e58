package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"imagevault/internal/auth"
	"imagevault/internal/errors"
	"imagevault/internal/model"
	"imagevault/internal/repository"
)

const testSecret = "test-secret"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func bearerFor(t *testing.T, tokens *auth.JWTService, email string) string {
	t.Helper()
	token, err := tokens.Issue(&model.Identity{Email: email})
	require.NoError(t, err)
	return auth.BearerPrefix + token
}

// MockIdentityRepository is a mock implementation of IdentityRepository.
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *model.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) Update(ctx context.Context, identity *model.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockIdentityRepository) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *MockIdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityRepository) FindByResetToken(ctx context.Context, token string) (*model.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

// WithTransaction runs fn against the mock itself.
func (m *MockIdentityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.IdentityRepository) error) error {
	return fn(ctx, m)
}

// MockAssetRepository is a mock implementation of AssetRepository.
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) Create(ctx context.Context, asset *model.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockAssetRepository) Update(ctx context.Context, asset *model.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockAssetRepository) FindByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*model.Asset, error) {
	args := m.Called(ctx, ownerID, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Asset), args.Error(1)
}

func (m *MockAssetRepository) ExistsByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (bool, error) {
	args := m.Called(ctx, ownerID, filename)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssetRepository) DeleteByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) error {
	args := m.Called(ctx, ownerID, filename)
	return args.Error(0)
}

func (m *MockAssetRepository) ExistsByOwnerAndCreatedAt(ctx context.Context, ownerID uuid.UUID, createdAt time.Time) (bool, error) {
	args := m.Called(ctx, ownerID, createdAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssetRepository) FindByOwnerAndCreatedAt(ctx context.Context, ownerID uuid.UUID, createdAt time.Time, page repository.Page, order repository.SortOrder) ([]model.Asset, error) {
	args := m.Called(ctx, ownerID, createdAt, page, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Asset), args.Error(1)
}

func (m *MockAssetRepository) ExistsByOwner(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, ownerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssetRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, order repository.SortOrder) ([]model.Asset, error) {
	args := m.Called(ctx, ownerID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Asset), args.Error(1)
}

func (m *MockAssetRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.AssetRepository) error) error {
	return fn(ctx, m)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendResetLink(ctx context.Context, to, link string) error {
	args := m.Called(ctx, to, link)
	return args.Error(0)
}

// fakeIdentityRepository is an in-memory credential store with a unique email index.
type fakeIdentityRepository struct {
	mu      sync.Mutex
	byEmail map[string]model.Identity
}

func newFakeIdentityRepository() *fakeIdentityRepository {
	return &fakeIdentityRepository{byEmail: map[string]model.Identity{}}
}

func (f *fakeIdentityRepository) Create(_ context.Context, identity *model.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[identity.Email]; ok {
		return errors.AlreadyExists("User with that email already exists")
	}
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	f.byEmail[identity.Email] = *identity
	return nil
}

func (f *fakeIdentityRepository) Update(_ context.Context, identity *model.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byEmail[identity.Email] = *identity
	return nil
}

func (f *fakeIdentityRepository) FindByEmail(_ context.Context, email string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &identity, nil
}

func (f *fakeIdentityRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeIdentityRepository) FindByResetToken(_ context.Context, token string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.byEmail {
		if identity.ResetToken != nil && *identity.ResetToken == token {
			found := identity
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeIdentityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.IdentityRepository) error) error {
	return fn(ctx, f)
}

// fakeAssetRepository is an in-memory asset store that keeps insertion order
// as its natural order and enforces (owner, filename) uniqueness.
type fakeAssetRepository struct {
	mu     sync.Mutex
	assets []model.Asset
}

func (f *fakeAssetRepository) Create(_ context.Context, asset *model.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.OwnerID == asset.OwnerID && a.Filename == asset.Filename {
			return errors.AlreadyExists("Image %s already exists", asset.Filename)
		}
	}
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	f.assets = append(f.assets, *asset)
	return nil
}

func (f *fakeAssetRepository) Update(_ context.Context, asset *model.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.ID != asset.ID && a.OwnerID == asset.OwnerID && a.Filename == asset.Filename {
			return errors.AlreadyExists("Image %s already exists", asset.Filename)
		}
	}
	for i := range f.assets {
		if f.assets[i].ID == asset.ID {
			f.assets[i] = *asset
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeAssetRepository) FindByOwnerAndFilename(_ context.Context, ownerID uuid.UUID, filename string) (*model.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assets {
		if a.OwnerID == ownerID && a.Filename == filename {
			found := a
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAssetRepository) ExistsByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (bool, error) {
	_, err := f.FindByOwnerAndFilename(ctx, ownerID, filename)
	return err == nil, nil
}

func (f *fakeAssetRepository) DeleteByOwnerAndFilename(_ context.Context, ownerID uuid.UUID, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.assets[:0]
	for _, a := range f.assets {
		if a.OwnerID == ownerID && a.Filename == filename {
			continue
		}
		kept = append(kept, a)
	}
	f.assets = kept
	return nil
}

func (f *fakeAssetRepository) ExistsByOwnerAndCreatedAt(_ context.Context, ownerID uuid.UUID, createdAt time.Time) (bool, error) {
	return len(f.filter(func(a model.Asset) bool {
		return a.OwnerID == ownerID && a.CreatedAt.Equal(createdAt)
	})) > 0, nil
}

func (f *fakeAssetRepository) FindByOwnerAndCreatedAt(_ context.Context, ownerID uuid.UUID, createdAt time.Time, page repository.Page, order repository.SortOrder) ([]model.Asset, error) {
	matched := sortBySize(f.filter(func(a model.Asset) bool {
		return a.OwnerID == ownerID && a.CreatedAt.Equal(createdAt)
	}), order)
	start := page.Offset()
	if start >= len(matched) {
		return []model.Asset{}, nil
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func (f *fakeAssetRepository) ExistsByOwner(_ context.Context, ownerID uuid.UUID) (bool, error) {
	return len(f.filter(func(a model.Asset) bool { return a.OwnerID == ownerID })) > 0, nil
}

func (f *fakeAssetRepository) FindByOwner(_ context.Context, ownerID uuid.UUID, order repository.SortOrder) ([]model.Asset, error) {
	return sortBySize(f.filter(func(a model.Asset) bool { return a.OwnerID == ownerID }), order), nil
}

func (f *fakeAssetRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.AssetRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeAssetRepository) filter(keep func(model.Asset) bool) []model.Asset {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Asset
	for _, a := range f.assets {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func sortBySize(assets []model.Asset, order repository.SortOrder) []model.Asset {
	switch order {
	case repository.SortAsc:
		sort.SliceStable(assets, func(i, j int) bool { return assets[i].SizeBytes < assets[j].SizeBytes })
	case repository.SortDesc:
		sort.SliceStable(assets, func(i, j int) bool { return assets[i].SizeBytes > assets[j].SizeBytes })
	}
	return assets
}

// recordingActivity captures activity entries synchronously.
type recordingActivity struct {
	mu      sync.Mutex
	actions []model.ActivityAction
}

func (r *recordingActivity) Record(_ context.Context, _ uuid.UUID, action model.ActivityAction, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

// objectStore is an in-memory PayloadStore that keeps bytes out of the row,
// writing every Put under a new key like the S3 driver.
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes []string
}

func newObjectStore() *objectStore {
	return &objectStore{objects: map[string][]byte{}}
}

func (s *objectStore) Put(_ context.Context, asset *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	key := fmt.Sprintf("images/%s/%s/%d", asset.OwnerID, asset.ID, s.puts)
	s.objects[key] = append([]byte(nil), asset.Payload...)
	asset.StorageKey = key
	asset.Payload = nil
	return nil
}

func (s *objectStore) Load(_ context.Context, asset *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if asset.StorageKey == "" {
		return nil
	}
	payload, ok := s.objects[asset.StorageKey]
	if !ok {
		return fmt.Errorf("no object %s", asset.StorageKey)
	}
	asset.Payload = append([]byte(nil), payload...)
	return nil
}

func (s *objectStore) Delete(_ context.Context, asset *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if asset.StorageKey == "" {
		return nil
	}
	s.deletes = append(s.deletes, asset.StorageKey)
	delete(s.objects, asset.StorageKey)
	return nil
}
