package main

import (
	"context"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

type MockFlagStorage struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value string) error
	DeleteFunc func(ctx context.Context, key string) error
	KeysFunc   func(ctx context.Context) ([]string, error)
}

// Get mocks the behavior of reading a flag from the store.
func (m *MockFlagStorage) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}

// Set mocks the behavior of persisting a flag into the store.
func (m *MockFlagStorage) Set(ctx context.Context, key string, value string) error {
	return m.SetFunc(ctx, key, value)
}

// Delete mocks the behavior of removing a flag from the store.
func (m *MockFlagStorage) Delete(ctx context.Context, key string) error {
	return m.DeleteFunc(ctx, key)
}

// Keys mocks the behavior of listing all flag keys from the store.
func (m *MockFlagStorage) Keys(ctx context.Context) ([]string, error) {
	return m.KeysFunc(ctx)
}

// MemoryFlagStorage is an in-memory FlagStorage for tests exercising
// full read-modify-write flows.
type MemoryFlagStorage struct {
	flags map[string]string
	fail  error
}

func NewMemoryFlagStorage() *MemoryFlagStorage {
	return &MemoryFlagStorage{flags: make(map[string]string)}
}

// FailWith makes every subsequent store operation fail with err.
func (m *MemoryFlagStorage) FailWith(err error) {
	m.fail = err
}

func (m *MemoryFlagStorage) Get(_ context.Context, key string) (string, error) {
	if m.fail != nil {
		return "", m.fail
	}
	value, ok := m.flags[key]
	if !ok {
		return "", ErrFlagNotFound
	}
	return value, nil
}

func (m *MemoryFlagStorage) Set(_ context.Context, key string, value string) error {
	if m.fail != nil {
		return m.fail
	}
	m.flags[key] = value
	return nil
}

func (m *MemoryFlagStorage) Delete(_ context.Context, key string) error {
	if m.fail != nil {
		return m.fail
	}
	delete(m.flags, key)
	return nil
}

func (m *MemoryFlagStorage) Keys(_ context.Context) ([]string, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	keys := make([]string, 0, len(m.flags))
	for k := range m.flags {
		keys = append(keys, k)
	}
	return keys, nil
}

// MockCatalog implements CatalogProvider with canned results.
type MockCatalog struct {
	FetchAllFunc func(ctx context.Context) ([]Book, error)
}

func (m *MockCatalog) FetchAll(ctx context.Context) ([]Book, error) {
	return m.FetchAllFunc(ctx)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2024, 0o3, 0o1, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}

// MockPermissionGuard grants or refuses the shared storage permission.
type MockPermissionGuard struct {
	Err error
}

func (m *MockPermissionGuard) RequestWrite(_ string) error {
	return m.Err
}

// MockFileOpener records the paths handed to the platform opener.
type MockFileOpener struct {
	Opened []string
	Err    error
}

func (m *MockFileOpener) Open(path string) error {
	m.Opened = append(m.Opened, path)
	return m.Err
}
