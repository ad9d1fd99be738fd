// package testing contains shared testing utilities
package testing

import (
	"cmp"
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/progress"
)

// FakeDirectory is an in-memory user directory honoring [models.UserQuery] filters and paging.
type FakeDirectory struct {
	mu       sync.Mutex
	users    []models.User
	Queries  []models.UserQuery
	ListErr  error
	CountErr error
}

// NewFakeDirectory creates a directory holding users.
func NewFakeDirectory(users ...models.User) *FakeDirectory {
	return &FakeDirectory{users: users}
}

// SeedUsers adds n users holding role, with ids continuing from the highest existing id.
func (d *FakeDirectory) SeedUsers(n int, role string) []models.User {
	d.mu.Lock()
	defer d.mu.Unlock()

	var next int64 = 1
	for _, u := range d.users {
		next = max(next, u.ID+1)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	added := make([]models.User, 0, n)
	for i := range n {
		id := next + int64(i)
		u := models.User{
			ID:           id,
			Login:        role + "-" + strconv.FormatInt(id, 10),
			Email:        role + "-" + strconv.FormatInt(id, 10) + "@example.com",
			RegisteredAt: base.Add(time.Duration(id) * time.Minute),
			Roles:        []string{role},
		}
		added = append(added, u)
	}
	d.users = append(d.users, added...)
	return added
}

func (d *FakeDirectory) ListUsers(_ context.Context, q models.UserQuery) ([]models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Queries = append(d.Queries, q)
	if d.ListErr != nil {
		return nil, d.ListErr
	}

	matched := d.match(q)
	if q.Order == models.OrderDesc {
		slices.Reverse(matched)
	}
	if q.Offset >= len(matched) {
		return []models.User{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (d *FakeDirectory) CountUsers(_ context.Context, q models.UserQuery) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.CountErr != nil {
		return 0, d.CountErr
	}
	return len(d.match(q)), nil
}

// match returns users passing the role and exclusion filters, ordered by id.
func (d *FakeDirectory) match(q models.UserQuery) []models.User {
	var out []models.User
	for _, u := range d.users {
		if len(q.RoleIn) > 0 && !slices.ContainsFunc(q.RoleIn, u.HasRole) {
			continue
		}
		if slices.Contains(q.Exclude, u.ID) {
			continue
		}
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// FakeAffiliates records inserted affiliates.
//
// FailOn makes the Nth insert (1-based, counted across the fake's lifetime) return InsertErr.
type FakeAffiliates struct {
	mu        sync.Mutex
	Existing  []int64
	Inserted  []*models.Affiliate
	IDsCalls  int
	FailOn    int
	InsertErr error
	IDsErr    error
	attempts  int
}

func (a *FakeAffiliates) InsertAffiliate(_ context.Context, aff *models.Affiliate) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.attempts++
	if a.FailOn > 0 && a.attempts == a.FailOn {
		return 0, a.InsertErr
	}

	aff.ID = int64(len(a.Inserted) + 1)
	a.Inserted = append(a.Inserted, aff)
	return aff.ID, nil
}

func (a *FakeAffiliates) AffiliateUserIDs(_ context.Context) ([]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.IDsCalls++
	if a.IDsErr != nil {
		return nil, a.IDsErr
	}
	ids := slices.Clone(a.Existing)
	for _, aff := range a.Inserted {
		ids = append(ids, aff.UserID)
	}
	return ids, nil
}

// ConvertedUserIDs returns the user id of every inserted affiliate in insertion order.
func (a *FakeAffiliates) ConvertedUserIDs() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]int64, 0, len(a.Inserted))
	for _, aff := range a.Inserted {
		ids = append(ids, aff.UserID)
	}
	return ids
}

// StaticAuthorizer answers every capability check with its own value.
type StaticAuthorizer bool

const (
	Allow StaticAuthorizer = true
	Deny  StaticAuthorizer = false
)

func (s StaticAuthorizer) CurrentPrincipalCan(context.Context, string) bool {
	return bool(s)
}

// RecordingStore is a [progress.MemoryStore] that counts writes and deletes per key.
//
// Keys listed in Fail return FailErr from every operation.
type RecordingStore struct {
	*progress.MemoryStore
	mu      sync.Mutex
	Writes  map[string]int
	Deletes map[string]int
	Fail    map[string]bool
	FailErr error
}

func NewRecordingStore() *RecordingStore {
	return &RecordingStore{
		MemoryStore: progress.NewMemoryStore(),
		Writes:      map[string]int{},
		Deletes:     map[string]int{},
		Fail:        map[string]bool{},
		FailErr:     errors.New("store unavailable"),
	}
}

func (s *RecordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failing(key) {
		return "", false, s.FailErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *RecordingStore) Write(ctx context.Context, key, value string) error {
	if s.failing(key) {
		return s.FailErr
	}
	s.mu.Lock()
	s.Writes[key]++
	s.mu.Unlock()
	return s.MemoryStore.Write(ctx, key, value)
}

func (s *RecordingStore) Delete(ctx context.Context, key string) error {
	if s.failing(key) {
		return s.FailErr
	}
	s.mu.Lock()
	s.Deletes[key]++
	s.mu.Unlock()
	return s.MemoryStore.Delete(ctx, key)
}

// TotalWrites returns the number of writes across all keys.
func (s *RecordingStore) TotalWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.Writes {
		n += c
	}
	return n
}

func (s *RecordingStore) failing(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Fail[key]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
