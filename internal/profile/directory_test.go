package profile

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careportal/internal/model"
)

type fakeSource struct {
	users map[string]model.User
	calls int
}

func (f *fakeSource) GetUser(_ context.Context, id string) (model.User, error) {
	f.calls++
	u, ok := f.users[id]
	if !ok {
		return model.User{}, errors.New("not found")
	}
	return u, nil
}

func (f *fakeSource) GetUsers(_ context.Context, ids []string) (map[string]model.User, error) {
	f.calls++
	out := map[string]model.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	failGet bool
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := m.entries[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryCache) Close() error { return nil }

func newSource() *fakeSource {
	return &fakeSource{users: map[string]model.User{
		"u1": {ID: "u1", Name: "Dr. Sato", Email: "sato@example.com", Role: model.RoleDoctor},
		"u2": {ID: "u2", Name: "Ken", Email: "ken@example.com", Role: model.RolePatient},
	}}
}

func TestSummary_UsesCacheAfterFirstLookup(t *testing.T) {
	src := newSource()
	cache := &memoryCache{entries: map[string]string{}}
	d := NewDirectory(src, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	s, err := d.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sato", s.Name)
	assert.Equal(t, 1, src.calls)

	s, err = d.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sato", s.Name)
	assert.Equal(t, 1, src.calls, "second lookup is served from cache")

	assert.Contains(t, cache.entries, cacheKey("u1"))
	assert.NotContains(t, cache.entries, cacheKey("u2"))
}

func TestSummary_CacheErrorFallsThrough(t *testing.T) {
	src := newSource()
	cache := &memoryCache{entries: map[string]string{}, failGet: true}
	d := NewDirectory(src, cache, time.Minute, zerolog.Nop())

	s, err := d.Summary(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "Ken", s.Name)
}

func TestSummaries_PreservesOrderAndUnknowns(t *testing.T) {
	src := newSource()
	d := NewDirectory(src, nil, 0, zerolog.Nop())

	got, err := d.Summaries(context.Background(), []string{"u2", "ghost", "u1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Ken", got[0].Name)
	assert.Equal(t, model.UserSummary{ID: "ghost"}, got[1])
	assert.Equal(t, "Dr. Sato", got[2].Name)
}

func TestUser_AlwaysReadsSource(t *testing.T) {
	src := newSource()
	cache := &memoryCache{entries: map[string]string{}}
	d := NewDirectory(src, cache, time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, err := d.User(ctx, "u1")
	require.NoError(t, err)
	_, err = d.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	_, err = d.User(ctx, "ghost")
	assert.Error(t, err)
}

// TestRedisCache はREDIS_URLが設定されているときだけ実行する
func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping: REDIS_URL not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, url)
	require.NoError(t, err)
	defer c.Close()

	key := "profile:test:" + time.Now().Format(time.RFC3339Nano)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, key, "v", time.Minute))
	v, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
