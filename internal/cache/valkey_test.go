package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/spacesedan/xpulse/internal/clients"
	"github.com/spacesedan/xpulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValkeyStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newFakeValkeyStore() *fakeValkeyStore {
	return &fakeValkeyStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeValkeyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeValkeyStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func TestValkeyCache_RoundTrip(t *testing.T) {
	store := newFakeValkeyStore()
	c := NewValkeyCache(store, time.Hour)

	c.Set(ctx(), "k", sampleResults())
	got, hit := c.Get(ctx(), "k")

	require.True(t, hit)
	assert.Equal(t, sampleResults(), got)
	assert.Equal(t, time.Hour, store.ttls["k"])
}

func TestValkeyCache_DefaultTTL(t *testing.T) {
	store := newFakeValkeyStore()
	c := NewValkeyCache(store, 0)

	c.Set(ctx(), "k", sampleResults())

	assert.Equal(t, DEFAULT_VALKEY_TTL, store.ttls["k"])
}

func TestValkeyCache_WriteOnce(t *testing.T) {
	store := newFakeValkeyStore()
	c := NewValkeyCache(store, time.Hour)

	c.Set(ctx(), "k", sampleResults())
	c.Set(ctx(), "k", []models.SentimentResult{{Score: -1, Label: models.LabelNegative, Confidence: 1}})

	got, hit := c.Get(ctx(), "k")
	require.True(t, hit)
	assert.Equal(t, sampleResults(), got)
}

func TestValkeyCache_ErrorsAreMisses(t *testing.T) {
	store := newFakeValkeyStore()
	store.getErr = errors.New("i/o timeout")
	store.setErr = errors.New("i/o timeout")
	c := NewValkeyCache(store, time.Hour)

	c.Set(ctx(), "k", sampleResults())
	got, hit := c.Get(ctx(), "k")

	assert.False(t, hit)
	assert.Nil(t, got)
}

func TestValkeyCache_CorruptValueIsMiss(t *testing.T) {
	store := newFakeValkeyStore()
	store.data["k"] = []byte("not json")
	c := NewValkeyCache(store, time.Hour)

	_, hit := c.Get(ctx(), "k")

	assert.False(t, hit)
}

func TestValkeyCache_Integration(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDRESS")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDRESS not set")
	}

	client, err := clients.NewValkeyClient(ctx(), clients.ValkeyConfig{Address: addr})
	require.NoError(t, err)
	defer client.Close()

	c := NewValkeyCache(client, time.Minute)
	key := Key([]models.AnalysisItem{{Text: "integration " + time.Now().String()}})

	_, hit := c.Get(ctx(), key)
	assert.False(t, hit)

	c.Set(ctx(), key, sampleResults())
	got, hit := c.Get(ctx(), key)
	require.True(t, hit)
	assert.Equal(t, sampleResults(), got)
}
