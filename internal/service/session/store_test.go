package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository/catalog"
	"storefront/internal/service/camera"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	snap *catalog.Snapshot
	err  error
}

func (s stubCatalog) Load(context.Context) (*catalog.Snapshot, error) {
	return s.snap, s.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T, device camera.Device, ttl time.Duration) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	st := NewStore(stubCatalog{snap: testSnapshot()}, Deps{Device: device}, ttl)
	st.now = clock.Now
	t.Cleanup(st.Close)
	return st, clock
}

func TestStoreCreateAndGet(t *testing.T) {
	st, _ := newTestStore(t, nil, time.Minute)
	s, err := st.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	_, err = st.Get("unknown")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStoreCreatePropagatesCatalogError(t *testing.T) {
	st := NewStore(stubCatalog{err: errors.New("db down")}, Deps{}, time.Minute)
	_, err := st.Create(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Zero(t, st.Len())
}

func TestStoreExpiryStopsCamera(t *testing.T) {
	device := camera.NewSimulatedDevice(camera.ModeReady)
	st, clock := newTestStore(t, device, time.Minute)

	s, err := st.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.OpenCamera(context.Background()))
	assert.Equal(t, 1, device.LiveStreams())

	clock.now = clock.now.Add(30 * time.Second)
	_, err = st.Get(s.ID)
	require.NoError(t, err, "access extends expiry")

	clock.now = clock.now.Add(45 * time.Second)
	assert.Zero(t, st.Sweep())

	clock.now = clock.now.Add(time.Minute)
	assert.Equal(t, 1, st.Sweep())
	assert.Zero(t, device.LiveStreams())
	_, err = st.Get(s.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStoreGetExpired(t *testing.T) {
	st, clock := newTestStore(t, nil, time.Minute)
	s, err := st.Create(context.Background())
	require.NoError(t, err)
	clock.now = clock.now.Add(2 * time.Minute)
	_, err = st.Get(s.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, st.Len())
}

func TestStoreDelete(t *testing.T) {
	device := camera.NewSimulatedDevice(camera.ModeReady)
	st, _ := newTestStore(t, device, time.Minute)
	s, err := st.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.OpenCamera(context.Background()))

	assert.True(t, st.Delete(s.ID))
	assert.False(t, st.Delete(s.ID))
	assert.Zero(t, device.LiveStreams())
}

func TestStoreRunClosesOnCancel(t *testing.T) {
	device := camera.NewSimulatedDevice(camera.ModeReady)
	st := NewStore(stubCatalog{snap: testSnapshot()}, Deps{Device: device}, time.Minute)
	s, err := st.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.OpenCamera(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
	assert.Zero(t, st.Len())
	assert.Zero(t, device.LiveStreams())
}
