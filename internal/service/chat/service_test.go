package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/backend"
	"github.com/eurobot/webchat/internal/service/backend/backendtest"
	chat "github.com/eurobot/webchat/internal/service/chat"
	"github.com/eurobot/webchat/internal/service/connectivity"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T, srv *backendtest.Server) *chat.Service {
	t.Helper()
	client, err := backend.New(backend.Options{BaseURL: srv.BaseURL(), HealthTimeout: time.Second})
	require.NoError(t, err)

	profiles := profile.NewMemoryStore([]profile.Profile{
		profile.Default(),
		{ID: "alpine", Name: "Alpine-Bot", Title: "Mountains", Greeting: "Grüezi!"},
	})
	svc := chat.NewService(client, connectivity.NewMonitor(client), profiles)
	t.Cleanup(svc.CloseAll)
	return svc
}

func TestServiceCreateSession(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	svc := newService(t, srv)
	ctx := context.Background()

	ctrl, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	snap := ctrl.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, profile.Default().Greeting, snap.Messages[0].Text)
	assert.True(t, snap.ConnectivityChecked)
	assert.True(t, snap.IsConnected)
	assert.Equal(t, int64(1), srv.HealthCalls())

	got, err := svc.GetSession(ctx, ctrl.ID())
	require.NoError(t, err)
	assert.Same(t, ctrl, got)
}

func TestServiceCreateSessionWithProfile(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	svc := newService(t, srv)

	ctrl, err := svc.CreateSession(context.Background(), "alpine")
	require.NoError(t, err)
	assert.Equal(t, "Grüezi!", ctrl.Snapshot().Messages[0].Text)

	_, err = svc.CreateSession(context.Background(), "missing")
	require.ErrorIs(t, err, chat.ErrProfileNotFound)
	assert.Equal(t, 1, svc.Count())
}

func TestServiceCreateSessionBackendDown(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.SetHealthy(false)
	svc := newService(t, srv)

	ctrl, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, ctrl.Snapshot().ShowDisconnected())
}

func TestServiceGetSessionNotFound(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	svc := newService(t, srv)

	_, err := svc.GetSession(context.Background(), "missing")
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceCloseSession(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	svc := newService(t, srv)
	ctx := context.Background()

	ctrl, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	require.NoError(t, svc.CloseSession(ctx, ctrl.ID()))
	assert.True(t, ctrl.Closed())
	assert.Zero(t, svc.Count())

	require.ErrorIs(t, svc.CloseSession(ctx, ctrl.ID()), chat.ErrSessionNotFound)
}

func TestServiceExpireIdle(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(t, srv).WithClock(clock.Now)
	ctx := context.Background()

	stale, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	fresh, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, svc.ExpireIdle(30*time.Minute))

	assert.True(t, stale.Closed())
	assert.False(t, fresh.Closed())
	_, err = svc.GetSession(ctx, stale.ID())
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceExpireIdleKeepsWatchedSessions(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(t, srv).WithClock(clock.Now)
	ctx := context.Background()

	ctrl, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	_, unsubscribe := ctrl.Subscribe()

	clock.Advance(time.Hour)
	assert.Zero(t, svc.ExpireIdle(30*time.Minute))
	assert.False(t, ctrl.Closed())

	unsubscribe()
	clock.Advance(20 * time.Minute)
	assert.Zero(t, svc.ExpireIdle(30*time.Minute))

	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, svc.ExpireIdle(30*time.Minute))
	assert.True(t, ctrl.Closed())
}

func TestServiceExpireIdleKeepsRequestInFlight(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := newService(t, srv).WithClock(clock.Now)
	ctx := context.Background()

	ctrl, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	arrived := srv.Hold()
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Send(ctx, "Tell me about the Alps") }()
	<-arrived

	clock.Advance(time.Hour)
	assert.Zero(t, svc.ExpireIdle(30*time.Minute))

	srv.Release()
	require.NoError(t, <-errCh)
	assert.False(t, ctrl.Closed())
	assert.Len(t, ctrl.Snapshot().Messages, 3)
}

func TestServiceRunJanitorStops(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	svc := newService(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunJanitor(ctx, time.Minute, 10*time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
