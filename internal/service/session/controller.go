package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eurobot/webchat/internal/model/chat"
	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/backend"
	"github.com/eurobot/webchat/internal/service/connectivity"
	"github.com/eurobot/webchat/internal/service/store"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a request is already in flight")
	ErrDisconnected = errors.New("backend is disconnected")
	ErrClosed       = errors.New("session is closed")
)

// DiagnosticText is appended as a bot message whenever a chat request fails.
const DiagnosticText = "Sorry, I'm having trouble connecting to the backend server. Please make sure it is running and try again."

// Chatter sends one user message to the backend.
type Chatter interface {
	Chat(ctx context.Context, message string) (backend.Reply, error)
}

// HealthChecker reports backend reachability.
type HealthChecker interface {
	CheckHealth(ctx context.Context) connectivity.Status
}

// Options tunes a Controller.
type Options struct {
	ID       string
	Greeting string
	Clock    store.Clock
}

// Controller owns the state of one conversation: the message log, the typing
// indicator and the last known backend reachability. All mutation goes through
// Send, RetryConnection and Initialize; surfaces only ever see snapshots.
type Controller struct {
	id     string
	store  *store.MessageStore
	chat   Chatter
	health HealthChecker
	now    store.Clock
	logger zerolog.Logger

	done   context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	awaiting     bool
	connected    bool
	checked      bool
	closed       bool
	lastActivity time.Time
	subscribers  map[int]chan chat.Snapshot
	nextSub      int
}

// New creates a controller whose log is seeded with the greeting. The backend
// is assumed reachable until the first probe says otherwise.
func New(chatter Chatter, health HealthChecker, opts Options) *Controller {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	greeting := strings.TrimSpace(opts.Greeting)
	if greeting == "" {
		greeting = profile.Default().Greeting
	}

	done, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:           id,
		store:        store.NewWithClock(now),
		chat:         chatter,
		health:       health,
		now:          now,
		logger:       log.With().Str("session_id", id).Logger(),
		done:         done,
		cancel:       cancel,
		connected:    true,
		lastActivity: now(),
		subscribers:  make(map[int]chan chat.Snapshot),
	}
	// greeting is non-empty, Append cannot fail here
	_, _ = c.store.Append(chat.SenderBot, greeting)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Initialize runs the first connectivity probe. It takes the single request
// slot like RetryConnection; if a request already holds it, the probe is
// skipped and the current reachability is returned.
func (c *Controller) Initialize(ctx context.Context) connectivity.Status {
	c.mu.Lock()
	if c.closed || c.awaiting {
		status := statusOf(c.connected)
		c.mu.Unlock()
		return status
	}
	c.awaiting = true
	c.mu.Unlock()
	c.notify()

	defer c.release()

	probeCtx, cancel := c.scope(ctx)
	defer cancel()

	status := c.probe(probeCtx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return status
	}
	c.connected = status == connectivity.Healthy
	c.checked = true
	c.awaiting = false
	c.mu.Unlock()

	c.logger.Info().Str("status", status.String()).Msg("session initialized")
	c.notify()
	return status
}

// Send submits text to the backend. Whitespace-only text is ignored with
// ErrEmptyMessage. While a request is outstanding or the backend is known to be
// down the call is rejected and nothing changes. Backend failures are not
// returned: they show up as a diagnostic bot message and a disconnected state.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.awaiting:
		c.mu.Unlock()
		return ErrBusy
	case !c.connected:
		c.mu.Unlock()
		return ErrDisconnected
	}
	if _, err := c.store.Append(chat.SenderUser, text); err != nil {
		c.mu.Unlock()
		return errors.Wrap(err, "append user message")
	}
	c.awaiting = true
	c.lastActivity = c.now()
	c.mu.Unlock()
	c.notify()

	defer c.release()

	reqCtx, cancel := c.scope(ctx)
	defer cancel()

	reply, err := c.call(reqCtx, text)
	return c.complete(reply, err)
}

// call turns a panicking Chatter into an ordinary request failure.
func (c *Controller) call(ctx context.Context, text string) (reply backend.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(backend.ErrRequestFailed, "chat panicked: %v", r)
		}
	}()
	return c.chat.Chat(ctx, text)
}

// probe treats a panicking HealthChecker as unreachable.
func (c *Controller) probe(ctx context.Context) (status connectivity.Status) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("health check panicked")
			status = connectivity.Unhealthy
		}
	}()
	return c.health.CheckHealth(ctx)
}

func statusOf(connected bool) connectivity.Status {
	if connected {
		return connectivity.Healthy
	}
	return connectivity.Unhealthy
}

// complete applies the outcome of a chat request and clears the typing indicator.
func (c *Controller) complete(reply backend.Reply, err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug().Msg("dropping chat completion for closed session")
		return ErrClosed
	}

	if err == nil {
		if _, appendErr := c.store.Append(chat.SenderBot, reply.Text); appendErr != nil {
			err = errors.Wrap(appendErr, "append bot message")
		}
	}
	if err != nil {
		_, _ = c.store.Append(chat.SenderBot, DiagnosticText)
		c.connected = false
	} else {
		c.connected = true
	}
	// an exchange that finished is as good as a probe
	c.checked = true
	c.awaiting = false
	c.lastActivity = c.now()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("kind", string(backend.KindOf(err))).Msg("chat request failed")
	} else {
		c.logger.Info().Bool("context_used", reply.ContextUsed).Msg("chat reply appended")
	}
	c.notify()
	return nil
}

// RetryConnection re-probes the backend. The typing indicator is raised while
// the probe runs. It never adds messages.
func (c *Controller) RetryConnection(ctx context.Context) (connectivity.Status, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return connectivity.Unhealthy, ErrClosed
	case c.awaiting:
		c.mu.Unlock()
		return connectivity.Unhealthy, ErrBusy
	}
	c.awaiting = true
	c.lastActivity = c.now()
	c.mu.Unlock()
	c.notify()

	defer c.release()

	probeCtx, cancel := c.scope(ctx)
	defer cancel()

	status := c.probe(probeCtx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return status, ErrClosed
	}
	c.connected = status == connectivity.Healthy
	c.checked = true
	c.awaiting = false
	c.mu.Unlock()

	c.logger.Info().Str("status", status.String()).Msg("connection retried")
	c.notify()
	return status, nil
}

// release clears the typing indicator if an exit path skipped the normal
// completion.
func (c *Controller) release() {
	c.mu.Lock()
	if c.closed || !c.awaiting {
		c.mu.Unlock()
		return
	}
	c.awaiting = false
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() chat.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() chat.Snapshot {
	return chat.Snapshot{
		SessionID:           c.id,
		Messages:            c.store.All(),
		IsAwaitingResponse:  c.awaiting,
		IsConnected:         c.connected,
		ConnectivityChecked: c.checked,
		Closed:              c.closed,
	}
}

// LastActivity returns when the session was last used.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Active reports whether a request is in flight or a surface is watching the
// session. Active sessions are never idle.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting || len(c.subscribers) > 0
}

// Subscribe returns a channel that always holds the latest snapshot. Slow
// readers only miss intermediate states, never the newest one. The channel is
// closed by the returned cancel func or when the session closes.
func (c *Controller) Subscribe() (<-chan chat.Snapshot, func()) {
	ch := make(chan chat.Snapshot, 1)

	c.mu.Lock()
	if c.closed {
		ch <- c.snapshotLocked()
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
			c.lastActivity = c.now()
		}
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		offer(ch, snap)
	}
}

func offer(ch chan chat.Snapshot, snap chat.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Close discards the session. Completions of requests still in flight are
// dropped and every subscriber receives a final closed snapshot.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.awaiting = false
	snap := c.snapshotLocked()
	for id, ch := range c.subscribers {
		offer(ch, snap)
		close(ch)
		delete(c.subscribers, id)
	}
	c.mu.Unlock()

	c.cancel()
	c.logger.Info().Msg("session closed")
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// scope derives a request context that is also cancelled when the session closes.
func (c *Controller) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.done, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
