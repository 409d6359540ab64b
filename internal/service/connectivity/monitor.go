package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eurobot/webchat/internal/service/backend"
)

// Status is the two-valued outcome of a health probe.
type Status int

const (
	Unhealthy Status = iota
	Healthy
)

func (s Status) String() string {
	if s == Healthy {
		return "healthy"
	}
	return "unhealthy"
}

// Prober issues the actual health request.
type Prober interface {
	Health(ctx context.Context) error
}

// Probe records the outcome of the most recent check.
type Probe struct {
	Status    Status
	CheckedAt time.Time
	Latency   time.Duration
	Kind      backend.FailureKind
}

// Monitor reports whether the backend is reachable. It never touches session
// state; callers copy the returned Status wherever they need it.
type Monitor struct {
	prober Prober

	mu   sync.RWMutex
	last *Probe
}

// NewMonitor wraps prober.
func NewMonitor(prober Prober) *Monitor {
	return &Monitor{prober: prober}
}

// CheckHealth probes the backend. Every failure, including a cancelled ctx,
// collapses into Unhealthy; it never returns an error.
func (m *Monitor) CheckHealth(ctx context.Context) Status {
	started := time.Now()
	err := m.prober.Health(ctx)
	probe := Probe{
		Status:    Healthy,
		CheckedAt: time.Now(),
		Latency:   time.Since(started),
	}
	if err != nil {
		probe.Status = Unhealthy
		probe.Kind = backend.KindOf(err)
		log.Warn().Err(err).Str("kind", string(probe.Kind)).Dur("latency", probe.Latency).Msg("backend health check failed")
	} else {
		log.Debug().Dur("latency", probe.Latency).Msg("backend health check passed")
	}

	m.mu.Lock()
	m.last = &probe
	m.mu.Unlock()
	return probe.Status
}

// Last returns the most recent probe, if any has run.
func (m *Monitor) Last() (Probe, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Probe{}, false
	}
	return *m.last, true
}
