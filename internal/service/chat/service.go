package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/session"
	"github.com/eurobot/webchat/internal/service/store"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// Service keeps one session controller per open chat view.
type Service struct {
	chatter  session.Chatter
	health   session.HealthChecker
	profiles profile.Store
	now      store.Clock

	mu       sync.RWMutex
	sessions map[string]*session.Controller
}

// NewService wires the registry to the backend collaborators.
func NewService(chatter session.Chatter, health session.HealthChecker, profiles profile.Store) *Service {
	return &Service{
		chatter:  chatter,
		health:   health,
		profiles: profiles,
		now:      time.Now,
		sessions: make(map[string]*session.Controller),
	}
}

// WithClock replaces the clock used for message timestamps and idle expiry.
func (s *Service) WithClock(now store.Clock) *Service {
	s.now = now
	return s
}

// CreateSession provisions a session seeded with the profile greeting and runs
// its first connectivity probe before returning. An empty profileID selects
// the default profile.
func (s *Service) CreateSession(ctx context.Context, profileID string) (*session.Controller, error) {
	p := s.profiles.Default()
	if profileID != "" {
		found, ok := s.profiles.FindByID(profileID)
		if !ok {
			return nil, ErrProfileNotFound
		}
		p = found
	}

	ctrl := session.New(s.chatter, s.health, session.Options{
		Greeting: p.Greeting,
		Clock:    s.now,
	})

	s.mu.Lock()
	s.sessions[ctrl.ID()] = ctrl
	s.mu.Unlock()

	log.Info().Str("session_id", ctrl.ID()).Str("profile", p.ID).Msg("session created")
	ctrl.Initialize(ctx)
	return ctrl, nil
}

// GetSession retrieves a live session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*session.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctrl, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// CloseSession discards a session when its view goes away.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	ctrl, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	ctrl.Close()
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExpireIdle closes every session idle for longer than ttl and returns how many
// were closed. Sessions awaiting a reply or watched by a stream are kept.
func (s *Service) ExpireIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	var expired []*session.Controller
	s.mu.Lock()
	for id, ctrl := range s.sessions {
		if !ctrl.Active() && ctrl.LastActivity().Before(cutoff) {
			expired = append(expired, ctrl)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, ctrl := range expired {
		ctrl.Close()
	}
	if len(expired) > 0 {
		log.Info().Int("expired", len(expired)).Dur("ttl", ttl).Msg("closed idle sessions")
	}
	return len(expired)
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, ttl, interval time.Duration) error {
	if ttl <= 0 {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = ttl / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ExpireIdle(ttl)
		}
	}
}

// CloseAll discards every session, used on shutdown.
func (s *Service) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session.Controller)
	s.mu.Unlock()

	for _, ctrl := range sessions {
		ctrl.Close()
	}
}
