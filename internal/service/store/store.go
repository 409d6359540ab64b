package store

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eurobot/webchat/internal/model/chat"
)

// ErrEmptyText is returned when a message would be stored without any visible text.
var ErrEmptyText = errors.New("message text is empty")

// Clock returns the current time. Tests replace it to get stable timestamps.
type Clock func() time.Time

// MessageStore is an append-only, insertion-ordered conversation log.
// Identifiers are minted under the same lock that appends, so id order and
// insertion order always agree.
type MessageStore struct {
	mu       sync.RWMutex
	messages []chat.Message
	nextID   int64
	now      Clock
}

// New returns an empty store using the wall clock.
func New() *MessageStore {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store that stamps messages using now.
func NewWithClock(now Clock) *MessageStore {
	if now == nil {
		now = time.Now
	}
	return &MessageStore{
		messages: make([]chat.Message, 0, 16),
		nextID:   1,
		now:      now,
	}
}

// Append trims text and stores it as a new message from sender.
func (s *MessageStore) Append(sender chat.Sender, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyText
	}
	if !sender.Valid() {
		return chat.Message{}, errors.Errorf("unknown sender %q", sender)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	msg := chat.Message{
		ID:        s.nextID,
		Text:      text,
		Sender:    sender,
		Timestamp: createdAt.Format(chat.TimestampLayout),
		CreatedAt: createdAt,
	}
	s.nextID++
	s.messages = append(s.messages, msg)
	return msg, nil
}

// All returns a copy of the log in insertion order.
func (s *MessageStore) All() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
