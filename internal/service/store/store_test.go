package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurobot/webchat/internal/model/chat"
	"github.com/eurobot/webchat/internal/service/store"
)

func fixedClock() store.Clock {
	at := time.Date(2025, 5, 9, 14, 30, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Second)
		return at
	}
}

func TestAppendTrimsAndStamps(t *testing.T) {
	s := store.NewWithClock(fixedClock())

	msg, err := s.Append(chat.SenderUser, "  What is the EU?  ")
	require.NoError(t, err)

	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "What is the EU?", msg.Text)
	assert.Equal(t, chat.SenderUser, msg.Sender)
	assert.Equal(t, "14:30:01", msg.Timestamp)
}

func TestAppendRejectsEmptyText(t *testing.T) {
	s := store.New()

	_, err := s.Append(chat.SenderUser, " \t\n ")
	require.ErrorIs(t, err, store.ErrEmptyText)
	assert.Equal(t, 0, s.Len())
}

func TestAppendRejectsUnknownSender(t *testing.T) {
	s := store.New()

	_, err := s.Append(chat.Sender("system"), "hi")
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestAllReturnsCopy(t *testing.T) {
	s := store.New()
	_, err := s.Append(chat.SenderBot, "hello")
	require.NoError(t, err)

	got := s.All()
	got[0].Text = "mutated"
	got = append(got, chat.Message{ID: 99})

	stored := s.All()
	require.Len(t, stored, 1)
	assert.Equal(t, "hello", stored[0].Text)
}

func TestConcurrentAppendsKeepIDOrder(t *testing.T) {
	s := store.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Append(chat.SenderUser, "ping")
		}()
	}
	wg.Wait()

	all := s.All()
	require.Len(t, all, 50)
	for i, msg := range all {
		assert.Equal(t, int64(i+1), msg.ID)
	}
}
