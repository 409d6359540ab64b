package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/backend"
	"github.com/eurobot/webchat/internal/service/backend/backendtest"
	"github.com/eurobot/webchat/internal/service/connectivity"
	"github.com/eurobot/webchat/internal/service/session"
)

func newTestModel(t *testing.T, srv *backendtest.Server) (*Model, *session.Controller) {
	t.Helper()
	client, err := backend.New(backend.Options{BaseURL: srv.BaseURL(), HealthTimeout: time.Second, ChatTimeout: 2 * time.Second})
	require.NoError(t, err)

	ctrl := session.New(client, connectivity.NewMonitor(client), session.Options{})
	t.Cleanup(ctrl.Close)
	return NewModel(context.Background(), ctrl, profile.Default(), Options{GlamourStyle: "notty"}), ctrl
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestInitialViewShowsGreeting(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	m, _ := newTestModel(t, srv)

	view := m.View()
	assert.Contains(t, view, "EURO-Bot")
	assert.Contains(t, view, "Your European Specialist Assistant")
	assert.Contains(t, view, "European specialist")
	assert.NotContains(t, view, "Backend disconnected")
}

func TestEnterSendsMessage(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.SetChat(backendtest.Respond("The EU is a union of 27 member states."))
	m, ctrl := newTestModel(t, srv)

	typeText(m, "What is the EU?")
	assert.Equal(t, "What is the EU?", m.input.Value())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	done, ok := cmd().(sendDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	m.Update(done)
	m.Update(snapshotMsg{snap: ctrl.Snapshot(), ok: true})

	assert.Len(t, m.snap.Messages, 3)
	assert.Contains(t, m.View(), "27 member states")
}

func TestEnterIgnoresBlankInput(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	m, _ := newTestModel(t, srv)

	typeText(m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Zero(t, srv.ChatCalls())
}

func TestDisconnectedBannerAndRetry(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.SetHealthy(false)
	m, ctrl := newTestModel(t, srv)

	init, ok := m.initialize()().(initDoneMsg)
	require.True(t, ok)
	m.Update(init)
	m.Update(snapshotMsg{snap: ctrl.Snapshot(), ok: true})

	assert.Contains(t, m.View(), "Backend disconnected")
	assert.Equal(t, placeholderDisconnected, m.input.Placeholder)
	assert.False(t, m.input.Focused())

	typeText(m, "Hi")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	srv.SetHealthy(true)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	retried, ok := cmd().(retryDoneMsg)
	require.True(t, ok)
	m.Update(retried)
	m.Update(snapshotMsg{snap: ctrl.Snapshot(), ok: true})

	assert.Equal(t, "reconnected", m.status)
	assert.NotContains(t, m.View(), "Backend disconnected")
	assert.True(t, m.input.Focused())
	assert.Len(t, m.snap.Messages, 1)
}

func TestTypingIndicator(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	m, _ := newTestModel(t, srv)

	snap := m.snap
	snap.IsAwaitingResponse = true
	m.Update(snapshotMsg{snap: snap, ok: true})

	assert.Contains(t, m.View(), "is typing")
	assert.False(t, m.input.Focused())
}

func TestClosedSubscriptionQuits(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	m, _ := newTestModel(t, srv)

	_, cmd := m.Update(snapshotMsg{ok: false})
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestDescribe(t *testing.T) {
	assert.Empty(t, describe(nil))
	assert.Empty(t, describe(session.ErrEmptyMessage))
	assert.Contains(t, describe(session.ErrBusy), "previous answer")
	assert.Contains(t, describe(session.ErrDisconnected), "ctrl+r")
}
