package cmds

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurobot/webchat/internal/service/backend/backendtest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EUROBOT_CONFIG", "")
	t.Setenv("BACKEND_BASE_URL", "")

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", "", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(testContext(t))
	return out.String(), err
}

func TestProbeHealthy(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()

	out, err := execute(t, "probe", "--backend-url", srv.BaseURL())
	require.NoError(t, err)
	assert.Contains(t, out, "health     healthy")
	assert.Equal(t, int64(1), srv.HealthCalls())
	assert.Equal(t, int64(0), srv.ChatCalls())
	assert.Equal(t, int64(0), srv.InitCalls())
}

func TestProbeMessageAndInitialize(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()

	out, err := execute(t, "probe", "--backend-url", srv.BaseURL(), "--initialize", "-m", "What is the capital of France?")
	require.NoError(t, err)
	assert.Contains(t, out, "initialize success: Components initialized")
	assert.Contains(t, out, "echo: What is the capital of France?")
	assert.Equal(t, []string{"What is the capital of France?"}, srv.Received())
}

func TestProbeUnhealthy(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.SetHealthy(false)

	_, err := execute(t, "probe", "--backend-url", srv.BaseURL(), "-m", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy")
	assert.Equal(t, int64(0), srv.ChatCalls())
}

func TestProbeChatFailure(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.SetChat(backendtest.Fail(http.StatusInternalServerError))

	_, err := execute(t, "probe", "--backend-url", srv.BaseURL(), "-m", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat")
}

func TestRootRejectsInvalidBackendURL(t *testing.T) {
	_, err := execute(t, "probe", "--backend-url", "ftp://example.com")
	require.Error(t, err)
}

func TestRootRejectsInvalidLogFormat(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()

	_, err := execute(t, "probe", "--backend-url", srv.BaseURL(), "--log-format", "xml")
	require.Error(t, err)
}

func TestRunServerStopsOnCancel(t *testing.T) {
	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
}

// testContext stands in for testing.T.Context (Go 1.24+): the returned
// context is canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
