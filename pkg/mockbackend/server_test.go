package mockbackend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/chatwidget/pkg/api"
	"github.com/go-go-golems/chatwidget/pkg/chatrunner"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/prompt"
	"github.com/go-go-golems/chatwidget/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func collect(t *testing.T, tr transport.Transport, query string) ([]string, error) {
	t.Helper()
	var chunks []string
	for chunk, err := range tr.StreamAsk(context.Background(), query, "session_test12345") {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestAsk_StreamsWordsThroughHTTPTransport(t *testing.T) {
	_, ts := newTestServer(t, WithReplier(func(q string) string { return "Hello there friend" }))
	tr, err := transport.NewHTTPTransport(ts.URL)
	require.NoError(t, err)

	chunks, err := collect(t, tr, "hi")
	require.NoError(t, err)
	require.Equal(t, "Hello there friend", strings.Join(chunks, ""))
}

func TestAsk_NonStreamingReturnsJSON(t *testing.T) {
	_, ts := newTestServer(t)
	body := strings.NewReader(`{"query":"ping","session_id":"s","stream":false}`)
	resp, err := http.Post(ts.URL+api.AskPath, "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestAsk_FailQueryIsAStatusError(t *testing.T) {
	_, ts := newTestServer(t)
	tr, err := transport.NewHTTPTransport(ts.URL)
	require.NoError(t, err)

	_, err = collect(t, tr, FailQuery)
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	require.Equal(t, transport.KindStatus, terr.Kind)
	require.Equal(t, http.StatusInternalServerError, terr.StatusCode)
	require.Equal(t, "simulated failure", terr.Message)
}

func TestAsk_EmptyQueryIsRejected(t *testing.T) {
	_, ts := newTestServer(t)
	body := strings.NewReader(`{"query":"  ","session_id":"s","stream":true}`)
	resp, err := http.Post(ts.URL+api.AskPath, "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPrompt_RoundTripThroughClient(t *testing.T) {
	s, ts := newTestServer(t, WithPrompt("initial"))
	c, err := prompt.NewClient(ts.URL)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "initial", got)

	msg, err := c.Save(ctx, "Be brief & kind?")
	require.NoError(t, err)
	require.Equal(t, "Prompt updated.", msg)
	require.Equal(t, "Be brief & kind?", s.Prompt())

	got, err = c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "Be brief & kind?", got)
}

func TestPrompt_EmptySaveSurfacesDetailMessage(t *testing.T) {
	_, ts := newTestServer(t)
	c, err := prompt.NewClient(ts.URL)
	require.NoError(t, err)

	_, err = c.Save(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, "prompt must not be empty", err.Error())
}

func TestRunner_EndToEnd(t *testing.T) {
	_, ts := newTestServer(t)
	tr, err := transport.NewHTTPTransport(ts.URL)
	require.NoError(t, err)

	r := chatrunner.NewRunner(conversation.NewReducer(conversation.Config{SessionID: "session_e2e000000"}), tr)
	require.NoError(t, r.Ask(context.Background(), "what time is it"))
	require.NoError(t, r.Ask(context.Background(), FailQuery))

	snap := r.Snapshot()
	require.Len(t, snap, 5)
	require.Equal(t, "You said: what time is it", snap[1].Text)
	require.True(t, snap[0].IsDelivered())
	require.Equal(t, conversation.DeliveryPending, snap[2].DeliveryStatus)
	require.Equal(t, conversation.FailureText, snap[4].Text)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(WithLogger(zerolog.Nop())).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + api.GetPromptPath)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServe_BadAddr(t *testing.T) {
	err := New(WithLogger(zerolog.Nop())).ListenAndServe(context.Background(), "256.0.0.1:-1")
	require.Error(t, err)
}
