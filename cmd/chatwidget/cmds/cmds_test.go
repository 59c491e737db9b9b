package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/chatwidget/pkg/mockbackend"
	"github.com/go-go-golems/chatwidget/pkg/persistence/turnlog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newBackend(t *testing.T) (*mockbackend.Server, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	s := mockbackend.New(mockbackend.WithLogger(zerolog.Nop()), mockbackend.WithPrompt("Be brief."))
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAsk_TextStreamsTheReply(t *testing.T) {
	_, base := newBackend(t)
	out, err := execute(t, "ask", "--base-url", base, "how", "are", "you")
	require.NoError(t, err)
	require.Equal(t, "You said: how are you\n", out)
}

func TestAsk_JSONRecordsTheTurn(t *testing.T) {
	_, base := newBackend(t)
	dbPath := filepath.Join(t.TempDir(), "turns.db")

	out, err := execute(t, "ask", "--base-url", base, "--turn-log", dbPath, "-o", "json", "hello")
	require.NoError(t, err)

	var got struct {
		Reply   string          `json:"reply"`
		Outcome turnlog.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "You said: hello", got.Reply)
	require.Equal(t, turnlog.OutcomeDelivered, got.Outcome)

	out, err = execute(t, "turns", "list", "--turn-log", dbPath)
	require.NoError(t, err)
	var records []turnlog.Record
	require.NoError(t, yaml.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	require.Equal(t, "hello", records[0].Query)
}

func TestAsk_BackendFailurePrintsApology(t *testing.T) {
	_, base := newBackend(t)
	out, err := execute(t, "ask", "--base-url", base, mockbackend.FailQuery)
	require.NoError(t, err)
	require.Equal(t, "Something went wrong. Please try again later.\n", out)
}

func TestAsk_Echo(t *testing.T) {
	_, _ = newBackend(t)
	out, err := execute(t, "ask", "--echo", "-o", "html", "hi")
	require.NoError(t, err)
	require.Contains(t, out, "<p>You said: hi</p>")
}

func TestAsk_InvalidOutput(t *testing.T) {
	_, base := newBackend(t)
	_, err := execute(t, "ask", "--base-url", base, "-o", "xml", "hi")
	require.Error(t, err)
}

func TestPrompt_GetAndSet(t *testing.T) {
	s, base := newBackend(t)

	out, err := execute(t, "prompt", "get", "--base-url", base)
	require.NoError(t, err)
	require.Equal(t, "Be brief.\n", out)

	out, err = execute(t, "prompt", "set", "--base-url", base, "Answer", "in", "Indonesian.")
	require.NoError(t, err)
	require.Equal(t, "Prompt updated.\n", out)
	require.Equal(t, "Answer in Indonesian.", s.Prompt())
}

func TestPrompt_SetErrorsComeFromTheBackend(t *testing.T) {
	_, base := newBackend(t)
	_, err := execute(t, "prompt", "set", "--base-url", base, " ")
	require.EqualError(t, err, "prompt must not be empty")
}

func TestPromptText(t *testing.T) {
	got, err := promptText(strings.NewReader("from stdin"), "-", nil)
	require.NoError(t, err)
	require.Equal(t, "from stdin", got)

	_, err = promptText(nil, "x.txt", []string{"a"})
	require.Error(t, err)

	_, err = promptText(nil, "", nil)
	require.Error(t, err)
}

func TestTurnsList_RequiresTurnLog(t *testing.T) {
	_, _ = newBackend(t)
	_, err := execute(t, "turns", "list")
	require.Error(t, err)
}

func TestRoot_RejectsBadBaseURL(t *testing.T) {
	_, _ = newBackend(t)
	_, err := execute(t, "ask", "--base-url", "ftp://example.com", "hi")
	require.Error(t, err)
}
