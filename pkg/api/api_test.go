package api

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	got, err := NormalizeBaseURL(" https://example.com/ ")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", got)

	got, err = NormalizeBaseURL("http://localhost:8080")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", got)

	for _, bad := range []string{"", "example.com", "ftp://example.com", "http://", "::"} {
		_, err := NormalizeBaseURL(bad)
		require.Error(t, err, "input %q", bad)
	}
}

func TestEncodeQueryComponent(t *testing.T) {
	require.Equal(t, "hello%20world", EncodeQueryComponent("hello world"))
	require.Equal(t, "a%2Bb%26c%3Dd", EncodeQueryComponent("a+b&c=d"))
	require.Equal(t, "line1%0Aline2", EncodeQueryComponent("line1\nline2"))
	require.Equal(t, "it's%20(a)%20test!*~-_.", EncodeQueryComponent("it's (a) test!*~-_."))
	require.Equal(t, "50%25%2B", EncodeQueryComponent("50%+"))

	raw := "You are a helpful assistant. Answer in 50% fewer words & be kind?"
	decoded, err := url.QueryUnescape(EncodeQueryComponent(raw))
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestSavePromptURL(t *testing.T) {
	require.Equal(t,
		"http://h/v1/save_prompt?prompt=be%20nice",
		SavePromptURL("http://h", "be nice"),
	)
}

func TestAskRequestWireShape(t *testing.T) {
	b, err := json.Marshal(AskRequest{Query: "Hello", SessionID: "session_abc123xyz", Stream: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"query":"Hello","session_id":"session_abc123xyz","stream":true}`, string(b))
}

func TestErrorResponseFirstMessage(t *testing.T) {
	var e ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(`{"detail":[{"msg":"field required"}],"message":"bad"}`), &e))
	require.Equal(t, "field required", e.FirstMessage())

	e = ErrorResponse{Message: "bad"}
	require.Equal(t, "bad", e.FirstMessage())

	require.Equal(t, "", ErrorResponse{}.FirstMessage())
}
