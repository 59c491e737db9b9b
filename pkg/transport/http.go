package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/go-go-golems/chatwidget/pkg/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultReadSize = 4096
	maxErrorBody    = 64 << 10
)

// HTTPTransport talks to the chatbot's /v1/ask endpoint.
type HTTPTransport struct {
	baseURL  string
	client   *http.Client
	readSize int
}

type Option func(*HTTPTransport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithReadSize sets the size of each body read, and so the upper bound of a
// text chunk.
func WithReadSize(n int) Option {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.readSize = n
		}
	}
}

func NewHTTPTransport(baseURL string, opts ...Option) (*HTTPTransport, error) {
	base, err := api.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	t := &HTTPTransport{
		baseURL:  base,
		client:   api.NewHTTPClient(),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) BaseURL() string { return t.baseURL }

func (t *HTTPTransport) StreamAsk(ctx context.Context, query, sessionID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := t.post(ctx, query, sessionID)
		if err != nil {
			yield("", err)
			return
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			yield("", statusError(resp))
			return
		}

		if isJSON(resp.Header.Get("Content-Type")) {
			t.yieldJSON(resp.Body, yield)
			return
		}
		t.yieldText(resp.Body, yield)
	}
}

func (t *HTTPTransport) post(ctx context.Context, query, sessionID string) (*http.Response, error) {
	body, err := json.Marshal(api.AskRequest{Query: query, SessionID: sessionID, Stream: true})
	if err != nil {
		return nil, &Error{Kind: KindDecode, Err: errors.Wrap(err, "encode ask request")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+api.AskPath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: errors.Wrap(err, "build ask request")}
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().
		Str("component", "transport").
		Str("session_id", sessionID).
		Int("query_len", len(query)).
		Msg("posting ask")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	return resp, nil
}

func (t *HTTPTransport) yieldJSON(body io.Reader, yield func(string, error) bool) {
	var out api.AskResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		yield("", &Error{Kind: KindDecode, Err: errors.Wrap(err, "decode ask response")})
		return
	}
	if out.Response == "" {
		out.Response = api.NoResponseText
	}
	yield(out.Response, nil)
}

func (t *HTTPTransport) yieldText(body io.Reader, yield func(string, error) bool) {
	buf := make([]byte, t.readSize)
	var chunker utf8Chunker
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if s := chunker.Push(buf[:n]); s != "" {
				if !yield(s, nil) {
					return
				}
			}
		}
		if err == io.EOF {
			if s := chunker.Flush(); s != "" {
				yield(s, nil)
			}
			return
		}
		if err != nil {
			yield("", &Error{Kind: KindNetwork, Err: errors.Wrap(err, "read ask stream")})
			return
		}
	}
}

func statusError(resp *http.Response) *Error {
	e := &Error{Kind: KindStatus, StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return e
	}
	var body api.ErrorResponse
	if json.Unmarshal(raw, &body) == nil {
		e.Message = body.FirstMessage()
	}
	return e
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
