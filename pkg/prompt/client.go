// Package prompt reads and writes the chatbot's system prompt.
package prompt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-go-golems/chatwidget/pkg/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	FetchFailedText = "Failed to fetch the prompt."
	SavedText       = "Prompt saved successfully!"
	SaveFailedText  = "An error occurred while saving the prompt."
)

// Error carries the message an operator should see. Err is the underlying
// cause when there is one.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	client  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := api.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{baseURL: base, client: api.NewHTTPClient()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get fetches the current prompt.
func (c *Client) Get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+api.GetPromptPath, nil)
	if err != nil {
		return "", &Error{Message: FetchFailedText, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("component", "prompt").Msg("fetch prompt failed")
		return "", &Error{Message: err.Error(), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: FetchFailedText, Err: errors.Wrap(err, "read prompt response")}
	}

	if !ok(resp.StatusCode) {
		msg := FetchFailedText
		var body api.ErrorResponse
		if json.Unmarshal(raw, &body) == nil && body.Message != "" {
			msg = body.Message
		}
		return "", &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	var out api.PromptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: FetchFailedText, Err: errors.Wrap(err, "decode prompt response")}
	}
	return out.Prompt, nil
}

// Save stores prompt and returns the server's confirmation message.
func (c *Client) Save(ctx context.Context, prompt string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api.SavePromptURL(c.baseURL, prompt), nil)
	if err != nil {
		return "", &Error{Message: SaveFailedText, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("component", "prompt").Msg("save prompt failed")
		msg := err.Error()
		if msg == "" {
			msg = SaveFailedText
		}
		return "", &Error{Message: msg, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: SaveFailedText, Err: errors.Wrap(err, "read save response")}
	}

	if !ok(resp.StatusCode) {
		msg := SaveFailedText
		var body api.ErrorResponse
		if json.Unmarshal(raw, &body) == nil {
			if m := body.FirstMessage(); m != "" {
				msg = m
			}
		}
		return "", &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	var out api.SaveResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			log.Debug().Err(err).Str("component", "prompt").Msg("save response is not json")
		}
	}
	if out.Msg == "" {
		out.Msg = SavedText
	}
	return out.Msg, nil
}

func ok(status int) bool { return status >= 200 && status <= 299 }
