// Package api holds the wire types and endpoint paths of the chatbot backend.
package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
)

// DefaultBaseURL is the hosted chatbot the widget talks to unless configured otherwise.
const DefaultBaseURL = "https://pharmacybali-medical-chatbot-937077168251.asia-south1.run.app"

const (
	AskPath        = "/v1/ask"
	GetPromptPath  = "/v1/get_prompt"
	SavePromptPath = "/v1/save_prompt"
)

// NoResponseText is emitted when a JSON reply carries an empty response field.
const NoResponseText = "No response from the bot."

type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

type AskResponse struct {
	Response string `json:"response"`
}

type ErrorDetail struct {
	Msg string `json:"msg"`
}

// ErrorResponse covers both error shapes the backend produces: a plain
// {"message": ...} and the validation form {"detail": [{"msg": ...}]}.
type ErrorResponse struct {
	Message string        `json:"message,omitempty"`
	Detail  []ErrorDetail `json:"detail,omitempty"`
}

// FirstMessage returns detail[0].msg, then message, then "".
func (e ErrorResponse) FirstMessage() string {
	if len(e.Detail) > 0 && e.Detail[0].Msg != "" {
		return e.Detail[0].Msg
	}
	return e.Message
}

type PromptResponse struct {
	Prompt string `json:"prompt"`
}

type SaveResponse struct {
	Msg string `json:"msg"`
}

// NewHTTPClient returns a pooled client without a client-side timeout.
// Streams are bounded by the caller's context instead.
func NewHTTPClient() *http.Client {
	return cleanhttp.DefaultPooledClient()
}

// NormalizeBaseURL validates raw as an absolute http(s) URL and strips any
// trailing slash so endpoint paths can be appended directly.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("base url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "invalid base url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Errorf("base url %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", errors.Errorf("base url %q has no host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// componentUnescaper undoes the differences between url.QueryEscape and
// encodeURIComponent: spaces are %20 and !'()* stay literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeQueryComponent escapes s exactly like a browser's encodeURIComponent.
func EncodeQueryComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

// SavePromptURL builds the save endpoint with the prompt in the query string.
func SavePromptURL(base, prompt string) string {
	return base + SavePromptPath + "?prompt=" + EncodeQueryComponent(prompt)
}
