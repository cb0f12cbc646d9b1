// Package extract holds the HTTP clients the voice runner uses to reach the
// concierge gateway: tool-call relay, the two transcript analyzers, memory
// persistence, token issuance, and profile lookup.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fractionalhub.app/concierge/internal/model"
)

// ErrProfileNotFound is returned when the gateway has no profile for the
// requested user.
var ErrProfileNotFound = errors.New("profile not found")

const defaultTimeout = 30 * time.Second

// Client talks to one concierge gateway instance.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type toolCallRequest struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Parameters string `json:"parameters"`
}

type toolCallResponse struct {
	Content string `json:"content"`
}

// Relay forwards a tool call to the gateway and returns the response content
// unmodified, for verbatim forwarding back over the transport.
func (c *Client) Relay(ctx context.Context, toolCallID, name, parameters string) (string, error) {
	var out toolCallResponse
	err := c.postJSON(ctx, "/api/v1/tool-call", toolCallRequest{
		Type:       "tool_call",
		ToolCallID: toolCallID,
		Name:       name,
		Parameters: parameters,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("relaying tool call: %w", err)
	}
	return out.Content, nil
}

type analyzeRequest struct {
	Transcript string `json:"transcript"`
	UserID     string `json:"userId"`
}

type analyzeResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Analyzer calls one of the gateway's transcript analyzer endpoints. The
// in-process and python-backed analyzers share a wire shape and differ only
// by path.
type Analyzer struct {
	client *Client
	path   string
}

func (c *Client) TranscriptAnalyzer() *Analyzer {
	return &Analyzer{client: c, path: "/api/v1/analyze"}
}

func (c *Client) PythonAnalyzer() *Analyzer {
	return &Analyzer{client: c, path: "/api/v1/analyze/python"}
}

// Analyze sends the user-only transcript for interpretation. A non-success
// status or an undecodable payload yields no result rather than an error;
// only transport-level failures propagate.
func (a *Analyzer) Analyze(ctx context.Context, transcript, userID string) (*model.ExtractionResult, error) {
	var out analyzeResponse
	err := a.client.postJSON(ctx, a.path, analyzeRequest{Transcript: transcript, UserID: userID}, &out)
	if err != nil {
		return nil, fmt.Errorf("analyzing transcript: %w", err)
	}
	if out.Status != "success" || len(out.Data) == 0 {
		return nil, nil
	}
	res, ok := model.ParseExtraction(out.Data)
	if !ok {
		return nil, nil
	}
	return res, nil
}

type memorySaveRequest struct {
	UserID     string `json:"userId"`
	Transcript string `json:"transcript"`
}

type memorySaveResponse struct {
	Saved  bool   `json:"saved"`
	Reason string `json:"reason,omitempty"`
}

// Save persists a flattened session transcript to the user's memory.
func (c *Client) Save(ctx context.Context, userID, transcript string) error {
	var out memorySaveResponse
	if err := c.postJSON(ctx, "/api/v1/memory/save", memorySaveRequest{UserID: userID, Transcript: transcript}, &out); err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}
	if !out.Saved {
		return fmt.Errorf("transcript not saved: %s", out.Reason)
	}
	return nil
}

type memoryContextRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

type memoryContextResponse struct {
	Context string `json:"context,omitempty"`
}

// Context fetches the user's recent memory entries as one context string.
// An empty string means no prior context exists.
func (c *Client) Context(ctx context.Context, userID, query string) (string, error) {
	var out memoryContextResponse
	if err := c.postJSON(ctx, "/api/v1/memory/context", memoryContextRequest{UserID: userID, Query: query}, &out); err != nil {
		return "", fmt.Errorf("fetching memory context: %w", err)
	}
	return out.Context, nil
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// AccessToken mints a fresh transport access token via the gateway.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := c.getJSON(ctx, "/api/v1/token", nil, &out); err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("gateway returned an empty access token")
	}
	return out.AccessToken, nil
}

// Profile fetches the user's profile, or ErrProfileNotFound.
func (c *Client) Profile(ctx context.Context, userID string) (model.Profile, error) {
	var out model.Profile
	query := url.Values{"user_id": {userID}}
	err := c.getJSON(ctx, "/api/v1/profile", query, &out)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, fmt.Errorf("fetching profile: %w", err)
	}
	return out, nil
}

var errNotFound = errors.New("not found")

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
