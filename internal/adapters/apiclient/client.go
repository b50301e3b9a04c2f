// Package apiclient reaches a running server over its HTTP API. It gives
// out-of-process callers the same probe, delivery and mic release
// operations the server uses in-process.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/agentvoice/internal/domain"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL. timeout bounds every
// request; speech requests include synthesis time, so keep it generous.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// HasConnections asks whether the room has attached browsers. The caller
// bounds it with ctx.
func (c *Client) HasConnections(ctx context.Context, room domain.RoomName) (bool, error) {
	var out struct {
		HasConnections bool `json:"has_connections"`
	}
	if err := c.do(ctx, http.MethodGet, roomPath("/api/rooms/", room, "/connections"), nil, &out); err != nil {
		return false, err
	}
	return out.HasConnections, nil
}

func (c *Client) Broadcast(ctx context.Context, room domain.RoomName, text, voice string) error {
	return c.do(ctx, http.MethodPost, roomPath("/api/say/", room, ""), speech{Text: text, Voice: voice}, nil)
}

func (c *Client) LocalSpeak(ctx context.Context, room domain.RoomName, text, voice string) error {
	return c.do(ctx, http.MethodPost, roomPath("/api/local-tts/", room, ""), speech{Text: text, Voice: voice}, nil)
}

func (c *Client) ReleaseMic(ctx context.Context, room domain.RoomName) error {
	return c.do(ctx, http.MethodPost, roomPath("/api/rooms/", room, "/unlock"), nil, nil)
}

type speech struct {
	Text    string `json:"text"`
	Voice   string `json:"voice,omitempty"`
	Session string `json:"session,omitempty"`
	PID     int    `json:"pid,omitempty"`
}

// Decision is the server's routing outcome for one utterance.
type Decision struct {
	Path      domain.RoutePath `json:"path"`
	Attempted domain.RoutePath `json:"attempted"`
	Error     string           `json:"error,omitempty"`
}

func (d Decision) Delivered() bool {
	return d.Path != "" && d.Path != domain.RouteNone
}

// Speak lets the server route the utterance. With an empty session the
// server detects it from pid, which must be a process on the server's
// host. A failed delivery is a Decision, not an error; err is reserved
// for not reaching the server at all.
func (c *Client) Speak(ctx context.Context, text, voice string, session domain.SessionName, pid int) (Decision, error) {
	var d Decision
	err := c.do(ctx, http.MethodPost, "/api/speak", speech{Text: text, Voice: voice, Session: string(session), PID: pid}, &d)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusBadGateway && se.decision != nil {
		return *se.decision, nil
	}
	return d, err
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string

	decision *Decision
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func roomPath(prefix string, room domain.RoomName, suffix string) string {
	return prefix + url.PathEscape(string(room)) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error     string           `json:"error"`
		Path      domain.RoutePath `json:"path"`
		Attempted domain.RoutePath `json:"attempted"`
	}
	msg := strings.TrimSpace(string(data))
	se := &StatusError{Code: resp.StatusCode, Message: msg}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Error != "" {
			se.Message = payload.Error
		}
		if payload.Path != "" {
			se.decision = &Decision{Path: payload.Path, Attempted: payload.Attempted, Error: payload.Error}
		}
	}
	return se
}
