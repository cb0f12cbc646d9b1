package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectSettings carries everything the vendor needs to open (or resume) a
// chat session: the short-lived access token from the gateway's token
// endpoint, the vendor-side voice config, session variables describing the
// user, and an optional chat group to resume.
type ConnectSettings struct {
	AccessToken        string
	ConfigID           string
	ResumedChatGroupID string
	Variables          map[string]string
}

type Config struct {
	WSURL            string
	HandshakeTimeout time.Duration
}

// Client is a duplex connection to the remote conversational-AI voice
// service. Inbound messages surface on Events() in delivery order; the
// channel closes when the connection ends. Synthesized connection_status
// messages bracket the stream so consumers see lifecycle transitions on the
// same ordered channel as everything else.
type Client struct {
	conn   *websocket.Conn
	events chan Message

	writeMu sync.Mutex
	once    sync.Once
}

type sessionSettingsFrame struct {
	Type      string            `json:"type"`
	Variables map[string]string `json:"variables,omitempty"`
}

type toolResponseFrame struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

type toolErrorFrame struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Error      string `json:"error"`
	Content    string `json:"content"`
}

// Dial opens the websocket session and starts the read loop.
func Dial(ctx context.Context, cfg Config, settings ConnectSettings) (*Client, error) {
	wsURL, err := buildURL(cfg.WSURL, settings)
	if err != nil {
		return nil, err
	}

	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing voice transport (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing voice transport: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Message, 64),
	}

	if len(settings.Variables) > 0 {
		if err := c.writeJSON(sessionSettingsFrame{Type: "session_settings", Variables: settings.Variables}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sending session settings: %w", err)
		}
	}

	c.events <- Message{Type: TypeConnectionStatus, Status: StatusConnected}
	go c.readLoop()

	return c, nil
}

func buildURL(base string, settings ConnectSettings) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing transport url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", settings.AccessToken)
	if settings.ConfigID != "" {
		q.Set("config_id", settings.ConfigID)
	}
	if settings.ResumedChatGroupID != "" {
		q.Set("resumed_chat_group_id", settings.ResumedChatGroupID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Events returns the ordered inbound message stream. Closed on teardown,
// always after a final disconnected status message.
func (c *Client) Events() <-chan Message {
	return c.events
}

func (c *Client) readLoop() {
	defer c.finish()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("voice transport closed unexpectedly", "error", err)
				c.events <- Message{Type: TypeError, ErrorCode: "transport_closed", ErrorMessage: err.Error()}
			}
			return
		}

		msg, err := ParseMessage(data)
		if err != nil {
			slog.Warn("dropping malformed transport frame", "error", err)
			continue
		}
		c.events <- msg
	}
}

func (c *Client) finish() {
	c.once.Do(func() {
		c.events <- Message{Type: TypeConnectionStatus, Status: StatusDisconnected}
		close(c.events)
	})
}

// SendToolResponse relays a tool result back to the conversational agent,
// correlated by the call id it arrived with. Content is forwarded verbatim.
func (c *Client) SendToolResponse(toolCallID, content string) error {
	return c.writeJSON(toolResponseFrame{
		Type:       "tool_response",
		ToolCallID: toolCallID,
		Content:    content,
	})
}

// SendToolError notifies the agent that a tool call failed so it can react
// conversationally. Best effort; the session continues either way.
func (c *Client) SendToolError(toolCallID, errTag, detail string) error {
	return c.writeJSON(toolErrorFrame{
		Type:       "tool_error",
		ToolCallID: toolCallID,
		Error:      errTag,
		Content:    detail,
	})
}

func (c *Client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down. In-flight reads end and the event
// channel closes; no pending side calls are cancelled.
func (c *Client) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}
