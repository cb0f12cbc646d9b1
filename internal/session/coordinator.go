package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"fractionalhub.app/concierge/common/logger"
	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/transport"
)

const (
	// minFanOutChars is the user-only transcript length that must be
	// exceeded before the transcript analyzers are invoked.
	minFanOutChars = 20

	// minSaveChars is the flattened transcript length that must be
	// exceeded before the session-end memory save fires.
	minSaveChars = 50

	// toolFailureTag is the static error tag sent back to the agent when a
	// tool relay attempt fails.
	toolFailureTag = "Tool execution failed"
)

// Transport is the duplex voice connection as the coordinator sees it.
type Transport interface {
	Events() <-chan transport.Message
	SendToolResponse(toolCallID, content string) error
	SendToolError(toolCallID, errTag, detail string) error
	Close() error
}

// Dialer opens a new transport session.
type Dialer interface {
	Dial(ctx context.Context, settings transport.ConnectSettings) (Transport, error)
}

// ToolRelay relays a tool call to the gateway and returns the response
// content to forward verbatim (extraction method A).
type ToolRelay interface {
	Relay(ctx context.Context, toolCallID, name, parameters string) (string, error)
}

// Analyzer interprets an accumulated user transcript (methods B and C).
type Analyzer interface {
	Analyze(ctx context.Context, transcript, userID string) (*model.ExtractionResult, error)
}

// MemoryClient persists a flattened transcript for a user.
type MemoryClient interface {
	Save(ctx context.Context, userID, transcript string) error
}

// TokenSource mints transport access tokens.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ResumeStore is the durable userID -> chatGroupID map used to resume a
// prior conversation on reconnect.
type ResumeStore interface {
	Get(userID string) (string, bool)
	Put(userID, chatGroupID string) error
}

type Deps struct {
	Dialer             Dialer
	Tokens             TokenSource
	ToolRelay          ToolRelay
	TranscriptAnalyzer Analyzer // method B
	PythonAnalyzer     Analyzer // method C
	Memory             MemoryClient
	Resume             ResumeStore
}

type Config struct {
	Profile      model.Profile
	PriorContext string // memory context fetched at startup
	ConfigID     string // vendor voice config
}

type eventKind int

const (
	evTransportMessage eventKind = iota
	evConnectRequested
	evDisconnectRequested
	evConnected
	evConnectFailed
	evToolDone
	evFanoutDone
	evSaveDone
)

// event is the coordinator's internal union: transport deliveries and
// completions of spawned side-effect tasks all arrive on one channel, so
// session state only ever has a single writer.
type event struct {
	kind eventKind

	msg transport.Message
	tr  Transport
	err error

	method model.Method
	result *model.ExtractionResult

	toolCallID string
	content    string
}

// Coordinator mediates between the voice transport, the extraction
// backends, and the memory-persistence service for one user's session.
// All state transitions happen on the Run loop; side effects are spawned
// goroutines that report back as events. Nothing is ever cancelled or
// retried; a resolved side effect applies whenever it lands.
type Coordinator struct {
	cfg  Config
	deps Deps

	events    chan event
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu        sync.RWMutex
	state     State
	transport Transport
}

func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		deps:      deps,
		events:    make(chan event, 128),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run consumes events until the context ends or Stop is called.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.stoppedCh)

	c.mu.Lock()
	c.state = newState()
	c.mu.Unlock()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "concierge.session.coordinator",
		UserID:    logger.Ptr(c.cfg.Profile.UserID),
	})

	slog.InfoContext(ctx, "session coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.teardown(ctx)
			return ctx.Err()
		case <-c.stopCh:
			slog.InfoContext(ctx, "session coordinator stopping")
			c.teardown(ctx)
			return nil
		case ev := <-c.events:
			c.handleSafe(ctx, ev)
		}
	}
}

// Stop shuts the loop down and waits for it to finish.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	<-c.stoppedCh
}

// Connect asks the coordinator to open a transport session. No-op unless
// currently disconnected.
func (c *Coordinator) Connect() {
	c.events <- event{kind: evConnectRequested}
}

// Disconnect closes the transport if connected. The disconnected status
// flows back through the event stream like any other message.
func (c *Coordinator) Disconnect() {
	c.events <- event{kind: evDisconnectRequested}
}

// Snapshot returns a copy of the current session state for presentation.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

func (c *Coordinator) handleSafe(ctx context.Context, ev event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in event handling", "panic", r, "event_kind", int(ev.kind))
		}
	}()
	c.handle(ctx, ev)
}

func (c *Coordinator) handle(ctx context.Context, ev event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.kind {
	case evConnectRequested:
		c.startConnect(ctx)
	case evDisconnectRequested:
		if c.transport != nil {
			if err := c.transport.Close(); err != nil {
				slog.WarnContext(ctx, "transport close failed", "error", err)
			}
		}
	case evConnected:
		c.transport = ev.tr
		c.state.Conn = StateConnected
		c.state.wasLive = true
		c.state.ErrorFlag = false
		c.state.LastError = ""
		c.state.logDebug(model.DebugInfo, "connected")
		slog.InfoContext(ctx, "voice transport connected")
		go c.pump(ev.tr)
	case evConnectFailed:
		c.state.Conn = StateDisconnected
		c.state.ErrorFlag = true
		c.state.LastError = ev.err.Error()
		c.state.logDebug(model.DebugError, "connect failed: "+ev.err.Error())
		slog.ErrorContext(ctx, "voice transport connect failed", "error", ev.err)
	case evTransportMessage:
		c.handleMessage(ctx, ev.msg)
	case evToolDone:
		c.finishToolCall(ctx, ev)
	case evFanoutDone:
		if ev.err != nil {
			c.state.logDebug(model.DebugError, fmt.Sprintf("method %s analyze failed: %v", ev.method, ev.err))
			slog.WarnContext(ctx, "analyzer call failed", "extraction_method", string(ev.method), "error", ev.err)
			return
		}
		c.state.applyResult(ev.method, ev.result)
		c.state.logDebug(model.DebugInfo, fmt.Sprintf("method %s result applied", ev.method))
	case evSaveDone:
		if ev.err != nil {
			c.state.logDebug(model.DebugError, "memory save failed: "+ev.err.Error())
			slog.WarnContext(ctx, "memory save failed", "error", ev.err)
			return
		}
		c.state.logDebug(model.DebugInfo, "transcript saved to memory")
	}
}

// startConnect gathers session variables and dials in the background.
// Mirrors what the page did on the call button: token, stored chat group,
// profile fields and prior context all travel with the connect.
func (c *Coordinator) startConnect(ctx context.Context) {
	if c.state.Conn != StateDisconnected {
		c.state.logDebug(model.DebugInfo, "connect ignored: not disconnected")
		return
	}
	c.state.Conn = StateConnecting
	c.state.logDebug(model.DebugInfo, "connecting")

	profile := c.cfg.Profile
	var resumed string
	if profile.UserID != "" {
		if stored, ok := c.deps.Resume.Get(profile.UserID); ok {
			resumed = stored
		}
	}

	go func() {
		token, err := c.deps.Tokens.AccessToken(ctx)
		if err != nil {
			c.events <- event{kind: evConnectFailed, err: fmt.Errorf("fetching access token: %w", err)}
			return
		}

		settings := transport.ConnectSettings{
			AccessToken:        token,
			ConfigID:           c.cfg.ConfigID,
			ResumedChatGroupID: resumed,
			Variables:          c.sessionVariables(),
		}

		tr, err := c.deps.Dialer.Dial(ctx, settings)
		if err != nil {
			c.events <- event{kind: evConnectFailed, err: err}
			return
		}
		c.events <- event{kind: evConnected, tr: tr}
	}()
}

func (c *Coordinator) sessionVariables() map[string]string {
	p := c.cfg.Profile
	vars := map[string]string{
		"user_id":          p.UserID,
		"first_name":       p.FirstName,
		"last_name":        p.LastName,
		"is_authenticated": strconv.FormatBool(p.IsAuthenticated),
		"current_country":  p.CurrentCountry,
		"interests":        strings.Join(p.Interests, ", "),
		"timeline":         p.Timeline,
		"budget":           p.Budget,
		"email":            p.Email,
		"previous_context": c.cfg.PriorContext,
	}
	return vars
}

// pump forwards transport deliveries into the coordinator's event channel,
// preserving delivery order. Exits when the transport closes its stream.
func (c *Coordinator) pump(tr Transport) {
	for msg := range tr.Events() {
		c.events <- event{kind: evTransportMessage, msg: msg}
	}
}

func (c *Coordinator) handleMessage(ctx context.Context, msg transport.Message) {
	switch msg.Type {
	case transport.TypeUserUtterance:
		c.state.foldUserFragment(msg.Content)
		c.maybeFanOut(ctx)
	case transport.TypeAssistantUtterance:
		c.state.foldAssistantFragment(msg.Content)
		c.maybeFanOut(ctx)
	case transport.TypeToolCall:
		c.startToolCall(ctx, msg)
	case transport.TypeToolResponse:
		// The vendor echoes tool responses; nothing to apply.
		c.state.logDebug(model.DebugTool, "tool response echoed: "+msg.ToolName)
	case transport.TypeChatMetadata:
		c.state.ChatGroupID = msg.ChatGroupID
		c.state.logDebug(model.DebugInfo, "chat metadata received")
		if c.cfg.Profile.UserID != "" && msg.ChatGroupID != "" {
			if err := c.deps.Resume.Put(c.cfg.Profile.UserID, msg.ChatGroupID); err != nil {
				slog.WarnContext(ctx, "storing chat group for resume failed", "error", err)
			}
		}
	case transport.TypeConnectionStatus:
		c.handleStatus(ctx, msg.Status)
	case transport.TypeError:
		c.state.ErrorFlag = true
		c.state.LastError = msg.ErrorMessage
		c.state.logDebug(model.DebugError, fmt.Sprintf("transport error %s: %s", msg.ErrorCode, msg.ErrorMessage))
		slog.WarnContext(ctx, "transport error", "code", msg.ErrorCode, "message", msg.ErrorMessage)
	case transport.TypeUnknown:
		c.state.logDebug(model.DebugInfo, "unknown message type: "+msg.RawType)
		slog.DebugContext(ctx, "unknown transport message type", "raw_type", msg.RawType)
	}
}

func (c *Coordinator) handleStatus(ctx context.Context, status string) {
	switch status {
	case transport.StatusConnected:
		// Already handled on evConnected; the stream-borne status keeps
		// ordering visible in the debug log.
		c.state.logDebug(model.DebugInfo, "transport reported connected")
	case transport.StatusDisconnected:
		c.transport = nil
		c.state.Conn = StateDisconnected
		c.state.flushAssistant()
		c.state.logDebug(model.DebugInfo, "disconnected")
		slog.InfoContext(ctx, "voice transport disconnected")
		c.maybeSaveTranscript(ctx)
	}
}

// maybeSaveTranscript fires the one-shot session-end persistence. The
// wasLive latch is reset before the save task resolves so re-renders of a
// disconnected session can never fire it twice.
func (c *Coordinator) maybeSaveTranscript(ctx context.Context) {
	fire := c.state.wasLive &&
		len(c.state.Turns) > 0 &&
		c.cfg.Profile.UserID != ""
	c.state.wasLive = false
	if !fire {
		return
	}

	flat := c.state.FlattenTranscript()
	if len(flat) <= minSaveChars {
		c.state.logDebug(model.DebugInfo, "transcript too short to save")
		return
	}

	userID := c.cfg.Profile.UserID
	go func() {
		err := c.deps.Memory.Save(ctx, userID, flat)
		c.events <- event{kind: evSaveDone, err: err}
	}()
}

func (c *Coordinator) startToolCall(ctx context.Context, msg transport.Message) {
	c.state.recordToolCall(msg.ToolCallID, msg.ToolName, msg.Parameters)
	c.state.logDebug(model.DebugTool, fmt.Sprintf("tool call %s (%s)", msg.ToolName, msg.ToolCallID))

	go func() {
		sc := logger.StartSpan(ctx, "session.dispatch_tool_call", trace.WithSpanKind(trace.SpanKindClient))
		defer sc.End()

		content, err := c.deps.ToolRelay.Relay(sc.Context(), msg.ToolCallID, msg.ToolName, msg.Parameters)
		if err != nil {
			sc.RecordError(err)
		}
		c.events <- event{
			kind:       evToolDone,
			toolCallID: msg.ToolCallID,
			content:    content,
			err:        err,
		}
	}()
}

// finishToolCall relays the outcome back to the agent, correlated by call
// id. One attempt only; a failure becomes a best-effort tool_error frame
// and a debug log line, nothing more.
func (c *Coordinator) finishToolCall(ctx context.Context, ev event) {
	tr := c.transport

	if ev.err != nil {
		c.state.resolveToolCall(ev.toolCallID, ToolCallFailed)
		c.state.logDebug(model.DebugError, fmt.Sprintf("tool call %s failed: %v", ev.toolCallID, ev.err))
		slog.WarnContext(ctx, "tool relay failed", "tool_call_id", ev.toolCallID, "error", ev.err)
		if tr != nil {
			if sendErr := tr.SendToolError(ev.toolCallID, toolFailureTag, ev.err.Error()); sendErr != nil {
				slog.WarnContext(ctx, "sending tool error failed", "tool_call_id", ev.toolCallID, "error", sendErr)
			}
		}
		return
	}

	c.state.resolveToolCall(ev.toolCallID, ToolCallCompleted)
	if tr != nil {
		if sendErr := tr.SendToolResponse(ev.toolCallID, ev.content); sendErr != nil {
			slog.WarnContext(ctx, "sending tool response failed", "tool_call_id", ev.toolCallID, "error", sendErr)
		}
	}

	if res, ok := model.ParseExtraction([]byte(ev.content)); ok {
		c.state.applyResult(model.MethodToolCall, res)
		c.state.logDebug(model.DebugTool, "tool call "+ev.toolCallID+" produced display results")
	}
}

// maybeFanOut asks methods B and C to interpret the user-only transcript.
// Both fire concurrently on every qualifying message; growing transcripts
// re-invoke the backends with overlapping text, and nothing in flight is
// ever deduplicated or cancelled. That waste is a deliberate property of
// the three-way method comparison, not an oversight.
func (c *Coordinator) maybeFanOut(ctx context.Context) {
	text := c.state.UserTranscript()
	if len(text) <= minFanOutChars {
		c.state.logDebug(model.DebugInfo, fmt.Sprintf("transcript below threshold (%d chars), analyzers skipped", len(text)))
		return
	}

	slog.DebugContext(ctx, "fanning out transcript analysis",
		"transcript_len", len(text), "transcript_preview", logger.Truncate(text, 80))

	userID := c.cfg.Profile.UserID
	launch := func(method model.Method, analyzer Analyzer) {
		go func() {
			sc := logger.StartSpan(ctx, "session.analyze_transcript", trace.WithSpanKind(trace.SpanKindClient))
			defer sc.End()

			res, err := analyzer.Analyze(logger.WithLogFields(sc.Context(), logger.LogFields{Method: logger.Ptr(string(method))}), text, userID)
			if err != nil {
				sc.RecordError(err)
			}
			c.events <- event{kind: evFanoutDone, method: method, result: res, err: err}
		}()
	}
	launch(model.MethodTranscript, c.deps.TranscriptAnalyzer)
	launch(model.MethodPython, c.deps.PythonAnalyzer)
}

func (c *Coordinator) teardown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			slog.WarnContext(ctx, "transport close failed", "error", err)
		}
		c.transport = nil
	}
}
