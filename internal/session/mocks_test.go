package session_test

import (
	"context"
	"sync"

	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/session"
	"fractionalhub.app/concierge/internal/transport"
)

// fakeTransport lets tests deliver transport messages in order and records
// everything the coordinator sends back.
type fakeTransport struct {
	events chan transport.Message

	mu     sync.Mutex
	sent   []sentToolMessage
	closed bool
}

type sentToolMessage struct {
	ToolCallID string
	Content    string
	ErrorTag   string
	IsError    bool
}

func newFakeTransport() *fakeTransport {
	ft := &fakeTransport{events: make(chan transport.Message, 64)}
	ft.events <- transport.Message{Type: transport.TypeConnectionStatus, Status: transport.StatusConnected}
	return ft
}

func (f *fakeTransport) Events() <-chan transport.Message { return f.events }

func (f *fakeTransport) SendToolResponse(toolCallID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentToolMessage{ToolCallID: toolCallID, Content: content})
	return nil
}

func (f *fakeTransport) SendToolError(toolCallID, errTag, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentToolMessage{ToolCallID: toolCallID, ErrorTag: errTag, Content: detail, IsError: true})
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.events <- transport.Message{Type: transport.TypeConnectionStatus, Status: transport.StatusDisconnected}
	close(f.events)
	return nil
}

func (f *fakeTransport) deliver(msg transport.Message) {
	f.events <- msg
}

func (f *fakeTransport) sentMessages() []sentToolMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentToolMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type mockDialer struct {
	mu         sync.Mutex
	dialFn     func(ctx context.Context, settings transport.ConnectSettings) (session.Transport, error)
	settings   []transport.ConnectSettings
	transports []*fakeTransport
}

func (m *mockDialer) Dial(ctx context.Context, settings transport.ConnectSettings) (session.Transport, error) {
	m.mu.Lock()
	m.settings = append(m.settings, settings)
	fn := m.dialFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, settings)
	}
	ft := newFakeTransport()
	m.mu.Lock()
	m.transports = append(m.transports, ft)
	m.mu.Unlock()
	return ft, nil
}

func (m *mockDialer) lastTransport() *fakeTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.transports) == 0 {
		return nil
	}
	return m.transports[len(m.transports)-1]
}

func (m *mockDialer) dialedSettings() []transport.ConnectSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.ConnectSettings, len(m.settings))
	copy(out, m.settings)
	return out
}

type mockToolRelay struct {
	mu      sync.Mutex
	relayFn func(ctx context.Context, toolCallID, name, parameters string) (string, error)
	calls   []string // call ids in relay order
}

func (m *mockToolRelay) Relay(ctx context.Context, toolCallID, name, parameters string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, toolCallID)
	fn := m.relayFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, toolCallID, name, parameters)
	}
	return `{"type":"job_results","jobs":[]}`, nil
}

func (m *mockToolRelay) callIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

type mockAnalyzer struct {
	mu          sync.Mutex
	analyzeFn   func(ctx context.Context, transcript, userID string) (*model.ExtractionResult, error)
	transcripts []string
}

func (m *mockAnalyzer) Analyze(ctx context.Context, transcript, userID string) (*model.ExtractionResult, error) {
	m.mu.Lock()
	m.transcripts = append(m.transcripts, transcript)
	fn := m.analyzeFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, transcript, userID)
	}
	return &model.ExtractionResult{Type: model.ResultTypeJobs}, nil
}

func (m *mockAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transcripts)
}

func (m *mockAnalyzer) seenTranscripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.transcripts))
	copy(out, m.transcripts)
	return out
}

type mockMemory struct {
	mu     sync.Mutex
	saveFn func(ctx context.Context, userID, transcript string) error
	saved  []string
}

func (m *mockMemory) Save(ctx context.Context, userID, transcript string) error {
	m.mu.Lock()
	m.saved = append(m.saved, transcript)
	fn := m.saveFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, userID, transcript)
	}
	return nil
}

func (m *mockMemory) savedTranscripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.saved))
	copy(out, m.saved)
	return out
}

type mockTokens struct {
	tokenFn func(ctx context.Context) (string, error)
}

func (m *mockTokens) AccessToken(ctx context.Context) (string, error) {
	if m.tokenFn != nil {
		return m.tokenFn(ctx)
	}
	return "test-token", nil
}

type mockResume struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMockResume() *mockResume {
	return &mockResume{entries: make(map[string]string)}
}

func (m *mockResume) Get(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[userID]
	return v, ok
}

func (m *mockResume) Put(userID, chatGroupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = chatGroupID
	return nil
}
