package session

import (
	"strings"
	"time"

	"fractionalhub.app/concierge/internal/model"
)

// ConnState is the transport connection lifecycle. Disconnected is
// restartable; a new Connect can always be issued from it. Errors are an
// overlay flag, not a state the machine blocks on.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// ToolCallStatus tracks a relayed tool call through its single attempt.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

type ToolCallRecord struct {
	ID         string
	Name       string
	Parameters string
	Status     ToolCallStatus
}

// Bucket holds one extraction method's display state. Buckets are never
// merged across methods; each write replaces the previous content
// (last-write-wins, whatever order the backends resolve in).
type Bucket struct {
	Jobs         []model.Job
	Confirmation *model.ConfirmationRequest
}

const debugRingCap = 30

// State is the complete session state, mutated only by the coordinator
// loop. Everything the presentation layer shows lives here.
type State struct {
	Conn        ConnState
	ErrorFlag   bool
	LastError   string
	ChatGroupID string

	// wasLive latches once the session reaches Connected, arming the
	// one-shot transcript save on the next transition to Disconnected.
	wasLive bool

	Turns     []model.Turn
	Buckets   map[model.Method]Bucket
	ToolCalls []ToolCallRecord
	Debug     []model.DebugEntry

	// Incremental reconstruction carry-over: the in-progress assistant
	// accumulator and the running user-only transcript.
	assistantAcc string
	userText     string
}

func newState() State {
	return State{
		Conn:    StateDisconnected,
		Buckets: make(map[model.Method]Bucket),
	}
}

// --- utterance reconstruction (incremental fold) ---------------------------

// foldUserFragment folds one user utterance fragment into the state.
// Whitespace-only fragments are treated as absent. A user fragment always
// flushes any pending assistant text first and always starts its own turn;
// consecutive user fragments never merge.
func (s *State) foldUserFragment(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	s.flushAssistant()
	s.Turns = append(s.Turns, model.Turn{Role: model.RoleUser, Content: content})
	if s.userText == "" {
		s.userText = content
	} else {
		s.userText += " " + content
	}
}

// foldAssistantFragment accumulates an assistant fragment. Fragments are
// joined with a single space; the accumulated text becomes one logical turn
// when the next user fragment (or stream end) flushes it.
func (s *State) foldAssistantFragment(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	if s.assistantAcc == "" {
		s.assistantAcc = content
		return
	}
	s.assistantAcc = strings.TrimRight(s.assistantAcc, " ") + " " + content
}

// flushAssistant closes the in-progress assistant turn, trimming the
// trailing space only here, at the final flush.
func (s *State) flushAssistant() {
	acc := strings.TrimRight(s.assistantAcc, " \t")
	s.assistantAcc = ""
	if acc == "" {
		return
	}
	s.Turns = append(s.Turns, model.Turn{Role: model.RoleAssistant, Content: acc})
}

// UserTranscript is the concatenated user-only text. Assistant turns are
// deliberately excluded from what gets sent to the analyzers.
func (s *State) UserTranscript() string {
	return s.userText
}

// FlattenTranscript renders the full reconstructed history as one
// "Role: content" block per turn, for the memory-persistence endpoint.
func (s *State) FlattenTranscript() string {
	var b strings.Builder
	for i, t := range s.Turns {
		if i > 0 {
			b.WriteString("\n")
		}
		switch t.Role {
		case model.RoleUser:
			b.WriteString("User: ")
		case model.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

// --- buckets ----------------------------------------------------------------

func (s *State) applyResult(method model.Method, res *model.ExtractionResult) {
	if res == nil {
		return
	}
	bucket := s.Buckets[method]
	switch res.Type {
	case model.ResultTypeJobs:
		jobs := make([]model.Job, 0, len(res.Jobs))
		for _, j := range res.Jobs {
			if j.Presentable() {
				jobs = append(jobs, j)
			}
		}
		bucket.Jobs = jobs
	case model.ResultTypeConfirmation:
		bucket.Confirmation = res.Confirmation
	}
	s.Buckets[method] = bucket
}

// --- tool-call history ------------------------------------------------------

func (s *State) recordToolCall(id, name, parameters string) {
	s.ToolCalls = append(s.ToolCalls, ToolCallRecord{
		ID:         id,
		Name:       name,
		Parameters: parameters,
		Status:     ToolCallPending,
	})
}

func (s *State) resolveToolCall(id string, status ToolCallStatus) {
	for i := len(s.ToolCalls) - 1; i >= 0; i-- {
		if s.ToolCalls[i].ID == id {
			s.ToolCalls[i].Status = status
			return
		}
	}
}

// --- debug ring -------------------------------------------------------------

// logDebug appends to the bounded debug ring. Purely observational.
func (s *State) logDebug(entryType model.DebugEntryType, message string) {
	s.Debug = append(s.Debug, model.DebugEntry{
		Timestamp: time.Now(),
		Message:   message,
		Type:      entryType,
	})
	if len(s.Debug) > debugRingCap {
		s.Debug = s.Debug[len(s.Debug)-debugRingCap:]
	}
}

// clone returns a deep-enough copy for snapshot readers.
func (s *State) clone() State {
	out := *s
	out.Turns = append([]model.Turn(nil), s.Turns...)
	out.ToolCalls = append([]ToolCallRecord(nil), s.ToolCalls...)
	out.Debug = append([]model.DebugEntry(nil), s.Debug...)
	out.Buckets = make(map[model.Method]Bucket, len(s.Buckets))
	for k, v := range s.Buckets {
		out.Buckets[k] = v
	}
	return out
}
