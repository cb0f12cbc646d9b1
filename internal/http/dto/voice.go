package dto

import "encoding/json"

// ToolCallRequest is the relay payload posted by the voice runner when the
// agent emits a tool call.
type ToolCallRequest struct {
	Type       string `json:"type" binding:"required,eq=tool_call"`
	ToolCallID string `json:"tool_call_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Parameters string `json:"parameters"`
}

// ToolCallResponse carries the content string forwarded verbatim back to
// the voice agent.
type ToolCallResponse struct {
	Content string `json:"content"`
}

type AnalyzeRequest struct {
	Transcript string `json:"transcript" binding:"required"`
	UserID     string `json:"userId"`
}

// AnalyzeResponse reports the analyzer outcome. Data is present only on
// success with an actionable result.
type AnalyzeResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type MemorySaveRequest struct {
	UserID     string `json:"userId" binding:"required"`
	Transcript string `json:"transcript" binding:"required"`
}

type MemorySaveResponse struct {
	Saved  bool   `json:"saved"`
	Reason string `json:"reason,omitempty"`
}

type MemoryContextRequest struct {
	UserID string `json:"userId" binding:"required"`
	Query  string `json:"query"`
}

type MemoryContextResponse struct {
	Context string `json:"context,omitempty"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}
