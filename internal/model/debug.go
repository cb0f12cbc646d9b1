package model

import "time"

// DebugEntryType classifies debug log entries. Purely observational.
type DebugEntryType string

const (
	DebugInfo  DebugEntryType = "info"
	DebugError DebugEntryType = "error"
	DebugTool  DebugEntryType = "tool"
)

// DebugEntry is one line of the session's bounded debug log.
type DebugEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Type      DebugEntryType `json:"type"`
}
