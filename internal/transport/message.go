package transport

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates inbound transport messages. The set is closed;
// anything the vendor sends outside it parses as TypeUnknown so the
// coordinator can log and skip it instead of guessing at shapes.
type MessageType string

const (
	TypeUserUtterance      MessageType = "user_message"
	TypeAssistantUtterance MessageType = "assistant_message"
	TypeToolCall           MessageType = "tool_call"
	TypeToolResponse       MessageType = "tool_response"
	TypeConnectionStatus   MessageType = "connection_status"
	TypeChatMetadata       MessageType = "chat_metadata"
	TypeError              MessageType = "error"
	TypeUnknown            MessageType = "unknown"
)

// Status values carried by TypeConnectionStatus messages. These are
// synthesized locally by the client around dial/teardown; the vendor does
// not send them on the wire.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Message is one event delivered by the voice transport, in strict delivery
// order. Exactly the fields for its Type are populated.
type Message struct {
	Type MessageType

	// Utterance fragments (TypeUserUtterance, TypeAssistantUtterance).
	Content string

	// Tool traffic (TypeToolCall, TypeToolResponse).
	ToolCallID string
	ToolName   string
	Parameters string // vendor delivers parameters as a JSON-encoded string

	// TypeConnectionStatus.
	Status string

	// TypeChatMetadata.
	ChatGroupID string

	// TypeError.
	ErrorCode    string
	ErrorMessage string

	// Original wire type string, kept for TypeUnknown logging.
	RawType string
}

type wireMessage struct {
	Type    string `json:"type"`
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message,omitempty"`
	ToolCallID  string `json:"tool_call_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Parameters  string `json:"parameters,omitempty"`
	Content     string `json:"content,omitempty"`
	ChatGroupID string `json:"chat_group_id,omitempty"`
	Code        string `json:"code,omitempty"`
	Message_    string `json:"error,omitempty"`
}

// ParseMessage decodes one raw frame from the vendor into a Message.
// Malformed JSON is an error; a well-formed frame with an unrecognized type
// is not — it becomes TypeUnknown.
func ParseMessage(data []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("decoding frame: %w", err)
	}

	switch MessageType(wire.Type) {
	case TypeUserUtterance, TypeAssistantUtterance:
		msg := Message{Type: MessageType(wire.Type), RawType: wire.Type}
		if wire.Message != nil {
			msg.Content = wire.Message.Content
		}
		return msg, nil
	case TypeToolCall:
		if wire.ToolCallID == "" {
			return Message{}, fmt.Errorf("tool_call frame missing tool_call_id")
		}
		return Message{
			Type:       TypeToolCall,
			RawType:    wire.Type,
			ToolCallID: wire.ToolCallID,
			ToolName:   wire.Name,
			Parameters: wire.Parameters,
		}, nil
	case TypeToolResponse:
		return Message{
			Type:       TypeToolResponse,
			RawType:    wire.Type,
			ToolCallID: wire.ToolCallID,
			ToolName:   wire.Name,
			Content:    wire.Content,
		}, nil
	case TypeChatMetadata:
		return Message{
			Type:        TypeChatMetadata,
			RawType:     wire.Type,
			ChatGroupID: wire.ChatGroupID,
		}, nil
	case TypeError:
		return Message{
			Type:         TypeError,
			RawType:      wire.Type,
			ErrorCode:    wire.Code,
			ErrorMessage: wire.Message_,
		}, nil
	default:
		return Message{Type: TypeUnknown, RawType: wire.Type}, nil
	}
}
