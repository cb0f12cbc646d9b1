package model

// TurnRole attributes a logical utterance to a conversation participant.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one logical, role-attributed unit of conversation, reconstructed
// from possibly fragmented transport deliveries. Boundaries are determined
// solely by role transitions, never by time gaps or content.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}
