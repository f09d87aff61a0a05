package call

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the conversation history. Immutable once
// appended; Sequence is strictly increasing and defines reasoning order.
type Turn struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Sequence int    `json:"sequence"`
}
