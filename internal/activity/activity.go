// Package activity defines the tracker-facing Activity shape and the pure
// tool-map table that translates tool invocations into it (spec.md §3,
// §4.4).
package activity

// Type is the activity content's discriminant.
type Type string

const (
	TypeThought     Type = "thought"
	TypeResponse    Type = "response"
	TypeAction      Type = "action"
	TypeError       Type = "error"
	TypePrompt      Type = "prompt"
	TypeElicitation Type = "elicitation"
)

// Content is the tagged payload carried by every Activity.
type Content struct {
	Type      Type    `json:"type"`
	Body      string  `json:"body,omitempty"`
	Action    string  `json:"action,omitempty"`
	Parameter string  `json:"parameter,omitempty"`
	Result    *string `json:"result,omitempty"`
}

// Activity is one unit of projected agent behavior posted to the tracker.
type Activity struct {
	AgentSessionID string  `json:"agentSessionId"`
	Content        Content `json:"content"`
	Ephemeral      bool    `json:"ephemeral,omitempty"`
}

// Mapped is the pure result of a tool-map function: the human-readable
// action/parameter pair, and an optional rendered result once a
// tool_result has arrived.
type Mapped struct {
	Action    string
	Parameter string
	Result    *string
	HasResult bool
}
