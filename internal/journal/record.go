// Package journal parses the agent's append-only JSONL conversation log and
// tails it incrementally, handing complete records to a projector.
package journal

import "encoding/json"

// RecordType is the journal record's `type` discriminator.
type RecordType string

const (
	TypeAssistant       RecordType = "assistant"
	TypeUser            RecordType = "user"
	TypeSummary         RecordType = "summary"
	TypeQueueOperation  RecordType = "queue-operation"
	TypeProgress        RecordType = "progress"
	TypeFileHistorySnap RecordType = "file-history-snapshot"
	TypeSystem          RecordType = "system"
)

// Record is one parsed line of the journal. Only the fields the core
// dispatch table consumes are decoded; everything else is ignored.
type Record struct {
	Type RecordType `json:"type"`

	UUID      string `json:"uuid"`
	SessionID string `json:"sessionId"`

	// assistant
	IsAPIErrorMessage bool            `json:"isApiErrorMessage"`
	Message           *MessageEnvelope `json:"message"`

	// user (carrier)
	SourceToolAssistantUUID string `json:"sourceToolAssistantUUID"`

	// summary
	Summary string `json:"summary"`

	// queue-operation
	Operation string `json:"operation"`
	Content   string `json:"content"`
}

// MessageEnvelope wraps the `message` field shared by assistant and user
// records. Content can be a string (plain user prompt) or an array of
// content blocks (assistant output, or tool_result carriers); UnmarshalJSON
// resolves the union.
type MessageEnvelope struct {
	ContentText   string
	ContentBlocks []ContentBlock
	IsArray       bool
}

// UnmarshalJSON implements the message.content string | array union.
func (m *MessageEnvelope) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	if len(wrapper.Content) == 0 {
		return nil
	}
	// Try string first.
	var s string
	if err := json.Unmarshal(wrapper.Content, &s); err == nil {
		m.ContentText = s
		m.IsArray = false
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(wrapper.Content, &blocks); err != nil {
		return err
	}
	m.ContentBlocks = blocks
	m.IsArray = true
	return nil
}

// ContentBlockType discriminates assistant/user content blocks.
type ContentBlockType string

const (
	BlockThinking   ContentBlockType = "thinking"
	BlockText       ContentBlockType = "text"
	BlockToolUse    ContentBlockType = "tool_use"
	BlockToolResult ContentBlockType = "tool_result"
)

// ContentBlock is one element of message.content.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// thinking
	Thinking string `json:"thinking"`

	// text
	Text string `json:"text"`

	// tool_use
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`

	// tool_result
	ToolUseID string            `json:"tool_use_id"`
	IsError   bool              `json:"is_error"`
	Content   ToolResultContent `json:"content"`
}

// ToolResultContent is the tool_result.content string | array_of_{type,text}
// union, flattened on demand by Flatten.
type ToolResultContent struct {
	Text  string
	Parts []ToolResultPart
}

// ToolResultPart is one element of an array-form tool_result content.
type ToolResultPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// UnmarshalJSON implements the tool_result.content string | array union.
func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		return nil
	}
	var parts []ToolResultPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	c.Parts = parts
	return nil
}

// Flatten renders tool_result content to a single string: the string form
// verbatim, or each array element's .text joined with "\n".
func (c ToolResultContent) Flatten() string {
	if c.Parts == nil {
		return c.Text
	}
	out := ""
	for i, p := range c.Parts {
		if i > 0 {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// ParseRecord decodes one journal line into a Record. Callers should run
// ValidateShape first to cheaply reject gross malformation.
func ParseRecord(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// StringOrEmpty coerces a map value that may be nil/absent/non-string into
// a string, defaulting to "" — the §4.4 tool-map input convention.
func StringOrEmpty(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
