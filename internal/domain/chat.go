package domain

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat part types.
const (
	PartText      = "text"
	PartReasoning = "reasoning"
)

// ChatPart is one segment of a chat message.
type ChatPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ChatMessage is one turn of a companion conversation. Messages are supplied
// by the client on every request and never persisted.
type ChatMessage struct {
	Role  string     `json:"role"`
	Parts []ChatPart `json:"parts"`
}

// Text concatenates the message's text parts, skipping reasoning.
func (m ChatMessage) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText || p.Type == "" {
			out += p.Text
		}
	}
	return out
}

// PreviousAnswer is an already-answered question passed as context for suggestions.
type PreviousAnswer struct {
	Label  string `json:"label"`
	Answer string `json:"answer"`
}
