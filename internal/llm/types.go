package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// Valid reports whether the message carries both a known role and content.
// The gateway drops invalid messages instead of forwarding them.
func (m Message) Valid() bool {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
		return m.Content != ""
	}
	return false
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// TokenUsage summarizes tokens consumed by one or more gateway calls.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// CompleteOptions tune a single gateway completion.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
}

// CompleteResult is the gateway's completion envelope.
type CompleteResult struct {
	Text    string     `json:"text"`
	Usage   TokenUsage `json:"usage"`
	ModelID string     `json:"model_id"`
}

// EmbedResult is the gateway's embedding envelope.
type EmbedResult struct {
	Vectors [][]float32 `json:"vectors"`
	Usage   TokenUsage  `json:"usage"`
	ModelID string     `json:"model_id"`
}

// EntityMention is a single entity occurrence extracted from user text.
type EntityMention struct {
	Kind       string  `json:"kind"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the result of intent extraction over user text.
// Confidence is meaningful only when Intent is not IntentUnknown.
type Extraction struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities"`
	Mentions   []EntityMention   `json:"mentions"`
	Usage      TokenUsage        `json:"usage"`
	// ParseError annotates a defensively-handled provider or parse failure.
	// Extraction never fails hard; callers treat an annotated result as empty.
	ParseError string `json:"parse_error,omitempty"`
}
