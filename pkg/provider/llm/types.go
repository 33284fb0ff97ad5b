package llm

// Message is a single entry of a completion conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	Content string
}

// UserMessage returns a "user" role message.
func UserMessage(content string) Message { return Message{Role: "user", Content: content} }

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool
}
