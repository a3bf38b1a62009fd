package domain

// Variant selects how the upstream request body is shaped.
type Variant int

const (
	// VariantInteractive is the POST chat form used by the chat client.
	VariantInteractive Variant = iota
	// VariantQuery is the GET form driven by query parameters.
	VariantQuery
)

func (v Variant) String() string {
	switch v {
	case VariantQuery:
		return "query"
	default:
		return "interactive"
	}
}

// CompletionRequest is one prompt sent to the upstream agent app.
type CompletionRequest struct {
	Prompt    string
	SessionID string
	Variant   Variant
}

// Completion is the normalized upstream answer. Text is empty when the
// upstream reply did not carry output text.
type Completion struct {
	Text      string
	SessionID string
	RequestID string
}
