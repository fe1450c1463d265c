package domain

const (
	RoleUser      = "user"
	RoleModel     = "model"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged text message in a conversation.
type Turn struct {
	Role string
	Text string
}

// Reply is an upstream generateContent result decoded for relaying.
type Reply struct {
	// Text joins the text parts of the first candidate with newlines.
	// Empty when the upstream returned no candidate text.
	Text string
	// Fault is set when the body carried an error descriptor, even on a
	// successful HTTP status.
	Fault *Fault
}

// Fault is an error descriptor embedded in an upstream response body.
type Fault struct {
	Message string
	Details any
}
