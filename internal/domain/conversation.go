package domain

import "encoding/json"

// Conversation is the normalized input for a single upstream call.
type Conversation struct {
	Model  string
	System string
	Turns  []Turn
	// Contents replaces Turns when the caller supplied a pre-built upstream
	// content list. Elements are forwarded unchanged.
	Contents   []json.RawMessage
	Generation GenerationConfig
}

// Empty reports whether the conversation has nothing to send.
func (c Conversation) Empty() bool {
	return len(c.Turns) == 0 && len(c.Contents) == 0
}

// GenerationConfig holds the sampling knobs sent upstream. Values are
// clamped to the accepted range before they get here.
type GenerationConfig struct {
	Temperature     float64
	MaxOutputTokens int
}
