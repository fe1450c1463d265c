package gemini

import (
	"bytes"
	"encoding/json"
	"strings"

	"chat-relay/internal/domain"
)

const defaultErrorMessage = "Gemini API error"

// generateContentResponse is the subset of the response body the relay reads.
type generateContentResponse struct {
	Candidates []candidate      `json:"candidates"`
	Error      *json.RawMessage `json:"error"`
}

type candidate struct {
	Content struct {
		Parts []struct {
			Text *string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type errorBody struct {
	Message string `json:"message"`
}

// decodeBody parses an upstream body as JSON, falling back to {"raw": text}.
func decodeBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return v
}

// decodeReply extracts reply text and any embedded error from a 2xx body.
// A body of the wrong shape yields an empty reply rather than an error.
func decodeReply(raw []byte) domain.Reply {
	var resp generateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Reply{}
	}

	if resp.Error != nil && truthy(*resp.Error) {
		return domain.Reply{Fault: newFault(*resp.Error)}
	}
	return domain.Reply{Text: firstCandidateText(resp.Candidates)}
}

func firstCandidateText(candidates []candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	texts := make([]string, 0, len(candidates[0].Content.Parts))
	for _, p := range candidates[0].Content.Parts {
		if p.Text != nil {
			texts = append(texts, *p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func newFault(raw json.RawMessage) *domain.Fault {
	f := &domain.Fault{Message: defaultErrorMessage, Details: decodeBody(raw)}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		f.Message = body.Message
	}
	return f
}

// truthy mirrors how a browser client would test the field: null, false,
// zero and the empty string do not count as an error.
func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}
