package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"chat-relay/internal/domain"
)

const (
	defaultTemperature     = 0.4
	minTemperature         = 0.0
	maxTemperature         = 2.0
	defaultMaxOutputTokens = 1000
	minMaxOutputTokens     = 1
	maxMaxOutputTokens     = 8192
)

// relayRequest accepts both inbound shapes:
//
//	A: {system, message, history: [{role, content}]}
//	B: {model, system, messages: [{role, content}], contents: [...],
//	    temperature, max_output_tokens | maxOutputTokens | max_tokens}
//
// Fields stay raw so loosely typed values can be coerced instead of rejected.
type relayRequest struct {
	Model           json.RawMessage `json:"model"`
	System          json.RawMessage `json:"system"`
	Message         json.RawMessage `json:"message"`
	History         json.RawMessage `json:"history"`
	Messages        json.RawMessage `json:"messages"`
	Contents        json.RawMessage `json:"contents"`
	Temperature     json.RawMessage `json:"temperature"`
	MaxOutputTokens json.RawMessage `json:"max_output_tokens"`
	MaxOutputCamel  json.RawMessage `json:"maxOutputTokens"`
	MaxTokens       json.RawMessage `json:"max_tokens"`
}

type inboundMessage struct {
	Role    json.RawMessage `json:"role"`
	Content json.RawMessage `json:"content"`
}

// normalize turns a raw request body into a Conversation. Turn sources are
// resolved by precedence: contents, then messages, then history; a
// separate message is appended as the final user turn.
func normalize(body []byte, defaultModel string) (domain.Conversation, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	var req relayRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.Conversation{}, fmt.Errorf("usecase: decode request: %w", err)
	}

	conv := domain.Conversation{
		Model: strings.TrimSpace(coerceString(req.Model)),
		Generation: domain.GenerationConfig{
			Temperature:     temperature(req.Temperature),
			MaxOutputTokens: maxOutputTokens(firstPresent(req.MaxOutputTokens, req.MaxOutputCamel, req.MaxTokens)),
		},
	}
	if conv.Model == "" {
		conv.Model = defaultModel
	}
	if system := coerceString(req.System); strings.TrimSpace(system) != "" {
		conv.System = system
	}

	if contents, ok := rawArray(req.Contents); ok {
		conv.Contents = contents
		return conv, nil
	}

	list, ok := rawArray(req.Messages)
	if !ok {
		list, _ = rawArray(req.History)
	}
	conv.Turns = make([]domain.Turn, 0, len(list)+1)
	for _, raw := range list {
		conv.Turns = append(conv.Turns, toTurn(raw))
	}
	if present(req.Message) {
		conv.Turns = append(conv.Turns, domain.Turn{Role: domain.RoleUser, Text: coerceString(req.Message)})
	}
	return conv, nil
}

// toTurn maps one inbound message. Entries that are not objects become an
// empty user turn.
func toTurn(raw json.RawMessage) domain.Turn {
	var m inboundMessage
	_ = json.Unmarshal(raw, &m)
	return domain.Turn{Role: mapRole(coerceString(m.Role)), Text: coerceString(m.Content)}
}

// mapRole rewrites "assistant" to the upstream "model" role. Other values
// pass through; an empty role defaults to "user".
func mapRole(role string) string {
	switch role {
	case "":
		return domain.RoleUser
	case domain.RoleAssistant:
		return domain.RoleModel
	default:
		return role
	}
}

func temperature(raw json.RawMessage) float64 {
	v, ok := coerceNumber(raw)
	if !ok {
		return defaultTemperature
	}
	return clamp(v, minTemperature, maxTemperature)
}

func maxOutputTokens(raw json.RawMessage) int {
	v, ok := coerceNumber(raw)
	if !ok {
		return defaultMaxOutputTokens
	}
	return int(math.Trunc(clamp(v, minMaxOutputTokens, maxMaxOutputTokens)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// coerceNumber converts numbers, numeric strings and booleans. Missing,
// null, blank, non-numeric and non-finite values report false.
func coerceNumber(raw json.RawMessage) (float64, bool) {
	if !present(raw) {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case bool:
		if t {
			f = 1
		}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceString renders a JSON value as text: strings unquoted, missing or
// null as "", anything else as its compact JSON form.
func coerceString(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func rawArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if !present(raw) {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func firstPresent(raws ...json.RawMessage) json.RawMessage {
	for _, r := range raws {
		if present(r) {
			return r
		}
	}
	return nil
}

func present(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}
