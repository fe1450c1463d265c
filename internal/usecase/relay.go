package usecase

import (
	"context"
	"errors"
	"strings"

	"chat-relay/internal/domain"
)

// FallbackReply is returned when the upstream produced no candidate text.
const FallbackReply = "Sorry, I couldn't generate a response. Please contact us directly."

// KeySource yields the upstream API key for one invocation.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Generator performs the single outbound call.
type Generator interface {
	GenerateContent(ctx context.Context, apiKey string, conv domain.Conversation) (domain.Reply, error)
}

// upstreamStatusError is implemented by *gemini.HTTPStatusError.
type upstreamStatusError interface {
	HTTPStatusCode() int
	UpstreamDetails() any
}

type RelayService struct {
	keys         KeySource
	upstream     Generator
	defaultModel string
}

type RelayInput struct {
	Body []byte
}

type RelayOutput struct {
	Text string
}

func NewRelayService(keys KeySource, upstream Generator, defaultModel string) (*RelayService, error) {
	if keys == nil {
		return nil, errors.New("usecase: key source must not be nil")
	}
	if upstream == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	defaultModel = strings.TrimSpace(defaultModel)
	if defaultModel == "" {
		return nil, errors.New("usecase: default model must not be empty")
	}
	return &RelayService{keys: keys, upstream: upstream, defaultModel: defaultModel}, nil
}

// Relay normalizes the request body, forwards it upstream and extracts the
// reply. It fails closed without an API key: nothing is sent upstream.
func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	apiKey, err := s.keys.APIKey(ctx)
	if err != nil {
		return RelayOutput{}, newError(ErrorConfiguration, "api_key_unavailable", "Missing GEMINI_API_KEY (or GOOGLE_API_KEY) configuration.", err)
	}
	if strings.TrimSpace(apiKey) == "" {
		return RelayOutput{}, newError(ErrorConfiguration, "api_key_empty", "Missing GEMINI_API_KEY (or GOOGLE_API_KEY) configuration.", nil)
	}

	conv, err := normalize(in.Body, s.defaultModel)
	if err != nil {
		return RelayOutput{}, newError(ErrorInvalidInput, "invalid_json", "Invalid JSON body.", err)
	}
	if conv.Empty() {
		return RelayOutput{}, newError(ErrorInvalidInput, "empty_conversation", "Request has no message, messages or contents.", nil)
	}

	reply, err := s.upstream.GenerateContent(ctx, apiKey, conv)
	if err != nil {
		var statusErr upstreamStatusError
		if errors.As(err, &statusErr) {
			e := newError(ErrorUpstream, "gemini_status", "Gemini API error", err)
			e.Status = statusErr.HTTPStatusCode()
			e.Details = statusErr.UpstreamDetails()
			return RelayOutput{}, e
		}
		e := newError(ErrorTransport, "gemini_transport", "Server error calling Gemini API", err)
		e.Details = err.Error()
		return RelayOutput{}, e
	}

	if reply.Fault != nil {
		e := newError(ErrorUpstream, "gemini_embedded_error", reply.Fault.Message, nil)
		e.Details = reply.Fault.Details
		return RelayOutput{}, e
	}

	text := reply.Text
	if text == "" {
		text = FallbackReply
	}
	return RelayOutput{Text: text}, nil
}
