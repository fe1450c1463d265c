package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/internal/domain"
	"chat-relay/internal/integrations/gemini"
	"chat-relay/internal/secrets"
)

type mockKeys struct {
	key string
	err error
}

func (m mockKeys) APIKey(context.Context) (string, error) {
	return m.key, m.err
}

type mockGenerator struct {
	reply     domain.Reply
	err       error
	callCount int
	apiKey    string
	conv      domain.Conversation
}

func (m *mockGenerator) GenerateContent(_ context.Context, apiKey string, conv domain.Conversation) (domain.Reply, error) {
	m.callCount++
	m.apiKey = apiKey
	m.conv = conv
	return m.reply, m.err
}

func newTestService(t *testing.T, keys KeySource, gen Generator) *RelayService {
	t.Helper()
	svc, err := NewRelayService(keys, gen, testModel)
	require.NoError(t, err)
	return svc
}

func expectRelayError(t *testing.T, err error, code ErrorCode, reason string) *Error {
	t.Helper()
	var relayErr *Error
	require.ErrorAs(t, err, &relayErr)
	require.Equal(t, code, relayErr.Code)
	require.Equal(t, reason, relayErr.Reason)
	require.NotEmpty(t, relayErr.Message)
	return relayErr
}

func TestNewRelayService_ValidatesDependencies(t *testing.T) {
	_, err := NewRelayService(nil, &mockGenerator{}, testModel)
	require.Error(t, err)

	_, err = NewRelayService(mockKeys{key: "k"}, nil, testModel)
	require.Error(t, err)

	_, err = NewRelayService(mockKeys{key: "k"}, &mockGenerator{}, " ")
	require.Error(t, err)
}

func TestRelay_HappyPath(t *testing.T) {
	gen := &mockGenerator{reply: domain.Reply{Text: "a\nb"}}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	out, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi","system":"be terse"}`)})
	require.NoError(t, err)
	require.Equal(t, "a\nb", out.Text)
	require.Equal(t, 1, gen.callCount)
	require.Equal(t, "sk-test", gen.apiKey)
	require.Equal(t, []domain.Turn{{Role: "user", Text: "hi"}}, gen.conv.Turns)
	require.Equal(t, "be terse", gen.conv.System)
	require.Equal(t, testModel, gen.conv.Model)
	require.Equal(t, domain.GenerationConfig{Temperature: 0.4, MaxOutputTokens: 1000}, gen.conv.Generation)
}

func TestRelay_FallbackText(t *testing.T) {
	gen := &mockGenerator{reply: domain.Reply{}}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	out, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi"}`)})
	require.NoError(t, err)
	require.Equal(t, FallbackReply, out.Text)
}

func TestRelay_MissingKey_NeverCallsUpstream(t *testing.T) {
	cases := []struct {
		name   string
		keys   KeySource
		reason string
	}{
		{name: "static empty", keys: secrets.Static(""), reason: "api_key_unavailable"},
		{name: "source error", keys: mockKeys{err: errors.New("ssm down")}, reason: "api_key_unavailable"},
		{name: "blank key", keys: mockKeys{key: "  "}, reason: "api_key_empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &mockGenerator{}
			svc := newTestService(t, tc.keys, gen)

			_, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi"}`)})
			expectRelayError(t, err, ErrorConfiguration, tc.reason)
			require.Zero(t, gen.callCount)
		})
	}
}

func TestRelay_InvalidInput_NeverCallsUpstream(t *testing.T) {
	gen := &mockGenerator{}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	_, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`not-json`)})
	expectRelayError(t, err, ErrorInvalidInput, "invalid_json")

	_, err = svc.Relay(context.Background(), RelayInput{Body: []byte(`{}`)})
	expectRelayError(t, err, ErrorInvalidInput, "empty_conversation")

	_, err = svc.Relay(context.Background(), RelayInput{Body: []byte(`{"contents":[]}`)})
	expectRelayError(t, err, ErrorInvalidInput, "empty_conversation")

	require.Zero(t, gen.callCount)
}

func TestRelay_UpstreamStatusPassThrough(t *testing.T) {
	gen := &mockGenerator{err: fmt.Errorf("gemini: request failed: %w", &gemini.HTTPStatusError{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":429,"message":"quota"}}`,
	})}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	_, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi"}`)})
	relayErr := expectRelayError(t, err, ErrorUpstream, "gemini_status")
	require.Equal(t, http.StatusTooManyRequests, relayErr.Status)
	require.Equal(t, "Gemini API error", relayErr.Message)
	require.Equal(t, map[string]any{"error": map[string]any{"code": float64(429), "message": "quota"}}, relayErr.Details)
}

func TestRelay_UpstreamStatus_RawBody(t *testing.T) {
	gen := &mockGenerator{err: &gemini.HTTPStatusError{StatusCode: http.StatusBadGateway, Body: "upstream down"}}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	_, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi"}`)})
	relayErr := expectRelayError(t, err, ErrorUpstream, "gemini_status")
	require.Equal(t, map[string]any{"raw": "upstream down"}, relayErr.Details)
}

func TestRelay_EmbeddedError(t *testing.T) {
	gen := &mockGenerator{reply: domain.Reply{
		Text:  "ignored",
		Fault: &domain.Fault{Message: "API key not valid", Details: map[string]any{"code": float64(400)}},
	}}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	_, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi"}`)})
	relayErr := expectRelayError(t, err, ErrorUpstream, "gemini_embedded_error")
	require.Zero(t, relayErr.Status)
	require.Equal(t, "API key not valid", relayErr.Message)
	require.Equal(t, map[string]any{"code": float64(400)}, relayErr.Details)
}

func TestRelay_TransportError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("gemini: request failed: Post: dial tcp: connection refused")}
	svc := newTestService(t, mockKeys{key: "sk-test"}, gen)

	_, err := svc.Relay(context.Background(), RelayInput{Body: []byte(`{"message":"hi"}`)})
	relayErr := expectRelayError(t, err, ErrorTransport, "gemini_transport")
	require.Equal(t, "gemini: request failed: Post: dial tcp: connection refused", relayErr.Details)
	require.ErrorContains(t, err, "connection refused")
}

func TestError_Formatting(t *testing.T) {
	var nilErr *Error
	require.Equal(t, "", nilErr.Error())
	require.Nil(t, nilErr.Unwrap())

	e := newError(ErrorInvalidInput, "invalid_json", "Invalid JSON body.", nil)
	require.Equal(t, "usecase: INVALID_INPUT (invalid_json)", e.Error())

	cause := errors.New("boom")
	e = newError(ErrorTransport, "gemini_transport", "x", cause)
	require.Equal(t, "usecase: TRANSPORT_ERROR (gemini_transport): boom", e.Error())
	require.ErrorIs(t, e, cause)
}
