package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"chat-relay/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type Handler struct {
	relay Relayer
}

type chatResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func NewHandler(r Relayer) (*Handler, error) {
	if r == nil {
		return nil, errors.New("handler: relayer must not be nil")
	}
	return &Handler{relay: r}, nil
}

// Handle serves one API Gateway proxy event. It never returns an error to
// the runtime; every failure becomes a JSON response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	headers := responseHeaders(corrID)
	log := slog.With("correlation_id", corrID)

	switch strings.ToUpper(req.HTTPMethod) {
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}, nil
	case http.MethodPost:
	default:
		log.WarnContext(ctx, "method not allowed", "method", req.HTTPMethod)
		headers["Allow"] = allowedMethods
		return jsonResponse(http.StatusMethodNotAllowed, headers, errorResponse{
			Error: "Method not allowed. Use POST.",
			Code:  "METHOD_NOT_ALLOWED",
		}), nil
	}

	body, err := requestBody(req)
	if err != nil {
		log.WarnContext(ctx, "undecodable request body", "err", err)
		return jsonResponse(http.StatusBadRequest, headers, errorResponse{
			Error: "Invalid JSON body.",
			Code:  string(usecase.ErrorInvalidInput),
		}), nil
	}

	out, err := h.relay.Relay(ctx, usecase.RelayInput{Body: body})
	if err != nil {
		status, payload := mapError(err)
		log.ErrorContext(ctx, "relay failed", "status", status, "code", payload.Code, "err", err)
		return jsonResponse(status, headers, payload), nil
	}

	return jsonResponse(http.StatusOK, headers, chatResponse{Text: out.Text}), nil
}

func mapError(err error) (int, errorResponse) {
	var relayErr *usecase.Error
	if !errors.As(err, &relayErr) {
		return http.StatusInternalServerError, errorResponse{
			Error: "Internal server error",
			Code:  string(usecase.ErrorInternal),
		}
	}

	payload := errorResponse{
		Error:   relayErr.Message,
		Code:    string(relayErr.Code),
		Details: relayErr.Details,
	}
	switch relayErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, payload
	case usecase.ErrorUpstream:
		if relayErr.Status != 0 {
			return relayErr.Status, payload
		}
		return http.StatusInternalServerError, payload
	default:
		return http.StatusInternalServerError, payload
	}
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func jsonResponse(status int, headers map[string]string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal response", "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error","code":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}
