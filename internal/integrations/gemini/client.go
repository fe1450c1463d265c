package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"chat-relay/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	maxBodyBytes   = 4 << 20
)

// generateContentRequest is the request shape for models/{model}:generateContent.
type generateContentRequest struct {
	// Contents mixes built content values and caller-supplied raw JSON.
	Contents          []any            `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// part keeps empty text on the wire; an empty turn is still a turn.
type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// HTTPStatusError captures non-2xx upstream responses. URL never carries
// the API key.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UpstreamDetails returns the decoded error body, or {"raw": body} when it
// is not JSON.
func (e *HTTPStatusError) UpstreamDetails() any {
	return decodeBody([]byte(e.Body))
}

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client. The default HTTP client sets no timeout of
// its own; the invocation context bounds every call.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("gemini: invalid base url: %w", err)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func generateURL(baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/models/" + url.PathEscape(model) + ":generateContent"
}

// GenerateContent sends conv upstream and decodes the reply. Transport
// failures are returned as-is (wrapped); non-2xx statuses are returned as
// *HTTPStatusError.
func (c *Client) GenerateContent(ctx context.Context, apiKey string, conv domain.Conversation) (domain.Reply, error) {
	if strings.TrimSpace(apiKey) == "" {
		return domain.Reply{}, errors.New("gemini: api key must not be empty")
	}
	if strings.TrimSpace(conv.Model) == "" {
		return domain.Reply{}, errors.New("gemini: model must not be empty")
	}

	body, err := json.Marshal(buildRequest(conv))
	if err != nil {
		return domain.Reply{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := generateURL(c.baseURL, conv.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(apiKey), bytes.NewReader(body))
	if err != nil {
		return domain.Reply{}, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req, endpoint)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("gemini: request failed: %w", err)
	}
	return decodeReply(raw), nil
}

func buildRequest(conv domain.Conversation) generateContentRequest {
	contents := make([]any, 0, len(conv.Contents)+len(conv.Turns))
	if len(conv.Contents) > 0 {
		for _, c := range conv.Contents {
			contents = append(contents, c)
		}
	} else {
		for _, t := range conv.Turns {
			contents = append(contents, content{Role: t.Role, Parts: []part{{Text: t.Text}}})
		}
	}

	out := generateContentRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     conv.Generation.Temperature,
			MaxOutputTokens: conv.Generation.MaxOutputTokens,
		},
	}
	if strings.TrimSpace(conv.System) != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: conv.System}}}
	}
	return out
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, redact(doErr)
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
	}
	return buf, nil
}

// redact strips the request URL from transport errors so the key query
// parameter never reaches logs or callers.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
