// Package secrets resolves the upstream API key for each invocation.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("secrets: api key not configured")

// Getter is satisfied by *paramstore.Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Static is a key loaded once from the process environment.
type Static string

func (s Static) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(s))
	if key == "" {
		return "", ErrNotConfigured
	}
	return key, nil
}

// ParamStore loads the key from Parameter Store on first use and keeps it
// for the lifetime of the process. A failed load is retried on the next call.
type ParamStore struct {
	getter Getter
	name   string

	mu     sync.RWMutex
	loaded bool
	key    string
}

func NewParamStore(g Getter, name string) (*ParamStore, error) {
	if g == nil {
		return nil, errors.New("secrets: paramstore getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("secrets: parameter name must not be empty")
	}
	return &ParamStore{getter: g, name: name}, nil
}

func (p *ParamStore) APIKey(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.loaded {
		key := p.key
		p.mu.RUnlock()
		return key, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return p.key, nil
	}

	raw, err := p.getter.GetParameter(ctx, p.name)
	if err != nil {
		return "", fmt.Errorf("secrets: load %q: %w", p.name, err)
	}
	key, err := parseKey(raw)
	if err != nil {
		return "", fmt.Errorf("secrets: parse %q: %w", p.name, err)
	}

	p.key = key
	p.loaded = true
	return key, nil
}

// tokenPayload is the JSON form a parameter may use instead of a bare key.
type tokenPayload struct {
	Token string `json:"token"`
}

// parseKey accepts either a bare key or {"token": "..."}.
func parseKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp tokenPayload
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("unmarshal token JSON: %w", err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", ErrNotConfigured
	}
	return raw, nil
}
