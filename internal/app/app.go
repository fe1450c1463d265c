// Package app wires configuration into a ready handler for the entry points.
package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chat-relay/handler"
	"chat-relay/internal/config"
	"chat-relay/internal/integrations/gemini"
	"chat-relay/internal/integrations/paramstore"
	"chat-relay/internal/secrets"
	"chat-relay/internal/usecase"
)

// NewHandler builds the relay handler. A missing key is not an error here:
// the relay fails closed per request instead.
func NewHandler(ctx context.Context, cfg config.Config) (*handler.Handler, error) {
	keys, err := keySource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.HasKeySource() {
		slog.Warn("no API key configured; requests will fail until GEMINI_API_KEY, GOOGLE_API_KEY or GEMINI_API_KEY_PARAM is set")
	}

	var opts []gemini.Option
	if cfg.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
	}
	client, err := gemini.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("app: create gemini client: %w", err)
	}

	svc, err := usecase.NewRelayService(keys, client, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("app: create relay service: %w", err)
	}
	return handler.NewHandler(svc)
}

// keySource prefers Parameter Store when a parameter name is configured.
func keySource(ctx context.Context, cfg config.Config) (usecase.KeySource, error) {
	if cfg.APIKeyParam == "" {
		return secrets.Static(cfg.APIKey), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	keys, err := secrets.NewParamStore(ps, cfg.APIKeyParam)
	if err != nil {
		return nil, fmt.Errorf("app: create key source: %w", err)
	}
	slog.Info("API key will be read from Parameter Store", "parameter", cfg.APIKeyParam)
	return keys, nil
}
