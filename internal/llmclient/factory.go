// File: internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/config"
)

// NewClient creates the configured provider client.
func NewClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]",
			cfg.LLM.Provider, config.ProviderGemini)
	}
}
