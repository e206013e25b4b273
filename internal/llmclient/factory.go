package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

// NewClient is a factory that creates an LLMClient for the configured provider.
func NewClient(cfg config.BackendConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported backend provider: %q. Supported: [%s]", cfg.Provider, config.ProviderOllama)
	}
}
