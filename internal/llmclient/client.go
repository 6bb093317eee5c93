// File: internal/llmclient/client.go
// Description: Provider selection for the language understanding client. A
// missing API key is a supported configuration: the factory returns a nil
// client and every consumer falls back to its rule-based path.
package llmclient

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/config"
)

// New builds the configured LLM client. It returns (nil, nil) when the
// provider is disabled or no API key is set; callers must treat a nil client
// as "no language model available".
func New(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(string(cfg.Provider)))
	switch provider {
	case "", "none", "disabled":
		logger.Info("LLM provider disabled; rule-based parsing only")
		return nil, nil
	case "gemini":
		if cfg.APIKey == "" {
			logger.Warn("LLM provider configured without an API key; rule-based parsing only",
				zap.String("provider", provider))
			return nil, nil
		}
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
