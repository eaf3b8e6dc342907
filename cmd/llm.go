package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/scrum/internal/llm"
)

// newLLMClient returns the sprint review drafter, or nil when neither
// anthropic.api_key nor ANTHROPIC_API_KEY is set.
func newLLMClient() *llm.Client {
	key := viper.GetString("anthropic.api_key")
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil
	}
	model := viper.GetString("anthropic.model")
	if logger != nil {
		logger.Debug("llm client configured", "model", model)
	}
	return llm.NewClient(key, model)
}
