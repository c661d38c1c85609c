package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/zira/internal/llm"
)

// newLLMClient builds the Anthropic client when an API key is available,
// preferring the config file over the environment. A nil client disables
// the enrich and draft features.
func newLLMClient() *llm.Client {
	key := viper.GetString("anthropic.api_key")
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil
	}
	model := viper.GetString("anthropic.model")
	return llm.NewClient(key, model)
}
