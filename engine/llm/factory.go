package llm

import (
	"fmt"
	"net/http"

	"github.com/askcv/askcv/pkg/config"
	"github.com/askcv/askcv/pkg/ollama"
)

// New builds the provider client named by cfg.LLM.Provider, unguarded.
func New(cfg *config.Config) (Generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGroq, config.ProviderOpenAI:
		return NewOpenAI(cfg.LLM.APIKey.Reveal(), cfg.LLM.Endpoint(), cfg.LLM.Temperature, &http.Client{}), nil
	case config.ProviderOllama:
		return NewOllama(ollama.New(cfg.LLM.Endpoint(), 0), cfg.LLM.Temperature), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
	}
}
