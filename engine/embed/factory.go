package embed

import (
	"fmt"
	"time"

	"github.com/askcv/askcv/pkg/config"
	"github.com/askcv/askcv/pkg/ollama"
)

// New builds the embedder named by cfg.Embed.Provider.
func New(cfg *config.Config) (Embedder, error) {
	switch cfg.Embed.Provider {
	case config.ProviderHash:
		return NewHash(cfg.Embed.Dimension), nil
	case config.ProviderOllama:
		return NewOllama(ollama.New(cfg.Embed.URL, 60*time.Second), cfg.Embed.Model), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.LLM.APIKey.Reveal(), cfg.Embed.URL, cfg.Embed.Model), nil
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Embed.Provider)
	}
}
