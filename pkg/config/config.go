// Package config loads askcv settings. Sources are layered, later ones
// winning: built-in defaults, an optional YAML file, a .env file, then the
// process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"

	BackendFlat   = "flat"
	BackendQdrant = "qdrant"
)

// GroqBaseURL is the OpenAI-compatible Groq endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Secret is a credential that never appears in logs or formatted output.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string { return `config.Secret("` + s.String() + `")` }

// Reveal returns the raw credential for use in request headers.
func (s Secret) Reveal() string { return string(s) }

// LLM configures the chat-completion backend.
type LLM struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      Secret        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// Endpoint is the base URL to call. The Groq default only applies to the
// groq provider; empty means the client's own default.
func (l LLM) Endpoint() string {
	switch {
	case l.Provider == ProviderGroq && l.BaseURL == "":
		return GroqBaseURL
	case l.Provider != ProviderGroq && l.BaseURL == GroqBaseURL:
		return ""
	}
	return l.BaseURL
}

// Embed configures the embedding backend.
type Embed struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	URL       string `yaml:"url"`
	Dimension int    `yaml:"dimension"` // used by the hash embedder only
	Workers   int    `yaml:"workers"`
}

// Chunk configures the sliding window.
type Chunk struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// Sources names the documents to index.
type Sources struct {
	CVPDF       string `yaml:"cv_pdf"`
	ProfileFile string `yaml:"profile_file"`
	OwnerName   string `yaml:"owner_name"`
}

// Index configures index persistence and the vector backend.
type Index struct {
	Dir              string `yaml:"dir"`
	Backend          string `yaml:"backend"`
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

// Server configures the HTTP surface.
type Server struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	CORSOrigin     string  `yaml:"cors_origin"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	GRPCHealthPort int     `yaml:"grpc_health_port"`
	AdminRebuild   bool    `yaml:"admin_rebuild"`
}

// Addr returns host:port.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Config is the full askcv configuration.
type Config struct {
	LLM      LLM     `yaml:"llm"`
	Embed    Embed   `yaml:"embed"`
	Chunk    Chunk   `yaml:"chunk"`
	TopK     int     `yaml:"top_k"`
	Sources  Sources `yaml:"sources"`
	Index    Index   `yaml:"index"`
	Server   Server  `yaml:"server"`
	NATSURL  string  `yaml:"nats_url"`
	LogLevel string  `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLM{
			Provider:    ProviderGroq,
			BaseURL:     GroqBaseURL,
			Model:       "meta-llama/llama-4-scout-17b-16e-instruct",
			Timeout:     30 * time.Second,
			Temperature: 0.1,
		},
		Embed: Embed{
			Provider:  ProviderOllama,
			Model:     "all-minilm",
			URL:       "http://localhost:11434",
			Dimension: 384,
			Workers:   4,
		},
		Chunk: Chunk{Size: 800, Overlap: 120},
		TopK:  4,
		Sources: Sources{
			CVPDF:     "data/cv.pdf",
			OwnerName: "Alex Morgan",
		},
		Index: Index{
			Dir:              "data/index",
			Backend:          BackendFlat,
			QdrantURL:        "localhost:6334",
			QdrantCollection: "askcv_chunks",
		},
		Server: Server{
			Host:       "0.0.0.0",
			Port:       5000,
			CORSOrigin: "*",
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), a .env file in the working directory (if present) and the
// environment. It does not validate; call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.LLM.BaseURL = cfg.LLM.Endpoint()
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	if v, ok := lookup("GROQ_API_KEY"); ok && v != "" {
		c.LLM.APIKey = Secret(v)
	}
	if v, ok := lookup("LLM_API_KEY"); ok && v != "" {
		c.LLM.APIKey = Secret(v)
	}
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LLM_MODEL", &c.LLM.Model)
	if v, ok := lookup("LLM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TIMEOUT: %w", err))
		} else {
			c.LLM.Timeout = d
		}
	}

	str("EMBED_PROVIDER", &c.Embed.Provider)
	str("EMBED_MODEL", &c.Embed.Model)
	str("EMBED_URL", &c.Embed.URL)
	num("EMBED_DIMENSION", &c.Embed.Dimension)

	num("CHUNK_SIZE", &c.Chunk.Size)
	num("CHUNK_OVERLAP", &c.Chunk.Overlap)
	num("TOP_K", &c.TopK)

	str("CV_PDF", &c.Sources.CVPDF)
	str("PROFILE_FILE", &c.Sources.ProfileFile)
	str("OWNER_NAME", &c.Sources.OwnerName)

	str("INDEX_DIR", &c.Index.Dir)
	str("INDEX_BACKEND", &c.Index.Backend)
	str("QDRANT_URL", &c.Index.QdrantURL)
	str("QDRANT_COLLECTION", &c.Index.QdrantCollection)

	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)
	str("CORS_ORIGIN", &c.Server.CORSOrigin)
	num("GRPC_HEALTH_PORT", &c.Server.GRPCHealthPort)
	num("RATE_LIMIT_BURST", &c.Server.RateLimitBurst)
	if v, ok := lookup("RATE_LIMIT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %w", err))
		} else {
			c.Server.RateLimitRPS = f
		}
	}
	if v, ok := lookup("ADMIN_REBUILD"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_REBUILD: %w", err))
		} else {
			c.Server.AdminRebuild = b
		}
	}

	str("NATS_URL", &c.NATSURL)
	str("LOG_LEVEL", &c.LogLevel)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}

// NeedsAPIKey reports whether the configured LLM provider authenticates with a key.
func (c *Config) NeedsAPIKey() bool {
	return c.LLM.Provider == ProviderGroq || c.LLM.Provider == ProviderOpenAI
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q: want groq, openai or ollama", c.LLM.Provider))
	}
	if c.NeedsAPIKey() && strings.TrimSpace(c.LLM.APIKey.Reveal()) == "" {
		errs = append(errs, errors.New("llm.api_key: GROQ_API_KEY is not set"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model: empty"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout %s: must be positive", c.LLM.Timeout))
	}

	switch c.Embed.Provider {
	case ProviderOllama, ProviderOpenAI:
		if c.Embed.Model == "" {
			errs = append(errs, errors.New("embed.model: empty"))
		}
	case ProviderHash:
		if c.Embed.Dimension <= 0 {
			errs = append(errs, fmt.Errorf("embed.dimension %d: must be positive", c.Embed.Dimension))
		}
	default:
		errs = append(errs, fmt.Errorf("embed.provider %q: want ollama, openai or hash", c.Embed.Provider))
	}

	if c.Chunk.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk.size %d: must be positive", c.Chunk.Size))
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		errs = append(errs, fmt.Errorf("chunk.overlap %d: must be in [0, size)", c.Chunk.Overlap))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k %d: must be positive", c.TopK))
	}

	switch c.Index.Backend {
	case BackendFlat:
		if c.Index.Dir == "" {
			errs = append(errs, errors.New("index.dir: empty"))
		}
	case BackendQdrant:
		if c.Index.QdrantURL == "" || c.Index.QdrantCollection == "" {
			errs = append(errs, errors.New("index: qdrant backend needs qdrant_url and qdrant_collection"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.backend %q: want flat or qdrant", c.Index.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d: out of range", c.Server.Port))
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_rps %g: must not be negative", c.Server.RateLimitRPS))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LogValue implements slog.LogValuer with the settings worth a startup line.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("llm_provider", c.LLM.Provider),
		slog.String("llm_model", c.LLM.Model),
		slog.Any("llm_api_key", c.LLM.APIKey),
		slog.Duration("llm_timeout", c.LLM.Timeout),
		slog.String("embed_provider", c.Embed.Provider),
		slog.String("embed_model", c.Embed.Model),
		slog.Int("chunk_size", c.Chunk.Size),
		slog.Int("chunk_overlap", c.Chunk.Overlap),
		slog.Int("top_k", c.TopK),
		slog.String("index_backend", c.Index.Backend),
		slog.String("addr", c.Server.Addr()),
	)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
