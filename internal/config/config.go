// Package config loads the extractor's settings from an optional file and the
// environment into one Config value that is passed down explicitly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the extractor's secrets in the OS keychain.
	KeyringService = "grant-extractor"
	// KeyringAccount is the entry holding the LLM API key.
	KeyringAccount = "llm_api_key"

	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// ErrMissingCredential means the selected LLM provider needs an API key and
// none was found in the environment, the config file or the keyring.
var ErrMissingCredential = errors.New("missing LLM API key")

// Config captures every knob of the extractor.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// LLMConfig selects and tunes the model service.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	Model           string        `mapstructure:"model"`
	BaseURL         string        `mapstructure:"base_url"`
	OllamaHost      string        `mapstructure:"ollama_host"`
	APIKey          string        `mapstructure:"api_key"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseBackoff     time.Duration `mapstructure:"base_backoff"`
	Timeout         time.Duration `mapstructure:"timeout"`
	URLContext      bool          `mapstructure:"url_context"`
	GoogleSearch    bool          `mapstructure:"google_search"`
}

// PipelineConfig controls where sources come from and where rows go.
type PipelineConfig struct {
	SourcesPath     string        `mapstructure:"sources_path"`
	OutputDir       string        `mapstructure:"output_dir"`
	ArtifactDir     string        `mapstructure:"artifact_dir"`
	Delay           time.Duration `mapstructure:"delay"`
	DefaultCurrency string        `mapstructure:"default_currency"`
}

type QualityConfig struct {
	MinDescriptionLength int      `mapstructure:"min_description_length"`
	BoilerplatePhrases   []string `mapstructure:"boilerplate_phrases"`
}

type TaxonomyConfig struct {
	SynonymsPath string `mapstructure:"synonyms_path"`
}

// LoggingConfig toggles zap development output and the run log directory.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Dir         string `mapstructure:"dir"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	AdminSecret string   `mapstructure:"admin_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig enables the Postgres run ledger when DSN is set.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StorageConfig enables the GCS mirror when Bucket is set.
type StorageConfig struct {
	Bucket      string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	Concurrency int    `mapstructure:"concurrency"`
}

// Load builds a Config from defaults, the optional file at path and the
// environment. Variables use the GRANTS_ prefix, e.g. GRANTS_PIPELINE_DELAY=5s.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GRANTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Pipeline.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.Pipeline.DefaultCurrency))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider == ProviderGemini {
		cfg.LLM.APIKey = keyringAPIKey()
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.ollama_host", "http://localhost:11434")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_output_tokens", 8096)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.base_backoff", "2s")
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("llm.url_context", true)
	v.SetDefault("llm.google_search", true)

	v.SetDefault("pipeline.sources_path", "")
	v.SetDefault("pipeline.output_dir", "data")
	v.SetDefault("pipeline.artifact_dir", "data/raw")
	v.SetDefault("pipeline.delay", "2s")
	v.SetDefault("pipeline.default_currency", "CAD")

	v.SetDefault("quality.min_description_length", 100)
	v.SetDefault("quality.boilerplate_phrases", []string{"click here", "learn more"})

	v.SetDefault("taxonomy.synonyms_path", "")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.dir", "data/log")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.admin_secret", "")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.dsn", "")

	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "grant-extractor")
	v.SetDefault("storage.concurrency", 4)
}

// bindEnv maps the conventional unprefixed variables onto their keys. The
// prefixed form always wins because it is listed first.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"llm.api_key":         {"GRANTS_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"llm.ollama_host":     {"GRANTS_LLM_OLLAMA_HOST", "OLLAMA_HOST"},
		"database.dsn":        {"GRANTS_DATABASE_DSN", "DATABASE_URL"},
		"server.port":         {"GRANTS_SERVER_PORT", "PORT"},
		"server.admin_secret": {"GRANTS_SERVER_ADMIN_SECRET", "ADMIN_SECRET"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func keyringAPIKey() string {
	key, err := keyring.Get(KeyringService, KeyringAccount)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(key)
}

// Validate enforces required values and sane limits.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderGemini, ProviderOllama, c.LLM.Provider)
	}
	if c.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("llm.max_attempts must be > 0")
	}
	if c.LLM.BaseBackoff <= 0 {
		return fmt.Errorf("llm.base_backoff must be > 0")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be > 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.Pipeline.Delay < 0 {
		return fmt.Errorf("pipeline.delay must be >= 0")
	}
	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir must be set")
	}
	if len(c.Pipeline.DefaultCurrency) != 3 {
		return fmt.Errorf("pipeline.default_currency must be a three-letter code")
	}
	if c.Quality.MinDescriptionLength < 0 {
		return fmt.Errorf("quality.min_description_length must be >= 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Storage.Concurrency <= 0 {
		return fmt.Errorf("storage.concurrency must be > 0")
	}
	return nil
}

// RequireCredential fails with ErrMissingCredential when the provider needs
// an API key that was not found. Commands that call the model check this
// before visiting the first source.
func (c Config) RequireCredential() error {
	if c.LLM.Provider == ProviderGemini && c.LLM.APIKey == "" {
		return fmt.Errorf("%w: set GRANTS_LLM_API_KEY or GEMINI_API_KEY, or store it in the %q keyring",
			ErrMissingCredential, KeyringService)
	}
	return nil
}
