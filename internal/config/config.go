package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Ollama       OllamaConfig       `yaml:"ollama" mapstructure:"ollama"`
	Ingest       IngestConfig       `yaml:"ingest" mapstructure:"ingest"`
	NPI          NPIConfig          `yaml:"npi" mapstructure:"npi"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	JobStore     JobStoreConfig     `yaml:"jobstore" mapstructure:"jobstore"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// LLMConfig configures the text generation backend shared by the
// ingestion and validation services.
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffSecs  int     `yaml:"retry_backoff_secs" mapstructure:"retry_backoff_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// OllamaConfig holds local Ollama settings, used when llm.provider is "ollama".
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// IngestConfig configures CSV cleaning behavior.
type IngestConfig struct {
	MaxSampleRows int `yaml:"max_sample_rows" mapstructure:"max_sample_rows"`
}

// NPIConfig holds NPI registry API settings.
type NPIConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OrchestratorConfig holds the downstream service URLs. Both are
// required when running the orchestrator service.
type OrchestratorConfig struct {
	IngestionURL  string `yaml:"ingestion_url" mapstructure:"ingestion_url"`
	ValidationURL string `yaml:"validation_url" mapstructure:"validation_url"`
}

// JobStoreConfig configures the batch job backend.
type JobStoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the settings required by the given run mode are
// present. Modes: "ingestion", "validation", "orchestrator", "run".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "ingestion", "run":
		problems = append(problems, c.validateLLM()...)
		if c.Ingest.MaxSampleRows < 1 {
			problems = append(problems, "ingest.max_sample_rows must be >= 1")
		}
	case "validation":
		problems = append(problems, c.validateLLM()...)
	case "orchestrator":
		if c.Orchestrator.IngestionURL == "" {
			problems = append(problems, "orchestrator.ingestion_url is required (VALID8_ORCHESTRATOR_INGESTION_URL)")
		}
		if c.Orchestrator.ValidationURL == "" {
			problems = append(problems, "orchestrator.validation_url is required (VALID8_ORCHESTRATOR_VALIDATION_URL)")
		}
		switch c.JobStore.Driver {
		case "memory":
		case "sqlite", "postgres":
			if c.JobStore.DatabaseURL == "" {
				problems = append(problems, "jobstore.database_url is required for driver "+c.JobStore.Driver)
			}
		default:
			problems = append(problems, "jobstore.driver must be memory, sqlite, or postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "run" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateLLM() []string {
	var problems []string
	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.APIKey == "" {
			problems = append(problems, "llm.api_key is required (VALID8_LLM_API_KEY)")
		}
	case "ollama":
	default:
		problems = append(problems, "llm.provider must be anthropic or ollama")
	}
	if c.LLM.TimeoutSecs <= 0 {
		problems = append(problems, "llm.timeout_secs must be > 0")
	}
	if c.LLM.RetryAttempts < 1 || c.LLM.RetryAttempts > 10 {
		problems = append(problems, "llm.retry_attempts must be between 1 and 10")
	}
	return problems
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VALID8")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout_secs", 120)
	v.SetDefault("llm.retry_attempts", 3)
	v.SetDefault("llm.retry_backoff_secs", 1)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1:8b")
	v.SetDefault("ingest.max_sample_rows", 50)
	v.SetDefault("npi.base_url", "https://npiregistry.cms.hhs.gov/api/")
	v.SetDefault("jobstore.driver", "memory")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
