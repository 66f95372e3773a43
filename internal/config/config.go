package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Consensus    ConsensusConfig    `yaml:"consensus" mapstructure:"consensus"`
	Backends     []BackendConfig    `yaml:"backends" mapstructure:"backends"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Ollama       OllamaConfig       `yaml:"ollama" mapstructure:"ollama"`
	Learning     LearningConfig     `yaml:"learning" mapstructure:"learning"`
	Pools        PoolsConfig        `yaml:"pools" mapstructure:"pools"`
	TextExtract  TextExtractConfig  `yaml:"textextract" mapstructure:"textextract"`
	Fetch        FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Monitoring   MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	MaxSize          int           `yaml:"max_size" mapstructure:"max_size"`
	WriteTTL         time.Duration `yaml:"write_ttl" mapstructure:"write_ttl"`
	IdleTTL          time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
	ExtractorVersion string        `yaml:"extractor_version" mapstructure:"extractor_version"`
	ReportInterval   time.Duration `yaml:"report_interval" mapstructure:"report_interval"`
}

// OrchestratorConfig configures strategy orchestration.
type OrchestratorConfig struct {
	EarlyExitConfidence int    `yaml:"early_exit_confidence" mapstructure:"early_exit_confidence"`
	DomainLookup        bool   `yaml:"domain_lookup" mapstructure:"domain_lookup"`
	TextScan            bool   `yaml:"text_scan" mapstructure:"text_scan"`
	SingleBackend       string `yaml:"single_backend" mapstructure:"single_backend"`
}

// ConsensusConfig configures quorum voting.
type ConsensusConfig struct {
	QuorumSize     int           `yaml:"quorum_size" mapstructure:"quorum_size"`
	Deadline       time.Duration `yaml:"deadline" mapstructure:"deadline"`
	MinTimeout     time.Duration `yaml:"min_timeout" mapstructure:"min_timeout"`
	MaxTimeout     time.Duration `yaml:"max_timeout" mapstructure:"max_timeout"`
	LatencyFactor  float64       `yaml:"latency_factor" mapstructure:"latency_factor"`
	PromptMaxRunes int           `yaml:"prompt_max_runes" mapstructure:"prompt_max_runes"`
}

// BackendConfig declares one extraction backend. Declaration order is the
// vote tie-break order.
type BackendConfig struct {
	ID          string        `yaml:"id" mapstructure:"id"`
	Provider    string        `yaml:"provider" mapstructure:"provider"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OllamaConfig holds settings for locally served models.
type OllamaConfig struct {
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
}

// LearningConfig configures the correction learning pipeline.
type LearningConfig struct {
	PatternThreshold int           `yaml:"pattern_threshold" mapstructure:"pattern_threshold"`
	BatchEvery       int           `yaml:"batch_every" mapstructure:"batch_every"`
	SeedConfidence   int           `yaml:"seed_confidence" mapstructure:"seed_confidence"`
	SeedPriority     int           `yaml:"seed_priority" mapstructure:"seed_priority"`
	InitialAccuracy  float64       `yaml:"initial_accuracy" mapstructure:"initial_accuracy"`
	TopK             int           `yaml:"top_k" mapstructure:"top_k"`
	BacklogLimit     int           `yaml:"backlog_limit" mapstructure:"backlog_limit"`
	ChunkSize        int           `yaml:"chunk_size" mapstructure:"chunk_size"`
	BacklogInterval  time.Duration `yaml:"backlog_interval" mapstructure:"backlog_interval"`
	StatsInterval    time.Duration `yaml:"stats_interval" mapstructure:"stats_interval"`
	MaintainInterval time.Duration `yaml:"maintain_interval" mapstructure:"maintain_interval"`
	RecentWindow     time.Duration `yaml:"recent_window" mapstructure:"recent_window"`
	EstimateMultiple int           `yaml:"estimate_multiple" mapstructure:"estimate_multiple"`
	WarmupLimit      int           `yaml:"warmup_limit" mapstructure:"warmup_limit"`
	WarmupDelay      time.Duration `yaml:"warmup_delay" mapstructure:"warmup_delay"`
}

// PoolsConfig sizes the worker pools.
type PoolsConfig struct {
	Backend PoolConfig `yaml:"backend" mapstructure:"backend"`
	Batch   PoolConfig `yaml:"batch" mapstructure:"batch"`
	Warmup  PoolConfig `yaml:"warmup" mapstructure:"warmup"`
}

// PoolConfig sizes one worker pool.
type PoolConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	Queue   int `yaml:"queue" mapstructure:"queue"`
}

// TextExtractConfig configures document text extraction.
type TextExtractConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	OCREndpoint   string `yaml:"ocr_endpoint" mapstructure:"ocr_endpoint"`
	OCRModel      string `yaml:"ocr_model" mapstructure:"ocr_model"`
	OCRKey        string `yaml:"ocr_key" mapstructure:"ocr_key"`
}

// FetchConfig configures remote document downloads.
type FetchConfig struct {
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// MonitoringConfig configures health evaluation.
type MonitoringConfig struct {
	MinHitRate         float64       `yaml:"min_hit_rate" mapstructure:"min_hit_rate"`
	MinRequests        int64         `yaml:"min_requests" mapstructure:"min_requests"`
	MaxFillRatio       float64       `yaml:"max_fill_ratio" mapstructure:"max_fill_ratio"`
	MinStrategySuccess float64       `yaml:"min_strategy_success" mapstructure:"min_strategy_success"`
	MinAttempts        int64         `yaml:"min_attempts" mapstructure:"min_attempts"`
	ReportInterval     time.Duration `yaml:"report_interval" mapstructure:"report_interval"`
	CheckInterval      time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	WebhookURL         string        `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// DefaultBackends mirrors the three-model quorum the service ships with.
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{ID: "llama", Provider: "ollama", Model: "llama3.1:8b", Timeout: 10 * time.Second, RatePerSec: 2, MaxAttempts: 1},
		{ID: "mistral", Provider: "ollama", Model: "mistral:7b", Timeout: 8 * time.Second, RatePerSec: 2, MaxAttempts: 1},
		{ID: "codellama", Provider: "ollama", Model: "codellama:7b", Timeout: 9 * time.Second, RatePerSec: 2, MaxAttempts: 1},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TERMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "terms.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.write_ttl", 24*time.Hour)
	v.SetDefault("cache.idle_ttl", 6*time.Hour)
	v.SetDefault("cache.extractor_version", "v1")
	v.SetDefault("cache.report_interval", time.Minute)
	v.SetDefault("orchestrator.early_exit_confidence", 85)
	v.SetDefault("orchestrator.domain_lookup", true)
	v.SetDefault("orchestrator.text_scan", true)
	v.SetDefault("orchestrator.single_backend", "")
	v.SetDefault("consensus.quorum_size", 2)
	v.SetDefault("consensus.deadline", 30*time.Second)
	v.SetDefault("consensus.min_timeout", 5*time.Second)
	v.SetDefault("consensus.max_timeout", 20*time.Second)
	v.SetDefault("consensus.latency_factor", 1.2)
	v.SetDefault("consensus.prompt_max_runes", 6000)
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("ollama.server_url", "http://localhost:11434")
	v.SetDefault("learning.pattern_threshold", 60)
	v.SetDefault("learning.batch_every", 10)
	v.SetDefault("learning.seed_confidence", 80)
	v.SetDefault("learning.seed_priority", 50)
	v.SetDefault("learning.initial_accuracy", 75.0)
	v.SetDefault("learning.top_k", 5)
	v.SetDefault("learning.backlog_limit", 1000)
	v.SetDefault("learning.chunk_size", 100)
	v.SetDefault("learning.backlog_interval", 24*time.Hour)
	v.SetDefault("learning.stats_interval", time.Hour)
	v.SetDefault("learning.maintain_interval", 7*24*time.Hour)
	v.SetDefault("learning.recent_window", 7*24*time.Hour)
	v.SetDefault("learning.estimate_multiple", 10)
	v.SetDefault("learning.warmup_limit", 50)
	v.SetDefault("learning.warmup_delay", 5*time.Second)
	v.SetDefault("pools.backend.workers", 4)
	v.SetDefault("pools.backend.queue", 50)
	v.SetDefault("pools.batch.workers", 2)
	v.SetDefault("pools.batch.queue", 10)
	v.SetDefault("pools.warmup.workers", 2)
	v.SetDefault("pools.warmup.queue", 100)
	v.SetDefault("textextract.provider", "native")
	v.SetDefault("textextract.pdftotext_path", "pdftotext")
	v.SetDefault("fetch.user_agent", "terms-extractor/1.0")
	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("fetch.rate_per_sec", 2.0)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("monitoring.min_hit_rate", 0.5)
	v.SetDefault("monitoring.min_requests", 100)
	v.SetDefault("monitoring.max_fill_ratio", 0.9)
	v.SetDefault("monitoring.min_strategy_success", 0.5)
	v.SetDefault("monitoring.min_attempts", 20)
	v.SetDefault("monitoring.report_interval", time.Minute)
	v.SetDefault("monitoring.check_interval", 5*time.Minute)

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
	if len(cfg.Backends) == 0 {
		cfg.Backends = DefaultBackends()
	}

	return &cfg, nil
}

// Validate checks that the configuration required by the given mode is present.
// Modes: "serve", "resolve", "learn", "store".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}

	switch mode {
	case "serve", "resolve":
		if c.Cache.MaxSize <= 0 {
			return eris.New("config: cache.max_size must be positive")
		}
		if c.Consensus.QuorumSize < 1 {
			return eris.New("config: consensus.quorum_size must be at least 1")
		}
		if c.Consensus.MinTimeout > c.Consensus.MaxTimeout {
			return eris.New("config: consensus.min_timeout exceeds consensus.max_timeout")
		}
		if c.Orchestrator.EarlyExitConfidence < 0 || c.Orchestrator.EarlyExitConfidence > 100 {
			return eris.New("config: orchestrator.early_exit_confidence must be within 0-100")
		}
		seen := make(map[string]bool, len(c.Backends))
		for _, b := range c.Backends {
			if b.ID == "" {
				return eris.New("config: backend id is required")
			}
			if seen[b.ID] {
				return eris.Errorf("config: duplicate backend id %q", b.ID)
			}
			seen[b.ID] = true
			if b.Provider == "anthropic" && c.Anthropic.Key == "" {
				missing = append(missing, "anthropic.key")
			}
		}
	case "learn", "store":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", mode, strings.Join(dedupe(missing), ", "))
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
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
