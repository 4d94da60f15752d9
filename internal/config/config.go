package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the RAG pipeline's top-level configuration tree, loaded from
// config.yaml with ${ENV_VAR} substitution (LoadConfig below).
type Config struct {
	Server   *ServerConfig   `yaml:"server" json:"server"`
	Database *DatabaseConfig `yaml:"database" json:"database"`
	Redis    *RedisConfig    `yaml:"redis" json:"redis"`
	Models   []ModelConfig   `yaml:"models" json:"models"`
	Retrieve *RetrieveConfig `yaml:"retrieve" json:"retrieve"`
	Rerank   *RerankConfig   `yaml:"rerank" json:"rerank"`
	MMR      *MMRConfig      `yaml:"mmr" json:"mmr"`
	Compress *CompressConfig `yaml:"compress" json:"compress"`
	Prompt   *PromptConfig   `yaml:"prompt" json:"prompt"`
	Asynq    *AsynqConfig    `yaml:"asynq" json:"asynq"`
}

// AsynqConfig configures the optional cmd/ragworker background task
// queue, grounded on the teacher's internal/common/asyncq.go.
type AsynqConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Username     string        `yaml:"username" json:"username"`
	Password     string        `yaml:"password" json:"password"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	Concurrency  int           `yaml:"concurrency" json:"concurrency"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" json:"port"`
	Host            string        `yaml:"host" json:"host"`
	LogPath         string        `yaml:"log_path" json:"log_path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" default:"30s"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

type RedisConfig struct {
	Address  string        `yaml:"address" json:"address"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// ModelConfig describes one configured LLM/embedding endpoint.
type ModelConfig struct {
	Type       string                 `yaml:"type" json:"type"` // "chat", "embedding"
	Source     string                 `yaml:"source" json:"source"` // "openai", "ollama"
	ModelName  string                 `yaml:"model_name" json:"model_name"`
	BaseURL    string                 `yaml:"base_url" json:"base_url"`
	APIKey     string                 `yaml:"api_key" json:"api_key"`
	Parameters map[string]interface{} `yaml:"parameters" json:"parameters"`
}

// RetrieveConfig covers the retrieve stage (spec §4.1-§4.3, §6).
type RetrieveConfig struct {
	TopK             int                 `yaml:"top_k" json:"top_k"`
	MaxMultiQueries  int                 `yaml:"mmq" json:"mmq"`
	SearchType       string              `yaml:"search_type" json:"search_type"` // "hybrid" | "near_text"
	Alpha            float64             `yaml:"alpha" json:"alpha"`
	UseDynamicAlpha  bool                `yaml:"use_dynamic_alpha" json:"use_dynamic_alpha"`
	AlphaBounds      AlphaBoundsConfig   `yaml:"alpha_bounds" json:"alpha_bounds"`
	BM25Properties   []string            `yaml:"bm25_query_properties" json:"bm25_query_properties"`
	Filters          map[string]any      `yaml:"filters" json:"filters"`
	KoStopTokens     []string            `yaml:"ko_stop_tokens" json:"ko_stop_tokens"`
}

type AlphaBoundsConfig struct {
	MultiStrongMax  float64 `yaml:"multi_strong_max" json:"multi_strong_max"`
	SingleStrongMin float64 `yaml:"single_strong_min" json:"single_strong_min"`
	WeakHitMin      float64 `yaml:"weak_hit_min" json:"weak_hit_min"`
	NoBM25Min       float64 `yaml:"no_bm25_min" json:"no_bm25_min"`
}

// RerankConfig covers the rerank stage (spec §4.4).
type RerankConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	TopN        int     `yaml:"top_n" json:"top_n"`
	BatchSize   int     `yaml:"batch_size" json:"batch_size"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	FailOpen    bool    `yaml:"fail_open" json:"fail_open"`
	Prompt      string  `yaml:"prompt" json:"prompt"`
}

// MMRConfig covers the diversify stage (spec §4.5).
type MMRConfig struct {
	K                   int      `yaml:"k" json:"k"`
	FetchK              int      `yaml:"fetch_k" json:"fetch_k"`
	LambdaMult          float64  `yaml:"lambda_mult" json:"lambda_mult"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
}

// CompressConfig covers both compressor tiers (spec §4.6).
type CompressConfig struct {
	MaxContext         int     `yaml:"max_context" json:"max_context"`
	KeywordKeepLimit   int     `yaml:"keyword_keep_limit" json:"keyword_keep_limit"`
	MinDocsAfterFilter int     `yaml:"min_docs_after_filter" json:"min_docs_after_filter"`
	FallbackKeep       int     `yaml:"fallback_keep" json:"fallback_keep"`
	UseLLM             bool    `yaml:"use_llm" json:"use_llm"`
	LLMMinDocs         int     `yaml:"llm_min_docs" json:"llm_min_docs"`
	LLMMinTotalChars   int     `yaml:"llm_min_total_chars" json:"llm_min_total_chars"`
	LLMMaxInputDocs    int     `yaml:"llm_max_input_docs" json:"llm_max_input_docs"`
	LLMMinOutputRatio  float64 `yaml:"llm_min_output_ratio" json:"llm_min_output_ratio"`
	LLMFailOpen        bool    `yaml:"llm_fail_open" json:"llm_fail_open"`
}

// PromptConfig covers the final template rendering stage (spec §4.8).
// Only the system message is configurable; the human message is the
// spec-mandated fixed Korean template (see internal/rag/prompt).
type PromptConfig struct {
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
}

// LoadConfig loads config.yaml (or config/config.yaml, or the paths
// below) with ${ENV_VAR} substitution, grounded on the teacher's
// internal/config/config.go viper+mapstructure pattern.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("$HOME/.ragpipeline")
	viper.AddConfigPath("/etc/ragpipeline/")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	configFileContent, err := os.ReadFile(viper.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("error reading config file content: %w", err)
	}

	re := regexp.MustCompile(`\${([^}]+)}`)
	result := re.ReplaceAllStringFunc(string(configFileContent), func(match string) string {
		envVar := match[2 : len(match)-1]
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})

	if err := viper.ReadConfig(strings.NewReader(result)); err != nil {
		return nil, fmt.Errorf("error re-reading substituted config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	fmt.Printf("Using configuration file: %s\n", viper.ConfigFileUsed())
	return &cfg, nil
}
