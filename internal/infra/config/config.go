package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied by the loader when the config file omits a value.
const (
	DefaultListenAddress        = "0.0.0.0:8080"
	DefaultObservabilityAddress = "0.0.0.0:9090"
	DefaultStorePath            = "ragd.db"
	DefaultSnapshotPath         = "discovery.db"
	DefaultQueryTool            = "query_knowledge_base"
	DefaultRefreshSeconds       = 300
	DefaultDiscoverySeconds     = 30
	DefaultInvokeSeconds        = 30
	DefaultQuestionSeconds      = 120
	DefaultHistoryWindow        = 10
	DefaultLLMProvider          = "openai"
)

// Config is the full daemon configuration.
type Config struct {
	ListenAddress string              `mapstructure:"listenAddress"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Store         StoreConfig         `mapstructure:"store"`
	Discovery     DiscoveryConfig     `mapstructure:"discovery"`
	Providers     []ProviderConfig    `mapstructure:"providers"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
}

type ObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	Enabled       bool   `mapstructure:"enabled"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type DiscoveryConfig struct {
	SnapshotPath   string `mapstructure:"snapshotPath"`
	RefreshSeconds int    `mapstructure:"refreshSeconds"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

func (c DiscoveryConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

func (c DiscoveryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProviderConfig describes one remote tool provider reachable over the
// streamable HTTP transport.
type ProviderConfig struct {
	ID        string            `mapstructure:"id"`
	Endpoint  string            `mapstructure:"endpoint"`
	Headers   map[string]string `mapstructure:"headers"`
	QueryTool string            `mapstructure:"queryTool"`
}

type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	APIKey       string `mapstructure:"apiKey"`
	APIKeyEnvVar string `mapstructure:"apiKeyEnvVar"`
	BaseURL      string `mapstructure:"baseURL"`
}

type PipelineConfig struct {
	InvokeTimeoutSeconds   int `mapstructure:"invokeTimeoutSeconds"`
	QuestionTimeoutSeconds int `mapstructure:"questionTimeoutSeconds"`
	HistoryWindow          int `mapstructure:"historyWindow"`
}

func (c PipelineConfig) InvokeTimeout() time.Duration {
	return time.Duration(c.InvokeTimeoutSeconds) * time.Second
}

func (c PipelineConfig) QuestionTimeout() time.Duration {
	return time.Duration(c.QuestionTimeoutSeconds) * time.Second
}

// Validate checks invariants the loader cannot default away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("listenAddress is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("providers[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("providers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Endpoint) == "" {
			return fmt.Errorf("provider %q: endpoint is required", p.ID)
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.APIKey == "" && c.LLM.APIKeyEnvVar == "" {
		return fmt.Errorf("llm.apiKey or llm.apiKeyEnvVar is required")
	}
	if c.Pipeline.InvokeTimeoutSeconds <= 0 {
		return fmt.Errorf("pipeline.invokeTimeoutSeconds must be > 0")
	}
	if c.Pipeline.QuestionTimeoutSeconds < c.Pipeline.InvokeTimeoutSeconds {
		return fmt.Errorf("pipeline.questionTimeoutSeconds must be >= invokeTimeoutSeconds")
	}
	return nil
}

// Provider returns the config entry for a provider id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
