package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Loader reads and validates daemon configuration files.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listenAddress", DefaultListenAddress)
	v.SetDefault("observability.listenAddress", DefaultObservabilityAddress)
	v.SetDefault("observability.enabled", true)
	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("discovery.snapshotPath", DefaultSnapshotPath)
	v.SetDefault("discovery.refreshSeconds", DefaultRefreshSeconds)
	v.SetDefault("discovery.timeoutSeconds", DefaultDiscoverySeconds)
	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("pipeline.invokeTimeoutSeconds", DefaultInvokeSeconds)
	v.SetDefault("pipeline.questionTimeoutSeconds", DefaultQuestionSeconds)
	v.SetDefault("pipeline.historyWindow", DefaultHistoryWindow)
}

// Load parses the config file at path, applies defaults, and validates.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	l.logger.Debug("config loaded",
		zap.String("path", path),
		zap.Int("providers", len(cfg.Providers)),
	)
	return cfg, nil
}

// Parse decodes raw YAML into a validated Config.
func (l *Loader) Parse(data []byte) (*Config, error) {
	v := newConfigViper()
	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for i := range cfg.Providers {
		if strings.TrimSpace(cfg.Providers[i].QueryTool) == "" {
			cfg.Providers[i].QueryTool = DefaultQueryTool
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
