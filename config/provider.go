// Package config supplies hot-reloadable agent activation configs backed by
// viper. The decision engine re-reads the provider on every segment, so a
// config file edit takes effect on the next segment without a restart.
package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/logging"
)

// Options configure a Provider.
type Options struct {
	// Logger used for reload tracing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Provider watches an agents config file and atomically swaps the parsed
// map on change. AgentConfigs returns the current snapshot as a copy so
// callers never observe a partially applied reload.
//
// Expected file shape (yaml, json or toml, whatever viper accepts):
//
//	agents:
//	  - name: prescription
//	    enabled: true
//	    confidence_threshold: 0.8
//	    triggering_intents: [Prescription]
//	    required_entities: [MedicationName]
type Provider struct {
	v      *viper.Viper
	logger logging.Logger

	mu      sync.RWMutex
	configs map[string]core.AgentConfig
}

// NewProvider loads the config file at path and starts watching it.
func NewProvider(path string, optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}

	p := &Provider{v: v, logger: opts.Logger}
	if err := p.reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		if err := p.reload(); err != nil {
			// Keep serving the last good snapshot on a bad edit.
			p.logger.Error("agent config reload failed after %s: %v", ev.Name, err)
			return
		}
		p.logger.Info("agent config reloaded from %s", ev.Name)
	})
	v.WatchConfig()

	return p, nil
}

func (p *Provider) reload() error {
	var parsed struct {
		Agents []core.AgentConfig `mapstructure:"agents"`
	}
	if err := p.v.Unmarshal(&parsed); err != nil {
		return fmt.Errorf("parse agent config: %w", err)
	}

	configs := make(map[string]core.AgentConfig, len(parsed.Agents))
	for _, cfg := range parsed.Agents {
		if cfg.Name == "" {
			return fmt.Errorf("agent config entry with empty name")
		}
		if _, dup := configs[cfg.Name]; dup {
			return fmt.Errorf("duplicate agent config %q", cfg.Name)
		}
		configs[cfg.Name] = cfg
	}

	p.mu.Lock()
	p.configs = configs
	p.mu.Unlock()
	return nil
}

// AgentConfigs implements core.ConfigProvider.
func (p *Provider) AgentConfigs() map[string]core.AgentConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]core.AgentConfig, len(p.configs))
	for name, cfg := range p.configs {
		out[name] = cfg
	}
	return out
}

// Static is a fixed core.ConfigProvider for tests and embedded setups.
type Static map[string]core.AgentConfig

// AgentConfigs implements core.ConfigProvider.
func (s Static) AgentConfigs() map[string]core.AgentConfig {
	out := make(map[string]core.AgentConfig, len(s))
	for name, cfg := range s {
		out[name] = cfg
	}
	return out
}
