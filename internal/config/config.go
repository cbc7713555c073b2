// Package config loads metagraph settings from metagraph.yml and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the metagraph configuration
type Config struct {
	Cache  CacheConfig  `mapstructure:"cache"`
	Notify NotifyConfig `mapstructure:"notify"`
	Watch  WatchConfig  `mapstructure:"watch"`
	Log    LogConfig    `mapstructure:"log"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Diag   DiagConfig   `mapstructure:"diag"`
}

// CacheConfig represents metadata cache configuration
type CacheConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

// NotifyConfig represents notification cascade configuration
type NotifyConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// WatchConfig represents file watcher configuration
type WatchConfig struct {
	Dirs     []string      `mapstructure:"dirs"`
	Patterns []string      `mapstructure:"patterns"`
	Ignored  []string      `mapstructure:"ignored"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// RedisConfig represents the snapshot store configuration. An empty address
// disables publishing.
type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

// DiagConfig represents the diagnostics HTTP configuration. An empty address
// disables the server.
type DiagConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads the configuration from metagraph.yml or metagraph.yaml in dir
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("metagraph")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// METAGRAPH_CACHE_MAX_SIZE overrides cache.max_size
	v.SetEnvPrefix("METAGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// defaults always decode
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.max_size", 100000)
	v.SetDefault("notify.max_depth", 256)
	v.SetDefault("watch.dirs", []string{"."})
	v.SetDefault("watch.patterns", []string{"*.java"})
	v.SetDefault("watch.ignored", []string{})
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "metagraph:")
	v.SetDefault("diag.addr", "")
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be positive, got: %d", cfg.Cache.MaxSize)
	}
	if cfg.Notify.MaxDepth <= 0 {
		return fmt.Errorf("notify.max_depth must be positive, got: %d", cfg.Notify.MaxDepth)
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got: %s", cfg.Watch.Debounce)
	}
	if len(cfg.Watch.Dirs) == 0 {
		return fmt.Errorf("watch.dirs must list at least one directory")
	}
	return nil
}
