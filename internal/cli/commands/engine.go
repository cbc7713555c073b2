package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/metagraph/internal/config"
	"github.com/conduit-lang/metagraph/internal/filemeta"
	"github.com/conduit-lang/metagraph/internal/logging"
	"github.com/conduit-lang/metagraph/internal/metadata"
	"github.com/conduit-lang/metagraph/internal/process"
)

// settings are the flags shared by commands that start an engine
type settings struct {
	configDir string
	logLevel  string
}

func (s *settings) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.configDir, "config", ".", "Directory containing metagraph.yml")
	cmd.Flags().StringVar(&s.logLevel, "log-level", "", "Log level (overrides log.level)")
}

// load reads the configuration and builds the logger it describes
func (s *settings) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(s.configDir)
	if err != nil {
		return nil, nil, err
	}
	if s.logLevel != "" {
		cfg.Log.Level = s.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// engine is a Service with the FileDigest provider registered
type engine struct {
	svc     *metadata.Service
	files   *filemeta.Provider
	manager *process.Manager
}

func newEngine(cfg *config.Config, logger *zap.Logger) (*engine, error) {
	svc, err := metadata.NewServiceWithConfig(metadata.ServiceConfig{
		MaxCacheSize:   cfg.Cache.MaxSize,
		MaxNotifyDepth: cfg.Notify.MaxDepth,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata service: %w", err)
	}

	files := filemeta.NewProvider(svc, logger)
	if err := svc.RegisterProvider(files); err != nil {
		return nil, err
	}

	return &engine{
		svc:     svc,
		files:   files,
		manager: process.NewManager(logger),
	}, nil
}
