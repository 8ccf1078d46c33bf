package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit/internal/config"
	"github.com/livetemplate/listingkit/internal/generate"
	"github.com/livetemplate/listingkit/internal/logging"
)

// newGenerator is swapped in tests to avoid real providers.
var newGenerator = generate.NewServiceFromConfig

// loadConfig reads configPath when set, otherwise listingkit.yaml in dir.
func loadConfig(configPath, dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// applyAIFlags overrides the ai section with non-empty flag values.
func applyAIFlags(cfg *config.Config, provider, model string) error {
	if provider != "" {
		cfg.AI.Provider = provider
	}
	if model != "" {
		cfg.AI.Model = model
	}
	return cfg.Validate()
}

func buildGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*generate.Service, error) {
	svc, err := newGenerator(ctx, cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s generation: %w", cfg.AI.GetProvider(), err)
	}
	return svc, nil
}
