package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/catalog"
)

// NewAuthzEngine wires the engine to the catalog repository. The legacy table
// comes from LegacyRulesFile when set, otherwise from the built-in default.
func NewAuthzEngine(cfg EngineConfig, repo *catalog.Repository, logger *slog.Logger, recorder authz.Recorder) (*authz.Engine, error) {
	table := authz.DefaultLegacyTable
	if cfg.LegacyRulesFile != "" {
		f, err := os.Open(cfg.LegacyRulesFile)
		if err != nil {
			return nil, fmt.Errorf("app: open legacy rules: %w", err)
		}
		defer f.Close()
		table, err = authz.LoadLegacyTable(f)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded legacy rules", slog.String("file", cfg.LegacyRulesFile), slog.Int("levels", len(table)))
	}
	legacy, err := authz.NewLegacyProvider(table)
	if err != nil {
		return nil, err
	}

	opts := authz.Options{
		Legacy:       legacy,
		Logger:       logger,
		Recorder:     recorder,
		StoreTimeout: cfg.AuthzStoreTimeout,
		CacheSize:    cfg.AuthzDecisionCacheSize,
	}
	if repo != nil {
		opts.RBAC = authz.NewRBACProvider(repo, authz.WithUserOverrides(cfg.AuthzUserOverrides))
		opts.Owners = repo
	}
	return authz.NewEngine(opts), nil
}
