// Package cli implements draftctl, the operator tool for the draft engine.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"credentialing-backend/internal/config"
	"credentialing-backend/internal/logging"
	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the draftctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "draftctl",
		Short: "Operate the credentialing draft store",
		Long:  "draftctl migrates the schema, saves drafts from files, mints tokens and maintains the audit outbox.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to app.yaml (default: search . and ../..)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.ConfigPath != "" {
		return config.LoadFile(o.ConfigPath)
	}
	return config.Load()
}

// env is what most commands need: config, a logger and an open, migrated store.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	reg    *metadata.Registry
	close  func()
}

func (o *RootOptions) openEnv(ctx context.Context) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	s, err := store.New(ctx, cfg.Database)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	reg := metadata.NewRegistry()
	if err := s.Bootstrap(ctx, reg); err != nil {
		s.Close()
		logCloser.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		store:  s,
		reg:    reg,
		close: func() {
			s.Close()
			logCloser.Close()
		},
	}, nil
}
