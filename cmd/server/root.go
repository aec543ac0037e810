package main

import (
	"context"
	"errors"

	"github.com/jason-s-yu/quizlive/internal/auth"
	"github.com/jason-s-yu/quizlive/internal/config"
	"github.com/jason-s-yu/quizlive/internal/database"
	"github.com/jason-s-yu/quizlive/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quizlive",
		Short:   "Live multi-participant quiz sessions over HTTP and websockets.",
		Version: releaseVersion,
	}

	cmd.AddCommand(newServeCmd(), newImportCmd(), newTokenCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizlive v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// loadConfig reads the environment and builds the process logger.
func loadConfig(verbose bool) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return cfg, logger, nil
}

// openStore returns the postgres store when DATABASE_URL is set and the
// in-memory store otherwise. The returned close func is never nil.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, sessions are kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := database.NewStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

// authenticator loads the signing keys when configured. Without them an
// ephemeral key pair is generated, so tokens do not survive a restart.
func authenticator(cfg *config.Config, logger *logrus.Logger) (*auth.Authenticator, error) {
	if cfg.PrivateKeyPath == "" && cfg.PublicKeyPath == "" {
		logger.Warn("no signing keys configured, using an ephemeral key pair")
		return auth.NewAuthenticator(cfg.TokenTTL)
	}
	if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
		return nil, errors.New("both AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH must be provided together")
	}
	return auth.NewAuthenticatorFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
}
