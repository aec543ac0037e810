package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/quizlive/internal/cache"
	"github.com/jason-s-yu/quizlive/internal/config"
	"github.com/jason-s-yu/quizlive/internal/game"
	"github.com/jason-s-yu/quizlive/internal/handlers"
	"github.com/jason-s-yu/quizlive/internal/realtime"
	"github.com/jason-s-yu/quizlive/internal/telemetry"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var (
		addr    string
		verbose bool
		seeds   []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(verbose)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg, logger, seeds)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&addr, "addr", "a", "", "address to listen on (env: QUIZLIVE_ADDR)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	fs.StringSliceVar(&seeds, "quiz", nil, "quiz document to load at startup, may be repeated")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger, seeds []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, path := range seeds {
		quiz, err := importQuiz(ctx, st, path)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"quiz": quiz.ID, "questions": len(quiz.Questions)}).Infof("loaded %s", path)
	}

	var publisher cache.ActionPublisher = cache.Discard{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		rp := cache.NewRedisPublisher(rdb, cfg.ActionQueue, logger)
		defer rp.Close()
		publisher = rp
	} else {
		logger.Info("REDIS_ADDR not set, session actions are not archived")
	}

	ids, err := authenticator(cfg, logger)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(logger)
	engine := game.NewEngine(st, hub, logger,
		game.WithActionPublisher(publisher),
		game.WithGracePeriod(cfg.GracePeriod),
	)
	defer engine.Shutdown()

	go engine.RunSweeper(ctx, cfg.SweepInterval)

	api := handlers.NewServer(engine, hub, ids, logger)
	api.PublicURL = cfg.PublicBaseURL

	// No WriteTimeout: websocket connections outlive any single write deadline.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Infof("quizlive v%s listening on %s", releaseVersion, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
