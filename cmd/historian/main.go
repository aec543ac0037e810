// cmd/historian/main.go drains the session action queue from Redis into PostgreSQL.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/quizlive/internal/cache"
	"github.com/jason-s-yu/quizlive/internal/config"
	"github.com/jason-s-yu/quizlive/internal/database"
	"github.com/jason-s-yu/quizlive/internal/historian"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("historian: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		return errors.New("REDIS_ADDR and DATABASE_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	pg := database.NewStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	svc := historian.New(historian.NewRedisQueue(rdb, cfg.ActionQueue), pg, cfg.HistorianBatchSize, cfg.HistorianFlush, logger)
	return svc.Run(ctx)
}
