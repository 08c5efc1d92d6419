package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sir_venger/minibackup/internal/config"
	"github.com/sir_venger/minibackup/internal/logging"
	"github.com/sir_venger/minibackup/internal/objstore"
	"github.com/sir_venger/minibackup/internal/state"
	"github.com/sir_venger/minibackup/internal/sweeper"
)

type options struct {
	force     bool
	retention time.Duration
	timeout   time.Duration
}

// main выполняет один проход очистки вне HTTP-сервиса (например, из cron).
func main() {
	var opts options
	flag.BoolVar(&opts.force, "force", false, "ignore the last-sweep marker")
	flag.DurationVar(&opts.retention, "retention", sweeper.DefaultRetention, "remove objects unused for longer than this")
	flag.DurationVar(&opts.timeout, "timeout", time.Hour, "abort the sweep after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(cfg, opts, logger); err != nil {
		logger.Error().Err(err).Msg("sweep failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts options, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	st, err := state.Open(ctx, cfg.StateDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	objects := objstore.New(cfg.ObjectsDir(), objstore.WithLogger(logger))
	sw := sweeper.New(objects, st)
	sw.Logger = logger
	sw.Retention = opts.retention
	if opts.force {
		// отметка всё равно переносится, следующий обычный проход через сутки
		sw.Every = 0
	}

	ran, err := sw.MaybeRun(ctx)
	if err != nil {
		return err
	}
	if !ran {
		logger.Info().Dur("every", sw.Every).Msg("sweep is not due yet")
	}
	return nil
}
