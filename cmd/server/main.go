package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sir_venger/minibackup/internal/app/resthttp"
	"github.com/sir_venger/minibackup/internal/config"
	"github.com/sir_venger/minibackup/internal/logging"
)

// main поднимает HTTP-сервис блобов и корректно завершает его по сигналу.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, srv, err := resthttp.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("close state store")
		}
	}()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown по SIGTERM/SIGINT
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	tls := cfg.TLSCert != ""
	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Bool("tls", tls).
		Bool("trust_proxy", cfg.TrustProxy).
		Msg("listening")
	if cfg.AllowInsecure {
		logger.Warn().Msg("allow_insecure is set: every request is treated as HTTPS")
	}

	if tls {
		err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("serve")
		return
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("final shutdown")
	}
}
