package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/sir_venger/minibackup/internal/config"
	"github.com/sir_venger/minibackup/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	dsn := strings.TrimSpace(cfg.StateDSN)
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		log.Printf("state_dsn %q is not postgres, nothing to migrate", schemeOf(dsn))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := state.ApplyMigrations(ctx, dsn); err != nil {
		log.Fatal(err)
	}

	log.Println("migrations applied")
}

// schemeOf возвращает только схему DSN, чтобы не печатать пароль.
func schemeOf(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3]
	}
	return dsn
}
