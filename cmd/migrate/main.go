package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/socialjohn/internal/config"
	"github.com/dropDatabas3/socialjohn/internal/observability/logger"
	"github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/pg"
	migrations "github.com/dropDatabas3/socialjohn/migrations/postgres"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	flag.Parse()

	_ = godotenv.Load()

	// Positional args: [action] [steps]
	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" {
		log.Fatalf("migrate: storage driver is %q, nothing to migrate", cfg.Storage.Driver)
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "socialjohn-migrate"})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	var applied []int
	switch action {
	case "up":
		applied, err = pg.MigrateUp(ctx, pool, migrations.FS, steps)
	case "down":
		if steps == 0 {
			steps = 1
		}
		applied, err = pg.MigrateDown(ctx, pool, migrations.FS, steps)
	default:
		log.Fatalf("unknown action %q (use up|down [steps])", action)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", action, err)
	}
	if len(applied) == 0 {
		log.Println("Nothing to do.")
		return
	}
	log.Printf("%s: %d migration(s) %v", action, len(applied), applied)
}
