package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/medcart-backend/pkg/config"
	"github.com/angelmondragon/medcart-backend/pkg/db"
	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/migrate"
)

const usage = "up|down|status|version|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	// create and validate never need config or a database.
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(*dir)); err != nil {
			fail("migrations invalid: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		fail("goose migrations target postgres; sqlite is migrated by MEDCART_AUTO_MIGRATE")
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		logg.Error(ctx, "failed to unwrap sql.DB", err)
		os.Exit(1)
	}
	migrator, err := migrate.New(sqlDB, migrate.Source(*dir))
	if err != nil {
		logg.Error(ctx, "failed to load migrations", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			logg.Error(ctx, "migrate up failed", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrate up complete")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			logg.Error(ctx, "migrate down failed", err)
			os.Exit(1)
		}
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			logg.Error(ctx, "migrate status failed", err)
			os.Exit(1)
		}
		for _, st := range statuses {
			applied := "pending"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-20s %-8s %s\n", applied, st.State, st.Source.Path)
		}
	case "version":
		if *version == "" {
			fail("missing -version")
		}
		if err := migrator.To(ctx, *version); err != nil {
			logg.Error(ctx, "migrate to version failed", err)
			os.Exit(1)
		}
	default:
		fail("unknown -cmd %q (want %s)", *cmd, usage)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
