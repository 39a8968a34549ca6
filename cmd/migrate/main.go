package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tasktrail.org/internal/config"
	"tasktrail.org/internal/migrate"
)

const usage = "usage: migrate [-dsn ...] [-migrations dir] [-seeds dir] <up|down|seed|status>"

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn := fs.String("dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
	migrationsDir := fs.String("migrations", cfg.MigrationsDir, "Path to SQL migrations")
	seedsDir := fs.String("seeds", cfg.SeedsDir, "Path to SQL seeds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dsn == "" {
		return errors.New("missing DSN: provide via -dsn or TASKTRAIL_PG_DSN")
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	runner := migrate.NewRunner(db, *migrationsDir, *seedsDir)

	cmd := fs.Arg(0)
	switch cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "seed":
		err = runner.Seed(ctx)
	case "status":
		var applied []string
		if applied, err = runner.Status(ctx); err == nil {
			if len(applied) == 0 {
				fmt.Fprintln(out, "no migrations applied")
			}
			for _, name := range applied {
				fmt.Fprintln(out, name)
			}
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cmd, err)
	}
	return nil
}
