package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/payflow-backend/pkg/config"
	"github.com/angelmondragon/payflow-backend/pkg/db"
	"github.com/angelmondragon/payflow-backend/pkg/logger"
	"github.com/angelmondragon/payflow-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up                apply all pending migrations
  down              roll back the latest migration
  status            list migrations and when they were applied
  to <version>      migrate up or down to YYYYMMDDHHMMSS
  create <name>     write a new SQL migration into -dir
  validate          check filenames and goose annotations in -dir

flags:
`

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory on disk (create and validate)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	// these work from a checkout without any database
	switch command {
	case "create":
		if len(args) != 1 {
			exit("create needs exactly one <name>")
		}
		path, err := migrate.CreateSQLMigration(*dir, args[0])
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit("migrations invalid:\n%v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		exit("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		Static:      map[string]any{"env": cfg.App.Env},
	})
	ctx := logg.WithField(context.Background(), "command", command)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit("connect database: %v", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit("sql handle: %v", err)
	}
	migrator, err := migrate.NewMigrator(sqlDB)
	if err != nil {
		exit("%v", err)
	}

	switch command {
	case "up":
		results, err := migrator.Up(ctx)
		printResults(results)
		if err != nil {
			exit("%v", err)
		}
	case "down":
		result, err := migrator.Down(ctx)
		printResults([]*goose.MigrationResult{result})
		if err != nil {
			exit("%v", err)
		}
	case "to":
		if len(args) != 1 {
			exit("to needs exactly one <version>")
		}
		results, err := migrator.To(ctx, args[0])
		printResults(results)
		if err != nil {
			exit("%v", err)
		}
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			exit("status: %v", err)
		}
		printStatus(statuses)
	default:
		flag.Usage()
		os.Exit(2)
	}
	logg.Info(ctx, "migrate finished")
}

func printResults(results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fmt.Printf("%-4s %d %s (%s)\n", r.Direction, r.Source.Version, r.Source.Path, r.Duration.Round(time.Millisecond))
	}
	if len(results) == 0 {
		fmt.Println("no migrations to run")
	}
}

func printStatus(statuses []*goose.MigrationStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	_ = w.Flush()
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
