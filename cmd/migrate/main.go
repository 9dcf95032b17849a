package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/config"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/migration"
	"github.com/JasonPDev313/Oppsera-sub010/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		migrationsDir string
		logLevel      string
	)
	flag.StringVar(&migrationsDir, "path", "", "read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout", Service: "gl-migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(args, migrationsDir, log); err != nil {
		log.Fatal("migrate failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(args []string, migrationsDir string, log *zap.Logger) error {
	var source fs.FS = migrations.FS
	if migrationsDir != "" {
		source = os.DirFS(migrationsDir)
	}

	switch args[0] {
	case "create":
		if migrationsDir == "" {
			return fmt.Errorf("create needs -path pointing at the migrations directory")
		}
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate -path migrations create <name>")
		}
		mf, err := migration.CreateMigration(migrationsDir, args[1])
		if err != nil {
			return err
		}
		log.Info("migration created", zap.Uint("version", mf.Version), zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil
	case "list":
		list, err := migration.ListMigrations(source)
		if err != nil {
			return err
		}
		for _, m := range list {
			fmt.Printf("%06d  %s\n", m.Version, m.Name)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migration.New(db, source, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func intArg(args []string, usage string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: migrate %s", usage)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[1], err)
	}
	return n, nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `GL posting schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                 apply all pending migrations
  down               roll back all migrations
  step <n>           apply n migrations (negative rolls back)
  version            print the applied version
  force <version>    mark version applied and clear the dirty flag
  list               list migrations in the source
  create <name>      scaffold the next numbered pair (requires -path)

Flags:
  -path string       migrations directory (default: embedded)
  -log-level string  debug, info, warn, error (default: info)

Database settings come from config.toml and ERP_DATABASE_* variables.
`)
}
