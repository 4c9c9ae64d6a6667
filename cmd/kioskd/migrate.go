package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/migration"
)

// =============================================================================
// 🗄️ 数据库迁移命令
// =============================================================================

// migrateAction 执行一个迁移子命令；arg 为 goto/force 的版本号或 steps 的步数
type migrateAction func(ctx context.Context, cli *migration.CLI, arg string) error

var migrateActions = map[string]struct {
	needsArg bool
	run      migrateAction
}{
	"up":      {run: func(ctx context.Context, c *migration.CLI, _ string) error { return c.RunUp(ctx) }},
	"down":    {run: func(ctx context.Context, c *migration.CLI, _ string) error { return c.RunDown(ctx) }},
	"reset":   {run: func(ctx context.Context, c *migration.CLI, _ string) error { return c.RunDownAll(ctx) }},
	"status":  {run: func(ctx context.Context, c *migration.CLI, _ string) error { return c.RunStatus(ctx) }},
	"info":    {run: func(ctx context.Context, c *migration.CLI, _ string) error { return c.RunInfo(ctx) }},
	"version": {run: func(ctx context.Context, c *migration.CLI, _ string) error { return c.RunVersion(ctx) }},
	"goto": {needsArg: true, run: func(ctx context.Context, c *migration.CLI, arg string) error {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", arg)
		}
		return c.RunGoto(ctx, uint(v))
	}},
	"steps": {needsArg: true, run: func(ctx context.Context, c *migration.CLI, arg string) error {
		n, err := strconv.Atoi(arg)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid step count: %s", arg)
		}
		return c.RunSteps(ctx, n)
	}},
	"force": {needsArg: true, run: func(ctx context.Context, c *migration.CLI, arg string) error {
		v, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", arg)
		}
		return c.RunForce(ctx, int(v))
	}},
}

// runMigrate handles the migrate command and its subcommands
func runMigrate(args []string) {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage()
		if len(args) < 1 {
			os.Exit(1)
		}
		return
	}

	name, rest := args[0], args[1:]
	action, ok := migrateActions[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", name)
		printMigrateUsage()
		os.Exit(1)
	}

	var arg string
	if action.needsArg {
		if len(rest) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: kioskd migrate %s <%s>\n", name, argName(name))
			os.Exit(1)
		}
		arg, rest = rest[0], rest[1:]
	}

	migrator, err := createMigrator(flag.NewFlagSet("migrate "+name, flag.ExitOnError), rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := runMigrateAction(context.Background(), name, arg, migrator, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", name, err)
		migrator.Close()
		os.Exit(1)
	}
}

// runMigrateAction 在 m 上执行子命令 name，进度输出写到 w
func runMigrateAction(ctx context.Context, name, arg string, m migration.Migrator, w io.Writer) error {
	action, ok := migrateActions[name]
	if !ok {
		return fmt.Errorf("unknown migrate subcommand: %s", name)
	}
	cli := migration.NewCLI(m)
	cli.SetOutput(w)
	return action.run(ctx, cli, arg)
}

func argName(subcommand string) string {
	if subcommand == "steps" {
		return "n"
	}
	return "version"
}

// createMigrator creates a migrator from command line flags or the config file
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (sqlite, postgres, mysql)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *dbType != "" && *dbURL != "" {
		return migration.NewMigratorFromURL(*dbType, *dbURL)
	}

	loader := config.NewLoader().WithEnvPrefix("KIOSK")
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  kioskd migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  reset     Rollback all migrations
  status    Show migration status
  info      Show migration summary
  version   Show current migration version
  goto <v>  Migrate to a specific version
  steps <n> Apply n migrations (negative n rolls back)
  force <v> Force set migration version (use with caution)

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: sqlite, postgres, mysql (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  kioskd migrate up
  kioskd migrate up --config /etc/kioskd/kiosk.yaml
  kioskd migrate status --db-type sqlite --db-url "file:kiosk.db?mode=rwc"
  kioskd migrate goto 1
  kioskd migrate steps -1
  kioskd migrate force 0`)
}
