// =============================================================================
// kioskd 主入口
// =============================================================================
// 无人商店语音终端守护进程：语音编排器、应答库、本地控制面 HTTP 服务、Prometheus 指标
//
// 使用方法:
//
//	kioskd serve                       # 启动守护进程
//	kioskd serve --config kiosk.yaml   # 指定配置文件
//	kioskd seed                        # 写入内置应答目录后退出
//	kioskd version                     # 显示版本信息
//	kioskd health                      # 健康检查
//	kioskd migrate up                  # 运行数据库迁移
//	kioskd migrate down                # 回滚最后一次迁移
//	kioskd migrate status              # 查看迁移状态
// =============================================================================

// @title Kiosk Voice API
// @version 1.0.0
// @description Local control surface of the unmanned store voice kiosk.
// @description
// @description ## Features
// @description - Push-to-talk conversation events and state stream
// @description - Text-only answer resolution for diagnostics
// @description - Catalogue seeding and listing (admin)

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for the kiosk UI

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT bearer token for admin endpoints

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/database"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "seed":
		runSeed(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig 加载并验证配置，失败时退出
func loadConfig(path string) *config.Config {
	loader := config.NewLoader().WithEnvPrefix("KIOSK")
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting kioskd",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	srv := NewServer(cfg, *configPath, logger)
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// 阻塞直到信号或监听失败，随后执行关闭钩子
	if err := srv.WaitForShutdown(context.Background()); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
	}

	logger.Info("kioskd stopped")
}

// =============================================================================
// 🌱 seed 命令
// =============================================================================

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	migrate := fs.Bool("auto-migrate", true, "Create response store tables before seeding")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *migrate {
		if err := store.AutoMigrate(db.DB()); err != nil {
			fmt.Fprintf(os.Stderr, "Auto-migrate failed: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, db, store.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open response store: %v\n", err)
		os.Exit(1)
	}
	n, err := st.Seed(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}

	stats := st.Stats()
	fmt.Printf("Seeded %d records (intents=%d multiturn=%d parallel=%d)\n",
		n, stats.Intents, stats.MultiTurn, stats.Parallel)
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("kioskd %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`kioskd - unmanned store voice kiosk daemon

Usage:
  kioskd <command> [options]

Commands:
  serve     Start the kiosk daemon
  migrate   Database migration commands
  seed      Insert the built-in answer catalogue and exit
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve' and 'seed':
  --config <path>   Path to configuration file (YAML)

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate status    Show migration status
  migrate version   Show current migration version
  migrate goto <v>  Migrate to a specific version
  migrate force <v> Force set migration version
  migrate reset     Rollback all migrations

Environment:
  KIOSK_<SECTION>_<FIELD> overrides any config field, e.g. KIOSK_VOICE_LOCALE=en

Examples:
  kioskd serve
  kioskd serve --config /etc/kioskd/kiosk.yaml
  kioskd seed --config /etc/kioskd/kiosk.yaml
  kioskd migrate up
  kioskd health --addr http://localhost:8080
  kioskd version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
