package database

import (
	"fmt"
	"strings"

	glebarez "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

// Dialector 根据配置选择 GORM 方言
//
//	sqlite   纯 Go 驱动（默认，设备本地文件）
//	sqlite3  cgo 驱动，与迁移工具使用同一实现
//	postgres / mysql  集中部署的应答库
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := cfg.DSN()
	switch cfg.Driver {
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		return glebarez.Open(withParam(dsn, "_pragma=foreign_keys(1)")), nil
	case "sqlite3":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		return cgosqlite.Open(withParam(dsn, "_foreign_keys=on")), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, sqlite3, postgres, mysql)", cfg.Driver)
	}
}

// Open 打开数据库并包装为连接池管理器
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*PoolManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	poolCfg := DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if err := poolCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	logger.Info("Database connected", zap.String("driver", cfg.Driver))
	return NewPoolManager(db, poolCfg, logger)
}

func withParam(dsn, param string) string {
	if strings.Contains(dsn, param) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
