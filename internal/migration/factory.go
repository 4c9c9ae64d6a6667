package migration

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"

	appconfig "github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

// DatabaseURL 把应答库配置转换为 golang-migrate 使用的连接串，用户名与密码会被转义
func DatabaseURL(cfg appconfig.DatabaseConfig) (string, error) {
	dbType, err := ParseDatabaseType(cfg.Driver)
	if err != nil {
		return "", err
	}

	switch dbType {
	case DatabaseTypePostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "require"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 5432))),
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String(), nil

	case DatabaseTypeMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(portOr(cfg.Port, 3306)))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.MultiStatements = true
		return mc.FormatDSN(), nil

	default:
		if cfg.Name == "" {
			return "", fmt.Errorf("sqlite database path is empty")
		}
		return sqliteURL(cfg.Name), nil
	}
}

// sqliteURL 迁移走 cgo sqlite3 驱动，外键需要显式开启
func sqliteURL(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&_foreign_keys=on", path)
}

func portOr(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}

// NewMigratorFromDatabaseConfig 从数据库配置创建迁移器
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}
	dbURL, err := DatabaseURL(dbCfg)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{DatabaseType: dbType, DatabaseURL: dbURL})
}

// NewMigratorFromURL 从原始连接串创建迁移器
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}
	return NewMigrator(&Config{DatabaseType: dt, DatabaseURL: dbURL})
}
