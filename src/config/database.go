package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc.org/sqlite 注册的驱动名是 "sqlite"
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ArchiveDriver 把配置里的驱动别名转换为 database/sql 注册的驱动名
func ArchiveDriver(name string) (string, error) {
	switch name {
	case "", "mysql":
		return "mysql", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported archive driver: %s", name)
	}
}

// ArchiveDSN 返回归档库连接串，未直接配置 dsn 时按 host/port/user/... 拼接
func ArchiveDSN(settings *Settings) (string, error) {
	a := settings.Archive
	if a.DSN != "" {
		return a.DSN, nil
	}

	driver, err := ArchiveDriver(a.Driver)
	if err != nil {
		return "", err
	}

	host := a.Host
	if host == "" {
		host = "localhost"
	}

	switch driver {
	case "mysql":
		port := a.Port
		if port == 0 {
			port = 3306
		}
		cfg := mysql.NewConfig()
		cfg.User = a.User
		cfg.Passwd = a.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		cfg.DBName = a.Name
		cfg.ParseTime = true
		cfg.Params = map[string]string{"charset": "utf8mb4"}
		return cfg.FormatDSN(), nil
	case "pgx":
		port := a.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(host, strconv.Itoa(port)),
			Path:   "/" + a.Name,
		}
		if a.User != "" {
			u.User = url.UserPassword(a.User, a.Password)
		}
		return u.String(), nil
	default:
		if a.Name == "" {
			return "", fmt.Errorf("sqlite archive needs archive.dsn or archive.name")
		}
		return a.Name, nil
	}
}

// OpenArchiveDB 初始化归档库连接池并 ping 验证
func OpenArchiveDB(ctx context.Context, settings *Settings) (*sqlx.DB, error) {
	driver, err := ArchiveDriver(settings.Archive.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := ArchiveDSN(settings)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenArchiveDB: %w", err)
	}

	// 设置连接池参数
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// 验证连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("OpenArchiveDB ping failed: %w", err)
	}

	return db, nil
}
