package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "tokenkit/internal/errors"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// Config describes the MySQL connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func openDatabase(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "mysql dsn is empty")
	}
	parsed, err := mysqldriver.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "parse mysql dsn")
	}
	parsed.ParseTime = true

	connector, err := mysqldriver.NewConnector(parsed)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err, "create mysql connector")
	}
	db := sql.OpenDB(connector)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, err,
			fmt.Sprintf("ping mysql %s", parsed.Addr))
	}
	return db, nil
}
