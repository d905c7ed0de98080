package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"meta-ads/internal/config/configs"
	"meta-ads/internal/pkg/errs"
)

// NewSQLite opens the SQLite file named by cfg and applies the schema.
// Write transactions take the database lock up front so concurrent
// writers queue on busy_timeout instead of failing mid-transaction.
func NewSQLite(ctx context.Context, cfg configs.SQLite) (*sql.DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errs.New("sqlite path is required")
	}

	dsn := filepath.Clean(cfg.Path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(err, "open sqlite db")
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "ping sqlite db")
	}

	if err = MigrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "run sqlite migrations")
	}
	return db, nil
}
