// Package sqlstore opens connection pools for the relational databases the
// SQL pipeline answers questions about.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverPostgres = "pgx"
	DriverMySQL    = "mysql"
	DriverDuckDB   = "duckdb"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open opens and pings a pool. An empty DSN is only accepted for duckdb,
// where it selects an in-memory database.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case DriverPostgres, DriverMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%s dsn is required", driver)
		}
	case DriverDuckDB:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	return db, nil
}

// Pools holds one named pool per configured relational database.
type Pools struct {
	Driver string
	dbs    map[string]*sql.DB
	names  []string
}

func NewPools(driver string, dbs map[string]*sql.DB) *Pools {
	p := &Pools{Driver: strings.ToLower(driver), dbs: make(map[string]*sql.DB, len(dbs))}
	for name, db := range dbs {
		if db == nil {
			continue
		}
		p.dbs[name] = db
		p.names = append(p.names, name)
	}
	sort.Strings(p.names)
	return p
}

func (p *Pools) Lookup(name string) (*sql.DB, bool) {
	if p == nil {
		return nil, false
	}
	db, ok := p.dbs[name]
	return db, ok
}

func (p *Pools) Names() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.names...)
}

// Ping checks every pool and reports the first failure.
func (p *Pools) Ping(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for _, name := range p.names {
		if err := p.dbs[name].PingContext(ctx); err != nil {
			return fmt.Errorf("ping sql database %s: %w", name, err)
		}
	}
	return nil
}

func (p *Pools) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	for _, name := range p.names {
		if err := p.dbs[name].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sql database %s: %w", name, err)
		}
	}
	return firstErr
}
