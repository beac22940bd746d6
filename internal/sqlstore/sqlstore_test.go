package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestOpenRequiresDSN(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverMySQL} {
		if _, err := Open(context.Background(), DBConfig{Driver: driver}); err == nil {
			t.Fatalf("expected error for empty %s DSN", driver)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), DBConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenDuckDBInMemory(t *testing.T) {
	db, err := Open(context.Background(), DBConfig{Driver: "DuckDB", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE users (id INTEGER, name VARCHAR)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO users VALUES (1, 'a'), (2, 'b')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}
}

func TestPoolsPingAndNames(t *testing.T) {
	healthy, healthyMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = healthy.Close() }()
	broken, brokenMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = broken.Close() }()

	healthyMock.ExpectPing()
	brokenMock.ExpectPing().WillReturnError(errors.New("connection refused"))

	pools := NewPools("PGX", map[string]*sql.DB{"hr": healthy, "sales": broken, "skip": nil})
	if pools.Driver != DriverPostgres {
		t.Fatalf("Driver = %q", pools.Driver)
	}
	names := pools.Names()
	if len(names) != 2 || names[0] != "hr" || names[1] != "sales" {
		t.Fatalf("Names() = %v", names)
	}
	if _, ok := pools.Lookup("skip"); ok {
		t.Fatal("nil pool should not be registered")
	}
	if err := pools.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure")
	}
	if err := healthyMock.ExpectationsWereMet(); err != nil {
		t.Fatalf("healthy expectations: %v", err)
	}
}

func TestNilPoolsAreEmpty(t *testing.T) {
	var pools *Pools
	if pools.Names() != nil {
		t.Fatal("nil pools should have no names")
	}
	if err := pools.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
