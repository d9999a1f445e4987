package entstore

import (
	"context"
	"testing"

	"github.com/wilhg/locale/pkg/store/storetest"
)

func openSQLite(t *testing.T, name string) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, "sqlite:file:"+name+"?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, openSQLite(t, "conformance"))
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	st := openSQLite(t, "migrate-twice")
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestParseDatabaseURL(t *testing.T) {
	cases := []struct {
		in      string
		drv     string
		dialect string
		dsn     string
		wantErr bool
	}{
		{in: "sqlite:file:x.db", drv: "sqlite3", dialect: "sqlite3", dsn: "file:x.db"},
		{in: "SQLite:file:Mixed.db", drv: "sqlite3", dialect: "sqlite3", dsn: "file:Mixed.db"},
		{in: "SQLITE:", drv: "sqlite3", dialect: "sqlite3"},
		{in: "postgres://u:p@localhost:5432/locale?sslmode=disable", drv: "pgx", dialect: "postgres"},
		{in: "postgresql://localhost/locale", drv: "pgx", dialect: "postgres"},
		{in: "host=localhost user=locale dbname=locale", drv: "pgx", dialect: "postgres"},
		{in: "mysql://localhost/locale", wantErr: true},
		{in: "", wantErr: true},
		{in: "nonsense", wantErr: true},
	}
	for _, c := range cases {
		drv, dsn, dia, err := parseDatabaseURL(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", c.in)
			}
			continue
		}
		if err != nil || drv != c.drv || dia != c.dialect {
			t.Fatalf("%q: drv=%q dialect=%q err=%v", c.in, drv, dia, err)
		}
		if c.dsn != "" && dsn != c.dsn {
			t.Fatalf("%q: dsn=%q want %q", c.in, dsn, c.dsn)
		}
	}
}
