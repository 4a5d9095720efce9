package database

import (
	"strings"
	"testing"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "acceptconnect",
		Name: "acceptconnect",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "host=localhost port=5432 user=acceptconnect dbname=acceptconnect sslmode=disable"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(
		dsn,
		"host=db.example.com",
		"port=6543",
		"user=user",
		"dbname=db",
		"password=pass",
		"sslmode=require",
		"search_path=public",
	) {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildPostgresDSN(Config{}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User: "acceptconnect",
		Name: "acceptconnect",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "acceptconnect@tcp(127.0.0.1:3306)/acceptconnect?parseTime=true&charset=utf8mb4"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options: map[string]string{
			"tls": "skip-verify",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(
		dsn,
		"user:secret@tcp(db.example.com:3307)/db?",
		"charset=utf8mb4",
		"parseTime=true",
		"tls=skip-verify",
	) {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildMySQLDSNOptionOverrides(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:    "user",
		Name:    "db",
		Options: map[string]string{"charset": "latin1", "timeout": "5s"},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	if !containsAll(dsn, "charset=latin1", "timeout=5s", "parseTime=true") || strings.Contains(dsn, "utf8mb4") {
		t.Fatalf("options not applied: %q", dsn)
	}

	if _, err := buildMySQLDSN(Config{User: "user", Name: "db", Options: map[string]string{"parseTime": "maybe"}}); err == nil {
		t.Fatalf("expected error for invalid option value")
	}
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildMySQLDSN(Config{Host: "localhost"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	if !strings.Contains(dsn, "memory") {
		t.Fatalf("expected in-memory dsn, got %q", dsn)
	}

	dsn, err = buildSQLiteDSN(Config{DSN: "file:custom.db"})
	if err != nil || dsn != "file:custom.db" {
		t.Fatalf("expected DSN override, got %q (%v)", dsn, err)
	}

	path := t.TempDir() + "/nested/accept.sqlite"
	dsn, err = buildSQLiteDSN(Config{Path: path})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}
	if !containsAll(dsn, "nested/accept.sqlite", "_journal_mode=WAL") {
		t.Fatalf("unexpected file dsn %q", dsn)
	}
}

func containsAll(value string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(value, part) {
			return false
		}
	}
	return true
}
