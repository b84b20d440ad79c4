package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("reconquery-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Database.Driver != "duckdb" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns != 20 {
		t.Fatalf("Database.MaxOpenConns = %d", cfg.Database.MaxOpenConns)
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.PresignExpiry != 24*time.Hour {
		t.Fatalf("ObjectStore.PresignExpiry = %v", cfg.ObjectStore.PresignExpiry)
	}
	if cfg.Oracle.Model != "gpt-5" {
		t.Fatalf("Oracle.Model = %q", cfg.Oracle.Model)
	}
	if cfg.Pipeline.MaxResultRows != 10000 {
		t.Fatalf("Pipeline.MaxResultRows = %d", cfg.Pipeline.MaxResultRows)
	}
	if cfg.Pipeline.SummaryRows != 50 {
		t.Fatalf("Pipeline.SummaryRows = %d", cfg.Pipeline.SummaryRows)
	}
	if cfg.Export.Format != "csv" {
		t.Fatalf("Export.Format = %q", cfg.Export.Format)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"RECONQUERY_PROFILE": "prod"})
	cfg, err := Load("reconquery-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"RECONQUERY_HTTP_ADDR":              ":9090",
		"RECONQUERY_DB_DRIVER":              "postgres",
		"RECONQUERY_DB_DSN":                 "postgres://u:p@host:5432/fin",
		"RECONQUERY_DB_QUERY_TIMEOUT":       "7s",
		"RECONQUERY_ORACLE_MODEL":           "gpt-4o",
		"RECONQUERY_PIPELINE_LIST_KEYWORDS": "list, dump ,export",
		"RECONQUERY_EXPORT_FORMAT":          "parquet",
	})
	cfg, err := Load("reconquery-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Database.DSN != "postgres://u:p@host:5432/fin" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.Database.QueryTimeout != 7*time.Second {
		t.Fatalf("Database.QueryTimeout = %v", cfg.Database.QueryTimeout)
	}
	if cfg.Oracle.Model != "gpt-4o" {
		t.Fatalf("Oracle.Model = %q", cfg.Oracle.Model)
	}
	if len(cfg.Pipeline.ListKeywords) != 3 || cfg.Pipeline.ListKeywords[1] != "dump" {
		t.Fatalf("Pipeline.ListKeywords = %v", cfg.Pipeline.ListKeywords)
	}
	if cfg.Export.Format != "parquet" {
		t.Fatalf("Export.Format = %q", cfg.Export.Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad profile":       {"RECONQUERY_PROFILE": "staging"},
		"bad driver":        {"RECONQUERY_DB_DRIVER": "oracle"},
		"bad export format": {"RECONQUERY_EXPORT_FORMAT": "xlsx"},
		"bad duration":      {"RECONQUERY_DB_QUERY_TIMEOUT": "soon"},
		"bad log level":     {"RECONQUERY_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		if _, err := Load("reconquery-api", mapLookup(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
