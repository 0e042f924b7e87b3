package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal/memjournal"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeFile(t, "ontoreason.yaml", `
inference:
  max_passes: 20
journal:
  driver: sqlite
  dsn: /tmp/journal.db
server:
  addr: 127.0.0.1:9000
  read_timeout: 2s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Inference.MaxPasses != 20 {
		t.Errorf("Expected max_passes 20, got %d", cfg.Inference.MaxPasses)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Expected addr override, got %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("Expected read timeout 2s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != Default().Server.WriteTimeout {
		t.Errorf("Write timeout should keep its default, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Enrich.Workers != 8 {
		t.Errorf("Workers should keep its default, got %d", cfg.Enrich.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config should validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load("/nonexistent/ontoreason.yaml"); err == nil {
		t.Error("Should error on nonexistent file")
	}

	path := writeFile(t, "bad.yaml", "inference: [not, a, map]\n")
	_, err := Load(path)
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvOntology:   "/etc/ontoreason/onto.yaml",
		EnvLogLevel:   "debug",
		EnvHTTPAddr:   ":9999",
		EnvJournalDSN: "redis://localhost:6379/0",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Ontology.Path != "/etc/ontoreason/onto.yaml" {
		t.Errorf("ontology path not overridden: %q", cfg.Ontology.Path)
	}
	if cfg.Log.Level != "debug" || cfg.Server.Addr != ":9999" {
		t.Errorf("log level / addr not overridden: %q %q", cfg.Log.Level, cfg.Server.Addr)
	}
	if cfg.Journal.Driver != DriverRedis {
		t.Errorf("Expected redis driver from DSN, got %q", cfg.Journal.Driver)
	}

	cfg = Default()
	cfg.Journal.Driver = DriverSQLite
	cfg.ApplyEnv(func(k string) string {
		if k == EnvJournalDSN {
			return "redis://other"
		}
		return ""
	})
	if cfg.Journal.Driver != DriverSQLite {
		t.Errorf("Explicit driver should be kept, got %q", cfg.Journal.Driver)
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Inference.MaxPasses = 0
	cfg.Journal.Driver = "postgres"
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"max_passes", "postgres", "loud"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error should mention %q: %v", want, err)
		}
	}

	cfg = Default()
	cfg.Journal.Driver = DriverSQLite
	if err := cfg.Validate(); err == nil {
		t.Error("sqlite driver without dsn should fail validation")
	}
}

func TestBuildDefaults(t *testing.T) {
	comp, err := Default().Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer comp.Close()

	if comp.Model == nil {
		t.Fatal("Should load the embedded ontology")
	}
	if _, ok := comp.Journal.(*memjournal.Journal); !ok {
		t.Errorf("Expected memory journal, got %T", comp.Journal)
	}
}

func TestBuildJournalDrivers(t *testing.T) {
	ctx := context.Background()

	none := JournalConfig{Driver: DriverNone}
	j, err := none.Open(ctx)
	if err != nil || j != nil {
		t.Errorf("driver none should open nothing, got %v %v", j, err)
	}

	lite := JournalConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "j.db")}
	j, err = lite.Open(ctx)
	if err != nil {
		t.Fatalf("sqlite open failed: %v", err)
	}
	j.Close()

	mr := miniredis.RunT(t)
	rc := JournalConfig{Driver: DriverRedis, DSN: "redis://" + mr.Addr(), Prefix: "test"}
	j, err = rc.Open(ctx)
	if err != nil {
		t.Fatalf("redis open failed: %v", err)
	}
	j.Close()

	if _, err := (JournalConfig{Driver: "bogus"}).Open(ctx); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestBuildMissingOntology(t *testing.T) {
	cfg := Default()
	cfg.Ontology.Path = "/nonexistent/onto.yaml"
	if _, err := cfg.Build(context.Background()); err == nil {
		t.Error("Should error on missing ontology file")
	}
}
