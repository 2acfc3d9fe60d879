package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/faucetdb/basin/internal/config"
	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/service"
)

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BASIN_SERVER_PORT", "9191")
	t.Setenv("BASIN_AUTH_JWT_SECRET", "from-env")
	t.Setenv("BASIN_MCP_USER_ID", "agent")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 9191 || cfg.Auth.JWTSecret != "from-env" || cfg.MCP.UserID != "agent" {
		t.Errorf("overrides not applied: port=%d secret=%q user=%q", cfg.Server.Port, cfg.Auth.JWTSecret, cfg.MCP.UserID)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want default sqlite", cfg.Database.Driver)
	}
}

func TestLoadConfig_InvalidDriver(t *testing.T) {
	t.Setenv("BASIN_DATABASE_DRIVER", "oracle")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		cfg   config.LoggingConfig
		dev   bool
		debug bool
		json  bool
	}{
		{config.LoggingConfig{Level: "info", Format: "text"}, false, false, false},
		{config.LoggingConfig{Level: "DEBUG", Format: "json"}, false, true, true},
		{config.LoggingConfig{Level: "error"}, true, true, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newLogger(tt.cfg, &buf, tt.dev)
		if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.debug {
			t.Errorf("%+v dev=%v: debug enabled = %v, want %v", tt.cfg, tt.dev, got, tt.debug)
		}
		logger.Error("boom")
		if got := strings.HasPrefix(buf.String(), "{"); got != tt.json {
			t.Errorf("%+v: json output = %v, want %v (%s)", tt.cfg, got, tt.json, buf.String())
		}
	}
}

func TestOpenContent_ProvisionsTenants(t *testing.T) {
	cfg := config.DefaultYAMLConfig()
	conn, svc, err := openContent(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("openContent: %v", err)
	}
	defer conn.Disconnect()

	ctx := context.Background()
	if env := svc.ProvisionTenant(ctx, "acme"); !env.OK() {
		t.Fatalf("provision: %s", env.Error)
	}
	specs, err := collectionSpecs(ctx, svc, "acme")
	if err != nil {
		t.Fatalf("collectionSpecs: %v", err)
	}
	if len(specs) != 0 {
		t.Errorf("specs = %d, want 0 for a new tenant", len(specs))
	}
}

func TestCollectionSpecs(t *testing.T) {
	cfg := config.DefaultYAMLConfig()
	conn, svc, err := openContent(cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("openContent: %v", err)
	}
	defer conn.Disconnect()

	ctx := context.Background()
	if env := svc.ProvisionTenant(ctx, "acme"); !env.OK() {
		t.Fatalf("provision: %s", env.Error)
	}
	for _, name := range []string{"posts", "pages"} {
		created := svc.InsertCollection(ctx, "acme", model.CollectionInput{Name: name, Type: model.CollectionMultiple}, "cli", []string{"id"})
		if !created.OK() {
			t.Fatalf("insert collection: %s", created.Error)
		}
		col := svc.InsertColumn(ctx, "acme", model.ColumnInput{
			CollectionID: created.Data[0].ID, ColumnName: "Title", FieldID: "title", Type: fieldtype.Text,
		}, "cli", nil)
		if !col.OK() {
			t.Fatalf("insert column: %s", col.Error)
		}
	}

	specs, err := collectionSpecs(ctx, svc, "acme")
	if err != nil {
		t.Fatalf("collectionSpecs: %v", err)
	}
	var got []string
	for _, spec := range specs {
		got = append(got, spec.Collection.Name)
		if len(spec.Columns) != 1 || spec.Columns[0].FieldID != "title" {
			t.Errorf("%s columns = %+v", spec.Collection.Name, spec.Columns)
		}
	}
	if diff := cmp.Diff([]string{"posts", "pages"}, got); diff != "" {
		t.Errorf("collections mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyGenerateAndList(t *testing.T) {
	var out bytes.Buffer
	if err := runKeyGenerate(&out, "ci-bot", "CI", []string{"acme"}); err != nil {
		t.Fatalf("runKeyGenerate: %v", err)
	}
	text := out.String()
	var rawKey string
	for _, line := range strings.Split(text, "\n") {
		if k, ok := strings.CutPrefix(strings.TrimSpace(line), "Key:"); ok {
			rawKey = strings.TrimSpace(k)
		}
	}
	if !strings.HasPrefix(rawKey, keyPrefix) {
		t.Fatalf("raw key %q missing prefix; output:\n%s", rawKey, text)
	}
	if !strings.Contains(text, "key_hash: "+service.HashAPIKey(rawKey)) {
		t.Errorf("snippet does not carry the key hash:\n%s", text)
	}

	out.Reset()
	keys := []config.APIKeyYAML{{Label: "CI", KeyHash: service.HashAPIKey(rawKey), UserID: "ci-bot"}}
	if err := runKeyList(&out, keys, false); err != nil {
		t.Fatalf("runKeyList: %v", err)
	}
	if !strings.Contains(out.String(), "ci-bot") || !strings.Contains(out.String(), " *") {
		t.Errorf("list output:\n%s", out.String())
	}
}
