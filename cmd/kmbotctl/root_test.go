package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"kmbot/internal/core"
	"kmbot/internal/notify"
	"kmbot/internal/storage"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "kmbot.db")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", db)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")
	for _, key := range []string{"AMQP_URL", "GOOGLE_SPREADSHEET_ID", "TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_WHATSAPP_FROM", "TWILIO_VALIDATE_SIGNATURE"} {
		t.Setenv(key, "")
	}
	return db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if strings.TrimSpace(out) != "schema version 2 (dirty=false)" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSummary(t *testing.T) {
	db := setupEnv(t)

	repo, err := storage.NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	day := core.NewDate(2024, 5, 10)
	if _, err := repo.AppendRide(context.Background(), "whatsapp:+55", day, 42.5); err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo.Close()

	out, err := run(t, "summary", "--user", "whatsapp:+55", "--date", "2024-05-10")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.HasPrefix(out, "📊 Resumo de 2024-05-10") || !strings.Contains(out, "R$ 42,50") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestSummaryArguments(t *testing.T) {
	setupEnv(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing user", []string{"summary"}, "--user is required"},
		{"bad date", []string{"summary", "--user", "u", "--date", "2024-13-01"}, "parse --date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSendWithoutTwilio(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "send", "--user", "whatsapp:+55")
	if !errors.Is(err, notify.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSyncRequiresSpreadsheet(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "sync"); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected spreadsheet error, got %v", err)
	}
}
