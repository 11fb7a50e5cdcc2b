package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestBuildEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := build(&buf, "nftfid", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("pool created", "op", "create_pool")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key, want := range map[string]string{"message": "pool created", "severity": "INFO", "service": "nftfid", "env": "test", "op": "create_pool"} {
		if entry[key] != want {
			t.Fatalf("%s: expected %q, got %v", key, want, entry[key])
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("timestamp missing")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("warning") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("hmac_secret", "abc").Value.String(); got != RedactedValue {
		t.Fatalf("secret not masked: %s", got)
	}
	if got := MaskField("op", "repay_loan").Value.String(); got != "repay_loan" {
		t.Fatalf("allowlisted key masked: %s", got)
	}
}

func TestMaskDSN(t *testing.T) {
	masked := MaskDSN("postgres://audit:hunter2@db:5432/nftfi?sslmode=disable")
	if strings.Contains(masked, "hunter2") || !strings.Contains(masked, "audit") {
		t.Fatalf("unexpected masked dsn %s", masked)
	}
	if MaskDSN("sqlite:audit.db") != "sqlite:audit.db" {
		t.Fatalf("sqlite dsn should be kept")
	}
	if MaskDSN("host=db password=x") != RedactedValue {
		t.Fatalf("keyword dsn should be redacted")
	}
}
