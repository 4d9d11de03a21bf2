package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestMigrationsCarryPaymentConstraints(t *testing.T) {
	checks := map[string][]string{
		"*_create_order_items.sql": {
			"CHECK (disbursement_status IN ('none', 'pending', 'processing', 'completed', 'failed'))",
			"CHECK (rating BETWEEN 1 AND 5)",
			"DROP TABLE IF EXISTS order_items",
		},
		"*_create_collections.sql": {
			"CONSTRAINT collections_checkout_request_id_key UNIQUE (checkout_request_id)",
		},
		"*_create_disbursements.sql": {
			"CONSTRAINT disbursements_originator_conversation_id_key UNIQUE (originator_conversation_id)",
			"CHECK (status IN ('initiated', 'completed', 'failed', 'timeout'))",
		},
	}

	for pattern, wants := range checks {
		matches, err := fs.Glob(embedded, filepath.ToSlash(filepath.Join(embeddedDir, pattern)))
		if err != nil {
			t.Fatalf("glob %s: %v", pattern, err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
		}
		data, err := fs.ReadFile(embedded, matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		for _, want := range wants {
			if !strings.Contains(string(data), want) {
				t.Fatalf("%s missing %q", matches[0], want)
			}
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}

	bad := filepath.Join(dir, "not_a_migration.sql")
	if err := os.WriteFile(bad, []byte("-- +goose Up"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestCreateSQLMigrationRejectsReusedName(t *testing.T) {
	dir := t.TempDir()
	first := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if _, err := createSQLMigration(dir, "payout_index", func() time.Time { return first }); err != nil {
		t.Fatalf("create migration: %v", err)
	}

	later := first.Add(time.Hour)
	if _, err := createSQLMigration(dir, "Payout Index", func() time.Time { return later }); err == nil {
		t.Fatal("expected reused name to be rejected")
	}
	if _, err := createSQLMigration(dir, "!!!", func() time.Time { return later }); err == nil {
		t.Fatal("expected empty sanitized name to be rejected")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("20260301090300"); err != nil || v != 20260301090300 {
		t.Fatalf("expected version parsed, got %d %v", v, err)
	}
	for _, bad := range []string{"", "2026", "20260301O90300", "-20260301090300"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"20260301090000_orders.sql": "-- +goose Up\n",
		"20260301090000_items.sql":  "-- +goose Up\n-- +goose Down\n",
		"Bad-Name.sql":              "",
		"notes.txt":                 "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	err := ValidateDir(dir)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"missing \"-- +goose Down\"", "duplicate migration version", "invalid migration filename"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
