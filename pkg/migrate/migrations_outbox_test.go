package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Luis3c4/IMEI/pkg/migrate"
)

func TestOutboxMigrationContainsSchemas(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_outbox_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE event_type_enum AS ENUM ('device_reconciled', 'item_status_changed')",
		"CREATE TYPE aggregate_type_enum AS ENUM ('product_item', 'device')",
		"CREATE TYPE outbox_dlq_error_reason_enum AS ENUM ('max_attempts', 'non_retryable')",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TABLE IF NOT EXISTS outbox_dlqs",
		"WHERE published_at IS NULL",
		"DROP TABLE IF EXISTS outbox_dlqs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations should validate: %v", err)
	}
}
