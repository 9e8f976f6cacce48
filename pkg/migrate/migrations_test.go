package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_catalog": {
			"CREATE TABLE IF NOT EXISTS parts",
			"CHECK (stock_quantity >= 0)",
			"CONSTRAINT ux_set_parts_set_part UNIQUE (set_id, part_id)",
			"CHECK (quantity_per_set > 0)",
			"DROP TABLE IF EXISTS parts",
		},
		"create_cart_reservations": {
			"CONSTRAINT ux_cart_reservations_customer_set UNIQUE (customer_id, set_id)",
			"idx_cart_reservations_expires_at",
		},
		"create_orders": {
			"CONSTRAINT ux_orders_order_number UNIQUE (order_number)",
			"CREATE TABLE IF NOT EXISTS order_status_history",
			"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		},
		"create_provider_offerings": {
			"CONSTRAINT ux_shared_resource_offering_part UNIQUE (offering_id, shared_part_id)",
		},
		"create_inventory_transactions": {
			"CHECK (new_stock >= 0)",
		},
		"create_outbox": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestNewSQLMigrationNeedsStatementsBeforeValidating(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 2, 8, 30, 0, 0, time.UTC)

	path, err := migrate.NewSQLMigration(dir, "Add Part Notes!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20261002083000_add_part_notes.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "no statements") {
		t.Fatalf("placeholder migration should fail validation, got %v", err)
	}

	if _, err := migrate.NewSQLMigration(dir, "add part notes", now); err == nil {
		t.Fatal("expected clash with existing file")
	}
	if _, err := migrate.NewSQLMigration(dir, "!!!", now); err == nil {
		t.Fatal("expected empty slug error")
	}

	filled := "-- +goose Up\nALTER TABLE parts ADD COLUMN notes text;\n-- +goose Down\nALTER TABLE parts DROP COLUMN notes;\n"
	if err := os.WriteFile(path, []byte(filled), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("filled migration should validate: %v", err)
	}
}

func TestValidateDirRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"bad name": {"bad.sql": "-- +goose Up\nSELECT 1;\n-- +goose Down\n"},
		"duplicate version": {
			"20260101000000_a.sql": "-- +goose Up\nSELECT 1;\n-- +goose Down\n",
			"20260101000000_b.sql": "-- +goose Up\nSELECT 1;\n-- +goose Down\n",
		},
		"down first":    {"20260101000000_a.sql": "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n"},
		"missing down":  {"20260101000000_a.sql": "-- +goose Up\nSELECT 1;\n"},
		"open block":    {"20260101000000_a.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"},
		"not timestamp": {"20261399000000_a.sql": "-- +goose Up\nSELECT 1;\n-- +goose Down\n"},
		"empty dir":     {},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range files {
				if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if err := migrate.ValidateDir(dir); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSupportedCommands(t *testing.T) {
	for _, cmd := range []string{"up", "down", "status", "redo"} {
		if !migrate.Supported(cmd) {
			t.Fatalf("expected %s to be supported", cmd)
		}
	}
	if migrate.Supported("reset") {
		t.Fatal("reset should not be forwarded")
	}
}
