package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTenantSubscriptionsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_tenant_subscriptions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no tenant subscriptions migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE subscription_status AS ENUM ('active', 'cancelled', 'frozen')",
		"CREATE TABLE IF NOT EXISTS tenant_subscriptions",
		"CHECK (usage_limit >= 0)",
		"CHECK (current_usage >= 0)",
		"DROP TABLE IF EXISTS tenant_subscriptions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWebhookDeliveriesMigrationEnforcesUniqueWebhookID(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_webhook_deliveries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no webhook deliveries migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS webhook_deliveries",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_webhook_deliveries_webhook_id",
		"DROP TABLE IF EXISTS webhook_deliveries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
