//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/database"
)

func TestStoreDB_MigrationsApplied(t *testing.T) {
	store := GetStoreDB(t)
	ctx := context.Background()

	for _, table := range []string{"data_sources", "conversations", "messages", "queries", "visualizations"} {
		var exists bool
		err := store.DB.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
			table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to look up %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s missing after migrations", table)
		}
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	store := GetStoreDB(t)

	if err := database.RunMigrations(store.DB, MigrationsPath(), zap.NewNop()); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
}
