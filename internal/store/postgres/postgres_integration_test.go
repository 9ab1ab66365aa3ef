package postgres

import (
	"os"
	"testing"

	"github.com/dwarpal-ai/dwarpal/internal/store"
	"github.com/dwarpal-ai/dwarpal/internal/store/storetest"
)

func makePGStore(t *testing.T) store.Store {
	t.Helper()
	dsn := os.Getenv("DOORBELL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DOORBELL_TEST_POSTGRES_DSN not set; skipping postgres store integration test")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return NewWithDB(db)
}

func TestPostgresStoreCompliance(t *testing.T) {
	storetest.Run(t, makePGStore)
}
