package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/db"
	"github.com/onnwee/chat-tender/testutil"
)

func TestMigrateIdempotent(t *testing.T) {
	dbx := testutil.SetupTestDB(t) // already migrated once
	for i := 0; i < 2; i++ {
		if err := db.Migrate(context.Background(), dbx); err != nil {
			t.Fatalf("Migrate pass %d: %v", i+2, err)
		}
	}
	// All tables usable after repeated migration.
	for _, table := range []string{"commands", "currency_users", "currency_settings", "oauth_tokens", "kv"} {
		var n int
		if err := dbx.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Errorf("table %s unusable: %v", table, err)
		}
	}
}

func TestOAuthTokenRoundTrip(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	ctx := context.Background()
	if _, err := dbx.Exec(`DELETE FROM oauth_tokens`); err != nil {
		t.Fatal(err)
	}

	expiry := time.Now().Add(3 * time.Hour).UTC().Truncate(time.Second)
	if err := db.UpsertOAuthToken(ctx, dbx, "twitch", "access-1", "refresh-1", expiry, "chat:read chat:edit"); err != nil {
		t.Fatalf("UpsertOAuthToken: %v", err)
	}

	access, refresh, gotExpiry, scope, err := db.GetOAuthToken(ctx, dbx, "twitch")
	if err != nil {
		t.Fatalf("GetOAuthToken: %v", err)
	}
	if access != "access-1" || refresh != "refresh-1" || scope != "chat:read chat:edit" {
		t.Fatalf("round trip = %q %q %q", access, refresh, scope)
	}
	if !gotExpiry.Equal(expiry) {
		t.Fatalf("expiry = %v, want %v", gotExpiry, expiry)
	}

	// Re-upsert replaces the provider's row.
	if err := db.UpsertOAuthToken(ctx, dbx, "twitch", "access-2", "refresh-2", expiry, "chat:read"); err != nil {
		t.Fatal(err)
	}
	access, _, _, _, err = db.GetOAuthToken(ctx, dbx, "twitch")
	if err != nil {
		t.Fatal(err)
	}
	if access != "access-2" {
		t.Fatalf("access after update = %q", access)
	}

	// Unknown providers come back as zero values, not an error.
	access, _, _, _, err = db.GetOAuthToken(ctx, dbx, "missing")
	if err != nil {
		t.Fatalf("missing provider errored: %v", err)
	}
	if access != "" {
		t.Fatalf("missing provider returned %q", access)
	}
}
