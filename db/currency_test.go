package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/db"
	"github.com/onnwee/chat-tender/testutil"
)

func wipeCurrency(t *testing.T, dbx *sql.DB) {
	t.Helper()
	for _, q := range []string{`DELETE FROM currency_users`, `DELETE FROM currency_settings`} {
		if _, err := dbx.Exec(q); err != nil {
			t.Fatalf("wipe: %v", err)
		}
	}
}

func TestAccountsRoundTrip(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	wipeCurrency(t, dbx)
	ctx := context.Background()

	seen := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	in := []currency.Account{
		{Username: "alice", Points: 42.5, Hours: 1.25, LastSeen: seen, LastPayout: seen.Add(-time.Hour)},
		{Username: "bob", Points: 7, Hours: 0, LastSeen: seen, LastPayout: seen},
	}
	if err := db.SaveAccounts(ctx, dbx, in); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	out, err := db.LoadAccounts(ctx, dbx)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("loaded %d accounts, want 2", len(out))
	}
	a := out[0]
	if a.Username != "alice" || a.Points != 42.5 || a.Hours != 1.25 {
		t.Fatalf("alice = %+v", a)
	}
	if !a.LastSeen.Equal(seen) || !a.LastPayout.Equal(seen.Add(-time.Hour)) {
		t.Fatalf("alice instants = %v / %v", a.LastSeen, a.LastPayout)
	}

	// A second save with new balances updates in place.
	in[0].Points = 100
	if err := db.SaveAccounts(ctx, dbx, in[:1]); err != nil {
		t.Fatal(err)
	}
	out, err = db.LoadAccounts(ctx, dbx)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Points != 100 {
		t.Fatalf("after update: %+v", out)
	}
}

func TestSaveAccountsEmptyIsNoop(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	if err := db.SaveAccounts(context.Background(), dbx, nil); err != nil {
		t.Fatalf("SaveAccounts(nil): %v", err)
	}
}

func TestCurrencySettingsRoundTrip(t *testing.T) {
	dbx := testutil.SetupTestDB(t)
	wipeCurrency(t, dbx)
	ctx := context.Background()

	s, found, err := db.LoadCurrencySettings(ctx, dbx)
	if err != nil {
		t.Fatalf("LoadCurrencySettings: %v", err)
	}
	if found {
		t.Fatal("found a settings row in an empty table")
	}
	if s != currency.DefaultSettings() {
		t.Fatalf("missing row did not yield defaults: %+v", s)
	}

	want := currency.Settings{
		AccrualEnabled:         true,
		ShowServiceMessages:    true,
		Command:                "!gold",
		Name:                   "Gold",
		LivePayout:             2.5,
		OfflinePayout:          0.5,
		OnlineIntervalMinutes:  10,
		OfflineIntervalMinutes: 30,
		RegularBonus:           1,
		TrackOfflineHours:      true,
	}
	if err := db.SaveCurrencySettings(ctx, dbx, want); err != nil {
		t.Fatalf("SaveCurrencySettings: %v", err)
	}
	got, found, err := db.LoadCurrencySettings(ctx, dbx)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("saved settings not found")
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Upsert keeps it a singleton.
	want.Name = "Coins"
	if err := db.SaveCurrencySettings(ctx, dbx, want); err != nil {
		t.Fatal(err)
	}
	var count int
	if err := dbx.QueryRow(`SELECT COUNT(*) FROM currency_settings`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("settings rows = %d, want 1", count)
	}
}
