package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/chat-tender/currency"
)

// LoadAccounts returns every stored currency account.
func LoadAccounts(ctx context.Context, dbx *sql.DB) ([]currency.Account, error) {
	rows, err := dbx.QueryContext(ctx, `
		SELECT username, points, hours, last_seen, last_payout
		FROM currency_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query currency users: %w", err)
	}
	defer rows.Close()

	var accounts []currency.Account
	for rows.Next() {
		var a currency.Account
		var lastSeen, lastPayout sql.NullTime
		if err := rows.Scan(&a.Username, &a.Points, &a.Hours, &lastSeen, &lastPayout); err != nil {
			return nil, fmt.Errorf("scan currency user row: %w", err)
		}
		if lastSeen.Valid {
			a.LastSeen = lastSeen.Time
		}
		if lastPayout.Valid {
			a.LastPayout = lastPayout.Time
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SaveAccounts upserts the given accounts in a single transaction so a payout
// snapshot lands atomically.
func SaveAccounts(ctx context.Context, dbx *sql.DB, accounts []currency.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	tx, err := dbx.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO currency_users(username, points, hours, last_seen, last_payout, updated_at)
		VALUES($1,$2,$3,$4,$5,NOW())
		ON CONFLICT(username) DO UPDATE SET
		  points=EXCLUDED.points,
		  hours=EXCLUDED.hours,
		  last_seen=EXCLUDED.last_seen,
		  last_payout=EXCLUDED.last_payout,
		  updated_at=NOW()`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range accounts {
		if _, err := stmt.ExecContext(ctx, a.Username, a.Points, a.Hours, a.LastSeen, a.LastPayout); err != nil {
			return fmt.Errorf("upsert account %q: %w", a.Username, err)
		}
	}
	return tx.Commit()
}

// LoadCurrencySettings reads the singleton settings row. Returns defaults and
// false when no row exists yet.
func LoadCurrencySettings(ctx context.Context, dbx *sql.DB) (currency.Settings, bool, error) {
	s := currency.DefaultSettings()
	row := dbx.QueryRowContext(ctx, `
		SELECT accrual_enabled, show_service_messages, command, name,
		       live_payout, offline_payout, online_interval_minutes,
		       offline_interval_minutes, regular_bonus, track_offline_hours
		FROM currency_settings WHERE id = 1`)
	err := row.Scan(&s.AccrualEnabled, &s.ShowServiceMessages, &s.Command, &s.Name,
		&s.LivePayout, &s.OfflinePayout, &s.OnlineIntervalMinutes,
		&s.OfflineIntervalMinutes, &s.RegularBonus, &s.TrackOfflineHours)
	if err == sql.ErrNoRows {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("scan currency settings: %w", err)
	}
	return s, true, nil
}

// SaveCurrencySettings upserts the singleton settings row.
func SaveCurrencySettings(ctx context.Context, dbx *sql.DB, s currency.Settings) error {
	_, err := dbx.ExecContext(ctx, `
		INSERT INTO currency_settings(id, accrual_enabled, show_service_messages, command, name,
		                              live_payout, offline_payout, online_interval_minutes,
		                              offline_interval_minutes, regular_bonus, track_offline_hours, updated_at)
		VALUES(1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
		ON CONFLICT(id) DO UPDATE SET
		  accrual_enabled=EXCLUDED.accrual_enabled,
		  show_service_messages=EXCLUDED.show_service_messages,
		  command=EXCLUDED.command,
		  name=EXCLUDED.name,
		  live_payout=EXCLUDED.live_payout,
		  offline_payout=EXCLUDED.offline_payout,
		  online_interval_minutes=EXCLUDED.online_interval_minutes,
		  offline_interval_minutes=EXCLUDED.offline_interval_minutes,
		  regular_bonus=EXCLUDED.regular_bonus,
		  track_offline_hours=EXCLUDED.track_offline_hours,
		  updated_at=NOW()`,
		s.AccrualEnabled, s.ShowServiceMessages, s.Command, s.Name,
		s.LivePayout, s.OfflinePayout, s.OnlineIntervalMinutes,
		s.OfflineIntervalMinutes, s.RegularBonus, s.TrackOfflineHours)
	return err
}
