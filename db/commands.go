package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/chat-tender/command"
)

// LoadCommands returns every stored command definition in display order.
func LoadCommands(ctx context.Context, dbx *sql.DB) ([]command.Definition, error) {
	rows, err := dbx.QueryContext(ctx, `
		SELECT command, permission, info, group_name, response,
		       cooldown_seconds, user_cooldown_seconds, cost, count,
		       enabled, sound_file, volume
		FROM commands ORDER BY position, command`)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var defs []command.Definition
	for rows.Next() {
		var d command.Definition
		var perm string
		if err := rows.Scan(&d.Command, &perm, &d.Info, &d.Group, &d.Response,
			&d.CooldownSeconds, &d.UserCooldownSeconds, &d.Cost, &d.Count,
			&d.Enabled, &d.SoundFile, &d.Volume); err != nil {
			return nil, fmt.Errorf("scan command row: %w", err)
		}
		d.Permission = command.ParseLevel(perm)
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// UpsertCommand inserts or updates a single command definition keyed by its
// normalized name. Position is preserved on update and appended on insert.
func UpsertCommand(ctx context.Context, dbx *sql.DB, d *command.Definition) error {
	_, err := dbx.ExecContext(ctx, `
		INSERT INTO commands(key, command, permission, info, group_name, response,
		                     cooldown_seconds, user_cooldown_seconds, cost, count,
		                     enabled, sound_file, volume, position, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,
		       (SELECT COALESCE(MAX(position),0)+1 FROM commands), NOW())
		ON CONFLICT(key) DO UPDATE SET
		  command=EXCLUDED.command,
		  permission=EXCLUDED.permission,
		  info=EXCLUDED.info,
		  group_name=EXCLUDED.group_name,
		  response=EXCLUDED.response,
		  cooldown_seconds=EXCLUDED.cooldown_seconds,
		  user_cooldown_seconds=EXCLUDED.user_cooldown_seconds,
		  cost=EXCLUDED.cost,
		  count=EXCLUDED.count,
		  enabled=EXCLUDED.enabled,
		  sound_file=EXCLUDED.sound_file,
		  volume=EXCLUDED.volume,
		  updated_at=NOW()`,
		d.Key(), d.Command, d.Permission.String(), d.Info, d.Group, d.Response,
		d.CooldownSeconds, d.UserCooldownSeconds, d.Cost, d.Count,
		d.Enabled, d.SoundFile, d.Volume)
	return err
}

// SaveCommandCount persists only the usage counter, the one field that
// changes on the hot path.
func SaveCommandCount(ctx context.Context, dbx *sql.DB, key string, count int) error {
	_, err := dbx.ExecContext(ctx,
		`UPDATE commands SET count=$2, updated_at=NOW() WHERE key=$1`, key, count)
	return err
}

// DeleteCommand removes a command by its normalized key. Returns sql.ErrNoRows
// when nothing matched.
func DeleteCommand(ctx context.Context, dbx *sql.DB, key string) error {
	res, err := dbx.ExecContext(ctx, `DELETE FROM commands WHERE key=$1`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
