package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/onnwee/chat-tender/currency"
)

// HandleCurrencySettings serves the singleton currency settings: GET returns
// the current snapshot, PUT persists new settings and restarts the payout
// scheduler so interval changes take effect.
func (h *Handlers) HandleCurrencySettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Settings())
	case http.MethodPut:
		var s currency.Settings
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if s.OnlineIntervalMinutes < 0 || s.OfflineIntervalMinutes < 0 {
			http.Error(w, "payout intervals must not be negative", http.StatusBadRequest)
			return
		}
		if s.Command == "" {
			s.Command = currency.DefaultSettings().Command
		}
		if s.Name == "" {
			s.Name = currency.DefaultSettings().Name
		}
		if err := h.deps.ApplySettings(r.Context(), s); err != nil {
			slog.Error("failed to apply currency settings", slog.Any("err", err))
			http.Error(w, "failed to apply settings", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, h.deps.Settings())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleConfig handles GET and PUT requests for safe configuration keys.
// Values are stored in the kv table and override environment defaults.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	// Only allow GET/PUT for known keys; secrets must not be exposed here.
	safeKeys := map[string]bool{
		"LOG_LEVEL":                       true,
		"LOG_FORMAT":                      true,
		"DATA_DIR":                        true,
		"SOUND_DIR":                       true,
		"COMMAND_PREFIX":                  true,
		"LIVE_POLL_INTERVAL_SECONDS":      true,
		"VIEWER_REFRESH_INTERVAL_SECONDS": true,
		"PAYOUT_TICK_SECONDS":             true,
		"PERSIST_INTERVAL_SECONDS":        true,
	}
	switch r.Method {
	case http.MethodGet:
		// Return safe keys with values from kv override if present
		out := map[string]string{}
		for k := range safeKeys {
			var v string
			_ = h.deps.DB.QueryRowContext(r.Context(), `SELECT value FROM kv WHERE key=$1`, "cfg:"+k).Scan(&v)
			if v == "" {
				v = os.Getenv(k)
			}
			if v != "" {
				out[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPut:
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", 400)
			return
		}
		for k, v := range body {
			if !safeKeys[k] {
				continue
			}
			if _, err := h.deps.DB.ExecContext(
				r.Context(),
				`INSERT INTO kv (key,value,updated_at) VALUES ($1,$2,NOW()) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
				"cfg:"+k,
				strings.TrimSpace(v),
			); err != nil {
				slog.Error("failed to update config", slog.String("key", k), slog.Any("err", err))
				http.Error(w, "failed to update config", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
