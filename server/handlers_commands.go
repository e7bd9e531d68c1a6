package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/chat-tender/command"
	dbpkg "github.com/onnwee/chat-tender/db"
)

// HandleCommands serves the command collection: GET lists, POST creates or
// replaces a definition.
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Registry.List())
	case http.MethodPost:
		var def command.Definition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if command.NormalizeKey(def.Command) == "" {
			http.Error(w, "command name is required", http.StatusBadRequest)
			return
		}
		if def.Volume <= 0 || def.Volume > 100 {
			def.Volume = 100
		}
		if err := dbpkg.UpsertCommand(r.Context(), h.deps.DB, &def); err != nil {
			slog.Error("failed to persist command", slog.String("key", def.Key()), slog.Any("err", err))
			http.Error(w, "failed to persist command", http.StatusInternalServerError)
			return
		}
		h.deps.Registry.Upsert(def)
		if h.deps.ResetCooldowns != nil {
			h.deps.ResetCooldowns(def.Key())
		}
		writeJSON(w, http.StatusOK, def)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCommandsDispatcher routes /commands/{key} to per-command operations.
func (h *Handlers) HandleCommandsDispatcher(w http.ResponseWriter, r *http.Request) {
	key := command.NormalizeKey(strings.TrimPrefix(r.URL.Path, "/commands/"))
	if key == "" || strings.Contains(key, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		def, ok := h.deps.Registry.Get(key)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, def)
	case http.MethodPut:
		var def command.Definition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if def.Key() != key {
			http.Error(w, "command name does not match path", http.StatusBadRequest)
			return
		}
		if _, ok := h.deps.Registry.Get(key); !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := dbpkg.UpsertCommand(r.Context(), h.deps.DB, &def); err != nil {
			slog.Error("failed to persist command", slog.String("key", key), slog.Any("err", err))
			http.Error(w, "failed to persist command", http.StatusInternalServerError)
			return
		}
		h.deps.Registry.Upsert(def)
		if h.deps.ResetCooldowns != nil {
			h.deps.ResetCooldowns(key)
		}
		writeJSON(w, http.StatusOK, def)
	case http.MethodDelete:
		if err := dbpkg.DeleteCommand(r.Context(), h.deps.DB, key); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			slog.Error("failed to delete command", slog.String("key", key), slog.Any("err", err))
			http.Error(w, "failed to delete command", http.StatusInternalServerError)
			return
		}
		h.deps.Registry.Delete(key)
		if h.deps.ResetCooldowns != nil {
			h.deps.ResetCooldowns(key)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
