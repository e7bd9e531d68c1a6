package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/chat-tender/currency"
	dbpkg "github.com/onnwee/chat-tender/db"
)

// HandleUsers lists every currency account.
func (h *Handlers) HandleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Ledger.Snapshot())
}

// HandleUsersDispatcher routes /users/{name} and /users/{name}/{action}.
func (h *Handlers) HandleUsersDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	name, action, _ := strings.Cut(rest, "/")
	username := currency.Normalize(name)
	if username == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		acct, ok := h.deps.Ledger.Get(username)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	case "credit", "debit":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Amount float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 {
			http.Error(w, "amount must be a positive number", http.StatusBadRequest)
			return
		}
		if action == "credit" {
			h.deps.Ledger.Credit(username, body.Amount)
		} else if ok := h.deps.Ledger.Debit(username, body.Amount); !ok {
			http.Error(w, "insufficient balance", http.StatusConflict)
			return
		}
		acct := h.deps.Ledger.GetOrCreate(username)
		if err := dbpkg.SaveAccounts(r.Context(), h.deps.DB, []currency.Account{acct}); err != nil {
			slog.Error("failed to persist account", slog.String("username", username), slog.Any("err", err))
			http.Error(w, "failed to persist account", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}
