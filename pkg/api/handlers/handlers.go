package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/registry"
	"github.com/cbodonnell/cardstage/pkg/repositories"
	"github.com/cbodonnell/cardstage/pkg/repositories/models"
	"github.com/cbodonnell/cardstage/pkg/version"
	"github.com/gorilla/mux"
)

// MaxListLimit caps the limit query parameter of list endpoints.
const MaxListLimit = 500

type health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, health{Status: "ok", Version: version.Get()})
	}
}

func HandleListSessions(reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := reg.List(r.Context())
		if err != nil {
			log.Error("failed to list sessions: %v", err)
			http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []registry.SessionInfo{}
		}
		writeJSON(w, sessions)
	}
}

func HandleGetSession(reg registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["sessionID"]
		info, err := reg.Get(r.Context(), id)
		if err != nil {
			if registry.IsNotFound(err) {
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get session %s: %v", id, err)
			http.Error(w, "Failed to get session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, info)
	}
}

func HandleListMatches(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := repositories.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > MaxListLimit {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		matches, err := repository.ListMatches(r.Context(), limit)
		if err != nil {
			log.Error("failed to list matches: %v", err)
			http.Error(w, "Failed to list matches", http.StatusInternalServerError)
			return
		}
		if matches == nil {
			matches = []*models.Match{}
		}
		writeJSON(w, matches)
	}
}

func HandleGetMatch(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["sessionID"]
		match, err := repository.GetMatch(r.Context(), id)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Match not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get match %s: %v", id, err)
			http.Error(w, "Failed to get match", http.StatusInternalServerError)
			return
		}
		writeJSON(w, match)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
