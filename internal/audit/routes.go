package audit

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meganet/portal/internal/logging"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// RegisterRoutes mounts the read-only audit trail under /audit.
func RegisterRoutes(r chi.Router, store *Store, log *logging.Logger) {
	if log == nil {
		log = logging.NewNop()
	}
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", listEntriesHandler(store, log))
		r.Get("/{id}", getEntryHandler(store, log))
	})
}

func listEntriesHandler(store *Store, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r.URL.Query())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			log.Error("audit query failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func getEntryHandler(store *Store, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit entry not found"})
		case err != nil:
			log.Error("audit lookup failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		default:
			writeJSON(w, http.StatusOK, entry)
		}
	}
}

// parseFilter reads actor, scope, scope_id, action, since, until, limit and
// offset. Times are RFC 3339. The page size defaults to 100 and is capped
// at 500.
func parseFilter(q url.Values) (QueryFilter, error) {
	f := QueryFilter{
		ActorID: q.Get("actor"),
		ScopeID: q.Get("scope_id"),
		Action:  Action(q.Get("action")),
		Limit:   defaultPageSize,
	}

	switch s := Scope(q.Get("scope")); s {
	case "", ScopeStep, ScopeTopic, ScopeQuestion:
		f.Scope = s
	default:
		return f, fmt.Errorf("unknown scope %q", s)
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("%s must be an RFC 3339 time", p.name)
		}
		*p.dst = &t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
