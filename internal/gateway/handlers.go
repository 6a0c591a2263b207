// Package gateway exposes the command dispatcher and a small admin API over
// HTTP. It is the transport stand-in: it delivers (caller, command, args)
// tuples and renders structured results as JSON.
package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quintela/searchledger/internal/command"
	"github.com/quintela/searchledger/internal/entitlement"
	"github.com/quintela/searchledger/internal/logging"
	"github.com/quintela/searchledger/internal/version"
)

// CommandRequest is the wire form of one inbound command.
type CommandRequest struct {
	CallerID    int64    `json:"caller_id"`
	Handle      string   `json:"handle,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Command     string   `json:"command"`
	Args        []string `json:"args,omitempty"`
}

func statusForKind(kind command.Kind) int {
	switch kind {
	case command.KindForbidden:
		return http.StatusForbidden
	case command.KindBadArguments:
		return http.StatusBadRequest
	case command.KindStorageError:
		return http.StatusInternalServerError
	default:
		// Eligibility and funding failures are expected outcomes, not
		// transport errors; the result kind carries the distinction.
		return http.StatusOK
	}
}

// CommandHandler accepts a command tuple and returns the dispatch result.
func CommandHandler(dispatcher *command.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.CallerID == 0 || req.Command == "" {
			http.Error(w, `{"error": "caller_id and command are required"}`, http.StatusBadRequest)
			return
		}

		commandID := r.Header.Get("X-Request-ID")
		if commandID == "" {
			commandID = logging.GenerateCommandID()
		}
		ctx := logging.WithCommandID(r.Context(), commandID)

		caller := command.Caller{ID: req.CallerID, Handle: req.Handle, DisplayName: req.DisplayName}
		result := dispatcher.Dispatch(ctx, caller, req.Command, req.Args)
		log.Printf("[gateway] %s caller=%d command=%s kind=%s", commandID, req.CallerID, req.Command, result.Kind)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-ID", commandID)
		w.WriteHeader(statusForKind(result.Kind))
		json.NewEncoder(w).Encode(result)
	}
}

// StatsHandler returns the admin system snapshot as JSON.
func StatsHandler(svc *entitlement.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.SystemStats(time.Now())
		if err != nil {
			log.Printf("[gateway] stats: %v", err)
			http.Error(w, `{"error": "stats unavailable"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{
			"active_accounts":  stats.ActiveAccounts,
			"searches_today":   stats.SearchesToday,
			"price_per_search": stats.Price,
		})
	}
}

// AccountHandler returns one account as JSON.
func AccountHandler(svc *entitlement.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, `{"error": "invalid account id"}`, http.StatusBadRequest)
			return
		}
		account, err := svc.GetProfile(id)
		if err != nil {
			if errors.Is(err, entitlement.ErrNotRegistered) {
				http.Error(w, `{"error": "account not found"}`, http.StatusNotFound)
				return
			}
			log.Printf("[gateway] account %d: %v", id, err)
			http.Error(w, `{"error": "account unavailable"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(account)
	}
}

// PriceHandler returns the current per-search price.
func PriceHandler(svc *entitlement.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		price, err := svc.GetPrice()
		if err != nil {
			log.Printf("[gateway] price: %v", err)
			http.Error(w, `{"error": "price unavailable"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"price_per_search": price})
	}
}

// HealthzHandler reports liveness and build info.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	}
}

// OptionalAdminAuth gates a route behind HTTP basic auth when password is
// set; an empty password leaves the route open (first-run scenario).
func OptionalAdminAuth(password string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, pass, ok := r.BasicAuth()
			if !ok || pass != password {
				w.Header().Set("WWW-Authenticate", `Basic realm="Searchledger Admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
