package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/quintela/searchledger/internal/command"
	"github.com/quintela/searchledger/internal/db"
	"github.com/quintela/searchledger/internal/db/models"
	"github.com/quintela/searchledger/internal/entitlement"
	"gorm.io/gorm"
)

const adminID int64 = 9000

func newTestRouter(t *testing.T, adminPassword string) *chi.Mux {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Account{}, &models.Setting{}, &models.SearchLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store := db.NewStore(gdb, 5)
	svc := entitlement.NewService(store, entitlement.Config{
		DefaultPrice:   5,
		InitialCredits: 100,
		ValidityDays:   30,
		SearchTimeout:  5 * time.Second,
	}, func(ctx context.Context, term string) (int, error) { return 2, nil })
	dispatcher := command.NewDispatcher(svc, adminID, nil)

	r := chi.NewRouter()
	r.Post("/commands", CommandHandler(dispatcher))
	r.Route("/api", func(r chi.Router) {
		r.Use(OptionalAdminAuth(adminPassword))
		r.Get("/stats", StatsHandler(svc))
		r.Get("/accounts/{id}", AccountHandler(svc))
		r.Get("/price", PriceHandler(svc))
	})
	r.Get("/healthz", HealthzHandler())
	return r
}

func postCommand(t *testing.T, r http.Handler, req CommandRequest) (*httptest.ResponseRecorder, command.Result) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body)))

	var result command.Result
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
	}
	return rec, result
}

func TestCommandHandlerStart(t *testing.T) {
	r := newTestRouter(t, "")

	rec, result := postCommand(t, r, CommandRequest{
		CallerID:    1001,
		Handle:      "alice",
		DisplayName: "Alice",
		Command:     "start",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if result.Kind != command.KindOK {
		t.Fatalf("kind = %s, want ok (%s)", result.Kind, result.Message)
	}
	if result.Profile == nil || result.Profile.Credits != 100 {
		t.Fatalf("expected a new profile with 100 credits, got %+v", result.Profile)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id header")
	}
}

func TestCommandHandlerStatusMapping(t *testing.T) {
	r := newTestRouter(t, "")

	// Forbidden admin command.
	rec, result := postCommand(t, r, CommandRequest{CallerID: 1001, Command: "setprice", Args: []string{"10"}})
	if rec.Code != http.StatusForbidden {
		t.Errorf("forbidden status = %d, want 403", rec.Code)
	}
	if result.Kind != command.KindForbidden {
		t.Errorf("kind = %s, want forbidden", result.Kind)
	}

	// Bad argument shape.
	rec, _ = postCommand(t, r, CommandRequest{CallerID: adminID, Command: "setprice"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad args status = %d, want 400", rec.Code)
	}

	// Expected user-facing outcome rides a 200.
	rec, result = postCommand(t, r, CommandRequest{CallerID: 1001, Command: "perfil"})
	if rec.Code != http.StatusOK {
		t.Errorf("not-registered status = %d, want 200", rec.Code)
	}
	if result.Kind != command.KindNotRegistered {
		t.Errorf("kind = %s, want not_registered", result.Kind)
	}
}

func TestCommandHandlerRejectsBadBody(t *testing.T) {
	r := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec, _ = postCommand(t, r, CommandRequest{Command: "start"}) // missing caller_id
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing caller_id", rec.Code)
	}
}

func TestCommandHandlerKeepsRequestID(t *testing.T) {
	r := newTestRouter(t, "")

	body, _ := json.Marshal(CommandRequest{CallerID: 1001, Command: "start"})
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	req.Header.Set("X-Request-ID", "abc12345")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc12345" {
		t.Errorf("request id = %q, want abc12345", got)
	}
}

func TestAdminAuthGate(t *testing.T) {
	r := newTestRouter(t, "hunter2")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without auth = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("admin", "hunter2")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with auth = %d, want 200", rec.Code)
	}

	var stats map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats["price_per_search"] != 5 {
		t.Errorf("price = %d, want 5", stats["price_per_search"])
	}
}

func TestAccountEndpoint(t *testing.T) {
	r := newTestRouter(t, "")
	postCommand(t, r, CommandRequest{CallerID: 1001, Handle: "alice", Command: "start"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/1001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var account models.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if account.Credits != 100 {
		t.Errorf("credits = %d, want 100", account.Credits)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/404", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/bob", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric id", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status field = %q, want ok", payload["status"])
	}
}
