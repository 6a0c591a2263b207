package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/quintela/searchledger/internal/command"
	"github.com/quintela/searchledger/internal/config"
	"github.com/quintela/searchledger/internal/db"
	"github.com/quintela/searchledger/internal/entitlement"
	"github.com/quintela/searchledger/internal/gateway"
	"github.com/quintela/searchledger/internal/search"
	"github.com/quintela/searchledger/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DatabasePath, cfg.PricePerSearch)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	store := db.NewStore(database, cfg.PricePerSearch)

	// Channel search upstream
	if cfg.ChannelAPIURL == "" {
		log.Printf("[main] CHANNEL_API_URL is not set; live searches will fail and be refunded")
	}
	searchClient := search.NewClient(cfg.ChannelAPIURL, cfg.ChannelAPIToken)

	// Entitlement service and command dispatcher
	svc := entitlement.NewService(store, entitlement.Config{
		DefaultPrice:   cfg.PricePerSearch,
		InitialCredits: cfg.InitialCredits,
		ValidityDays:   cfg.ValidityDays,
		SearchTimeout:  cfg.SearchTimeout,
	}, searchClient.Search)
	dispatcher := command.NewDispatcher(svc, cfg.AdminID, nil)

	// Create router
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Command webhook: the transport delivers (caller, command, args) here
	r.Post("/commands", gateway.CommandHandler(dispatcher))

	// Admin API (protected if ADMIN_PASSWORD is set)
	r.Route("/api", func(r chi.Router) {
		r.Use(gateway.OptionalAdminAuth(cfg.AdminPassword))
		r.Get("/stats", gateway.StatsHandler(svc))
		r.Get("/accounts/{id}", gateway.AccountHandler(svc))
		r.Get("/price", gateway.PriceHandler(svc))
	})

	r.Get("/healthz", gateway.HealthzHandler())

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("[main] searchledger %s listening on %s (db: %s)", version.Version, addr, cfg.DatabasePath)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
