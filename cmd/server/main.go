package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"eventu/internal/config"
	"eventu/internal/events"
	"eventu/internal/handlers"
	"eventu/internal/middleware"
	"eventu/internal/models"
	"eventu/internal/services"
	"eventu/internal/storage"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Durable storage: survives restarts, holds session keys and cart
	// snapshots per client.
	durable, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to open storage:", err)
	}
	defer durable.Close()
	log.Printf("Storage opened at %s", cfg.Storage.Path)

	// Session-scoped storage: holds the cart snapshot backup; scopes die
	// with the browser session cookie.
	scratch := storage.NewMemoryScoper()

	cookieStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}

	bus := events.NewBus()
	bus.Subscribe(events.SessionExpired, func(e events.Event) {
		log.Printf("session expired for client %s: %s", e.ClientID, e.Reason)
	})
	bus.Subscribe(events.SessionWarning, func(e events.Event) {
		log.Printf("session warning for client %s: %d minutes remaining", e.ClientID, e.RemainingMinutes)
	})

	backend := services.NewHTTPBackend(services.BackendConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	})

	carts := services.NewCartService(services.CartConfig{
		TaxRate:     cfg.Cart.TaxRate,
		FeePerUnit:  cfg.Cart.FeeCents,
		DiscountSet: defaultDiscountRules(),
	})

	monitorConfig := services.MonitorConfig{
		TabTimeout:  cfg.Session.TabTimeout(),
		IdleTimeout: cfg.Session.IdleTimeout(),
		WarningLead: cfg.Session.WarningLead(),
	}
	monitors := services.NewMonitorRegistry(func(clientID string) *services.TabActivityMonitor {
		store := durable.Scope(clientID)
		sessionSvc := services.NewSessionService(store, bus, clientID)
		return services.NewTabActivityMonitor(monitorConfig, sessionSvc, backend, bus, store, clientID, nil)
	})

	gate := middleware.NewAuthGate(
		durable,
		scratch,
		cookieStore,
		bus,
		carts,
		backend,
		cfg.Session.SnapshotTTL(),
		cfg.Session.TokenVerifyInterval(),
	)

	authHandler := handlers.NewAuthHandler(backend, carts, bus, cfg.Session.SnapshotTTL())
	cartHandler := handlers.NewCartHandler(carts)
	activityHandler := handlers.NewActivityHandler(monitors)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.SecureHeaders)
	r.Use(gate.WithClient)

	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)
	r.Get("/me", authHandler.Me)

	r.Post("/session/activity", activityHandler.Report)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.ViewCart)
		r.Post("/items", cartHandler.AddItem)
		r.Patch("/items/{itemID}", cartHandler.UpdateItem)
		r.Delete("/items/{itemID}", cartHandler.RemoveItem)
		r.Post("/clear", cartHandler.ClearCart)
		r.Post("/discount", cartHandler.ApplyDiscount)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAuth)
		r.Use(gate.ConfirmRedirect)
		r.Post("/checkout", cartHandler.Checkout)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.RequireAuth)
		r.Get("/carrito/confirmar", authHandler.Confirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(gate.RequireRole(models.RoleAdmin))
		r.Get("/admin/sessions", activityHandler.ActiveSessions)
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal("Server failed:", err)
	}
}

// defaultDiscountRules seeds the local discount rule set used when the
// backend has not pushed one
func defaultDiscountRules() []models.DiscountRule {
	return []models.DiscountRule{
		{Code: "BIENVENIDO10", Percent: 10, MinSubtotal: 5000},
		{Code: "EVENTU500", Amount: 500, MinSubtotal: 2000},
	}
}
