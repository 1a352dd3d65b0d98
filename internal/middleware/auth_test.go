package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventu/internal/events"
	"eventu/internal/models"
	"eventu/internal/services"
	"eventu/internal/storage"

	"github.com/gorilla/sessions"
)

func newTestGate(carts *services.CartService, backend services.BackendClient) (*AuthGate, *storage.MemoryScoper) {
	durable := storage.NewMemoryScoper()
	scratch := storage.NewMemoryScoper()
	cookies := sessions.NewCookieStore([]byte("test-secret"))
	bus := events.NewBus()
	gate := NewAuthGate(durable, scratch, cookies, bus, carts, backend, 24*time.Hour, 10*time.Minute)
	return gate, durable
}

func newTestCarts() *services.CartService {
	return services.NewCartService(services.CartConfig{TaxRate: 0.10, FeePerUnit: 100})
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func authedContext(durable storage.Store, role models.UserRole) *ClientContext {
	cc := NewClientContext("client-1", durable, storage.NewMemoryStore(), "", nil)
	cc.Session = models.Session{
		IsAuthenticated: true,
		Token:           "token-1",
		User: &models.UserRecord{
			ID:    "u1",
			Name:  "Ana Torres",
			Email: "ana@example.com",
			Role:  role,
		},
	}
	return cc
}

func TestWithClient_MintsCookiesOnFirstContact(t *testing.T) {
	gate, _ := newTestGate(newTestCarts(), &services.MockBackendClient{})

	var seen *ClientContext
	handler := gate.WithClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClientContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == nil {
		t.Fatal("client context missing from request")
	}
	if seen.ClientID == "" {
		t.Error("expected a minted client id")
	}
	if seen.Session.Valid() {
		t.Error("first contact must be anonymous")
	}

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	if !names[ClientCookieName] || !names[SessionCookieName] {
		t.Errorf("expected both identity cookies, got %v", names)
	}
}

func TestWithClient_ReverifiesStaleToken(t *testing.T) {
	backend := &services.MockBackendClient{}
	backend.On("VerifyToken", "stale-token").Return(false, nil)
	gate, durable := newTestGate(newTestCarts(), backend)

	// Pre-seed a session whose verification timestamp is missing, which
	// forces a backend check on the next request
	first := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	var clientID string
	gate.WithClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = GetClientContext(r.Context()).ClientID
	})).ServeHTTP(rec, first)

	scope := durable.Scope(clientID)
	svc := services.NewSessionService(scope, events.NewBus(), clientID)
	svc.Login(&models.UserRecord{ID: "u1", Name: "Ana", Email: "a@b.com", Role: models.RoleCustomer}, "stale-token")
	scope.Delete(storage.KeyLastTokenVerification)

	second := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		second.AddCookie(c)
	}

	var session models.Session
	gate.WithClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session = GetClientContext(r.Context()).Session
	})).ServeHTTP(httptest.NewRecorder(), second)

	if session.Valid() {
		t.Error("rejected token must log the client out")
	}
	backend.AssertCalled(t, "VerifyToken", "stale-token")
}

func TestWithClient_KeepsSessionOnVerificationOutage(t *testing.T) {
	backend := &services.MockBackendClient{}
	backend.On("VerifyToken", "token-1").Return(false, errors.New("backend unreachable"))
	gate, durable := newTestGate(newTestCarts(), backend)

	first := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	var clientID string
	gate.WithClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = GetClientContext(r.Context()).ClientID
	})).ServeHTTP(rec, first)

	scope := durable.Scope(clientID)
	services.NewSessionService(scope, events.NewBus(), clientID).
		Login(&models.UserRecord{ID: "u1", Name: "Ana", Email: "a@b.com", Role: models.RoleCustomer}, "token-1")
	scope.Delete(storage.KeyLastTokenVerification)

	second := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		second.AddCookie(c)
	}

	var session models.Session
	gate.WithClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session = GetClientContext(r.Context()).Session
	})).ServeHTTP(httptest.NewRecorder(), second)

	if !session.Valid() {
		t.Error("a verification outage must not log the client out")
	}
}

func TestRequireAuth_RedirectsAndSnapshotsCart(t *testing.T) {
	carts := newTestCarts()
	gate, _ := newTestGate(carts, &services.MockBackendClient{})

	carts.CreateCart("", "cart-session-1")
	carts.AddItem("cart-session-1", models.CartItem{
		ProductID:   "evt-1",
		ProductType: models.ProductTicket,
		TicketType:  "general",
		Price:       5000,
		Quantity:    2,
	})
	carts.AddItem("cart-session-1", models.CartItem{
		ProductID:   "evt-1",
		ProductType: models.ProductTicket,
		TicketType:  "vip",
		SeatNumber:  "A12",
		Price:       12000,
		Quantity:    1,
	})

	durableScope := storage.NewMemoryStore()
	cc := NewClientContext("client-1", durableScope, storage.NewMemoryStore(), "cart-session-1", nil)
	cc.Session = models.Anonymous()

	called := false
	handler := gate.RequireAuth(okHandler(&called))

	req := httptest.NewRequest("GET", "/checkout", nil)
	req = req.WithContext(SetClientContext(req.Context(), cc))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("guarded handler must not run unauthenticated")
	}
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}

	loc, err := rec.Result().Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.Path != "/login" {
		t.Errorf("expected redirect to /login, got %s", loc.Path)
	}
	if got := loc.Query().Get("redirect"); got != "/checkout" {
		t.Errorf("expected return path /checkout, got %q", got)
	}
	if got := loc.Query().Get("message"); got != LoginMessage {
		t.Errorf("expected login prompt, got %q", got)
	}

	// The cart was snapshotted to both stores before the redirect
	if _, ok := durableScope.Get(storage.KeyCartPersistence); !ok {
		t.Error("expected a cart snapshot in durable storage")
	}
	if _, ok := cc.Scratch.Get(storage.KeyCartPersistenceBackup); !ok {
		t.Error("expected a backup snapshot in scratch storage")
	}

	var snapshot models.CartPersistenceSnapshot
	if !storage.ReadJSON(durableScope, storage.KeyCartPersistence, &snapshot) {
		t.Fatal("snapshot unreadable")
	}
	if len(snapshot.CartData.Items) != 2 {
		t.Errorf("expected 2 snapshotted lines, got %d", len(snapshot.CartData.Items))
	}
}

func TestRequireAuth_EmptyCartSkipsSnapshot(t *testing.T) {
	carts := newTestCarts()
	gate, _ := newTestGate(carts, &services.MockBackendClient{})
	carts.CreateCart("", "cart-session-1")

	durableScope := storage.NewMemoryStore()
	cc := NewClientContext("client-1", durableScope, storage.NewMemoryStore(), "cart-session-1", nil)
	cc.Session = models.Anonymous()

	called := false
	req := httptest.NewRequest("GET", "/checkout", nil)
	req = req.WithContext(SetClientContext(req.Context(), cc))
	rec := httptest.NewRecorder()
	gate.RequireAuth(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if _, ok := durableScope.Get(storage.KeyCartPersistence); ok {
		t.Error("empty carts must not be snapshotted")
	}
}

func TestRequireAuth_PassesAuthenticated(t *testing.T) {
	gate, _ := newTestGate(newTestCarts(), &services.MockBackendClient{})
	cc := authedContext(storage.NewMemoryStore(), models.RoleCustomer)

	called := false
	req := httptest.NewRequest("GET", "/checkout", nil)
	req = req.WithContext(SetClientContext(req.Context(), cc))
	gate.RequireAuth(okHandler(&called)).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("authenticated request must reach the handler")
	}
}

func TestConfirmRedirect_FiresOncePerLogin(t *testing.T) {
	gate, _ := newTestGate(newTestCarts(), &services.MockBackendClient{})

	durableScope := storage.NewMemoryStore()
	cc := authedContext(durableScope, models.RoleCustomer)
	durableScope.Set(storage.KeyJustLoggedIn, "true")

	called := false
	handler := gate.ConfirmRedirect(okHandler(&called))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(SetClientContext(req.Context(), cc))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 on first authenticated render, got %d", rec.Code)
	}
	loc, _ := rec.Result().Location()
	if loc.Path != "/carrito/confirmar" {
		t.Errorf("expected confirmation redirect, got %s", loc.Path)
	}
	if called {
		t.Error("redirect must short-circuit the handler")
	}

	// The flag was consumed: the next render proceeds normally
	req2 := httptest.NewRequest("GET", "/", nil)
	req2 = req2.WithContext(SetClientContext(req2.Context(), cc))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK || !called {
		t.Error("second render must pass through")
	}
}

func TestConfirmRedirect_IgnoresAnonymous(t *testing.T) {
	gate, _ := newTestGate(newTestCarts(), &services.MockBackendClient{})

	durableScope := storage.NewMemoryStore()
	durableScope.Set(storage.KeyJustLoggedIn, "true")
	cc := NewClientContext("client-1", durableScope, storage.NewMemoryStore(), "", nil)
	cc.Session = models.Anonymous()

	called := false
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(SetClientContext(req.Context(), cc))
	rec := httptest.NewRecorder()
	gate.ConfirmRedirect(okHandler(&called)).ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Error("anonymous requests pass through untouched")
	}
}

func TestRequireRole(t *testing.T) {
	gate, _ := newTestGate(newTestCarts(), &services.MockBackendClient{})
	guard := gate.RequireRole(models.RoleManager)

	tests := []struct {
		name     string
		role     models.UserRole
		wantCode int
	}{
		{"matching role passes", models.RoleManager, http.StatusOK},
		{"admin passes any check", models.RoleAdmin, http.StatusOK},
		{"customer denied", models.RoleCustomer, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := authedContext(storage.NewMemoryStore(), tt.role)
			called := false
			req := httptest.NewRequest("GET", "/admin/sessions", nil)
			req = req.WithContext(SetClientContext(req.Context(), cc))
			rec := httptest.NewRecorder()
			guard(okHandler(&called)).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("got %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRequireRole_RedirectsAnonymous(t *testing.T) {
	gate, _ := newTestGate(newTestCarts(), &services.MockBackendClient{})

	cc := NewClientContext("client-1", storage.NewMemoryStore(), storage.NewMemoryStore(), "", nil)
	cc.Session = models.Anonymous()

	called := false
	req := httptest.NewRequest("GET", "/admin/sessions", nil)
	req = req.WithContext(SetClientContext(req.Context(), cc))
	rec := httptest.NewRecorder()
	gate.RequireRole(models.RoleAdmin)(okHandler(&called)).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected login redirect, got %d", rec.Code)
	}
}
