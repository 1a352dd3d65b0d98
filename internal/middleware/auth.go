package middleware

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"eventu/internal/events"
	"eventu/internal/models"
	"eventu/internal/services"
	"eventu/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

type contextKey string

const clientContextKey contextKey = "client"

// Cookie names. The client cookie is long-lived and anchors durable
// storage; the session cookie dies with the browser session and anchors
// the session-scoped backup store.
const (
	ClientCookieName  = "eventu_client"
	SessionCookieName = "eventu_session"
)

// LoginMessage is the prompt carried on the login redirect
const LoginMessage = "Inicia sesión para continuar con tu compra"

// ClientContext is the per-request view of one client: its identifiers,
// its two storage scopes, and the resolved session.
type ClientContext struct {
	ClientID  string
	Durable   storage.Store
	Scratch   storage.Store
	Session   models.Session
	CartSID   string
	setCartID func(w http.ResponseWriter, r *http.Request, sessionID string)
}

// NewClientContext builds a client context. setter persists the cart
// session identifier to the client's cookie; nil means don't persist.
func NewClientContext(clientID string, durable, scratch storage.Store, cartSID string, setter func(http.ResponseWriter, *http.Request, string)) *ClientContext {
	if setter == nil {
		setter = func(http.ResponseWriter, *http.Request, string) {}
	}

	return &ClientContext{
		ClientID:  clientID,
		Durable:   durable,
		Scratch:   scratch,
		CartSID:   cartSID,
		setCartID: setter,
	}
}

// SetCartSessionID binds a cart session identifier to the browser
// session cookie
func (c *ClientContext) SetCartSessionID(w http.ResponseWriter, r *http.Request, sessionID string) {
	c.CartSID = sessionID
	c.setCartID(w, r, sessionID)
}

// AuthGate decides whether a route's content is served, or the request
// is redirected to login (snapshotting any non-empty cart first) or to
// the post-login confirmation page.
type AuthGate struct {
	durable        storage.Scoper
	scratch        storage.Scoper
	cookies        sessions.Store
	bus            *events.Bus
	carts          *services.CartService
	backend        services.BackendClient
	snapshotTTL    time.Duration
	verifyInterval time.Duration
}

// NewAuthGate creates the gate middleware
func NewAuthGate(
	durable storage.Scoper,
	scratch storage.Scoper,
	cookies sessions.Store,
	bus *events.Bus,
	carts *services.CartService,
	backend services.BackendClient,
	snapshotTTL time.Duration,
	verifyInterval time.Duration,
) *AuthGate {
	return &AuthGate{
		durable:        durable,
		scratch:        scratch,
		cookies:        cookies,
		bus:            bus,
		carts:          carts,
		backend:        backend,
		snapshotTTL:    snapshotTTL,
		verifyInterval: verifyInterval,
	}
}

// WithClient resolves the client's storage scopes from its cookies,
// minting identifiers on first contact, and loads the session into the
// request context. Stale tokens are re-verified against the backend;
// verification network failures keep the session (availability over
// strictness), a definitive rejection logs the client out.
func (g *AuthGate) WithClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientSession, _ := g.cookies.Get(r, ClientCookieName)
		clientID, ok := clientSession.Values["client_id"].(string)
		if !ok || clientID == "" {
			clientID = uuid.New().String()
			clientSession.Values["client_id"] = clientID
			clientSession.Options = &sessions.Options{
				Path:     "/",
				MaxAge:   86400 * 365,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			}
			if err := clientSession.Save(r, w); err != nil {
				log.Printf("auth: failed to save client cookie: %v", err)
			}
		}

		browserSession, _ := g.cookies.Get(r, SessionCookieName)
		scratchID, ok := browserSession.Values["scratch_id"].(string)
		if !ok || scratchID == "" {
			scratchID = uuid.New().String()
			browserSession.Values["scratch_id"] = scratchID
			browserSession.Options = &sessions.Options{
				Path:     "/",
				MaxAge:   0, // browser-session lifetime
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			}
			if err := browserSession.Save(r, w); err != nil {
				log.Printf("auth: failed to save session cookie: %v", err)
			}
		}

		cartSID, _ := browserSession.Values["cart_session_id"].(string)

		cc := NewClientContext(clientID, g.durable.Scope(clientID), g.scratch.Scope(scratchID), cartSID,
			func(w http.ResponseWriter, r *http.Request, sessionID string) {
				s, _ := g.cookies.Get(r, SessionCookieName)
				s.Values["cart_session_id"] = sessionID
				if err := s.Save(r, w); err != nil {
					log.Printf("auth: failed to save cart session id: %v", err)
				}
			})

		sessionSvc := services.NewSessionService(cc.Durable, g.bus, clientID)
		cc.Session = sessionSvc.Load()

		if cc.Session.Valid() && sessionSvc.ShouldVerifyToken(g.verifyInterval) {
			valid, err := g.backend.VerifyToken(cc.Session.Token)
			switch {
			case err != nil:
				log.Printf("auth: token verification unavailable, keeping session: %v", err)
			case valid:
				sessionSvc.MarkTokenVerified()
			default:
				log.Printf("auth: token rejected by backend, logging client %s out", clientID)
				sessionSvc.Logout()
				cc.Session = models.Anonymous()
			}
		}

		ctx := context.WithValue(r.Context(), clientContextKey, cc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth guards a route that needs an authenticated session. For an
// unauthenticated client, any non-empty cart is snapshotted first, then
// the request is redirected to login with the current path as the
// return target.
func (g *AuthGate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cc := GetClientContext(r.Context())
		if cc == nil {
			http.Error(w, "client scope missing", http.StatusInternalServerError)
			return
		}

		if cc.Session.Valid() {
			next.ServeHTTP(w, r)
			return
		}

		if cc.CartSID != "" {
			if cart, ok := g.carts.GetCart(cc.CartSID); ok && !cart.IsEmpty() {
				bridge := services.NewCartPersistenceBridge(cc.Durable, cc.Scratch, g.snapshotTTL)
				bridge.SaveCartBeforeLogin(cart, cc.CartSID)
			}
		}

		query := url.Values{}
		query.Set("redirect", r.URL.Path)
		query.Set("message", LoginMessage)
		http.Redirect(w, r, "/login?"+query.Encode(), http.StatusSeeOther)
	})
}

// ConfirmRedirect sends the first authenticated render after a login to
// the confirmation page. The just-logged-in flag is consumed exactly
// once, so the redirect happens once per login regardless of how the
// user authenticated.
func (g *AuthGate) ConfirmRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cc := GetClientContext(r.Context())
		if cc != nil && cc.Session.Valid() {
			sessionSvc := services.NewSessionService(cc.Durable, g.bus, cc.ClientID)
			if sessionSvc.ConsumeJustLoggedIn() {
				http.Redirect(w, r, "/carrito/confirmar", http.StatusSeeOther)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRole guards back-office routes. Admins pass every check.
func (g *AuthGate) RequireRole(role models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cc := GetClientContext(r.Context())
			if cc == nil || !cc.Session.Valid() {
				query := url.Values{}
				query.Set("redirect", r.URL.Path)
				query.Set("message", LoginMessage)
				http.Redirect(w, r, "/login?"+query.Encode(), http.StatusSeeOther)
				return
			}

			user := cc.Session.User
			if user.Role != role && user.Role != models.RoleAdmin {
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClientContext retrieves the client context from the request context
func GetClientContext(ctx context.Context) *ClientContext {
	cc, ok := ctx.Value(clientContextKey).(*ClientContext)
	if !ok {
		return nil
	}
	return cc
}

// SetClientContext injects a client context (for testing)
func SetClientContext(ctx context.Context, cc *ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey, cc)
}
