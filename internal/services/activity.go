package services

import (
	"log"
	"strconv"
	"sync"
	"time"

	"eventu/internal/events"
	"eventu/internal/storage"
)

// MonitorConfig holds the two independent timeout horizons. The tab
// timeout runs from the moment a tab goes hidden; the idle timeout runs
// from the last interaction regardless of visibility. The two must not
// be conflated.
type MonitorConfig struct {
	TabTimeout  time.Duration // default 5 minutes
	IdleTimeout time.Duration // default 15 minutes
	WarningLead time.Duration // sessionWarning fires this long before idle logout
}

// DefaultMonitorConfig returns the stock timeouts
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TabTimeout:  5 * time.Minute,
		IdleTimeout: 15 * time.Minute,
		WarningLead: 2 * time.Minute,
	}
}

// TabActivityMonitor decides when one client's session should be
// treated as abandoned. A hidden tab times out via the visibility
// timer; a visible-but-idle tab times out via the activity timer.
type TabActivityMonitor struct {
	mu       sync.Mutex
	config   MonitorConfig
	session  *SessionService
	backend  BackendClient
	bus      *events.Bus
	store    storage.Store
	clientID string

	onInvalidated func(reason string)

	hiddenTimer *time.Timer
	idleTimer   *time.Timer
	warnTimer   *time.Timer
	stopped     bool
}

// NewTabActivityMonitor creates a monitor for one client scope.
// onInvalidated may be nil.
func NewTabActivityMonitor(
	config MonitorConfig,
	session *SessionService,
	backend BackendClient,
	bus *events.Bus,
	store storage.Store,
	clientID string,
	onInvalidated func(reason string),
) *TabActivityMonitor {
	if config.TabTimeout == 0 {
		config.TabTimeout = 5 * time.Minute
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 15 * time.Minute
	}

	return &TabActivityMonitor{
		config:        config,
		session:       session,
		backend:       backend,
		bus:           bus,
		store:         store,
		clientID:      clientID,
		onInvalidated: onInvalidated,
	}
}

// Start arms the inactivity timers. The hidden-tab timer stays disarmed
// until the tab actually hides.
func (m *TabActivityMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.resetIdleTimersLocked()
}

// Stop disarms every timer. A stopped monitor never fires again; this
// is the unmount path.
func (m *TabActivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	stopTimer(m.hiddenTimer)
	stopTimer(m.idleTimer)
	stopTimer(m.warnTimer)
	m.hiddenTimer, m.idleTimer, m.warnTimer = nil, nil, nil
}

// Hidden records a transition to the hidden state and arms the
// hidden-tab timer, but only while authenticated.
func (m *TabActivityMonitor) Hidden() {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.session.Load()
	if m.stopped || !session.Valid() {
		return
	}

	m.store.Set(storage.KeyTabClosedTime, strconv.FormatInt(time.Now().Unix(), 10))

	stopTimer(m.hiddenTimer)
	m.hiddenTimer = time.AfterFunc(m.config.TabTimeout, m.hiddenExpired)
}

// Visible records a transition back to the visible state before the
// hidden-tab timer fired, disarming it.
func (m *TabActivityMonitor) Visible() {
	m.mu.Lock()
	defer m.mu.Unlock()

	stopTimer(m.hiddenTimer)
	m.hiddenTimer = nil
	m.store.Delete(storage.KeyTabClosedTime)
}

// Reload exempts a page reload from invalidation. The navigation-timing
// entry distinguishes a reload from a real tab close; without this a
// refresh of a long-hidden tab would log the user out.
func (m *TabActivityMonitor) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	stopTimer(m.hiddenTimer)
	m.hiddenTimer = nil
	m.store.Delete(storage.KeyTabClosedTime)
}

// Touch records a user interaction (pointer, keyboard, scroll, touch)
// and rearms the inactivity timers
func (m *TabActivityMonitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	m.store.Set(storage.KeyLastActivity, strconv.FormatInt(time.Now().Unix(), 10))
	m.resetIdleTimersLocked()
}

// resetIdleTimersLocked rearms the idle logout timer and, when a
// warning lead is configured, the warning timer. Callers must hold mu.
func (m *TabActivityMonitor) resetIdleTimersLocked() {
	stopTimer(m.idleTimer)
	m.idleTimer = time.AfterFunc(m.config.IdleTimeout, m.idleExpired)

	stopTimer(m.warnTimer)
	if m.config.WarningLead > 0 && m.config.WarningLead < m.config.IdleTimeout {
		m.warnTimer = time.AfterFunc(m.config.IdleTimeout-m.config.WarningLead, m.warn)
	}
}

// hiddenExpired fires when the tab stayed hidden past the threshold.
// The session is treated as abandoned: remote invalidation is
// best-effort, local state is cleared, and the callback fires.
func (m *TabActivityMonitor) hiddenExpired() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	session := m.session.Load()
	m.store.Delete(storage.KeyTabClosedTime)
	m.mu.Unlock()

	if !session.Valid() {
		return
	}

	log.Printf("activity: client %s tab hidden past %v, invalidating session", m.clientID, m.config.TabTimeout)
	m.invalidate(session.Token, "tab_abandoned")
}

// idleExpired fires on absolute inactivity, independent of visibility
func (m *TabActivityMonitor) idleExpired() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	session := m.session.Load()
	m.mu.Unlock()

	if !session.Valid() {
		return
	}

	log.Printf("activity: client %s idle past %v, logging out", m.clientID, m.config.IdleTimeout)
	m.invalidate(session.Token, "inactivity")
}

// warn broadcasts a sessionWarning before the idle logout fires
func (m *TabActivityMonitor) warn() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	session := m.session.Load()
	valid := session.Valid()
	m.mu.Unlock()

	if !valid {
		return
	}

	m.bus.Publish(events.Event{
		Type:             events.SessionWarning,
		ClientID:         m.clientID,
		RemainingMinutes: int(m.config.WarningLead / time.Minute),
	})
}

// invalidate clears the session locally after telling the backend, then
// notifies subscribers
func (m *TabActivityMonitor) invalidate(token, reason string) {
	m.backend.InvalidateSession(token)
	m.session.Logout()

	if m.onInvalidated != nil {
		m.onInvalidated(reason)
	}

	m.bus.Publish(events.Event{
		Type:     events.SessionExpired,
		ClientID: m.clientID,
		Reason:   reason,
	})
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// MonitorRegistry tracks one monitor per client scope
type MonitorRegistry struct {
	mu       sync.Mutex
	monitors map[string]*TabActivityMonitor
	factory  func(clientID string) *TabActivityMonitor
}

// NewMonitorRegistry creates a registry with a monitor factory
func NewMonitorRegistry(factory func(clientID string) *TabActivityMonitor) *MonitorRegistry {
	return &MonitorRegistry{
		monitors: make(map[string]*TabActivityMonitor),
		factory:  factory,
	}
}

// Get returns the monitor for clientID, creating and starting one on
// first use
func (r *MonitorRegistry) Get(clientID string) *TabActivityMonitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	monitor, ok := r.monitors[clientID]
	if !ok {
		monitor = r.factory(clientID)
		monitor.Start()
		r.monitors[clientID] = monitor
	}
	return monitor
}

// Remove stops and discards the monitor for clientID, if any
func (r *MonitorRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if monitor, ok := r.monitors[clientID]; ok {
		monitor.Stop()
		delete(r.monitors, clientID)
	}
}

// Active returns the identifiers of all tracked clients
func (r *MonitorRegistry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.monitors))
	for id := range r.monitors {
		ids = append(ids, id)
	}
	return ids
}
