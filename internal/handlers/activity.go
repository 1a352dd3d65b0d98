package handlers

import (
	"encoding/json"
	"net/http"

	"eventu/internal/middleware"
	"eventu/internal/services"
)

// ActivityHandler feeds client-reported visibility and interaction
// events into the tab activity monitors
type ActivityHandler struct {
	monitors *services.MonitorRegistry
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(monitors *services.MonitorRegistry) *ActivityHandler {
	return &ActivityHandler{monitors: monitors}
}

// Report dispatches one client activity event. Event types mirror what
// the page observes: visibility transitions, a reload detected from the
// navigation-timing entry, and user interactions.
func (h *ActivityHandler) Report(w http.ResponseWriter, r *http.Request) {
	cc := middleware.GetClientContext(r.Context())
	if cc == nil {
		respondError(w, http.StatusInternalServerError, "client scope missing")
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	monitor := h.monitors.Get(cc.ClientID)

	switch req.Type {
	case "hidden":
		monitor.Hidden()
	case "visible":
		monitor.Visible()
	case "reload":
		monitor.Reload()
	case "interaction":
		monitor.Touch()
	default:
		respondError(w, http.StatusUnprocessableEntity, "unknown activity type")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// ActiveSessions lists the clients currently tracked by a monitor.
// Back-office endpoint, admin only.
func (h *ActivityHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"clients": h.monitors.Active(),
	})
}
