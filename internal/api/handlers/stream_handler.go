package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

// DashboardService provides the latest statistics snapshot of a clinic
type DashboardService interface {
	Snapshot(ctx context.Context, clinicID string) (*entities.AppointmentStats, error)
}

// ClinicResolver picks the clinic a request operates on
type ClinicResolver interface {
	ResolveClinicID(ctx context.Context, explicit string) (string, error)
}

// StreamHandler handles Server-Sent Events for live appointment changes and
// dashboard statistics
type StreamHandler struct {
	eventBus  providers.EventBus
	dashboard DashboardService
	resolver  ClinicResolver
	heartbeat time.Duration
	clients   map[string]map[chan *entities.AppointmentEvent]bool // channel -> clients
	mu        sync.RWMutex
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(eventBus providers.EventBus, dashboard DashboardService, resolver ClinicResolver) *StreamHandler {
	return &StreamHandler{
		eventBus:  eventBus,
		dashboard: dashboard,
		resolver:  resolver,
		heartbeat: 30 * time.Second,
		clients:   make(map[string]map[chan *entities.AppointmentEvent]bool),
	}
}

// SetHeartbeat changes the keep-alive interval
func (h *StreamHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// resolve picks the clinic of the request, "" meaning the caller's own
func (h *StreamHandler) resolve(ctx context.Context, session entities.Session, explicit string) (string, error) {
	if h.resolver != nil {
		return h.resolver.ResolveClinicID(ctx, explicit)
	}
	if id, ok := entities.NormalizeID(explicit); ok {
		return id, nil
	}
	if session.ClinicID != "" {
		return session.ClinicID, nil
	}
	return session.ActiveClinicID, nil
}

// StreamDashboard handles GET /api/stream/dashboard?clinicId=X. Staff only;
// everyone but an Admin is limited to their own clinic.
func (h *StreamHandler) StreamDashboard(w http.ResponseWriter, r *http.Request) {
	const action = "view the clinic dashboard"
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !session.Role.IsStaff() {
		respondWithAppError(w, r, apperrors.NewUnauthorizedError(action, "only clinic staff can view live statistics"))
		return
	}

	clinicID, err := h.resolve(r.Context(), session, "")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if explicit, ok := entities.NormalizeID(r.URL.Query().Get("clinicId")); ok && explicit != clinicID {
		if session.Role != entities.RoleAdmin {
			respondWithAppError(w, r, apperrors.NewUnauthorizedError(action, "you can only follow your own clinic"))
			return
		}
		if clinicID, err = h.resolve(r.Context(), session, explicit); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}
	if clinicID == "" {
		respondWithError(w, http.StatusBadRequest, "clinic ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	channel := providers.GetClinicChannel(clinicID)
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to channel")
		respondWithError(w, http.StatusServiceUnavailable, "live updates are unavailable")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	clientChan := make(chan *entities.AppointmentEvent, 10)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"clinic_id": clinicID,
		"timestamp": time.Now(),
	})

	if h.dashboard != nil {
		if stats, err := h.dashboard.Snapshot(r.Context(), clinicID); err == nil {
			snapshot := entities.NewAppointmentEvent(clinicID, "", entities.AppointmentEventStatsSnapshot)
			snapshot.Stats = stats
			h.sendEvent(w, string(snapshot.EventType), snapshot)
		} else {
			log.Warn().Err(err).Str("clinic_id", clinicID).Msg("initial stats snapshot unavailable")
		}
	}
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("clinic_id", clinicID).Msg("client disconnected from clinic stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents forwards events from the event bus to a client channel
func (h *StreamHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.AppointmentEvent, clientChan chan<- *entities.AppointmentEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			select {
			case clientChan <- event:
			default:
				// Client channel full, skip event
			}
		}
	}
}

func (h *StreamHandler) registerClient(channel string, clientChan chan *entities.AppointmentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.AppointmentEvent]bool)
	}
	h.clients[channel][clientChan] = true
	log.Debug().Str("channel", channel).Int("total", len(h.clients[channel])).Msg("client registered")
}

func (h *StreamHandler) unregisterClient(channel string, clientChan chan *entities.AppointmentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// sendEvent sends an SSE event to the client
func (h *StreamHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// ClientCount returns the number of connected stream clients
func (h *StreamHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
