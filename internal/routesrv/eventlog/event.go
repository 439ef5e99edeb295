// Package eventlog publishes and consumes route change events on Kafka.
// Events are partitioned by the canonical route identifier so per-route order
// is preserved; delivery is at-least-once and consumers deduplicate where it
// matters.
package eventlog

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/routecommon"
)

// EventType is fixed for all route change events.
const EventType = "route_changed"

// Actions carried by route change events.
const (
	ActionCreated     = "created"
	ActionActivated   = "activated"
	ActionDeactivated = "deactivated"
)

// ErrEventLog is the base error for event log failures.
var ErrEventLog = apperrors.New("event log error").SetStatusCode(http.StatusInternalServerError)

// RouteEvent is the wire format of one route change, one JSON document per
// message.
type RouteEvent struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	Action        string `json:"action"`
	Tenant        string `json:"tenant"`
	Service       string `json:"service"`
	Env           string `json:"env"`
	Version       string `json:"version"`
	URL           string `json:"url"`
	PreviousURL   string `json:"previous_url,omitempty"`
	PreviousState string `json:"previous_state,omitempty"`
	ChangedBy     string `json:"changed_by,omitempty"`
	OccurredAt    string `json:"occurred_at"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewRouteEvent assembles an event for a committed mutation. previousState is
// "active", "inactive" or empty when the endpoint did not exist before.
func NewRouteEvent(action string, id routecommon.RouteID, url, previousURL, previousState, changedBy, correlationID string) RouteEvent {
	return RouteEvent{
		EventID:       uuid.NewString(),
		EventType:     EventType,
		Action:        action,
		Tenant:        id.Tenant,
		Service:       id.Service,
		Env:           id.Env,
		Version:       id.Version,
		URL:           url,
		PreviousURL:   previousURL,
		PreviousState: previousState,
		ChangedBy:     changedBy,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		CorrelationID: correlationID,
	}
}

// RouteID reconstructs the route identifier from the event fields.
func (e RouteEvent) RouteID() routecommon.RouteID {
	return routecommon.RouteID{
		Tenant:  e.Tenant,
		Service: e.Service,
		Env:     e.Env,
		Version: e.Version,
	}
}

// Key returns the partition key, the canonical route identifier.
func (e RouteEvent) Key() []byte {
	return []byte(e.RouteID().String())
}

// Marshal encodes the event as JSON.
func (e RouteEvent) Marshal() ([]byte, apperrors.Error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, ErrEventLog.MsgErr("failed to encode event", err)
	}
	return data, nil
}

// UnmarshalRouteEvent decodes one event, rejecting messages that are not
// route change events.
func UnmarshalRouteEvent(data []byte) (RouteEvent, apperrors.Error) {
	var e RouteEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return RouteEvent{}, ErrEventLog.MsgErr("failed to decode event", err)
	}
	if e.EventType != EventType {
		return RouteEvent{}, ErrEventLog.Msg("unexpected event type: " + e.EventType)
	}
	if e.EventID == "" {
		return RouteEvent{}, ErrEventLog.Msg("event is missing event_id")
	}
	return e, nil
}
