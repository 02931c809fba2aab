package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names the lifecycle transitions that trigger resolution.
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventAnalysisAdded    EventType = "analysis.added"
	EventAnalysisModified EventType = "analysis.modified"
)

var (
	ErrUnknownEvent = errors.New("unknown lifecycle event")
	ErrInvalidEvent = errors.New("invalid lifecycle event")
)

// Event is one lifecycle notification. The same event may be delivered more
// than once.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	TenantID    string    `json:"tenant_id,omitempty"`
	OrderUID    string    `json:"order_uid"`
	AnalysisUID string    `json:"analysis_uid,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh ID and time on an event.
func NewEvent(t EventType, orderUID, analysisUID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		OrderUID:    orderUID,
		AnalysisUID: analysisUID,
		OccurredAt:  time.Now().UTC(),
	}
}

func (e Event) Validate() error {
	switch e.Type {
	case EventOrderCreated:
		if e.OrderUID == "" {
			return fmt.Errorf("%w: %s without order_uid", ErrInvalidEvent, e.Type)
		}
	case EventAnalysisAdded, EventAnalysisModified:
		if e.AnalysisUID == "" {
			return fmt.Errorf("%w: %s without analysis_uid", ErrInvalidEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
	return nil
}

// DecodeEvent parses and validates a JSON encoded event.
func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
