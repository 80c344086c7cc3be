package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event. Webhook and cron driven events
// carry the SYSTEM role and no id.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Role string `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
