package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID     uuid.UUID  `json:"userId"`
	Role       string     `json:"role,omitempty"`
	ProviderID *uuid.UUID `json:"providerId,omitempty"`
}

// RefFor describes an authenticated caller for an event envelope.
func RefFor(actor types.Actor) *ActorRef {
	return &ActorRef{UserID: actor.ID, Role: actor.Role.String(), ProviderID: actor.ProviderID}
}

// SystemRef attributes an event to role acting without a live request.
func SystemRef(id uuid.UUID, role enums.ActorRole) *ActorRef {
	return &ActorRef{UserID: id, Role: role.String()}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Message is what a Broker puts on the wire. Key orders messages per aggregate
// on brokers that partition by key.
type Message struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}
