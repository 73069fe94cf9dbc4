package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification is an append-only record of an event received by Recipient.
// Data holds the raw inbound payload.
type Notification struct {
	Id          uuid.UUID
	RecipientId uuid.UUID
	Type        string
	ActorRef    string
	Data        json.RawMessage
	CreatedAt   time.Time
	IsRead      bool
}
