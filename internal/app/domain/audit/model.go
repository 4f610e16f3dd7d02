// Package audit defines the append-only event log bound to lifecycle
// records. Entries are never updated or deleted through the public contract.
package audit

import (
	"time"

	"github.com/zakatwise/zakat-engine/internal/cryptobox"
)

// EventType classifies a recorded lifecycle event.
type EventType string

const (
	EventCreated   EventType = "CREATED"
	EventEdited    EventType = "EDITED"
	EventFinalized EventType = "FINALIZED"
	EventUnlocked  EventType = "UNLOCKED"
)

// Valid reports whether the event type is one of the recorded kinds.
func (e EventType) Valid() bool {
	switch e {
	case EventCreated, EventEdited, EventFinalized, EventUnlocked:
		return true
	default:
		return false
	}
}

// Entry is one audit trail event. Before/after states and the unlock
// justification are stored encrypted; the justification is mandatory and
// length-validated for UNLOCKED events.
type Entry struct {
	ID            string
	HawlRecordID  string
	OwnerID       string
	EventType     EventType
	BeforeState   cryptobox.EncryptedField
	AfterState    cryptobox.EncryptedField
	Justification cryptobox.EncryptedField
	ActorContext  string
	CreatedAt     time.Time
}
