package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fortuna/internal/core"
)

// EventType names what happened to the journal.
type EventType string

const (
	EventTransactionRecorded EventType = "transaction.recorded"
	EventTransactionUpdated  EventType = "transaction.updated"
	EventTransactionDeleted  EventType = "transaction.deleted"
	EventSubscriptionPaid    EventType = "subscription.paid"
)

func (t EventType) Validate() error {
	switch t {
	case EventTransactionRecorded, EventTransactionUpdated, EventTransactionDeleted, EventSubscriptionPaid:
		return nil
	}
	return fmt.Errorf("unknown event type %q", string(t))
}

// LedgerEvent carries the journal rows affected by one successful core call.
// Transfers carry both legs. Consumers need nothing else to mirror the row.
type LedgerEvent struct {
	ID             string             `json:"id"`
	Type           EventType          `json:"type"`
	OccurredAt     time.Time          `json:"occurred_at"`
	Transactions   []core.Transaction `json:"transactions"`
	SubscriptionID string             `json:"subscription_id,omitempty"`
}

// NewLedgerEvent stamps a fresh event.
func NewLedgerEvent(typ EventType, txs ...core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		ID:           core.NewID(),
		Type:         typ,
		OccurredAt:   time.Now().UTC(),
		Transactions: txs,
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Type.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
