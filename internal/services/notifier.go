package services

import (
	"context"
	"log/slog"

	"fortuna/internal/amqp"
	"fortuna/internal/core"
)

// EventPublisher delivers ledger events to other processes.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.LedgerEvent) error
	Close() error
}

// Notifier publishes ledger events after successful core calls. Publish
// failures are logged and never undo the committed change.
type Notifier struct {
	publisher EventPublisher
}

// NewNotifier accepts a nil publisher, in which case every event is dropped.
func NewNotifier(publisher EventPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func (n *Notifier) TransactionRecorded(ctx context.Context, txs ...core.Transaction) {
	n.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionRecorded, txs...))
}

// TransactionUpdated carries the rows as they are after the edit.
func (n *Notifier) TransactionUpdated(ctx context.Context, txs ...core.Transaction) {
	n.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionUpdated, txs...))
}

func (n *Notifier) TransactionDeleted(ctx context.Context, txs ...core.Transaction) {
	n.publish(ctx, amqp.NewLedgerEvent(amqp.EventTransactionDeleted, txs...))
}

func (n *Notifier) SubscriptionPaid(ctx context.Context, tx core.Transaction) {
	event := amqp.NewLedgerEvent(amqp.EventSubscriptionPaid, tx)
	event.SubscriptionID = tx.SubscriptionID
	n.publish(ctx, event)
}

func (n *Notifier) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if n == nil || n.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "event_type", event.Type)
		return
	}
	if len(event.Transactions) == 0 {
		return
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
	}
}

// Close releases the publisher.
func (n *Notifier) Close() error {
	if n == nil || n.publisher == nil {
		return nil
	}
	return n.publisher.Close()
}
