package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fortuna/internal/core"
	"fortuna/internal/log"
	"fortuna/internal/storage"
)

// Scheduler charges due subscriptions through the journal and advances their
// next occurrence. A payment and its date advance commit together.
type Scheduler struct {
	store   storage.Store
	journal *Journal
}

func NewScheduler(store storage.Store, journal *Journal) *Scheduler {
	return &Scheduler{store: store, journal: journal}
}

// ProcessOptions are decided by the caller before a run.
type ProcessOptions struct {
	// Force admits payments over the category budget.
	Force bool
	// CatchUp charges every missed occurrence up to now instead of one per run.
	CatchUp bool
}

// PaymentFailure records why one subscription was not charged. The
// subscription stays due.
type PaymentFailure struct {
	SubscriptionID string
	Name           string
	Occurrence     core.Date
	Err            error
}

func (f PaymentFailure) Error() string {
	return fmt.Sprintf("subscription %q (%s) on %s: %v", f.Name, f.SubscriptionID, f.Occurrence, f.Err)
}

func (f PaymentFailure) Unwrap() error { return f.Err }

// ProcessResult is the outcome of one ProcessDue run.
type ProcessResult struct {
	Created  []core.Transaction
	Failures []PaymentFailure
	Checked  int
}

// ProcessDue charges every active subscription due on or before now.
//
// Failures of a single subscription are collected in the result and never
// stop the batch. Only systemic errors, such as the store failing or ctx
// being canceled, are returned; the result still lists what was committed
// before the error.
func (s *Scheduler) ProcessDue(ctx context.Context, now core.Date, opts ProcessOptions) (ProcessResult, error) {
	var result ProcessResult

	var due []core.Subscription
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		due, err = tx.ListSubscriptions(ctx, storage.SubscriptionFilter{Active: storage.Bool(true), DueBy: now})
		return err
	})
	if err != nil {
		return result, fmt.Errorf("list due subscriptions: %w", err)
	}

	slog.InfoContext(ctx, "Processing due subscriptions",
		"total_due", len(due),
		log.FieldDate, now.String(),
		log.FieldForce, opts.Force,
		"catch_up", opts.CatchUp)

	for _, sub := range due {
		result.Checked++
		for {
			if err := ctx.Err(); err != nil {
				slog.WarnContext(ctx, "Subscription processing canceled",
					"processed", len(result.Created),
					log.FieldError, err)
				return result, err
			}

			t, charged, err := s.chargeOnce(ctx, sub.ID, now, opts.Force)
			if err != nil {
				if !isPaymentFailure(err) {
					slog.ErrorContext(ctx, "Subscription processing aborted",
						log.FieldSubscriptionID, sub.ID,
						log.FieldError, err)
					return result, err
				}
				result.Failures = append(result.Failures, PaymentFailure{
					SubscriptionID: sub.ID,
					Name:           sub.Name,
					Occurrence:     sub.NextOccurrence,
					Err:            err,
				})
				slog.WarnContext(ctx, "Subscription payment failed, will retry next run",
					log.FieldSubscriptionID, sub.ID,
					"name", sub.Name,
					log.FieldError, err)
				break
			}
			if !charged {
				break
			}

			result.Created = append(result.Created, t)
			slog.InfoContext(ctx, "Subscription charged",
				log.FieldSubscriptionID, sub.ID,
				log.FieldTransactionID, t.ID,
				log.FieldAmountCents, t.Amount.Cents,
				log.FieldDate, t.Date.String())

			if next, err := NextOccurrence(sub); err == nil {
				sub.NextOccurrence = next
			}
			if !opts.CatchUp {
				break
			}
		}
	}

	slog.InfoContext(ctx, "Subscription processing complete",
		"created", len(result.Created),
		"failed", len(result.Failures),
		"total_checked", result.Checked)

	return result, nil
}

// ProcessPayment charges one subscription's current occurrence, failing with
// ErrNotDue when it is inactive or not yet due on now.
func (s *Scheduler) ProcessPayment(ctx context.Context, id string, now core.Date, force bool) (core.Transaction, error) {
	t, charged, err := s.chargeOnce(ctx, id, now, force)
	if err != nil {
		return core.Transaction{}, err
	}
	if !charged {
		return core.Transaction{}, fmt.Errorf("%w: %s", core.ErrNotDue, id)
	}
	return t, nil
}

// chargeOnce pays the current occurrence of one subscription and advances it,
// all in one unit of work. charged is false when the subscription is no
// longer due by the time it is re-read.
func (s *Scheduler) chargeOnce(ctx context.Context, id string, now core.Date, force bool) (core.Transaction, bool, error) {
	var (
		out     core.Transaction
		charged bool
	)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		sub, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		if !sub.IsDue(now) {
			return nil
		}
		next, err := NextOccurrence(sub)
		if err != nil {
			return err
		}

		out, err = s.journal.recordExpense(ctx, tx, ExpenseRequest{
			AccountID:   sub.AccountID,
			CategoryID:  sub.CategoryID,
			Amount:      sub.Amount,
			Date:        sub.NextOccurrence,
			Description: sub.Name,
			Force:       force,
		}, core.TxSubscriptionPayment, sub.ID)
		if err != nil {
			return err
		}

		sub.NextOccurrence = next
		if err := tx.UpsertSubscription(ctx, sub); err != nil {
			return err
		}
		charged = true
		return nil
	})
	if err != nil {
		return core.Transaction{}, false, err
	}
	return out, charged, nil
}

// isPaymentFailure separates per-subscription problems from systemic ones.
func isPaymentFailure(err error) bool {
	for _, target := range []error{
		core.ErrNotFound,
		core.ErrKindMismatch,
		core.ErrInsufficientFunds,
		core.ErrBudgetExceeded,
		core.ErrInvalidFrequency,
		core.ErrInvalidDate,
		core.ErrInvalidAmount,
		core.ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SubscriptionInput creates a subscription. AnchorDay defaults to the day of
// FirstOccurrence.
type SubscriptionInput struct {
	Name            string
	Amount          core.Money
	Frequency       core.Frequency
	FirstOccurrence core.Date
	AnchorDay       int
	CategoryID      string
	AccountID       string
}

// SubscriptionPatch edits a subscription; nil fields are kept. Editing
// NextOccurrence resets AnchorDay to its day unless AnchorDay is also set.
type SubscriptionPatch struct {
	Name           *string
	Amount         *core.Money
	Frequency      *core.Frequency
	NextOccurrence *core.Date
	AnchorDay      *int
	CategoryID     *string
	AccountID      *string
	Active         *bool
}

// HistoryMode decides what happens to past payments when a subscription is deleted.
type HistoryMode int

const (
	// KeepHistory detaches past payments and keeps them as plain expenses.
	KeepHistory HistoryMode = iota
	// DeleteHistory reverses and deletes every past payment.
	DeleteHistory
)

// ParseHistoryMode accepts "keep" and "delete".
func ParseHistoryMode(s string) (HistoryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return KeepHistory, nil
	case "delete", "cascade":
		return DeleteHistory, nil
	}
	return 0, fmt.Errorf("%w: history mode %q", core.ErrInvalidInput, s)
}

// CreateSubscription stores a new active subscription.
func (s *Scheduler) CreateSubscription(ctx context.Context, in SubscriptionInput) (core.Subscription, error) {
	sub := core.Subscription{
		ID:             core.NewID(),
		Name:           strings.TrimSpace(in.Name),
		Amount:         in.Amount,
		Frequency:      in.Frequency,
		NextOccurrence: in.FirstOccurrence,
		AnchorDay:      in.AnchorDay,
		Active:         true,
		CategoryID:     in.CategoryID,
		AccountID:      in.AccountID,
	}
	if sub.AnchorDay == 0 {
		sub.AnchorDay = in.FirstOccurrence.Day()
	}
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return saveSubscription(ctx, tx, sub)
	})
	if err != nil {
		return core.Subscription{}, err
	}
	slog.InfoContext(ctx, "Subscription created",
		log.FieldSubscriptionID, sub.ID,
		"name", sub.Name,
		"frequency", sub.Frequency,
		log.FieldDate, sub.NextOccurrence.String())
	return sub, nil
}

// UpdateSubscription applies patch.
func (s *Scheduler) UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (core.Subscription, error) {
	var out core.Subscription
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		sub, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			sub.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Amount != nil {
			sub.Amount = *patch.Amount
		}
		if patch.Frequency != nil {
			sub.Frequency = *patch.Frequency
		}
		if patch.NextOccurrence != nil {
			sub.NextOccurrence = *patch.NextOccurrence
			sub.AnchorDay = patch.NextOccurrence.Day()
		}
		if patch.AnchorDay != nil {
			sub.AnchorDay = *patch.AnchorDay
		}
		if patch.CategoryID != nil {
			sub.CategoryID = *patch.CategoryID
		}
		if patch.AccountID != nil {
			sub.AccountID = *patch.AccountID
		}
		if patch.Active != nil {
			sub.Active = *patch.Active
		}
		out = sub
		return saveSubscription(ctx, tx, sub)
	})
	if err != nil {
		return core.Subscription{}, err
	}
	slog.InfoContext(ctx, "Subscription updated", log.FieldSubscriptionID, id)
	return out, nil
}

// SetActive toggles whether the subscription is charged.
func (s *Scheduler) SetActive(ctx context.Context, id string, active bool) (core.Subscription, error) {
	return s.UpdateSubscription(ctx, id, SubscriptionPatch{Active: &active})
}

// GetSubscription returns one subscription.
func (s *Scheduler) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	var sub core.Subscription
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		sub, err = tx.GetSubscription(ctx, id)
		return err
	})
	return sub, err
}

// ListSubscriptions returns subscriptions matching filter, soonest first.
func (s *Scheduler) ListSubscriptions(ctx context.Context, filter storage.SubscriptionFilter) ([]core.Subscription, error) {
	var out []core.Subscription
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListSubscriptions(ctx, filter)
		return err
	})
	return out, err
}

// Transactions returns the payments made for a subscription.
func (s *Scheduler) Transactions(ctx context.Context, id string) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetSubscription(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTransactions(ctx, storage.TransactionFilter{SubscriptionID: id})
		return err
	})
	return out, err
}

// Delete removes a subscription, keeping or deleting its payment history
// according to mode. It returns the payments it touched.
func (s *Scheduler) Delete(ctx context.Context, id string, mode HistoryMode) ([]core.Transaction, error) {
	var touched []core.Transaction
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetSubscription(ctx, id); err != nil {
			return err
		}
		var err error
		touched, err = deleteSubscription(ctx, tx, id, mode)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Subscription deleted",
		log.FieldSubscriptionID, id,
		"delete_history", mode == DeleteHistory,
		"payments", len(touched))
	return touched, nil
}

func deleteSubscription(ctx context.Context, tx storage.Tx, id string, mode HistoryMode) ([]core.Transaction, error) {
	payments, err := tx.ListTransactions(ctx, storage.TransactionFilter{SubscriptionID: id})
	if err != nil {
		return nil, err
	}
	for i, p := range payments {
		switch mode {
		case DeleteHistory:
			if _, err := removeTransaction(ctx, tx, p); err != nil {
				return nil, err
			}
		case KeepHistory:
			p.SubscriptionID = ""
			p.Kind = core.TxExpense
			if err := tx.UpsertTransaction(ctx, p); err != nil {
				return nil, err
			}
			payments[i] = p
		default:
			return nil, fmt.Errorf("%w: history mode %d", core.ErrInvalidInput, mode)
		}
	}
	if err := tx.DeleteSubscription(ctx, id); err != nil {
		return nil, err
	}
	return payments, nil
}

// saveSubscription validates references and writes sub.
func saveSubscription(ctx context.Context, tx storage.Tx, sub core.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if _, err := categoryOfKind(ctx, tx, sub.CategoryID, core.KindExpense); err != nil {
		return err
	}
	if _, err := tx.GetAccount(ctx, sub.AccountID); err != nil {
		return err
	}
	return tx.UpsertSubscription(ctx, sub)
}
