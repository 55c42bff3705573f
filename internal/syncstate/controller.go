package syncstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/client"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

// ErrMutationInFlight is returned when a mutation is requested while another
// one is still outstanding.
var ErrMutationInFlight = errors.New("another change is still being saved")

// API is the subset of the HTTP client the controller drives.
type API interface {
	GetExpenses(ctx context.Context) ([]core.Record, error)
	AddExpense(ctx context.Context, p core.Payload) (client.Result, error)
	UpdateExpense(ctx context.Context, id string, p core.Payload) (client.Result, error)
	DeleteExpense(ctx context.Context, id string) (client.Result, error)
}

// Controller turns user intents into API calls and state transitions.
type Controller struct {
	api    API
	store  *Store
	logger *slog.Logger
}

// NewController wires api to store. logger may be nil.
func NewController(api API, store *Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{api: api, store: store, logger: logger}
}

// Store returns the state container the controller dispatches to.
func (c *Controller) Store() *Store {
	return c.store
}

// Refresh reloads the full record set. On failure the previous records are
// kept and the state moves to LoadError.
func (c *Controller) Refresh(ctx context.Context) error {
	c.store.Dispatch(LoadStarted{})

	records, err := c.api.GetExpenses(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to load expenses", applog.FieldError, err)
		c.store.Dispatch(LoadFailed{Err: err})
		return fmt.Errorf("load expenses: %w", err)
	}

	c.store.Dispatch(LoadSucceeded{Records: records})
	return nil
}

// Create adds a record from p.
func (c *Controller) Create(ctx context.Context, p core.Payload) (client.Result, error) {
	return c.mutate(ctx, Draft{Op: OpCreate, Payload: p}, func() (client.Result, error) {
		return c.api.AddExpense(ctx, p)
	})
}

// Update replaces every mutable field of the record with id.
func (c *Controller) Update(ctx context.Context, id string, p core.Payload) (client.Result, error) {
	return c.mutate(ctx, Draft{Op: OpUpdate, ID: id, Payload: p}, func() (client.Result, error) {
		return c.api.UpdateExpense(ctx, id, p)
	})
}

// Delete removes the record with id.
func (c *Controller) Delete(ctx context.Context, id string) (client.Result, error) {
	return c.mutate(ctx, Draft{Op: OpDelete, ID: id}, func() (client.Result, error) {
		return c.api.DeleteExpense(ctx, id)
	})
}

// mutate runs call with the in-flight guard held. Every call is followed by
// Refresh, whatever its outcome; a refresh failure shows up as LoadError and
// never replaces the mutation's own result.
func (c *Controller) mutate(ctx context.Context, d Draft, call func() (client.Result, error)) (client.Result, error) {
	_, err := c.store.TryDispatch(MutationStarted{Draft: d}, func(s State) error {
		if s.ModalLoading {
			return ErrMutationInFlight
		}
		return nil
	})
	if err != nil {
		return client.Result{}, err
	}

	res, err := call()
	if err != nil {
		c.logger.WarnContext(ctx, "Expense change failed", applog.FieldOperation, string(d.Op), applog.FieldRecordID, d.ID, applog.FieldError, err)
		_ = c.Refresh(ctx)
		c.store.Dispatch(MutationFailed{Err: err})
		return client.Result{}, err
	}

	_ = c.Refresh(ctx)
	c.store.Dispatch(MutationSucceeded{})
	return res, nil
}
