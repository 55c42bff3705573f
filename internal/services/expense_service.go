package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

// EventPublisher announces record changes to interested consumers.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, id, op string) error
}

// Result is the outcome of a successful mutation.
type Result struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// ExpenseService validates requests and applies them to the store. Each
// operation performs at most one store call.
type ExpenseService struct {
	store  store.Store
	events EventPublisher
	newID  func() string
}

// NewExpenseService builds a service over st. events may be nil.
func NewExpenseService(st store.Store, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:  st,
		events: events,
		newID:  uuid.NewString,
	}
}

// Create validates p, assigns a fresh id and writes the record.
func (s *ExpenseService) Create(ctx context.Context, p core.Payload) (Result, error) {
	e, err := core.Validate(p)
	if err != nil {
		return Result{}, err
	}
	e.ID = s.newID()

	if err := s.store.Put(ctx, expenseItem(e)); err != nil {
		return Result{}, &core.StoreError{Op: "put", Err: err}
	}

	s.publish(ctx, e.ID, amqp.OpCreated)
	return Result{ID: e.ID, Message: "Expense added!"}, nil
}

// List returns every stored record in storage order. Records with missing or
// unreadable attributes are returned with those fields absent.
func (s *ExpenseService) List(ctx context.Context) ([]core.Record, error) {
	items, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "scan", Err: err}
	}

	records := make([]core.Record, 0, len(items))
	for _, it := range items {
		records = append(records, recordFromItem(ctx, it))
	}
	return records, nil
}

// Update overwrites all mutable fields of the record with the given id in a
// single write. The store does not check that the record exists.
func (s *ExpenseService) Update(ctx context.Context, id string, p core.Payload) (Result, error) {
	id, err := core.RequireID(id)
	if err != nil {
		return Result{}, err
	}
	e, err := core.Validate(p)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.UpdateFields(ctx, id, expenseFields(e)); err != nil {
		return Result{}, &core.StoreError{Op: "update", Err: err}
	}

	s.publish(ctx, id, amqp.OpUpdated)
	return Result{ID: id, Message: fmt.Sprintf("Expense %s updated", id)}, nil
}

// Delete removes the record with the given id. Deleting an unknown id succeeds.
func (s *ExpenseService) Delete(ctx context.Context, id string) (Result, error) {
	id, err := core.RequireID(id)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return Result{}, &core.StoreError{Op: "delete", Err: err}
	}

	s.publish(ctx, id, amqp.OpDeleted)
	return Result{ID: id, Message: fmt.Sprintf("Expense %s deleted", id)}, nil
}

func (s *ExpenseService) publish(ctx context.Context, id, op string) {
	if s.events == nil {
		return
	}
	// The record is already durable; a lost event only delays the mirror.
	if err := s.events.PublishRecordEvent(ctx, id, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"id", id, "op", op, "error", err)
	}
}

// Close closes the store and, when it holds a connection, the publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.events.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
