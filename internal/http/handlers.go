package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

// ExpenseAPI is the record service as seen by the transport.
type ExpenseAPI interface {
	Create(ctx context.Context, p core.Payload) (services.Result, error)
	List(ctx context.Context) ([]core.Record, error)
	Update(ctx context.Context, id string, p core.Payload) (services.Result, error)
	Delete(ctx context.Context, id string) (services.Result, error)
}

// ReadyFunc reports whether the backing store can serve requests.
type ReadyFunc func(ctx context.Context) error

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.api.List(r.Context())
	if err != nil {
		s.logFailure(r, "List failed", applog.OpList, "", err)
		FromError(err, "Failed to fetch expenses").Write(w)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Listed expenses", applog.FieldCount, len(records))
	NewJSONResponse().JSON(records).Write(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePayload(w, r)
	if err != nil {
		s.reject(w, r, applog.OpCreate, err)
		return
	}

	res, err := s.api.Create(r.Context(), p)
	if err != nil {
		if core.IsClientError(err) {
			s.reject(w, r, applog.OpCreate, err)
			return
		}
		s.logFailure(r, "Create failed", applog.OpCreate, "", err)
		FromError(err, "Create failed").Write(w)
		return
	}

	s.mutations().LogRecordMutation(r.Context(), applog.OpCreate, res.ID)
	NewJSONResponse().JSON(res).Write(w)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := PathID(r)
	if strings.TrimSpace(id) == "" {
		s.reject(w, r, applog.OpUpdate, core.ErrMissingID)
		return
	}

	p, err := ParsePayload(w, r)
	if err != nil {
		s.reject(w, r, applog.OpUpdate, err)
		return
	}

	res, err := s.api.Update(r.Context(), id, p)
	if err != nil {
		if core.IsClientError(err) {
			s.reject(w, r, applog.OpUpdate, err)
			return
		}
		s.logFailure(r, "Update failed", applog.OpUpdate, id, err)
		FromError(err, "Update failed").Write(w)
		return
	}

	s.mutations().LogRecordMutation(r.Context(), applog.OpUpdate, id)
	NewJSONResponse().JSON(res).Write(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := PathID(r)

	res, err := s.api.Delete(r.Context(), id)
	if err != nil {
		if core.IsClientError(err) {
			s.reject(w, r, applog.OpDelete, err)
			return
		}
		s.logFailure(r, "Delete failed", applog.OpDelete, id, err)
		FromError(err, "Delete failed").Write(w)
		return
	}

	s.mutations().LogRecordMutation(r.Context(), applog.OpDelete, id)
	NewJSONResponse().JSON(res).Write(w)
}

// handleMissingID answers PUT and DELETE on the collection path, where the
// id segment is absent.
func (s *Server) handleMissingID(w http.ResponseWriter, r *http.Request) {
	op := applog.OpUpdate
	if r.Method == http.MethodDelete {
		op = applog.OpDelete
	}
	s.reject(w, r, op, core.ErrMissingID)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "not ready: %v", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Not found").Write(w)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, op string, err error) {
	var fields []string
	if verr, ok := asValidation(err); ok {
		fields = verr.Fields
	}
	s.mutations().LogRejected(r.Context(), op, fields, err)
	FromError(err, "").Write(w)
}

func (s *Server) logFailure(r *http.Request, msg, op, id string, err error) {
	fields := applog.NewFields()
	if id != "" {
		fields = fields.WithRecord(id)
	}
	s.mutations().LogError(r.Context(), msg, err, applog.ComponentExpense, op, fields)
}

func (s *Server) mutations() *applog.StructuredLogger {
	return s.structured
}

func asValidation(err error) (*core.ValidationError, bool) {
	var verr *core.ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
