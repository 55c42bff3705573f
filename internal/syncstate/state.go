// Package syncstate holds a client's view of the record set. All changes go
// through Store.Dispatch and the pure Reduce function; the Controller drives
// the API and dispatches the outcome.
package syncstate

import (
	"slices"

	"expensetracker/internal/core"
)

// Status is the load state of the record list.
type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	LoadError
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadError:
		return "load_error"
	default:
		return "unknown"
	}
}

// Op names the mutation a draft is for.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Draft is the edit the user is working on. It survives a failed mutation
// so the user can retry without re-entering data.
type Draft struct {
	Op      Op
	ID      string
	Payload core.Payload
}

// State is an immutable snapshot. Records is replaced wholesale, never
// patched, and must not be modified by readers.
type State struct {
	Status  Status
	Records []core.Record
	LoadErr error

	ModalLoading bool
	ModalErr     error
	Draft        *Draft
}

// Stale reports whether Records are left over from an earlier load.
func (s State) Stale() bool {
	return s.Status == LoadError && s.Records != nil
}

// Action is a state transition request.
type Action interface {
	isAction()
}

type (
	// LoadStarted begins a fetch of the full record set.
	LoadStarted struct{}
	// LoadSucceeded replaces the cached records.
	LoadSucceeded struct{ Records []core.Record }
	// LoadFailed keeps the cached records and flags them stale.
	LoadFailed struct{ Err error }

	// DraftOpened starts editing. It clears any previous modal error.
	DraftOpened struct{ Draft Draft }
	// DraftClosed abandons the current edit.
	DraftClosed struct{}

	// MutationStarted marks a mutation in flight for the given draft.
	MutationStarted struct{ Draft Draft }
	// MutationSucceeded closes the draft.
	MutationSucceeded struct{}
	// MutationFailed keeps the draft and records a modal-scoped error.
	MutationFailed struct{ Err error }
)

func (LoadStarted) isAction()       {}
func (LoadSucceeded) isAction()     {}
func (LoadFailed) isAction()        {}
func (DraftOpened) isAction()       {}
func (DraftClosed) isAction()       {}
func (MutationStarted) isAction()   {}
func (MutationSucceeded) isAction() {}
func (MutationFailed) isAction()    {}

// Reduce returns the state after applying a. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoadStarted:
		s.Status = Loading
	case LoadSucceeded:
		s.Status = Loaded
		s.Records = slices.Clone(a.Records)
		if s.Records == nil {
			s.Records = []core.Record{}
		}
		s.LoadErr = nil
	case LoadFailed:
		s.Status = LoadError
		s.LoadErr = a.Err

	case DraftOpened:
		d := a.Draft
		s.Draft = &d
		s.ModalErr = nil
	case DraftClosed:
		if !s.ModalLoading {
			s.Draft = nil
			s.ModalErr = nil
		}

	case MutationStarted:
		d := a.Draft
		s.Draft = &d
		s.ModalLoading = true
		s.ModalErr = nil
	case MutationSucceeded:
		s.ModalLoading = false
		s.ModalErr = nil
		s.Draft = nil
	case MutationFailed:
		s.ModalLoading = false
		s.ModalErr = a.Err
	}
	return s
}
