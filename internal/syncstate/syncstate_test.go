package syncstate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"expensetracker/internal/client"
	"expensetracker/internal/core"
)

func rec(id string) core.Record {
	return core.Record{ID: id}
}

func TestReduceLoadLifecycle(t *testing.T) {
	s := State{}
	assert.Equal(t, Idle, s.Status)

	s = Reduce(s, LoadStarted{})
	assert.Equal(t, Loading, s.Status)

	s = Reduce(s, LoadSucceeded{Records: []core.Record{rec("a"), rec("b")}})
	assert.Equal(t, Loaded, s.Status)
	assert.Len(t, s.Records, 2)
	assert.False(t, s.Stale())

	s = Reduce(s, LoadStarted{})
	assert.Equal(t, Loading, s.Status)
	assert.Len(t, s.Records, 2, "records stay visible while reloading")

	boom := errors.New("network down")
	s = Reduce(s, LoadFailed{Err: boom})
	assert.Equal(t, LoadError, s.Status)
	assert.Equal(t, boom, s.LoadErr)
	assert.Len(t, s.Records, 2, "stale records are retained")
	assert.True(t, s.Stale())

	s = Reduce(s, LoadSucceeded{Records: []core.Record{rec("c")}})
	assert.Nil(t, s.LoadErr)
	assert.Equal(t, []core.Record{rec("c")}, s.Records, "records are replaced wholesale")
}

func TestReduceEmptyLoadIsNotNil(t *testing.T) {
	s := Reduce(State{}, LoadSucceeded{})
	assert.NotNil(t, s.Records)
	assert.Empty(t, s.Records)
}

func TestReduceDoesNotAliasInput(t *testing.T) {
	in := []core.Record{rec("a")}
	s := Reduce(State{}, LoadSucceeded{Records: in})
	in[0].ID = "changed"
	assert.Equal(t, "a", s.Records[0].ID)
}

func TestReduceMutationLifecycle(t *testing.T) {
	d := Draft{Op: OpUpdate, ID: "a", Payload: core.Payload{Name: "Lunch"}}

	s := Reduce(State{}, DraftOpened{Draft: d})
	require.NotNil(t, s.Draft)

	s = Reduce(s, MutationStarted{Draft: d})
	assert.True(t, s.ModalLoading)

	// Closing is ignored while the change is in flight
	s = Reduce(s, DraftClosed{})
	assert.NotNil(t, s.Draft)

	boom := errors.New("update failed")
	s = Reduce(s, MutationFailed{Err: boom})
	assert.False(t, s.ModalLoading)
	assert.Equal(t, boom, s.ModalErr)
	require.NotNil(t, s.Draft, "draft survives a failed mutation")
	assert.Equal(t, d, *s.Draft)

	s = Reduce(s, MutationStarted{Draft: d})
	assert.Nil(t, s.ModalErr, "retry clears the previous error")

	s = Reduce(s, MutationSucceeded{})
	assert.False(t, s.ModalLoading)
	assert.Nil(t, s.Draft)

	s = Reduce(s, DraftOpened{Draft: d})
	s = Reduce(s, DraftClosed{})
	assert.Nil(t, s.Draft)
}

func TestReduceRecordsOnlyChangeOnLoadSuccess(t *testing.T) {
	actions := []Action{
		LoadStarted{}, LoadFailed{Err: errors.New("x")},
		DraftOpened{}, DraftClosed{},
		MutationStarted{}, MutationSucceeded{}, MutationFailed{Err: errors.New("y")},
	}

	rapid.Check(t, func(t *rapid.T) {
		initial := []core.Record{rec("seed")}
		s := Reduce(State{}, LoadSucceeded{Records: initial})

		steps := rapid.SliceOf(rapid.SampledFrom(actions)).Draw(t, "actions")
		for _, a := range steps {
			s = Reduce(s, a)
		}
		if len(s.Records) != 1 || s.Records[0].ID != "seed" {
			t.Fatalf("records changed without a successful load: %v", s.Records)
		}
	})
}

func TestStoreSubscribe(t *testing.T) {
	st := NewStore()

	var seen []Status
	unsubscribe := st.Subscribe(func(s State) { seen = append(seen, s.Status) })

	st.Dispatch(LoadStarted{})
	st.Dispatch(LoadSucceeded{})
	unsubscribe()
	st.Dispatch(LoadStarted{})

	assert.Equal(t, []Status{Loading, Loaded}, seen)
	assert.Equal(t, Loading, st.State().Status)
}

func TestStoreTryDispatchGuard(t *testing.T) {
	st := NewStore()
	notified := 0
	st.Subscribe(func(State) { notified++ })

	guardErr := errors.New("no")
	_, err := st.TryDispatch(LoadStarted{}, func(State) error { return guardErr })
	assert.ErrorIs(t, err, guardErr)
	assert.Equal(t, Idle, st.State().Status)
	assert.Zero(t, notified)
}

// fakeAPI records calls. AddExpense blocks on gate when set.
type fakeAPI struct {
	mu        sync.Mutex
	records   []core.Record
	listErr   error
	mutateErr error
	gate      chan struct{}
	started   chan struct{}
	calls     []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GetExpenses(context.Context) ([]core.Record, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Record(nil), f.records...), nil
}

func (f *fakeAPI) AddExpense(_ context.Context, p core.Payload) (client.Result, error) {
	f.record("add")
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.mutateErr != nil {
		return client.Result{}, f.mutateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, core.Record{ID: "new", Name: &p.Name})
	return client.Result{ID: "new", Message: "Expense added!"}, nil
}

func (f *fakeAPI) UpdateExpense(_ context.Context, id string, _ core.Payload) (client.Result, error) {
	f.record("update " + id)
	if f.mutateErr != nil {
		return client.Result{}, f.mutateErr
	}
	return client.Result{Message: "Expense " + id + " updated"}, nil
}

func (f *fakeAPI) DeleteExpense(_ context.Context, id string) (client.Result, error) {
	f.record("delete " + id)
	if f.mutateErr != nil {
		return client.Result{}, f.mutateErr
	}
	return client.Result{Message: "Expense " + id + " deleted"}, nil
}

func newTestController(api API) *Controller {
	return NewController(api, NewStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestControllerRefresh(t *testing.T) {
	api := &fakeAPI{records: []core.Record{rec("a")}}
	c := newTestController(api)

	require.NoError(t, c.Refresh(context.Background()))
	s := c.Store().State()
	assert.Equal(t, Loaded, s.Status)
	assert.Equal(t, []core.Record{rec("a")}, s.Records)

	api.listErr = errors.New("timeout")
	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, api.listErr)
	s = c.Store().State()
	assert.Equal(t, LoadError, s.Status)
	assert.Equal(t, []core.Record{rec("a")}, s.Records)
}

func TestControllerMutationsRefreshAfterSuccess(t *testing.T) {
	api := &fakeAPI{}
	c := newTestController(api)
	ctx := context.Background()

	res, err := c.Create(ctx, core.Payload{Name: "Lunch"})
	require.NoError(t, err)
	assert.Equal(t, "Expense added!", res.Message)

	_, err = c.Update(ctx, "new", core.Payload{Name: "Dinner"})
	require.NoError(t, err)
	_, err = c.Delete(ctx, "new")
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "list", "update new", "list", "delete new", "list"}, api.Calls())

	s := c.Store().State()
	assert.Equal(t, Loaded, s.Status)
	assert.False(t, s.ModalLoading)
	assert.Nil(t, s.Draft)
	require.Len(t, s.Records, 1)
}

func TestControllerFailedMutationKeepsDraft(t *testing.T) {
	api := &fakeAPI{mutateErr: &client.APIError{StatusCode: 500, Message: "Update failed"}}
	c := newTestController(api)

	p := core.Payload{Amount: "12", Name: "Taxi"}
	_, err := c.Update(context.Background(), "a", p)
	require.Error(t, err)

	s := c.Store().State()
	assert.Equal(t, err, s.ModalErr)
	require.NotNil(t, s.Draft)
	assert.Equal(t, Draft{Op: OpUpdate, ID: "a", Payload: p}, *s.Draft)
	assert.Equal(t, Loaded, s.Status, "the list is refetched after a failed mutation too")
	assert.False(t, s.ModalLoading)
	assert.Equal(t, []string{"update a", "list"}, api.Calls())
}

func TestControllerFailedMutationWithFailedRefresh(t *testing.T) {
	mutateErr := &client.APIError{StatusCode: 500, Message: "Delete failed"}
	api := &fakeAPI{mutateErr: mutateErr, listErr: errors.New("offline")}
	c := newTestController(api)

	_, err := c.Delete(context.Background(), "a")
	require.ErrorIs(t, err, mutateErr, "the mutation error is reported, not the refresh error")

	s := c.Store().State()
	assert.Equal(t, LoadError, s.Status)
	assert.Equal(t, mutateErr, s.ModalErr)
	require.NotNil(t, s.Draft)
	assert.Equal(t, Draft{Op: OpDelete, ID: "a"}, *s.Draft)
}

func TestControllerRefreshFailureAfterMutation(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("offline")}
	c := newTestController(api)

	_, err := c.Delete(context.Background(), "a")
	require.NoError(t, err, "the delete itself succeeded")

	s := c.Store().State()
	assert.Equal(t, LoadError, s.Status)
	assert.Nil(t, s.ModalErr)
}

func TestControllerRejectsConcurrentMutation(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{}), started: make(chan struct{})}
	c := newTestController(api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Create(context.Background(), core.Payload{Name: "first"})
		done <- err
	}()
	<-api.started

	_, err := c.Delete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMutationInFlight)
	_, err = c.Update(context.Background(), "x", core.Payload{})
	assert.ErrorIs(t, err, ErrMutationInFlight)

	close(api.gate)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"add", "list"}, api.Calls(), "rejected mutations have no side effects")

	_, err = c.Delete(context.Background(), "new")
	assert.NoError(t, err)
}
