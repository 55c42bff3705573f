package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/store"
	"expensetracker/internal/store/memory"
)

// countingStore wraps a memory store and counts writes.
type countingStore struct {
	*memory.Store
	mu     sync.Mutex
	writes int
	err    error
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New()}
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *countingStore) hit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return c.err
}

func (c *countingStore) Put(ctx context.Context, it store.Item) error {
	if err := c.hit(); err != nil {
		return err
	}
	return c.Store.Put(ctx, it)
}

func (c *countingStore) UpdateFields(ctx context.Context, id string, fields store.Item) error {
	if err := c.hit(); err != nil {
		return err
	}
	return c.Store.UpdateFields(ctx, id, fields)
}

func (c *countingStore) DeleteByID(ctx context.Context, id string) error {
	if err := c.hit(); err != nil {
		return err
	}
	return c.Store.DeleteByID(ctx, id)
}

func (c *countingStore) ScanAll(ctx context.Context) ([]store.Item, error) {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.Store.ScanAll(ctx)
}

type recordedEvent struct{ id, op string }

type fakePublisher struct {
	events []recordedEvent
	err    error
	closed bool
}

func (f *fakePublisher) PublishRecordEvent(_ context.Context, id, op string) error {
	f.events = append(f.events, recordedEvent{id, op})
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func lunch() core.Payload {
	return core.Payload{
		Amount:   "42.5",
		Category: "Food",
		Date:     "2024-03-01",
		Name:     "Lunch",
		Method:   "Visa",
		Status:   core.StatusCleared,
	}
}

func TestCreateThenList(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New(), nil)

	res, err := svc.Create(ctx, lunch())
	require.NoError(t, err)
	assert.Equal(t, "Expense added!", res.Message)
	assert.NotEmpty(t, res.ID)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, res.ID, r.ID)
	require.NotNil(t, r.Amount)
	assert.True(t, r.Amount.Equal(decimal.RequireFromString("42.5")))
	assert.Equal(t, "Food", *r.Category)
	assert.Equal(t, "2024-03-01", *r.Date)
	assert.Equal(t, "Lunch", *r.Name)
	assert.Equal(t, "Visa", *r.Method)
	assert.Equal(t, core.StatusCleared, *r.Status)
}

func TestCreateRejectsNonNumericAmount(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	svc := NewExpenseService(st, nil)

	_, err := svc.Create(ctx, core.Payload{Amount: "abc", Category: "Food", Date: "2024-03-01"})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, st.count())

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateStoresAmountAsNumber(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := NewExpenseService(st, nil)
	svc.newID = func() string { return "fixed" }

	p := lunch()
	p.Amount = " 1e3 "
	_, err := svc.Create(ctx, p)
	require.NoError(t, err)

	items, err := st.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, store.N("1000"), items[0][core.FieldAmount])
	assert.Equal(t, store.S("fixed"), items[0][core.FieldID])
}

func TestUpdateNonexistentSucceeds(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New(), nil)

	res, err := svc.Update(ctx, "nonexistent", lunch())
	require.NoError(t, err)
	assert.Equal(t, "Expense nonexistent updated", res.Message)
}

func TestUpdateReplacesEveryField(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New(), nil)

	created, err := svc.Create(ctx, lunch())
	require.NoError(t, err)

	next := core.Payload{
		Amount:   "-7",
		Category: "Travel",
		Date:     "2024-04-02",
		Name:     "Train",
		Method:   "Cash",
		Status:   core.StatusPending,
	}
	_, err = svc.Update(ctx, created.ID, next)
	require.NoError(t, err)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, created.ID, r.ID)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(-7)))
	assert.Equal(t, "Travel", *r.Category)
	assert.Equal(t, "2024-04-02", *r.Date)
	assert.Equal(t, "Train", *r.Name)
	assert.Equal(t, "Cash", *r.Method)
	assert.Equal(t, core.StatusPending, *r.Status)
}

func TestUpdateAndDeleteRequireID(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	svc := NewExpenseService(st, nil)

	_, err := svc.Update(ctx, "  ", lunch())
	assert.ErrorIs(t, err, core.ErrMissingID)
	_, err = svc.Delete(ctx, "")
	assert.ErrorIs(t, err, core.ErrMissingID)
	assert.Zero(t, st.count())
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New(), nil)

	created, err := svc.Create(ctx, lunch())
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "Expense nonexistent deleted", res.Message)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, created.ID, records[0].ID)

	_, first := svc.Delete(ctx, created.ID)
	_, second := svc.Delete(ctx, created.ID)
	assert.NoError(t, first)
	assert.NoError(t, second)

	records, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("provisioned throughput exceeded")
	st := newCountingStore()
	st.err = boom
	svc := NewExpenseService(st, nil)

	check := func(err error, op string) {
		t.Helper()
		var serr *core.StoreError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, op, serr.Op)
		assert.ErrorIs(t, err, boom)
		assert.False(t, core.IsClientError(err))
	}

	_, err := svc.Create(ctx, lunch())
	check(err, "put")
	_, err = svc.Update(ctx, "x", lunch())
	check(err, "update")
	_, err = svc.Delete(ctx, "x")
	check(err, "delete")
	_, err = svc.List(ctx)
	check(err, "scan")
}

func TestListToleratesLegacyRecords(t *testing.T) {
	ctx := context.Background()
	st := memory.NewSeeded(
		store.Item{"id": store.S("a"), "amount": store.N("12"), "category": store.S("Food"), "date": store.S("2024-01-01")},
		store.Item{"id": store.S("b"), "amount": store.N("not-a-number"), "name": store.N("5")},
		store.Item{"id": store.S("c"), "amount": store.S("3"), "status": store.S("")},
	)
	svc := NewExpenseService(st, nil)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"a", "b", "c"}, []string{records[0].ID, records[1].ID, records[2].ID})

	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(12)))
	assert.Nil(t, records[0].Name)
	assert.Nil(t, records[0].Method)

	assert.Nil(t, records[1].Amount)
	assert.Nil(t, records[1].Name, "number-typed text attribute is absent")

	assert.Nil(t, records[2].Amount, "string-typed amount is absent")
	require.NotNil(t, records[2].Status, "empty string is distinct from absent")
	assert.Equal(t, "", *records[2].Status)
}

func TestPublishesEventsAfterMutations(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewExpenseService(memory.New(), pub)
	svc.newID = func() string { return "id-1" }

	_, err := svc.Create(ctx, lunch())
	require.NoError(t, err)
	_, err = svc.Update(ctx, "id-1", lunch())
	require.NoError(t, err)
	_, err = svc.Delete(ctx, "id-1")
	require.NoError(t, err)

	assert.Equal(t, []recordedEvent{
		{"id-1", amqp.OpCreated},
		{"id-1", amqp.OpUpdated},
		{"id-1", amqp.OpDeleted},
	}, pub.events)

	_, err = svc.Create(ctx, core.Payload{})
	require.Error(t, err)
	assert.Len(t, pub.events, 3, "rejected requests publish nothing")
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	svc := NewExpenseService(memory.New(), pub)

	_, err := svc.Create(ctx, lunch())
	require.NoError(t, err)
	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		svc := &ExpenseService{}
		require.NoError(t, svc.Close())
	})

	t.Run("closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := NewExpenseService(memory.New(), pub)
		require.NoError(t, svc.Close())
		assert.True(t, pub.closed)
	})
}

var textGen = rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ]{0,18}[A-Za-z0-9]`)

func validPayloadGen() *rapid.Generator[core.Payload] {
	return rapid.Custom(func(t *rapid.T) core.Payload {
		cents := rapid.Int64Range(-1_000_000_00, 1_000_000_00).Draw(t, "cents")
		return core.Payload{
			Amount:   core.AmountInput(decimal.New(cents, -2).String()),
			Category: textGen.Draw(t, "category"),
			Date:     textGen.Draw(t, "date"),
			Name:     textGen.Draw(t, "name"),
			Method:   textGen.Draw(t, "method"),
			Status:   rapid.SampledFrom([]string{core.StatusPending, core.StatusCleared, core.StatusScheduled, "Other"}).Draw(t, "status"),
		}
	})
}

func TestPropertyInvalidPayloadsNeverWrite(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := validPayloadGen().Draw(t, "payload")
		switch rapid.IntRange(0, 6).Draw(t, "broken") {
		case 0:
			p.Amount = core.AmountInput(rapid.SampledFrom([]string{"", "abc", "NaN", "Infinity", "-Inf", "1,5", "true", "1e400", "1e5000000"}).Draw(t, "amount"))
		case 1:
			p.Category = strings.Repeat(" ", rapid.IntRange(0, 3).Draw(t, "spaces"))
		case 2:
			p.Date = ""
		case 3:
			p.Name = "\t"
		case 4:
			p.Method = ""
		case 5:
			p.Status = " \n"
		case 6:
			p = core.Payload{}
		}

		st := newCountingStore()
		svc := NewExpenseService(st, nil)
		ctx := context.Background()

		_, err := svc.Create(ctx, p)
		if !errors.Is(err, core.ErrValidation) {
			t.Fatalf("create: expected validation error, got %v", err)
		}
		_, err = svc.Update(ctx, "some-id", p)
		if !errors.Is(err, core.ErrValidation) {
			t.Fatalf("update: expected validation error, got %v", err)
		}
		if st.count() != 0 {
			t.Fatalf("store written %d times", st.count())
		}
	})
}

func TestPropertyCreateRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := NewExpenseService(memory.New(), nil)
		payloads := rapid.SliceOfN(validPayloadGen(), 1, 8).Draw(t, "payloads")

		seen := make(map[string]core.Payload)
		for _, p := range payloads {
			res, err := svc.Create(ctx, p)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if res.ID == "" {
				t.Fatalf("empty id")
			}
			if _, dup := seen[res.ID]; dup {
				t.Fatalf("duplicate id %s", res.ID)
			}
			seen[res.ID] = p
		}

		records, err := svc.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(records) != len(payloads) {
			t.Fatalf("listed %d records, created %d", len(records), len(payloads))
		}
		for _, r := range records {
			p := seen[r.ID]
			want := decimal.RequireFromString(string(p.Amount))
			if r.Amount == nil || !r.Amount.Equal(want) {
				t.Fatalf("amount %v, want %s", r.Amount, want)
			}
			if *r.Category != p.Category || *r.Date != p.Date || *r.Name != p.Name ||
				*r.Method != p.Method || *r.Status != p.Status {
				t.Fatalf("record %+v does not match payload %+v", r, p)
			}
		}
	})
}

func TestPropertyUpdateReplacesAllFields(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		svc := NewExpenseService(memory.New(), nil)

		created, err := svc.Create(ctx, validPayloadGen().Draw(t, "before"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		after := validPayloadGen().Draw(t, "after")
		if _, err := svc.Update(ctx, created.ID, after); err != nil {
			t.Fatalf("update: %v", err)
		}

		records, err := svc.List(ctx)
		if err != nil || len(records) != 1 {
			t.Fatalf("list: %v (%d records)", err, len(records))
		}
		r := records[0]
		if !r.Amount.Equal(decimal.RequireFromString(string(after.Amount))) ||
			*r.Category != after.Category || *r.Date != after.Date ||
			*r.Name != after.Name || *r.Method != after.Method || *r.Status != after.Status {
			t.Fatalf("mixed record %+v after update with %+v", r, after)
		}
	})
}
