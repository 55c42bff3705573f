package services

import (
	"context"
	"log/slog"

	"expensetracker/internal/core"
	"expensetracker/internal/store"
)

// expenseFields renders the mutable fields of e as store attributes.
// The amount is always a string-encoded number.
func expenseFields(e core.Expense) store.Item {
	return store.Item{
		core.FieldAmount:   store.N(core.FormatAmount(e.Amount)),
		core.FieldCategory: store.S(e.Category),
		core.FieldDate:     store.S(e.Date),
		core.FieldName:     store.S(e.Name),
		core.FieldMethod:   store.S(e.Method),
		core.FieldStatus:   store.S(e.Status),
	}
}

func expenseItem(e core.Expense) store.Item {
	it := expenseFields(e)
	it[core.FieldID] = store.S(e.ID)
	return it
}

// recordFromItem maps a stored item to the listing shape. Missing attributes,
// attributes of the wrong kind and unparseable amounts all become nil.
func recordFromItem(ctx context.Context, it store.Item) core.Record {
	r := core.Record{
		ID:       it.ID(),
		Category: stringAttr(it, core.FieldCategory),
		Date:     stringAttr(it, core.FieldDate),
		Name:     stringAttr(it, core.FieldName),
		Method:   stringAttr(it, core.FieldMethod),
		Status:   stringAttr(it, core.FieldStatus),
	}

	if v, ok := it[core.FieldAmount]; ok {
		if v.Kind != store.KindNumber {
			slog.DebugContext(ctx, "Amount stored with unexpected kind", "id", r.ID, "kind", v.Kind.String())
		} else if d, err := core.ParseAmount(v.Raw); err != nil {
			slog.WarnContext(ctx, "Unparseable stored amount", "id", r.ID, "raw", v.Raw)
		} else {
			r.Amount = &d
		}
	}
	return r
}

func stringAttr(it store.Item, name string) *string {
	v, ok := it[name]
	if !ok || v.Kind != store.KindString {
		return nil
	}
	s := v.Raw
	return &s
}
