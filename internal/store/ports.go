// Package store defines the capability interface over the durable key-value
// store holding expense records, and the item representation shared by all
// backends.
package store

import (
	"context"
	"errors"
)

// Kind tags the storage type of a scalar attribute.
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "S"
	case KindNumber:
		return "N"
	default:
		return "?"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "S":
		return KindString, nil
	case "N":
		return KindNumber, nil
	default:
		return 0, errors.New("unknown attribute kind " + s)
	}
}

// Value is one scalar attribute. Numbers are always carried as their
// string encoding, never as a native numeric type.
type Value struct {
	Kind Kind
	Raw  string
}

// S returns a string attribute.
func S(s string) Value { return Value{Kind: KindString, Raw: s} }

// N returns a number attribute from its string encoding.
func N(s string) Value { return Value{Kind: KindNumber, Raw: s} }

// Item is one stored record keyed by attribute name. The "id" attribute is
// the primary key.
type Item map[string]Value

// ID returns the primary key of the item, or "" when it has none.
func (it Item) ID() string {
	v, ok := it["id"]
	if !ok || v.Kind != KindString {
		return ""
	}
	return v.Raw
}

// Clone returns a copy that does not share the underlying map.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Ports for outbound adapters.
type (
	// Writer creates, replaces and removes items.
	Writer interface {
		// Put writes a full item, replacing any item with the same id.
		Put(ctx context.Context, it Item) error
		// UpdateFields sets the given attributes on the item with id in a
		// single write. A missing item is created.
		UpdateFields(ctx context.Context, id string, fields Item) error
		// DeleteByID removes the item. Removing a missing item is not an error.
		DeleteByID(ctx context.Context, id string) error
	}

	// Scanner returns every stored item in storage order.
	Scanner interface {
		ScanAll(ctx context.Context) ([]Item, error)
	}

	// Store is the full capability set the record service depends on.
	Store interface {
		Writer
		Scanner
		Close() error
	}
)
