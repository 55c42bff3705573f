package core

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Attribute names shared by the store, the service and the wire format.
const (
	FieldID       = "id"
	FieldAmount   = "amount"
	FieldCategory = "category"
	FieldDate     = "date"
	FieldName     = "name"
	FieldMethod   = "method"
	FieldStatus   = "status"
)

// MutableFields lists every field a caller may set, in canonical order.
var MutableFields = []string{FieldAmount, FieldCategory, FieldDate, FieldName, FieldMethod, FieldStatus}

// Status values recognized by clients. The server only requires a non-empty status.
const (
	StatusPending   = "Pending"
	StatusCleared   = "Cleared"
	StatusScheduled = "Scheduled"
)

type (
	// Expense is a validated record. Every text field is trimmed and non-empty.
	Expense struct {
		ID       string
		Amount   decimal.Decimal
		Category string
		Date     string
		Name     string
		Method   string
		Status   string
	}

	// Record is the public listing shape. A nil field was absent in storage,
	// which is different from a field set to the empty string.
	Record struct {
		ID       string           `json:"id"`
		Amount   *decimal.Decimal `json:"-"`
		Category *string          `json:"category,omitempty"`
		Date     *string          `json:"date,omitempty"`
		Name     *string          `json:"name,omitempty"`
		Method   *string          `json:"method,omitempty"`
		Status   *string          `json:"status,omitempty"`
	}
)

// Record converts a validated expense into its listing shape.
func (e Expense) Record() Record {
	amount := e.Amount
	return Record{
		ID:       e.ID,
		Amount:   &amount,
		Category: strPtr(e.Category),
		Date:     strPtr(e.Date),
		Name:     strPtr(e.Name),
		Method:   strPtr(e.Method),
		Status:   strPtr(e.Status),
	}
}

// recordJSON mirrors Record with the amount as a bare JSON number.
type recordJSON struct {
	ID       string      `json:"id"`
	Amount   json.Number `json:"amount,omitempty"`
	Category *string     `json:"category,omitempty"`
	Date     *string     `json:"date,omitempty"`
	Name     *string     `json:"name,omitempty"`
	Method   *string     `json:"method,omitempty"`
	Status   *string     `json:"status,omitempty"`
}

// MarshalJSON renders the amount as a number, never as a quoted string.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:       r.ID,
		Category: r.Category,
		Date:     r.Date,
		Name:     r.Name,
		Method:   r.Method,
		Status:   r.Status,
	}
	if r.Amount != nil {
		out.Amount = json.Number(r.Amount.String())
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the amount as a number or a numeric string.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in struct {
		recordJSON
		Amount *AmountInput `json:"amount"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record{
		ID:       in.ID,
		Category: in.Category,
		Date:     in.Date,
		Name:     in.Name,
		Method:   in.Method,
		Status:   in.Status,
	}
	if in.Amount != nil && !in.Amount.IsEmpty() {
		d, err := ParseAmount(string(*in.Amount))
		if err != nil {
			return err
		}
		r.Amount = &d
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
