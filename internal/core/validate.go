package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Payload is the body accepted by create and update.
type Payload struct {
	Amount   AmountInput `json:"amount"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
	Name     string      `json:"name"`
	Method   string      `json:"method"`
	Status   string      `json:"status"`
}

// UnmarshalJSON accepts any JSON object. A text field holding a non-string
// value decodes as empty, so Validate reports it instead of the decoder.
// Keys match exactly.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Payload
	if v, ok := raw[FieldAmount]; ok {
		if err := out.Amount.UnmarshalJSON(v); err != nil {
			return err
		}
	}
	out.Category = textValue(raw[FieldCategory])
	out.Date = textValue(raw[FieldDate])
	out.Name = textValue(raw[FieldName])
	out.Method = textValue(raw[FieldMethod])
	out.Status = textValue(raw[FieldStatus])

	*p = out
	return nil
}

func textValue(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// DecodePayload reads a JSON object from r. An empty body decodes to the
// zero Payload, which then fails validation rather than decoding.
func DecodePayload(r io.Reader) (Payload, error) {
	var p Payload
	body, err := io.ReadAll(r)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return p, nil
}

// Validate normalizes p into an Expense without an ID. All six fields are
// required on both create and update; the error lists every failing field.
func Validate(p Payload) (Expense, error) {
	var failed []string

	amount, err := ParseAmount(string(p.Amount))
	if err != nil {
		failed = append(failed, FieldAmount)
	}

	e := Expense{
		Amount:   amount,
		Category: strings.TrimSpace(p.Category),
		Date:     strings.TrimSpace(p.Date),
		Name:     strings.TrimSpace(p.Name),
		Method:   strings.TrimSpace(p.Method),
		Status:   strings.TrimSpace(p.Status),
	}

	for _, f := range []struct {
		name, value string
	}{
		{FieldCategory, e.Category},
		{FieldDate, e.Date},
		{FieldName, e.Name},
		{FieldMethod, e.Method},
		{FieldStatus, e.Status},
	} {
		if f.value == "" {
			failed = append(failed, f.name)
		}
	}

	if len(failed) > 0 {
		return Expense{}, &ValidationError{Fields: failed}
	}
	return e, nil
}

// RequireID trims id and fails with ErrMissingID when nothing is left.
func RequireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}
