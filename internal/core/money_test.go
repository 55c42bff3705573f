package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"42.5", "42.5", true},
		{" 2.50 ", "2.5", true},
		{"-3.75", "-3.75", true},
		{"0", "0", true},
		{"1e3", "1000", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"NaN", "", false},
		{"Infinity", "", false},
		{"", "", false},
		{"   ", "", false},
		{"true", "", false},
		{"0e-5000000", "0", true},
		{"-0.000", "0", true},
		{"1.25e-3", "0.00125", true},
		{"1e400", "", false},
		{"-1e309", "", false},
		{"1.8e308", "", false},
		{"1e5000000", "", false},
		{"1e-5000000", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestParseAmountFloat64Bounds(t *testing.T) {
	d, err := ParseAmount("1.7976931348623157e308")
	if err != nil {
		t.Fatalf("largest float64 rejected: %v", err)
	}
	if len(FormatAmount(d)) != 309 {
		t.Fatalf("unexpected rendering length %d", len(FormatAmount(d)))
	}

	if _, err := ParseAmount("1e" + strings.Repeat("9", 9)); err == nil {
		t.Fatal("exponent beyond float64 range accepted")
	}
}

func TestAmountInputUnmarshal(t *testing.T) {
	cases := []struct {
		json string
		want AmountInput
	}{
		{`{"amount": 42.5}`, "42.5"},
		{`{"amount": "19.99"}`, "19.99"},
		{`{"amount": null}`, ""},
		{`{}`, ""},
		{`{"amount": true}`, "true"},
	}
	for _, tc := range cases {
		var p struct {
			Amount AmountInput `json:"amount"`
		}
		if err := json.Unmarshal([]byte(tc.json), &p); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.json, err)
		}
		if p.Amount != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.json, p.Amount, tc.want)
		}
	}
}

func TestAmountInputMarshal(t *testing.T) {
	cases := []struct {
		in   AmountInput
		want string
	}{
		{"42.5", `42.5`},
		{" -3 ", `-3`},
		{"", `null`},
		{"abc", `"abc"`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if string(b) != tc.want {
			t.Fatalf("%q: got %s, want %s", tc.in, b, tc.want)
		}
	}
}
