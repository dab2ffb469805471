package query

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecords(t *testing.T) {
	result := Result{
		Columns: []string{"city", "total"},
		Rows:    [][]any{{"Madrid", int64(4)}, {"Sevilla"}},
	}
	want := []map[string]any{
		{"city": "Madrid", "total": int64(4)},
		{"city": "Sevilla"},
	}
	if diff := cmp.Diff(want, result.Records()); diff != "" {
		t.Fatalf("Records() mismatch (-want +got):\n%s", diff)
	}
	if got := (Result{}).Records(); got == nil || len(got) != 0 {
		t.Fatalf("empty Records() = %#v", got)
	}
}

func TestKindOfAndFatal(t *testing.T) {
	timeout := fmt.Errorf("run: %w", NewExecutionError(KindTimeout, errors.New("deadline")))
	if KindOf(timeout) != KindTimeout || !Fatal(timeout) {
		t.Fatalf("timeout: kind=%s fatal=%v", KindOf(timeout), Fatal(timeout))
	}
	refused := NewExecutionError(KindConnectionRefused, errors.New("dial"))
	if !Fatal(refused) {
		t.Fatal("connection refused should be fatal")
	}
	syntax := NewExecutionError(KindSyntax, errors.New("bad"))
	if KindOf(syntax) != KindSyntax || Fatal(syntax) {
		t.Fatalf("syntax: kind=%s fatal=%v", KindOf(syntax), Fatal(syntax))
	}
	plain := errors.New("other")
	if KindOf(plain) != KindOther || Fatal(plain) {
		t.Fatal("plain errors are KindOther and not fatal")
	}
	if got := syntax.Error(); got != "execute query (SYNTAX_ERROR): bad" {
		t.Fatalf("Error() = %q", got)
	}
}

type decimalValue float64

func (d decimalValue) Float64() float64 { return float64(d) }

func TestNormalize(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	cases := []struct {
		name    string
		in      any
		decimal bool
		want    any
	}{
		{"bytes", []byte("Madrid"), false, "Madrid"},
		{"decimal bytes", []byte("12.50"), true, 12.5},
		{"decimal string", "7", true, float64(7)},
		{"text stays text", "12.50", false, "12.50"},
		{"unparseable decimal", "NaN?", true, "NaN?"},
		{"small hugeint", big.NewInt(42), false, int64(42)},
		{"large hugeint", huge, false, "123456789012345678901234567890"},
		{"float64 method", decimalValue(3.25), false, 3.25},
		{"nil", nil, false, nil},
		{"int", int64(5), false, int64(5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, normalize(tc.in, tc.decimal)); diff != "" {
				t.Fatalf("normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
