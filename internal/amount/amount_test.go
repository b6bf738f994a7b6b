package amount

import (
	"math/big"
	"testing"
)

func TestParse(t *testing.T) {
	got, err := Parse(" 12345678901234567890 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.String() != "12345678901234567890" {
		t.Fatalf("value mismatch: %s", got)
	}

	zero, err := Parse("")
	if err != nil || zero.Sign() != 0 {
		t.Fatalf("empty should parse to zero: %v %v", zero, err)
	}

	if _, err := Parse("-1"); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if _, err := Parse("1.5"); err == nil {
		t.Fatalf("expected error for fractional amount")
	}
}

func TestFormat(t *testing.T) {
	value, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := Format(value, 18); got != "1.5" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := Format(big.NewInt(42), 0); got != "42" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := Format(nil, 6); got != "0" {
		t.Fatalf("nil should format as 0, got %s", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(big.NewInt(1), big.NewInt(4), 4).String(); got != "0.25" {
		t.Fatalf("ratio mismatch: %s", got)
	}
	if got := Ratio(big.NewInt(1), big.NewInt(0), 4); !got.IsZero() {
		t.Fatalf("zero denominator should give zero, got %s", got)
	}
}
