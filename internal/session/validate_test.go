package session

import (
	"strings"
	"testing"
)

func TestValidWallet(t *testing.T) {
	t.Parallel()

	friendly := "EQ" + strings.Repeat("A", 46)
	cases := []struct {
		name  string
		in    string
		valid bool
	}{
		{"bounceable", friendly, true},
		{"non-bounceable", "UQ" + strings.Repeat("b", 23) + strings.Repeat("_", 23), true},
		{"testnet flag", "Ef" + strings.Repeat("0", 46), true},
		{"raw hex", "0:" + strings.Repeat("a", 64), true},
		{"raw hex upper", "0:" + strings.Repeat("F", 64), true},
		{"surrounding spaces", "  " + friendly + "  ", true},
		{"empty", "", false},
		{"too short", "EQ" + strings.Repeat("A", 45), false},
		{"too long", "EQ" + strings.Repeat("A", 47), false},
		{"bad prefix", "XQ" + strings.Repeat("A", 46), false},
		{"raw wrong workchain", "1:" + strings.Repeat("a", 64), false},
		{"raw short", "0:" + strings.Repeat("a", 63), false},
		{"raw non-hex", "0:" + strings.Repeat("g", 64), false},
		{"plus not allowed", "EQ" + strings.Repeat("A", 45) + "+", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidWallet(tc.in)
			if tc.valid && err != nil {
				t.Fatalf("ValidWallet(%q) = %v, want nil", tc.in, err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("ValidWallet(%q) = nil, want error", tc.in)
			}
		})
	}
}

func TestParsePercent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"0", "65", "100", " 42 "} {
		if _, err := ParsePercent(in); err != nil {
			t.Fatalf("ParsePercent(%q) = %v", in, err)
		}
	}
	for _, in := range []string{"-1", "101", "65.5", "abc", ""} {
		if _, err := ParsePercent(in); err == nil {
			t.Fatalf("ParsePercent(%q) accepted", in)
		}
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	d, err := ParseAmount("123.45")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if d.String() != "123.45" {
		t.Fatalf("amount = %s", d)
	}
	for _, in := range []string{"0", "-5", "nope", ""} {
		if _, err := ParseAmount(in); err == nil {
			t.Fatalf("ParseAmount(%q) accepted", in)
		}
	}
}

func TestParseUserID(t *testing.T) {
	t.Parallel()

	id, err := ParseUserID(" 123456789 ")
	if err != nil || id != 123456789 {
		t.Fatalf("ParseUserID: id=%d err=%v", id, err)
	}
	for _, in := range []string{"0", "-3", "12x", ""} {
		if _, err := ParseUserID(in); err == nil {
			t.Fatalf("ParseUserID(%q) accepted", in)
		}
	}
}
