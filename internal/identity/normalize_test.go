package identity

import (
	"errors"
	"strings"
	"testing"
)

const (
	condHex   = "f3b9f72a0c430fab613a4fbff2d8574ba35d17eb32cbb3de3a0b1c1a2b92dc9e"
	condMixed = "0xF3B9F72A0C430FAB613A4FBFF2D8574BA35D17EB32CBB3DE3A0B1C1A2B92DC9E"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want CanonicalID
	}{
		{"prefixed lowercase", "0x" + condHex, CanonicalID(condHex)},
		{"prefixed mixed case", condMixed, CanonicalID(condHex)},
		{"bare hex", condHex, CanonicalID(condHex)},
		{"bare hex uppercase", strings.ToUpper(condHex), CanonicalID(condHex)},
		{"whitespace trimmed", "  0x" + condHex + "\n", CanonicalID(condHex)},
		{"decimal integer", "255", CanonicalID(strings.Repeat("0", 62) + "ff")},
		{"decimal zero", "0", CanonicalID(strings.Repeat("0", 64))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

// Two encodings of the same market must collapse to one key.
func TestNormalizeEquivalentEncodings(t *testing.T) {
	// 0xff...ff == 2^256 - 1 in decimal.
	dec := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	hexForm := "0x" + strings.Repeat("ff", 32)

	a, err := Normalize(dec)
	if err != nil {
		t.Fatalf("Normalize(decimal) error: %v", err)
	}
	b, err := Normalize(hexForm)
	if err != nil {
		t.Fatalf("Normalize(hex) error: %v", err)
	}
	if a != b {
		t.Errorf("decimal and hex encodings diverged: %q vs %q", a, b)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{condMixed, condHex, "1234567890", "42"}
	for _, raw := range inputs {
		once, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", raw, err)
		}
		twice, err := Normalize(string(once))
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)) error: %v", raw, err)
		}
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", raw, once, twice)
		}
	}
}

func TestNormalizeMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"short prefixed hex", "0xabc123"},
		{"long prefixed hex", "0x" + condHex + "00"},
		{"invalid hex chars", "0x" + strings.Repeat("zz", 32)},
		{"mixed garbage", "market-42"},
		{"decimal too wide", "231584178474632390847141970017375815706539969331281128078915168015826259279872"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw)
			if err == nil {
				t.Fatalf("Normalize(%q) succeeded, want *UnrecognizedError", tc.raw)
			}
			var ue *UnrecognizedError
			if !errors.As(err, &ue) {
				t.Errorf("error type = %T, want *UnrecognizedError", err)
			}
			if ue != nil && ue.Raw != tc.raw {
				t.Errorf("ue.Raw = %q, want %q", ue.Raw, tc.raw)
			}
		})
	}
}

func TestCanonicalIDHex(t *testing.T) {
	id := CanonicalID(condHex)
	if got := id.Hex(); got != "0x"+condHex {
		t.Errorf("Hex() = %q, want %q", got, "0x"+condHex)
	}
	if got := id.Hash().Hex(); got != "0x"+condHex {
		t.Errorf("Hash().Hex() = %q, want %q", got, "0x"+condHex)
	}
}
