package identity

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CanonicalID is the canonical form of a market/condition identifier:
// 64 lowercase hex characters, no scheme prefix.
type CanonicalID string

// hexLen is the canonical id length in hex characters (32 bytes).
const hexLen = 2 * common.HashLength

// UnrecognizedError reports an identifier that cannot be normalized.
// Callers route these to quarantine/backfill instead of aborting the wallet.
type UnrecognizedError struct {
	Raw    string // Identifier as received
	Reason string // Why it was rejected
}

func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized market id %q: %s", e.Raw, e.Reason)
}

// Normalize maps a raw market identifier to its canonical form.
//
// Accepted encodings, in precedence order:
//   - 0x-prefixed hex of any case (exactly 32 bytes after the prefix)
//   - bare 64-char hex of any case
//   - bare decimal integer up to 256 bits, encoded big-endian
//
// A bare 64-char string of pure digits parses as hex: both readings name
// the same byte width and the hex reading keeps round-trips idempotent.
//
// Total and pure: every input yields either a CanonicalID or an
// *UnrecognizedError, never a panic. Idempotent: canonical output re-enters
// the bare-hex branch unchanged.
func Normalize(raw string) (CanonicalID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &UnrecognizedError{Raw: raw, Reason: "empty identifier"}
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		body := s[2:]
		if !isHex(body) {
			return "", &UnrecognizedError{Raw: raw, Reason: "invalid hex characters after 0x prefix"}
		}
		if len(body) != hexLen {
			return "", &UnrecognizedError{
				Raw:    raw,
				Reason: fmt.Sprintf("hex id must be %d chars, got %d", hexLen, len(body)),
			}
		}
		return CanonicalID(strings.ToLower(body)), nil
	}

	if len(s) == hexLen && isHex(s) {
		return CanonicalID(strings.ToLower(s)), nil
	}

	if isDecimal(s) {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return "", &UnrecognizedError{Raw: raw, Reason: "unparseable decimal integer"}
		}
		if n.BitLen() > 8*common.HashLength {
			return "", &UnrecognizedError{Raw: raw, Reason: "decimal id wider than 256 bits"}
		}
		h := common.BigToHash(n)
		return CanonicalID(hex.EncodeToString(h[:])), nil
	}

	return "", &UnrecognizedError{Raw: raw, Reason: "neither hex nor decimal"}
}

// Hash returns the id as a 32-byte hash. Only valid on canonical ids.
func (id CanonicalID) Hash() common.Hash {
	return common.HexToHash(string(id))
}

// Hex returns the 0x-prefixed form used when querying external APIs.
func (id CanonicalID) Hex() string {
	return "0x" + string(id)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
