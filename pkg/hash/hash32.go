package hash

import (
	"encoding/hex"
	"fmt"
	"strings"
)

type Hash32 [32]byte

// Hex returns the lowercase hex form with a 0x prefix.
func (h Hash32) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash32) String() string { return h.Hex() }

// Parse accepts the Hex form, with or without the 0x prefix.
func Parse(s string) (Hash32, error) {
	var h Hash32
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != 2*len(h) {
		return h, fmt.Errorf("hash: invalid length %d", len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("hash: decode hex: %w", err)
	}
	return h, nil
}
