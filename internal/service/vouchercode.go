package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	codeLength     = 10
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O or 1/I
	maxCodeRetries = 3
)

// generateVoucherCode returns PREFIX-XXXXXXXXXX using crypto/rand.
func generateVoucherCode(prefix string) (string, error) {
	b := make([]byte, codeLength)
	for i := range b {
		idx, err := cryptoRandInt(len(codeAlphabet))
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b[i] = codeAlphabet[idx]
	}
	return strings.ToUpper(prefix) + "-" + string(b), nil
}

// cryptoRandInt returns a cryptographically secure random integer in [0, max).
func cryptoRandInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
