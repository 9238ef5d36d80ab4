package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

// CodeTTL is how long verification and reset codes stay valid.
const CodeTTL = 10 * time.Minute

const (
	codeMin = 100000
	codeMax = 999999
)

// GenerateVerificationCode returns a uniformly random six-digit code.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// CodeMatches reports whether given equals stored and now is before expires.
func CodeMatches(stored, given string, expires *time.Time, now time.Time) bool {
	if stored == "" || expires == nil || !now.Before(*expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
