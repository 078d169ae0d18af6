package services

import (
	"math/rand/v2"
	"strings"
	"time"
)

const (
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idSuffixLen   = 6
	maxIDAttempts = 10
)

// IDGenerator returns a candidate transaction id for the given instant.
type IDGenerator func(now time.Time) string

// NewTransactionID formats TXN_<YYYYMMDD>_<6 chars of [A-Z0-9]>.
func NewTransactionID(now time.Time) string {
	var b strings.Builder
	b.Grow(len("TXN_20060102_") + idSuffixLen)
	b.WriteString("TXN_")
	b.WriteString(now.UTC().Format("20060102"))
	b.WriteByte('_')
	for i := 0; i < idSuffixLen; i++ {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return b.String()
}
