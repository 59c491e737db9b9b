package session

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const (
	idPrefix   = "session_"
	idLength   = 9
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var alphabetSize = big.NewInt(int64(len(idAlphabet)))

// NewID returns a correlation token of the form session_XXXXXXXXX where the
// suffix is nine base-36 characters. It is never validated locally.
func NewID() string {
	var sb strings.Builder
	sb.Grow(len(idPrefix) + idLength)
	sb.WriteString(idPrefix)
	for i := 0; i < idLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is gone
			n = big.NewInt(time.Now().UnixNano() % int64(len(idAlphabet)))
		}
		sb.WriteByte(idAlphabet[n.Int64()])
	}
	return sb.String()
}

// FormatTime renders the display timestamp used next to messages,
// e.g. "3:04 pm".
func FormatTime(t time.Time) string {
	return strings.ToLower(t.Format("3:04 PM"))
}
