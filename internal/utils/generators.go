package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateTicketNumber returns a human-readable ticket number, e.g. TKT-1718000000000-k3j9x0a1b.
func GenerateTicketNumber() string {
	return fmt.Sprintf("TKT-%d-%s", time.Now().UnixMilli(), randomBase36(9))
}

func randomBase36(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base36)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is not recoverable in a useful way; fall back to the clock
			idx = big.NewInt(time.Now().UnixNano() % int64(len(base36)))
		}
		out[i] = base36[idx.Int64()]
	}
	return string(out)
}
