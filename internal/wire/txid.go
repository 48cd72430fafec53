package wire

import (
	"crypto/rand"
	"math/big"
)

// txidBytes is 120 bits, per spec §3 ("Transaction id").
const txidBytes = 15

// NewTxID returns a random 120-bit value rendered in base 36. It is opaque
// to the server and used only for observability (logging).
func NewTxID() string {
	buf := make([]byte, txidBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on the stdlib reader only fails if the OS RNG is
		// broken; a transaction id is non-cryptographic, so fall back to a
		// fixed pattern rather than propagating an error through Call's
		// otherwise error-free id-allocation step.
		for i := range buf {
			buf[i] = byte(i + 1)
		}
	}
	return new(big.Int).SetBytes(buf).Text(36)
}
