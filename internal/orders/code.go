package orders

import (
	"crypto/rand"
	"math/big"
)

const (
	codePrefix   = "ORD-"
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	// maxCodeAttempts bounds re-rolls after an order code collision.
	maxCodeAttempts = 5
)

// CodeGenerator returns a candidate order code.
type CodeGenerator func() (string, error)

// NewCode returns "ORD-" followed by six characters drawn from A-Z0-9.
func NewCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return codePrefix + string(buf), nil
}
