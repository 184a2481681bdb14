package registry

import (
	"crypto/rand"
	"math/big"
)

const (
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIDLength   = 6
)

// IDGenerator produces candidate room codes. The registry retries on collision.
type IDGenerator interface {
	Generate() string
}

// RandomIDGenerator yields six character uppercase alphanumeric codes.
type RandomIDGenerator struct{}

func (RandomIDGenerator) Generate() string {
	max := big.NewInt(int64(len(roomIDAlphabet)))
	b := make([]byte, roomIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is gone
			panic(err)
		}
		b[i] = roomIDAlphabet[n.Int64()]
	}
	return string(b)
}
