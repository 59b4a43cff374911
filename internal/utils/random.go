package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTP returns a uniform random numeric code of OTPLength digits,
// zero-padded. Generated exactly once per ride, at the moment it is booked.
func GenerateOTP() string {
	max := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, _ := rand.Int(rand.Reader, max)
	return fmt.Sprintf("%0*d", OTPLength, n)
}

// SecureRandomInt returns a uniform random int in [0, max).
func SecureRandomInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}
