package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// codeAlphabet leaves out 0/O and 1/I/L so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const ReferralCodeLength = 8

// GenerateReferralCode returns a random code drawn from crypto/rand.
func GenerateReferralCode() (string, error) {
	return RandomString(ReferralCodeLength, codeAlphabet)
}

func RandomString(n int, alphabet string) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", errors.New("invalid random string parameters")
	}
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}
