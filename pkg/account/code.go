package account

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const codeSecretLen = 20

// GenerateCode produces a fixed-width numeric verification code using the
// RFC 4226 HOTP construction over a single-use random secret and counter.
// The secret is discarded immediately; only the derived code is kept.
func GenerateCode(digits int) (string, error) {
	secret := make([]byte, codeSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}

	var counter [8]byte
	if _, err := rand.Read(counter[:]); err != nil {
		return "", err
	}

	return hotp.GenerateCodeCustom(
		base32.StdEncoding.EncodeToString(secret),
		binary.BigEndian.Uint64(counter[:]),
		hotp.ValidateOpts{
			Digits:    otp.Digits(digits),
			Algorithm: otp.AlgorithmSHA1,
		},
	)
}
