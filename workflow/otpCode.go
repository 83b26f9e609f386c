package workflow

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// CodeGenerator returns a numeric code of the given length.
type CodeGenerator func(digits int) (string, error)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateOTPCode derives an HOTP code from a fresh random secret and counter.
func GenerateOTPCode(digits int) (string, error) {
	if digits < 4 || digits > 8 {
		return "", fmt.Errorf("otp length %d out of range", digits)
	}
	seed := make([]byte, 28)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	secret := secretEncoding.EncodeToString(seed[:20])
	counter := binary.BigEndian.Uint64(seed[20:])
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.Digits(digits),
		Algorithm: otp.AlgorithmSHA1,
	})
}

func codesEqual(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
