package cryptox

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const codeSecretSize = 20

// NumericCode returns a random decimal code of the given length. The code is
// the RFC 4226 truncation of an HMAC over a throwaway random secret and
// counter, both drawn from crypto/rand.
func NumericCode(digits int) (string, error) {
	if digits < 6 || digits > 8 {
		return "", fmt.Errorf("cryptox: unsupported code length %d", digits)
	}

	var buf [codeSecretSize + 8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("cryptox: read entropy: %w", err)
	}

	secret := base32.StdEncoding.EncodeToString(buf[:codeSecretSize])
	counter := binary.BigEndian.Uint64(buf[codeSecretSize:])

	code, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.Digits(digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("cryptox: derive code: %w", err)
	}
	return code, nil
}
