package cryptoutils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// SessionTokenLength is the number of characters in a session token.
const SessionTokenLength = 16

// sessionTokenAlphabet holds the printable ASCII characters that may appear
// unquoted in a cookie value (RFC 6265 cookie-octet).
var sessionTokenAlphabet = func() []byte {
	var alphabet []byte
	for c := byte(0x21); c <= 0x7e; c++ {
		switch c {
		case '"', ',', ';', '\\':
			continue
		}
		alphabet = append(alphabet, c)
	}
	return alphabet
}()

// RandomSessionToken draws SessionTokenLength characters uniformly from the cookie-safe alphabet.
func RandomSessionToken() (string, error) {
	return randomString(rand.Reader, SessionTokenLength, sessionTokenAlphabet)
}

func randomString(random io.Reader, n int, alphabet []byte) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(random, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
