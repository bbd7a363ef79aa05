package tenant

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"math/big"
	"strings"

	"golang.org/x/xerrors"
)

const (
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	idLength      = 10
	secretLength  = 22
)

// SplitToken breaks a session token of the form "<id>-<secret>" into its
// parts, validating their lengths.
func SplitToken(token string) (id string, secret string, err error) {
	parts := strings.Split(token, "-")
	if len(parts) != 2 {
		return "", "", xerrors.Errorf("incorrect amount of session token parts, expected 2 got %d", len(parts))
	}
	id, secret = parts[0], parts[1]
	if len(id) != idLength {
		return "", "", xerrors.Errorf("invalid session id length, expected %d got %d", idLength, len(id))
	}
	if len(secret) != secretLength {
		return "", "", xerrors.Errorf("invalid session secret length, expected %d got %d", secretLength, len(secret))
	}
	return id, secret, nil
}

// HashSecret is the form in which session secrets are stored.
func HashSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func secretMatches(secret string, hashed []byte) bool {
	return subtle.ConstantTimeCompare(HashSecret(secret), hashed) == 1
}

func generateToken() (id string, secret string, err error) {
	id, err = randomString(idLength)
	if err != nil {
		return "", "", xerrors.Errorf("generate session id: %w", err)
	}
	secret, err = randomString(secretLength)
	if err != nil {
		return "", "", xerrors.Errorf("generate session secret: %w", err)
	}
	return id, secret, nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(tokenAlphabet[v.Int64()])
	}
	return sb.String(), nil
}
