package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// RefreshSecretSize is the number of random bytes carried by a refresh token.
const RefreshSecretSize = 32

const minDigestKeySize = 32

// RefreshSecret is the secret material embedded in a refresh token. Only its
// keyed digest is ever persisted.
type RefreshSecret [RefreshSecretSize]byte

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

func (s RefreshSecret) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseRefreshSecret(encoded string) (RefreshSecret, error) {
	var secret RefreshSecret

	raw, err := base64.RawURLEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return secret, err
	}
	if len(raw) != RefreshSecretSize {
		return secret, errors.New("invalid refresh secret size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// Digester computes HMAC-SHA256 credential digests under a fixed key.
type Digester struct {
	key []byte
}

func NewDigester(key []byte) (*Digester, error) {
	if len(key) < minDigestKeySize {
		return nil, errors.New("digest key must be at least 32 bytes")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Digester{key: k}, nil
}

func (d *Digester) Digest(secret RefreshSecret) [32]byte {
	mac := hmac.New(sha256.New, d.key)
	mac.Write(secret[:])

	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// DeriveDigestKey expands master key material into a dedicated 32-byte
// digest key with HKDF-SHA256. The same master and info always yield the
// same key.
func DeriveDigestKey(master []byte, info string) ([]byte, error) {
	if len(master) == 0 {
		return nil, errors.New("empty master key")
	}
	out := make([]byte, minDigestKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}
