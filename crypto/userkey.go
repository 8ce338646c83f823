package crypto

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// UserKeyLength is the byte length of a hashed user identifier.
const UserKeyLength = sha256.Size

// UserKey is the opaque hash under which a user's record is stored. It is
// derived one-way from an external account identifier and is never resolved
// back to it.
type UserKey [UserKeyLength]byte

// ErrInvalidUserKey marks user key strings that do not decode to the expected
// hash length.
var ErrInvalidUserKey = errors.New("crypto: invalid user key")

// HashIdentity derives the storage key for an external account identifier.
func HashIdentity(identifier string) UserKey {
	return UserKey(sha256.Sum256([]byte(strings.TrimSpace(identifier))))
}

// ParseUserKey decodes a base58-rendered user key.
func ParseUserKey(s string) (UserKey, error) {
	var key UserKey
	decoded, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return key, fmt.Errorf("%w: %v", ErrInvalidUserKey, err)
	}
	if len(decoded) != UserKeyLength {
		return key, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidUserKey, UserKeyLength, len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// String renders the key in base58 for RPC payloads and logs.
func (k UserKey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of the raw hash bytes.
func (k UserKey) Bytes() []byte {
	return append([]byte(nil), k[:]...)
}

// IsZero reports whether the key is the zero value, which never corresponds
// to a hashed identity.
func (k UserKey) IsZero() bool {
	return k == (UserKey{})
}

// Equal compares two keys by byte value.
func (k UserKey) Equal(other UserKey) bool {
	return bytes.Equal(k[:], other[:])
}
