// Package cryptox derives and checks password-style secrets (account
// passwords and access-link codes) with argon2id.
package cryptox

import (
	"crypto/subtle"
	"errors"

	"github.com/dmitrijs2005/linkvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var ErrEmptySecret = errors.New("empty secret")

// DeriveKey stretches secret with salt using argon2id.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, argonTime, argonMemory, argonThreads, keySize)
}

// HashSecret returns a fresh random salt and the derived key for secret.
func HashSecret(secret []byte) (salt, hash []byte, err error) {
	if len(secret) == 0 {
		return nil, nil, ErrEmptySecret
	}
	salt = common.GenerateRandByteArray(saltSize)
	if salt == nil {
		return nil, nil, common.ErrorInternal
	}
	return salt, DeriveKey(secret, salt), nil
}

// VerifySecret reports whether candidate derives to hash under salt.
// The comparison is constant time.
func VerifySecret(candidate, salt, hash []byte) bool {
	if len(salt) == 0 || len(hash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(DeriveKey(candidate, salt), hash) == 1
}
