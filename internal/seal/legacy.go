package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Version 1 tokens predate the version marker: base64url(salt|nonce|ciphertext) with
// PBKDF2-SHA256 and AES-256-GCM. They are only ever opened, never produced.
const (
	legacyIterations = 4096
	legacyKeySize    = 32
)

func legacyAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, legacyIterations, legacyKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal legacy cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal legacy gcm: %w", err)
	}
	return gcm, nil
}

func openV1(token, password string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding: %v", ErrMalformedSeal, err)
	}
	if len(raw) < saltSize {
		return nil, fmt.Errorf("%w: body is %d bytes", ErrMalformedSeal, len(raw))
	}
	gcm, err := legacyAEAD(password, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("%w: body is %d bytes", ErrMalformedSeal, len(raw))
	}
	plaintext, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrBadAuthentication
	}
	return plaintext, nil
}
