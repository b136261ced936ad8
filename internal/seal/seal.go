package seal

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// Version2 is the current sealing format: HKDF-SHA256 + XChaCha20-Poly1305.
	Version2 = "2"

	// MinPasswordLength mirrors the minimum secret length accepted by the service config.
	MinPasswordLength = 32

	versionSeparator = "~"
	saltSize         = 16
)

var hkdfInfoV2 = []byte("cardlink.seal.v2")

var (
	// ErrExpiredSeal indicates the token is past its expiry or max age.
	ErrExpiredSeal = errors.New("seal: expired")
	// ErrBadAuthentication indicates a wrong password or corrupted ciphertext.
	ErrBadAuthentication = errors.New("seal: bad authentication")
	// ErrMalformedSeal indicates the token structure could not be parsed.
	ErrMalformedSeal = errors.New("seal: malformed")
	// ErrPasswordTooShort rejects weak sealing secrets.
	ErrPasswordTooShort = errors.New("seal: password too short")
)

// now is swapped in tests.
var now = time.Now

type envelope struct {
	IssuedAt  int64           `json:"iat"`
	ExpiresAt int64           `json:"exp"`
	Data      json.RawMessage `json:"d"`
}

// Seal encrypts data with a key derived from password and returns an opaque versioned string.
// A zero ttl produces a token without an embedded expiry.
func Seal(data any, password string, ttl time.Duration) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if ttl < 0 {
		return "", fmt.Errorf("seal: negative ttl %s", ttl)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("seal marshal data: %w", err)
	}

	issued := now()
	env := envelope{IssuedAt: issued.UnixMilli(), Data: raw}
	if ttl > 0 {
		env.ExpiresAt = issued.Add(ttl).UnixMilli()
	}
	plaintext, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("seal marshal envelope: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("seal generate salt: %w", err)
	}
	aead, err := newAEADV2(password, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("seal generate nonce: %w", err)
	}

	body := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	body = append(body, salt...)
	body = append(body, nonce...)
	body = aead.Seal(body, nonce, plaintext, []byte(Version2))

	return base64.RawURLEncoding.EncodeToString(body) + versionSeparator + Version2, nil
}

// Unseal authenticates and decrypts token into out. When ttl is positive the token must
// also have been issued within ttl.
func Unseal(token, password string, ttl time.Duration, out any) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	body, version := splitVersion(token)

	var (
		plaintext []byte
		err       error
	)
	switch version {
	case Version2:
		plaintext, err = openV2(body, password)
	default:
		plaintext, err = openV1(token, password)
	}
	if err != nil {
		return err
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return fmt.Errorf("%w: envelope: %v", ErrMalformedSeal, err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrMalformedSeal)
	}

	current := now().UnixMilli()
	if env.ExpiresAt != 0 && current >= env.ExpiresAt {
		return ErrExpiredSeal
	}
	if ttl > 0 && current >= env.IssuedAt+ttl.Milliseconds() {
		return ErrExpiredSeal
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: data: %v", ErrMalformedSeal, err)
	}
	return nil
}

// UnsealSoft treats every seal failure as an absent value.
func UnsealSoft(token, password string, ttl time.Duration, out any) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	return Unseal(token, password, ttl, out) == nil
}

// splitVersion separates the trailing version marker. Unknown markers yield no version so
// the whole token is handed to the legacy routine.
func splitVersion(token string) (string, string) {
	idx := strings.LastIndex(token, versionSeparator)
	if idx < 0 {
		return token, ""
	}
	switch token[idx+1:] {
	case Version2:
		return token[:idx], Version2
	default:
		return token, ""
	}
}

func newAEADV2(password string, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(password), salt, hkdfInfoV2), key); err != nil {
		return nil, fmt.Errorf("seal derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("seal new cipher: %w", err)
	}
	return aead, nil
}

func openV2(body, password string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding: %v", ErrMalformedSeal, err)
	}
	if len(raw) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: body is %d bytes", ErrMalformedSeal, len(raw))
	}
	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	ciphertext := raw[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := newAEADV2(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(Version2))
	if err != nil {
		return nil, ErrBadAuthentication
	}
	return plaintext, nil
}
