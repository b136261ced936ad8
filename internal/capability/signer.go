package capability

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var signingInfo = []byte("cardlink.capability.v1")

var (
	// ErrInvalidSignature indicates the signature does not match the payload.
	ErrInvalidSignature = errors.New("capability: invalid signature")
	// ErrExpiredCapability indicates the payload is past its exp.
	ErrExpiredCapability = errors.New("capability: expired")
	// ErrUnknownFamily indicates no secret is configured for a family.
	ErrUnknownFamily = errors.New("capability: unknown secret family")
)

// DeriveSalt binds a signature to the identifying fields of p.
func DeriveSalt(p Payload) string {
	traits, ok := Lookup(p.Meta().Kind)
	if !ok {
		return ""
	}
	fields := append([]string{string(traits.Kind)}, traits.saltFields(p)...)
	raw, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	salt, err := canonicalJSON(raw)
	if err != nil {
		return ""
	}
	return salt
}

// Sign returns the base64url HMAC-SHA256 of canonical under a key derived from secret and salt.
func Sign(secret []byte, canonical, salt string) string {
	mac := hmac.New(sha256.New, deriveKey(secret, salt))
	mac.Write([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks signature in constant time.
func Verify(secret []byte, canonical, salt, signature string) bool {
	given, err := base64.RawURLEncoding.Strict().DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, deriveKey(secret, salt))
	mac.Write([]byte(canonical))
	return hmac.Equal(mac.Sum(nil), given)
}

func deriveKey(secret []byte, salt string) []byte {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(salt), signingInfo), key); err != nil {
		// HKDF-SHA256 only fails past 255 blocks of output.
		panic("capability: derive key: " + err.Error())
	}
	return key
}

// Signer signs and verifies payloads with one secret per family.
type Signer struct {
	secrets map[Family][]byte
}

// NewSigner constructs a Signer. Both families must be configured.
func NewSigner(contactCardSecret, shareBackSecret string) (*Signer, error) {
	if contactCardSecret == "" || shareBackSecret == "" {
		return nil, fmt.Errorf("new signer: missing secret")
	}
	return &Signer{secrets: map[Family][]byte{
		FamilyContactCard: []byte(contactCardSecret),
		FamilyShareBack:   []byte(shareBackSecret),
	}}, nil
}

// Sign signs p with its family secret.
func (s *Signer) Sign(p Payload) (string, error) {
	secret, err := s.secretFor(p)
	if err != nil {
		return "", err
	}
	canonical, err := Canonicalize(p)
	if err != nil {
		return "", err
	}
	return Sign(secret, canonical, DeriveSalt(p)), nil
}

// Verify recomputes the salt from p and checks signature. It never consults a client salt.
func (s *Signer) Verify(p Payload, signature string) bool {
	secret, err := s.secretFor(p)
	if err != nil {
		return false
	}
	canonical, err := Canonicalize(p)
	if err != nil {
		return false
	}
	return Verify(secret, canonical, DeriveSalt(p), signature)
}

func (s *Signer) secretFor(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("sign: nil payload")
	}
	secret, ok := s.secrets[p.Meta().Kind.Family()]
	if !ok {
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownFamily, p.Meta().Kind)
	}
	return secret, nil
}
