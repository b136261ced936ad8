package jwt

import (
	"crypto/sha256"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// keyNamespace scopes derived key ids.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://cardlink/upgrade-token"))

// SigningKey is an HMAC key used for upgrade tokens.
type SigningKey struct {
	KID       string
	Secret    []byte
	Algorithm string
}

// KeyManager holds the active signing key plus retired keys that still validate.
type KeyManager struct {
	active   SigningKey
	previous map[string]SigningKey
}

// NewKeyManager builds keys from configured secrets. Key ids are derived from a digest of
// each secret, so every instance sharing a secret agrees on its kid.
func NewKeyManager(secret string, previous ...string) (*KeyManager, error) {
	if len(secret) < sha256.Size {
		return nil, fmt.Errorf("new key manager: secret must be at least %d bytes", sha256.Size)
	}
	m := &KeyManager{active: newSigningKey(secret), previous: make(map[string]SigningKey, len(previous))}
	for _, old := range previous {
		if old == "" || old == secret {
			continue
		}
		key := newSigningKey(old)
		m.previous[key.KID] = key
	}
	return m, nil
}

func newSigningKey(secret string) SigningKey {
	digest := sha256.Sum256([]byte(secret))
	return SigningKey{
		KID:       uuid.NewSHA1(keyNamespace, digest[:]).String(),
		Secret:    []byte(secret),
		Algorithm: string(jose.HS256),
	}
}

// SigningKey returns the key new tokens are signed with.
func (m *KeyManager) SigningKey() SigningKey {
	return m.active
}

// Lookup finds a key by id among the active and retired keys.
func (m *KeyManager) Lookup(kid string) (SigningKey, bool) {
	if kid == m.active.KID {
		return m.active, true
	}
	key, ok := m.previous[kid]
	return key, ok
}

// KeyIDs lists every key id that validates, active first.
func (m *KeyManager) KeyIDs() []string {
	ids := []string{m.active.KID}
	for kid := range m.previous {
		ids = append(ids, kid)
	}
	return ids
}
