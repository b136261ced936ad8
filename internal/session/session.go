package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/cardlink/internal/seal"
)

// ErrInvalidToken covers every reason a session token is refused.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims identify the signed-in user and the profile they act as.
type Claims struct {
	UserID    string `json:"userId"`
	ProfileID string `json:"profileId"`
}

// Pair is an access token and the refresh token that rotates it.
type Pair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Manager issues and verifies sealed session tokens. Refresh tokens are not tracked, so a
// rotated refresh token stays usable until it expires.
type Manager struct {
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewManager validates the secrets and lifetimes.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if len(accessSecret) < seal.MinPasswordLength || len(refreshSecret) < seal.MinPasswordLength {
		return nil, fmt.Errorf("new session manager: %w", seal.ErrPasswordTooShort)
	}
	if accessSecret == refreshSecret {
		return nil, fmt.Errorf("new session manager: access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		return nil, fmt.Errorf("new session manager: access ttl must be positive")
	}
	if refreshTTL <= accessTTL {
		return nil, fmt.Errorf("new session manager: refresh ttl %s must exceed access ttl %s", refreshTTL, accessTTL)
	}
	return &Manager{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// Issue seals a fresh pair for the user.
func (m *Manager) Issue(userID, profileID string) (Pair, error) {
	claims := Claims{UserID: userID, ProfileID: profileID}
	if !claims.valid() {
		return Pair{}, fmt.Errorf("issue session: %w", ErrInvalidToken)
	}

	issued := m.now()
	access, err := seal.Seal(claims, m.accessSecret, m.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := seal.Seal(claims, m.refreshSecret, m.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("seal refresh token: %w", err)
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  issued.Add(m.accessTTL).UTC(),
		RefreshExpiresAt: issued.Add(m.refreshTTL).UTC(),
	}, nil
}

// Refresh trades a valid refresh token for a brand-new pair.
func (m *Manager) Refresh(refreshToken string) (Pair, error) {
	claims, err := m.open(refreshToken, m.refreshSecret, m.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return m.Issue(claims.UserID, claims.ProfileID)
}

// Verify opens an access token.
func (m *Manager) Verify(accessToken string) (Claims, error) {
	return m.open(accessToken, m.accessSecret, m.accessTTL)
}

// VerifySoft is Verify for cookie sessions, where a bad token means anonymous.
func (m *Manager) VerifySoft(accessToken string) (Claims, bool) {
	claims, err := m.Verify(accessToken)
	return claims, err == nil
}

func (m *Manager) open(token, secret string, ttl time.Duration) (Claims, error) {
	var raw json.RawMessage
	if err := seal.Unseal(token, secret, ttl, &raw); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&claims); err != nil {
		return Claims{}, fmt.Errorf("%w: shape: %v", ErrInvalidToken, err)
	}
	if !claims.valid() {
		return Claims{}, fmt.Errorf("%w: empty identifiers", ErrInvalidToken)
	}
	return claims, nil
}

func (c Claims) valid() bool {
	return c.UserID != "" && c.ProfileID != ""
}
