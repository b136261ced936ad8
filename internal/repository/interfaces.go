package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/cardlink/internal/domain"
)

// ErrNotFound is returned when the requested profile or card does not exist.
var ErrNotFound = errors.New("repository: not found")

// ProfileStore loads the profile and web card behind a capability.
type ProfileStore interface {
	LoadProfileAndCard(ctx context.Context, identityID string) (domain.Profile, domain.WebCard, error)
}

// NonceStore records capability nonces that have been redeemed.
type NonceStore interface {
	// Claim marks nonce as used for ttl. It reports false when the nonce was already claimed.
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	// Release forgets a claimed nonce.
	Release(ctx context.Context, nonce string) error
}

// NoopNonceStore accepts every nonce. Capabilities stay reusable until they expire.
type NoopNonceStore struct{}

var _ NonceStore = NoopNonceStore{}

func (NoopNonceStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (NoopNonceStore) Release(context.Context, string) error {
	return nil
}
