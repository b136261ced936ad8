package jwt

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

const (
	Issuer   = "cardlink"
	Subject  = "contact-card"
	Audience = "cardlink-contact"

	// DefaultUpgradeTTL bounds how long a redeemed capability stays upgraded.
	DefaultUpgradeTTL = 20 * time.Minute
)

// ErrUnknownKey indicates the token names a key id this service does not hold.
var ErrUnknownKey = errors.New("jwt: unknown key id")

// Geo mirrors the share location carried by a capability.
type Geo struct {
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	City      string   `json:"city,omitempty"`
	Subregion string   `json:"subregion,omitempty"`
	Region    string   `json:"region,omitempty"`
	Country   string   `json:"country,omitempty"`
}

// UpgradeClaims snapshot the contact a redeemed capability pointed at.
type UpgradeClaims struct {
	ProfileID string `json:"profileId"`
	WebCardID string `json:"webCardId"`
	UserName  string `json:"userName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Company   string `json:"company,omitempty"`
	Title     string `json:"title,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Geo       *Geo   `json:"geo,omitempty"`
	Kind      string `json:"kind"`
}

// UpgradeIssuer signs and validates short-lived upgrade tokens.
type UpgradeIssuer struct {
	keys *KeyManager
	ttl  time.Duration
	now  func() time.Time
}

// NewUpgradeIssuer constructs an issuer. A zero ttl uses DefaultUpgradeTTL.
func NewUpgradeIssuer(manager *KeyManager, ttl time.Duration) *UpgradeIssuer {
	if ttl <= 0 {
		ttl = DefaultUpgradeTTL
	}
	return &UpgradeIssuer{keys: manager, ttl: ttl, now: time.Now}
}

// TTL reports the lifetime of issued tokens.
func (i *UpgradeIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue produces a signed JWT for claims.
func (i *UpgradeIssuer) Issue(claims UpgradeClaims) (string, error) {
	key := i.keys.SigningKey()
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.SignatureAlgorithm(key.Algorithm), Key: key.Secret},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.KID),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := i.now().UTC()
	std := gojwt.Claims{
		Subject:   Subject,
		Audience:  gojwt.Audience{Audience},
		Issuer:    Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(i.ttl)),
		NotBefore: gojwt.NewNumericDate(now),
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}
	return token, nil
}

// Validate verifies the signature and standard claims and returns the snapshot.
func (i *UpgradeIssuer) Validate(token string) (*gojwt.Claims, *UpgradeClaims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return nil, nil, fmt.Errorf("parse token: %w", err)
	}
	if len(parsed.Headers) == 0 {
		return nil, nil, fmt.Errorf("parse token: missing header")
	}
	key, ok := i.keys.Lookup(parsed.Headers[0].KeyID)
	if !ok {
		return nil, nil, ErrUnknownKey
	}

	var std gojwt.Claims
	var custom UpgradeClaims
	if err := parsed.Claims(key.Secret, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("verify token: %w", err)
	}

	expected := gojwt.Expected{
		Issuer:      Issuer,
		Subject:     Subject,
		AnyAudience: gojwt.Audience{Audience},
	}
	if err := std.ValidateWithLeeway(expected.WithTime(i.now()), 0); err != nil {
		return nil, nil, fmt.Errorf("validate claims: %w", err)
	}
	if custom.ProfileID == "" {
		return nil, nil, fmt.Errorf("validate claims: missing profile id")
	}

	return &std, &custom, nil
}
