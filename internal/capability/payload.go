package capability

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Payload is the closed union of capability variants.
type Payload interface {
	Meta() *Header
	sealed()
}

// Header carries the fields common to every variant. Times are unix seconds.
type Header struct {
	Kind      Kind   `json:"kind" validate:"required"`
	Nonce     string `json:"nonce" validate:"required,uuid"`
	IssuedAt  int64  `json:"iat" validate:"gt=0"`
	ExpiresAt int64  `json:"exp" validate:"gtfield=IssuedAt"`
}

// Meta exposes the header of any variant.
func (h *Header) Meta() *Header { return h }

// Expired reports whether the capability is past its expiry at t.
func (h *Header) Expired(t time.Time) bool {
	return t.Unix() >= h.ExpiresAt
}

// ExpiresTime returns the expiry as a time.
func (h *Header) ExpiresTime() time.Time {
	return time.Unix(h.ExpiresAt, 0).UTC()
}

// NewHeader stamps a fresh nonce and validity window.
func NewHeader(kind Kind, issuedAt time.Time, ttl time.Duration) Header {
	return Header{
		Kind:      kind,
		Nonce:     uuid.NewString(),
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: issuedAt.Add(ttl).Unix(),
	}
}

// Geolocation is where a capability was shared from. Coordinates may be unknown.
type Geolocation struct {
	Lat       *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng       *float64 `json:"lng" validate:"omitempty,longitude"`
	City      string   `json:"city,omitempty" validate:"max=128"`
	Subregion string   `json:"subregion,omitempty" validate:"max=128"`
	Region    string   `json:"region,omitempty" validate:"max=128"`
	Country   string   `json:"country,omitempty" validate:"max=128"`
}

// Limits mirrored by the ContactFields schema.
const (
	MaxContactEntries = 20
	MaxNameLength     = 128
	MaxOrgLength      = 256
	MaxEmailLength    = 254
	MaxPhoneLength    = 64
)

// ContactFields are the display fields snapshotted into a capability.
type ContactFields struct {
	FirstName string   `json:"firstName" validate:"max=128"`
	LastName  string   `json:"lastName" validate:"max=128"`
	Company   string   `json:"company,omitempty" validate:"max=256"`
	Title     string   `json:"title,omitempty" validate:"max=256"`
	Emails    []string `json:"emails,omitempty" validate:"max=20,dive,max=254"`
	Phones    []string `json:"phones,omitempty" validate:"max=20,dive,max=64"`
	Avatar    string   `json:"avatar,omitempty" validate:"omitempty,url"`
}

// QRProfileAccess grants a look at a profile's contact card.
type QRProfileAccess struct {
	Header
	IdentityID string       `json:"identityId" validate:"required,max=128"`
	OwnerID    string       `json:"ownerId" validate:"required,max=128"`
	UserName   string       `json:"userName" validate:"required,max=128"`
	Geo        *Geolocation `json:"geo,omitempty"`
	Preview    string       `json:"preview,omitempty" validate:"omitempty,url"`
}

// EmailSignature is embedded in a profile owner's email signature.
type EmailSignature struct {
	Header
	IdentityID string `json:"identityId" validate:"required,max=128"`
	OwnerID    string `json:"ownerId" validate:"required,max=128"`
	UserName   string `json:"userName" validate:"required,max=128"`
	ContactFields
}

// ShareBackVCard carries a contact shared back to a card owner, downloadable as a vCard.
type ShareBackVCard struct {
	Header
	OwnerID string `json:"ownerId" validate:"required,max=128"`
	ContactFields
	Geo *Geolocation `json:"geo,omitempty"`
}

func (*QRProfileAccess) sealed() {}
func (*EmailSignature) sealed()  {}
func (*ShareBackVCard) sealed()  {}

// Clamp fits c to the schema limits. Names are truncated, over-long entries are dropped and the
// lists keep their first MaxContactEntries values.
func (c ContactFields) Clamp() ContactFields {
	c.FirstName = truncate(c.FirstName, MaxNameLength)
	c.LastName = truncate(c.LastName, MaxNameLength)
	c.Company = truncate(c.Company, MaxOrgLength)
	c.Title = truncate(c.Title, MaxOrgLength)
	c.Emails = clampEntries(c.Emails, MaxEmailLength)
	c.Phones = clampEntries(c.Phones, MaxPhoneLength)
	return c
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func clampEntries(entries []string, maxLen int) []string {
	if entries == nil {
		return nil
	}
	out := make([]string, 0, min(len(entries), MaxContactEntries))
	for _, entry := range entries {
		if len(out) == MaxContactEntries {
			break
		}
		if utf8.RuneCountInString(entry) > maxLen {
			continue
		}
		out = append(out, entry)
	}
	return out
}
