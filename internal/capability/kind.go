package capability

import "time"

// Kind discriminates the capability payload variants.
type Kind string

const (
	KindQRProfile      Kind = "qr_profile"
	KindEmailSignature Kind = "email_signature"
	KindShareBack      Kind = "share_back"
)

// Family groups kinds that share a signing secret.
type Family string

const (
	FamilyContactCard Family = "contact_card"
	FamilyShareBack   Family = "share_back"
)

// Traits fixes everything that varies between kinds.
type Traits struct {
	Kind       Kind
	Family     Family
	QueryParam string
	DefaultTTL time.Duration
	// Upgrades reports whether a valid redemption mints an upgrade token.
	Upgrades bool

	newPayload func() Payload
	saltFields func(Payload) []string
}

var kinds = map[Kind]Traits{
	KindQRProfile: {
		Kind:       KindQRProfile,
		Family:     FamilyContactCard,
		QueryParam: "c",
		DefaultTTL: 30 * 24 * time.Hour,
		Upgrades:   true,
		newPayload: func() Payload { return &QRProfileAccess{} },
		saltFields: func(p Payload) []string {
			qr, ok := p.(*QRProfileAccess)
			if !ok {
				return nil
			}
			return []string{qr.IdentityID, qr.OwnerID}
		},
	},
	KindEmailSignature: {
		Kind:       KindEmailSignature,
		Family:     FamilyContactCard,
		QueryParam: "e",
		DefaultTTL: 30 * 24 * time.Hour,
		Upgrades:   true,
		newPayload: func() Payload { return &EmailSignature{} },
		saltFields: func(p Payload) []string {
			sig, ok := p.(*EmailSignature)
			if !ok {
				return nil
			}
			return []string{sig.UserName, sig.IdentityID}
		},
	},
	KindShareBack: {
		Kind:       KindShareBack,
		Family:     FamilyShareBack,
		QueryParam: "k",
		DefaultTTL: 7 * 24 * time.Hour,
		newPayload: func() Payload { return &ShareBackVCard{} },
		saltFields: func(p Payload) []string {
			sb, ok := p.(*ShareBackVCard)
			if !ok {
				return nil
			}
			return []string{sb.OwnerID, sb.FirstName, sb.LastName}
		},
	},
}

// Lookup returns the traits for kind.
func Lookup(kind Kind) (Traits, bool) {
	traits, ok := kinds[kind]
	return traits, ok
}

// Kinds lists every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindQRProfile, KindEmailSignature, KindShareBack}
}

// Valid reports whether k names a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Family returns the secret family for k.
func (k Kind) Family() Family {
	return kinds[k].Family
}
