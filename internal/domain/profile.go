package domain

import "strings"

// Profile is a user's membership on a web card, holding their contact card.
type Profile struct {
	ID            string
	UserID        string
	WebCardID     string
	ContactCard   ContactCard
	AvatarMediaID string
}

// WebCard is the public card a profile belongs to.
type WebCard struct {
	ID                string
	UserName          string
	IsMultiUser       bool
	CommonInformation CommonInformation
	LogoMediaID       string
}

// ContactCard holds the personal contact details of a profile.
type ContactCard struct {
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Company   string         `json:"company,omitempty"`
	Title     string         `json:"title,omitempty"`
	Emails    []ContactEntry `json:"emails,omitempty"`
	Phones    []ContactEntry `json:"phoneNumbers,omitempty"`
}

// CommonInformation is shared by every profile of a multi-user web card.
type CommonInformation struct {
	Company string         `json:"company,omitempty"`
	Emails  []ContactEntry `json:"emails,omitempty"`
	Phones  []ContactEntry `json:"phoneNumbers,omitempty"`
}

// ContactEntry is an email address or phone number. Selected entries are published.
type ContactEntry struct {
	Label    string `json:"label,omitempty"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// DisplayName joins first and last name.
func (c ContactCard) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// PublishedContact merges the card's common information ahead of the profile's selected
// entries. Common information only applies to multi-user cards.
func PublishedContact(profile Profile, card WebCard) (company string, emails, phones []string) {
	company = profile.ContactCard.Company
	if card.IsMultiUser {
		if card.CommonInformation.Company != "" {
			company = card.CommonInformation.Company
		}
		emails = appendValues(emails, card.CommonInformation.Emails, false)
		phones = appendValues(phones, card.CommonInformation.Phones, false)
	}
	emails = appendValues(emails, profile.ContactCard.Emails, true)
	phones = appendValues(phones, profile.ContactCard.Phones, true)
	return company, emails, phones
}

func appendValues(dst []string, entries []ContactEntry, selectedOnly bool) []string {
	for _, entry := range entries {
		if selectedOnly && !entry.Selected {
			continue
		}
		if value := strings.TrimSpace(entry.Value); value != "" {
			dst = append(dst, value)
		}
	}
	return dst
}
