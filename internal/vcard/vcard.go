package vcard

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	govcard "github.com/emersion/go-vcard"
)

// ContentType is served with downloaded cards.
const ContentType = "text/vcard; charset=utf-8"

// Contact is the data rendered into a card.
type Contact struct {
	UID       string
	FirstName string
	LastName  string
	Company   string
	Title     string
	Emails    []string
	Phones    []string
	AvatarURL string
	Lat       *float64
	Lng       *float64
	Place     string
}

// Build renders c as a vCard 4.0 document.
func Build(c Contact) ([]byte, error) {
	card := make(govcard.Card)

	formatted := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if formatted == "" {
		formatted = c.Company
	}
	card.SetValue(govcard.FieldFormattedName, formatted)
	card.SetName(&govcard.Name{
		GivenName:  c.FirstName,
		FamilyName: c.LastName,
	})
	if c.UID != "" {
		card.SetValue(govcard.FieldUID, "urn:uuid:"+c.UID)
	}
	if c.Company != "" {
		card.SetValue(govcard.FieldOrganization, c.Company)
	}
	if c.Title != "" {
		card.SetValue(govcard.FieldTitle, c.Title)
	}
	for _, email := range c.Emails {
		card.Add(govcard.FieldEmail, &govcard.Field{
			Value:  email,
			Params: govcard.Params{govcard.ParamType: {govcard.TypeWork}},
		})
	}
	for _, phone := range c.Phones {
		card.Add(govcard.FieldTelephone, &govcard.Field{
			Value:  phone,
			Params: govcard.Params{govcard.ParamType: {govcard.TypeCell}},
		})
	}
	if c.AvatarURL != "" {
		card.SetValue(govcard.FieldPhoto, c.AvatarURL)
	}
	if c.Lat != nil && c.Lng != nil {
		card.SetValue(govcard.FieldGeolocation, "geo:"+
			strconv.FormatFloat(*c.Lat, 'f', -1, 64)+","+strconv.FormatFloat(*c.Lng, 'f', -1, 64))
	}
	if c.Place != "" {
		card.SetValue(govcard.FieldNote, "Met in "+c.Place)
	}

	govcard.ToV4(card)

	var buf bytes.Buffer
	if err := govcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("encode vcard: %w", err)
	}
	return buf.Bytes(), nil
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// Filename joins the non-empty parts into a download name ending in .vcf.
func Filename(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(part), "_"), "_.")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	if len(cleaned) == 0 {
		return "contact.vcf"
	}
	return strings.Join(cleaned, "-") + ".vcf"
}
