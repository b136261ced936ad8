package vcard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/cardlink/internal/vcard"
)

func TestBuild(t *testing.T) {
	lat, lng := 51.5072, -0.1276
	raw, err := vcard.Build(vcard.Contact{
		UID:       "4b1a9b3e-7c55-4a59-9a8e-1d8c3f3f0a11",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Company:   "Analytical Engines",
		Title:     "Engineer",
		Emails:    []string{"ada@example.com"},
		Phones:    []string{"+44 20 7946 0000"},
		Lat:       &lat,
		Lng:       &lng,
		Place:     "London",
	})
	require.NoError(t, err)

	card := string(raw)
	require.True(t, strings.HasPrefix(card, "BEGIN:VCARD"))
	require.Contains(t, card, "VERSION:4.0")
	require.Contains(t, card, "FN:Ada Lovelace")
	require.Contains(t, card, "Lovelace")
	require.Contains(t, card, "ada@example.com")
	require.Contains(t, card, "+44 20 7946 0000")
	require.Contains(t, card, "Analytical Engines")
	require.Contains(t, card, "geo:51.5072")
	require.Contains(t, card, "-0.1276")
	require.Contains(t, card, "END:VCARD")
}

func TestBuildWithoutName(t *testing.T) {
	raw, err := vcard.Build(vcard.Contact{Company: "Analytical Engines"})
	require.NoError(t, err)
	require.Contains(t, string(raw), "FN:Analytical Engines")
}

func TestFilename(t *testing.T) {
	require.Equal(t, "Ada-Lovelace.vcf", vcard.Filename("Ada", "Lovelace"))
	require.Equal(t, "ada-Lovelace.vcf", vcard.Filename("ada", "", " Lovelace "))
	require.Equal(t, "contact.vcf", vcard.Filename("", "  "))
	require.Equal(t, "evil.vcf", vcard.Filename(`"../evil`))
	require.Equal(t, "Zoë-O_Brien.vcf", vcard.Filename("Zoë", "O'Brien"))
}
