package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"2027-03-11":                    "2027-03-11",
		"2027-03-11 00:00:00":           "2027-03-11",
		"2027-03-11T04:00:00Z":          "2027-03-11",
		"2027-03-10T23:00:00-05:00":     "2027-03-11",
		"2026.05.01":                    "2026-05-01",
		"11-Mar-2027":                   "2027-03-11",
		"  2027-03-11T04:00:00Z (UTC) ": "2027-03-11",
		"20270311":                      "2027-03-11",
		"1893456000":                    "2030-01-01",
		"1893456000000":                 "2030-01-01",
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, got.Format(DateLayout), in)
		}
	}

	for _, bad := range []string{"", "soon", "2027-13-45", "12345", "20271345"} {
		_, ok := ParseDate(bad)
		assert.False(t, ok, bad)
	}
}

const sampleWhois = `Domain Name: EXAMPLE.COM
Registry Domain ID: 2336799_DOMAIN_COM-VRSN
Updated Date: 2024-08-14T07:01:34Z
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2025-08-13T04:00:00Z
Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
Name Server: A.IANA-SERVERS.NET
Name Server: B.IANA-SERVERS.NET
NOTICE: The expiration date displayed in this record is the date the registrar's sponsorship ends.
`

func TestExtractFromWhois(t *testing.T) {
	exp, ok := ExtractExpiry(sampleWhois)
	assert.True(t, ok)
	assert.Equal(t, "2025-08-13", exp)

	created, ok := ExtractCreated(sampleWhois)
	assert.True(t, ok)
	assert.Equal(t, "1995-08-14", created)

	assert.Equal(t, []string{"a.iana-servers.net", "b.iana-servers.net"}, ExtractValues(sampleWhois, "Name Server:"))
	assert.Equal(t, []string{"clientdeleteprohibited", "clienttransferprohibited"}, ExtractValues(sampleWhois, "Domain Status:"))
}

func TestExtractRuStyle(t *testing.T) {
	raw := "domain:        EXAMPLE.RU\nnserver:       ns1.example.ru.\nstate:         REGISTERED, DELEGATED\ncreated:       2004-06-01T20:00:00Z\npaid-till:     2026-06-01T21:00:00Z\n"

	exp, ok := ExtractExpiry(raw)
	assert.True(t, ok)
	assert.Equal(t, "2026-06-01", exp)
	assert.Equal(t, []string{"ns1.example.ru"}, ExtractValues(raw, "nserver:"))
}

func TestExtractExpiryMissing(t *testing.T) {
	_, ok := ExtractExpiry("No match for domain \"NOPE.COM\".\n")
	assert.False(t, ok)
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(from, time.Date(2026, 3, 2, 0, 10, 0, 0, time.UTC)))
	assert.Equal(t, 0, DaysBetween(from, from))
	assert.Equal(t, -3, DaysBetween(from, time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 365, DaysBetween(from, time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)))
}
