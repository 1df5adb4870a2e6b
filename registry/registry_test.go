package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openrdap/rdap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DomainWatch/config"
	"DomainWatch/domain"
)

func apiClientFor(t *testing.T, h http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAPIClient(config.Registry{
		APIURL:  srv.URL + "/whois?key={key}&domain={domain}",
		APIKey:  "s3cr3t&x",
		Timeout: 5 * time.Second,
	})
}

func TestAPIClientLookup(t *testing.T) {
	var gotKey, gotDomain string
	c := apiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotDomain = r.URL.Query().Get("domain")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result":{"name":"example.com","expires":"2027-08-13","status":["active"]}}`)
	})

	raw, err := c.Lookup(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t&x", gotKey)
	assert.Equal(t, "example.com", gotDomain)

	rec, err := domain.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2027, 8, 13), rec.ExpirationDate)
	assert.Equal(t, "active", rec.Status)
}

func TestAPIClientNon2xx(t *testing.T) {
	c := apiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := c.Lookup(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestAPIClientNonJSON(t *testing.T) {
	c := apiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	})
	_, err := c.Lookup(context.Background(), "example.com")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestAPIClientRespectsCancelledContext(t *testing.T) {
	c := apiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Lookup(ctx, "example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

type stubClient struct {
	raw   domain.RawRecord
	err   error
	calls int
}

func (s *stubClient) Lookup(ctx context.Context, name string) (domain.RawRecord, error) {
	s.calls++
	return s.raw, s.err
}

func TestChainFallsBack(t *testing.T) {
	first := &stubClient{err: ErrUnexpectedStatus}
	second := &stubClient{raw: domain.RawRecord{"result": map[string]any{}}}
	third := &stubClient{err: errors.New("unused")}

	raw, err := Chain{first, second, third}.Lookup(context.Background(), "example.com")
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, third.calls)
}

func TestChainJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Chain{&stubClient{err: ErrUnexpectedStatus}, &stubClient{err: boom}}.Lookup(context.Background(), "x.com")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.ErrorIs(t, err, boom)
}

func TestNewBuildsChain(t *testing.T) {
	c, err := New(config.Registry{Provider: "api"})
	require.NoError(t, err)
	assert.IsType(t, &APIClient{}, c)

	c, err = New(config.Registry{Provider: "rdap", Fallback: []string{"whois", "RDAP", "api"}})
	require.NoError(t, err)
	chain, ok := c.(Chain)
	require.True(t, ok)
	require.Len(t, chain, 3)
	assert.IsType(t, &RDAPClient{}, chain[0])
	assert.IsType(t, &WhoisClient{}, chain[1])
	assert.IsType(t, &APIClient{}, chain[2])

	_, err = New(config.Registry{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestRDAPPayload(t *testing.T) {
	d := &rdap.Domain{
		LDHName:     "EXAMPLE.COM",
		Status:      []string{"client transfer prohibited", "active"},
		Nameservers: []rdap.Nameserver{{LDHName: "A.IANA-SERVERS.NET"}, {LDHName: "b.iana-servers.net."}},
		Events: []rdap.Event{
			{Action: "registration", Date: "1995-08-14T04:00:00Z"},
			{Action: "expiration", Date: "2027-08-13T04:00:00Z"},
		},
	}

	rec, err := domain.Normalize(rdapPayload("example.com", d))
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec.Name)
	assert.Equal(t, "a.iana-servers.net, b.iana-servers.net", rec.NameServers)
	assert.Equal(t, "client transfer prohibited, active", rec.Status)
	assert.Equal(t, domain.NewDate(1995, 8, 14), rec.RegistrationDate)
	assert.Equal(t, domain.NewDate(2027, 8, 13), rec.ExpirationDate)
}

const comWhois = `   Domain Name: EXAMPLE.COM
   Registry Domain ID: 2336799_DOMAIN_COM-VRSN
   Registrar WHOIS Server: whois.iana.org
   Updated Date: 2024-08-14T07:01:34Z
   Creation Date: 1995-08-14T04:00:00Z
   Registry Expiry Date: 2027-08-13T04:00:00Z
   Registrar: RESERVED-Internet Assigned Numbers Authority
   Domain Status: clientDeleteProhibited https://icann.org/epp#clientDeleteProhibited
   Domain Status: clientTransferProhibited https://icann.org/epp#clientTransferProhibited
   Name Server: A.IANA-SERVERS.NET
   Name Server: B.IANA-SERVERS.NET
   DNSSEC: signedDelegation
>>> Last update of whois database: 2026-10-19T07:00:00Z <<<
`

func TestWhoisPayloadICANN(t *testing.T) {
	raw, err := whoisPayload("example.com", comWhois)
	require.NoError(t, err)

	rec, err := domain.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec.Name)
	assert.Equal(t, domain.NewDate(2027, 8, 13), rec.ExpirationDate)
	assert.Equal(t, domain.NewDate(1995, 8, 14), rec.RegistrationDate)
	assert.Contains(t, rec.NameServers, "a.iana-servers.net")
	assert.Contains(t, rec.NameServers, "b.iana-servers.net")
}

const ruWhois = `% TCI Whois Service. Terms of use:
% https://tcinet.ru/documents/whois_ru_rf.pdf

domain:        EXAMPLE.RU
nserver:       ns1.example.ru.
nserver:       ns2.example.ru.
state:         REGISTERED, DELEGATED, VERIFIED
org:           Example LLC
registrar:     RU-CENTER-RU
created:       2005-03-10T20:00:00Z
paid-till:     2027-03-11T21:00:00Z
source:        TCI
`

func TestWhoisPayloadRU(t *testing.T) {
	raw, err := whoisPayload("example.ru", ruWhois)
	require.NoError(t, err)

	rec, err := domain.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "example.ru", rec.Name)
	assert.Equal(t, domain.NewDate(2027, 3, 11), rec.ExpirationDate)
	assert.Contains(t, rec.NameServers, "ns1.example.ru")
}

func TestWhoisPayloadNotRegistered(t *testing.T) {
	_, err := whoisPayload("free-name-123.com", `No match for "FREE-NAME-123.COM".
>>> Last update of whois database: 2026-10-19T07:00:00Z <<<`)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}
