package registry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openrdap/rdap"

	"DomainWatch/domain"
)

// RDAPClient 通过 IANA bootstrap 找到权威 RDAP 服务查询域名。
type RDAPClient struct {
	client *rdap.Client
}

func NewRDAPClient(timeout time.Duration) *RDAPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RDAPClient{client: &rdap.Client{HTTP: &http.Client{Timeout: timeout}}}
}

func (c *RDAPClient) Lookup(ctx context.Context, name string) (domain.RawRecord, error) {
	req := rdap.NewDomainRequest(name).WithContext(ctx)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rdap %s: %w", name, err)
	}
	d, ok := resp.Object.(*rdap.Domain)
	if !ok {
		return nil, fmt.Errorf("%w: rdap returned %T for %s", domain.ErrMalformedResponse, resp.Object, name)
	}
	return rdapPayload(name, d), nil
}

func rdapPayload(name string, d *rdap.Domain) domain.RawRecord {
	result := map[string]any{
		"name":       name,
		"source":     "rdap",
		"registered": true,
	}
	if ldh := strings.ToLower(strings.TrimSuffix(d.LDHName, ".")); ldh != "" {
		result["name"] = ldh
	}
	if len(d.Status) > 0 {
		result["status"] = append([]string(nil), d.Status...)
	}

	var ns []string
	for _, n := range d.Nameservers {
		if h := strings.ToLower(strings.TrimSuffix(n.LDHName, ".")); h != "" {
			ns = append(ns, h)
		}
	}
	if len(ns) > 0 {
		result["nameservers"] = ns
	}

	for _, ev := range d.Events {
		switch strings.ToLower(ev.Action) {
		case "registration":
			result["created"] = ev.Date
		case "expiration":
			result["expires"] = ev.Date
		case "last changed":
			result["changed"] = ev.Date
		}
	}

	for _, e := range d.Entities {
		for _, role := range e.Roles {
			if strings.EqualFold(role, "registrar") && e.VCard != nil {
				if n := e.VCard.Name(); n != "" {
					result["registrar"] = n
				}
			}
		}
	}
	return domain.RawRecord{"result": result}
}
