package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"DomainWatch/domain"
	"DomainWatch/tools"
)

// WhoisClient 走 43 端口查询，原文先交给 whois-parser，解析不了再按行提取。
type WhoisClient struct {
	client *whois.Client
}

func NewWhoisClient(timeout time.Duration) *WhoisClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := whois.NewClient()
	c.SetTimeout(timeout)
	return &WhoisClient{client: c}
}

func (c *WhoisClient) Lookup(ctx context.Context, name string) (domain.RawRecord, error) {
	type result struct {
		raw string
		err error
	}
	// whois 库不支持 context，放到 goroutine 里等
	ch := make(chan result, 1)
	go func() {
		raw, err := c.client.Whois(name)
		ch <- result{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("whois %s: %w", name, res.err)
		}
		return whoisPayload(name, res.raw)
	}
}

// whoisPayload 把 WHOIS 原文转换成与 JSON 接口一致的 result 负载。
func whoisPayload(name, raw string) (domain.RawRecord, error) {
	result := map[string]any{
		"name":   name,
		"source": "whois",
	}

	info, err := whoisparser.Parse(raw)
	if errors.Is(err, whoisparser.ErrNotFoundDomain) {
		return nil, fmt.Errorf("%w: %s is not registered", domain.ErrMalformedResponse, name)
	}
	if err == nil && info.Domain != nil {
		if info.Domain.Domain != "" {
			result["name"] = strings.ToLower(info.Domain.Domain)
		}
		if len(info.Domain.Status) > 0 {
			result["status"] = info.Domain.Status
		}
		if len(info.Domain.NameServers) > 0 {
			result["nameservers"] = hostnames(info.Domain.NameServers)
		}
		if info.Domain.CreatedDate != "" {
			result["created"] = info.Domain.CreatedDate
		}
		if info.Domain.ExpirationDate != "" {
			result["expires"] = info.Domain.ExpirationDate
		}
		if info.Registrar != nil && info.Registrar.Name != "" {
			result["registrar"] = info.Registrar.Name
		}
	}

	// 兜底：parser 不认识的 TLD 或缺字段时按行提取
	if _, ok := result["expires"]; !ok {
		if exp, ok := tools.ExtractExpiry(raw); ok {
			result["expires"] = exp
		}
	}
	if _, ok := result["created"]; !ok {
		if created, ok := tools.ExtractCreated(raw); ok {
			result["created"] = created
		}
	}
	if _, ok := result["nameservers"]; !ok {
		if ns := tools.ExtractValues(raw, "Name Server:", "nserver:", "Nameservers:"); len(ns) > 0 {
			result["nameservers"] = ns
		}
	}
	if _, ok := result["status"]; !ok {
		if st := tools.ExtractValues(raw, "Domain Status:", "Status:", "state:"); len(st) > 0 {
			result["status"] = st
		}
	}

	if _, ok := result["expires"]; !ok {
		return nil, fmt.Errorf("%w: no expiry date in whois for %s", domain.ErrMalformedResponse, name)
	}
	result["registered"] = true
	return domain.RawRecord{"result": result}, nil
}

func hostnames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, h := range in {
		if h = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(h), ".")); h != "" {
			out = append(out, h)
		}
	}
	return out
}
