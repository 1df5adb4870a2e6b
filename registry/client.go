// Package registry 查询单个域名的注册信息，统一返回 {"result": {...}} 形式的原始负载。
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"DomainWatch/config"
	"DomainWatch/domain"
)

// DefaultTimeout 未配置超时时 RDAP / WHOIS 使用的值。
const DefaultTimeout = 15 * time.Second

// ErrUnexpectedStatus 注册局接口返回非 2xx。
var ErrUnexpectedStatus = errors.New("unexpected registry status")

type Client interface {
	Lookup(ctx context.Context, name string) (domain.RawRecord, error)
}

// Chain 依次尝试每个客户端，返回第一个成功的结果。
type Chain []Client

func (c Chain) Lookup(ctx context.Context, name string) (domain.RawRecord, error) {
	var errs []error
	for _, client := range c {
		raw, err := client.Lookup(ctx, name)
		if err == nil {
			return raw, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no registry client configured for %s", name)
	}
	return nil, errors.Join(errs...)
}

// New 按 provider + fallback 顺序组装客户端，重复的来源只保留第一次。
func New(cfg config.Registry) (Client, error) {
	var chain Chain
	seen := map[string]bool{}
	for _, p := range append([]string{cfg.Provider}, cfg.Fallback...) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true

		switch p {
		case "api":
			chain = append(chain, NewAPIClient(cfg))
		case "rdap":
			chain = append(chain, NewRDAPClient(cfg.Timeout))
		case "whois":
			chain = append(chain, NewWhoisClient(cfg.Timeout))
		default:
			return nil, fmt.Errorf("unsupported registry provider %q", p)
		}
	}
	switch len(chain) {
	case 0:
		return nil, errors.New("no registry provider configured")
	case 1:
		return chain[0], nil
	}
	return chain, nil
}
