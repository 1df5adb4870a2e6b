package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"DomainWatch/config"
	"DomainWatch/domain"
)

const maxBodyBytes = 1 << 20

// APIClient 调用 JSON 形式的 WHOIS 接口，URL 模板里的 {key} 和 {domain} 会被替换。
type APIClient struct {
	URLTemplate string
	Key         string
	HTTP        *http.Client
	// Limiter 为 nil 时不限速
	Limiter *rate.Limiter
}

func NewAPIClient(cfg config.Registry) *APIClient {
	tmpl := cfg.APIURL
	if tmpl == "" {
		tmpl = config.DefaultAPIURL
	}
	c := &APIClient{
		URLTemplate: tmpl,
		Key:         cfg.APIKey,
		HTTP:        &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

func (c *APIClient) Lookup(ctx context.Context, name string) (domain.RawRecord, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(name), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉剩余内容以便复用连接
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, name, resp.StatusCode)
	}

	var raw domain.RawRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrMalformedResponse, name, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty body for %s", domain.ErrMalformedResponse, name)
	}
	return raw, nil
}

func (c *APIClient) url(name string) string {
	r := strings.NewReplacer(
		"{key}", url.QueryEscape(c.Key),
		"{domain}", url.QueryEscape(name),
	)
	return r.Replace(c.URLTemplate)
}
