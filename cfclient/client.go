package cfclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"

	"DomainWatch/config"
)

// DomainInfo 是 cfclient 层的域名描述，避免直接依赖 domain 包
type DomainInfo struct {
	Domain string
	Source string
	Status string
	Paused bool
}

type ZoneDetail struct {
	ID          string
	Name        string
	NameServers []string
	Status      string
	Paused      bool
}

// Client 只读访问 Cloudflare，用于把账号下的 Zone 导入跟踪列表
type Client interface {
	FetchAllDomains(ctx context.Context, account config.CF) ([]DomainInfo, error)
	ListZones(ctx context.Context, account config.CF) ([]ZoneDetail, error)
}

type apiClient struct {
	timeout time.Duration
}

// NewClient 返回默认的 Cloudflare API 客户端实现
func NewClient() Client {
	return &apiClient{timeout: 30 * time.Second}
}

// ErrNoAccounts 没有配置任何 Cloudflare 账号
var ErrNoAccounts = errors.New("no cloudflare accounts configured")

func newAPI(account config.CF) (*cloudflare.API, error) {
	if account.Email != "" {
		// 旧式 Global API Key + 邮箱
		return cloudflare.New(account.APIToken, account.Email)
	}
	return cloudflare.NewWithAPIToken(account.APIToken)
}

// GetAccountID 优先使用配置里的 Account ID，否则取 token 可见的第一个账户
func (c *apiClient) GetAccountID(ctx context.Context, api *cloudflare.API, account config.CF) (string, error) {
	if account.AccountID != "" {
		return account.AccountID, nil
	}
	accounts, _, err := api.Accounts(ctx, cloudflare.AccountsListParams{})
	if err != nil {
		return "", fmt.Errorf("获取账户列表失败 [%s]: %w", account.Label, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("账户 [%s] 下无可用 Account ID", account.Label)
	}
	return accounts[0].ID, nil
}

func (c *apiClient) FetchAllDomains(ctx context.Context, account config.CF) ([]DomainInfo, error) {
	zones, err := c.ListZones(ctx, account)
	if err != nil {
		return nil, err
	}
	out := make([]DomainInfo, 0, len(zones))
	for _, z := range zones {
		out = append(out, DomainInfo{
			Domain: z.Name,
			Source: account.Label,
			Status: z.Status,
			Paused: z.Paused,
		})
	}
	return out, nil
}

func (c *apiClient) ListZones(ctx context.Context, account config.CF) ([]ZoneDetail, error) {
	ctx, cancel := c.ensureTimeout(ctx)
	defer cancel()

	api, err := newAPI(account)
	if err != nil {
		return nil, fmt.Errorf("初始化 Cloudflare 客户端失败 [%s]: %w", account.Label, err)
	}
	accountID, err := c.GetAccountID(ctx, api, account)
	if err != nil {
		return nil, err
	}

	zones, err := api.ListZonesContext(ctx, cloudflare.WithZoneFilters("", accountID, ""))
	if err != nil {
		return nil, fmt.Errorf("列出 Zone 失败 [%s]: %w", account.Label, err)
	}

	out := make([]ZoneDetail, 0, len(zones.Result))
	for _, z := range zones.Result {
		out = append(out, ZoneDetail{
			ID:          z.ID,
			Name:        z.Name,
			NameServers: z.NameServers,
			Status:      z.Status,
			Paused:      z.Paused,
		})
	}
	return out, nil
}

func (c *apiClient) ensureTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// CollectDomains 汇总所有账号下的域名（小写、去重、排序）。
// 单个账号失败只记日志，全部失败时返回最后一个错误。
func CollectDomains(ctx context.Context, client Client, accounts []config.CF, logger *zap.Logger) ([]string, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seen := map[string]struct{}{}
	var (
		names   []string
		lastErr error
		okCount int
	)
	for _, acc := range accounts {
		infos, err := client.FetchAllDomains(ctx, acc)
		if err != nil {
			logger.Warn("cloudflare_list_failed", zap.String("account", acc.Label), zap.Error(err))
			lastErr = err
			continue
		}
		okCount++
		for _, info := range infos {
			name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(info.Domain), "."))
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
		logger.Info("cloudflare_zones_listed", zap.String("account", acc.Label), zap.Int("zones", len(infos)))
	}
	if okCount == 0 {
		return nil, lastErr
	}
	sort.Strings(names)
	return names, nil
}
