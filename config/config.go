package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultAPIURL = "https://api.jsonwhois.io/whois/domain?key={key}&domain={domain}"

type Config struct {
	AlertDays          int      `yaml:"alertDays" env:"ALERT_DAYS"`
	Telegram           Telegram `yaml:"telegram"`
	Registry           Registry `yaml:"registry"`
	Database           Database `yaml:"database"`
	Schedule           Schedule `yaml:"schedule"`
	Notify             Notify   `yaml:"notify"`
	HTTP               HTTP     `yaml:"http"`
	Log                Log      `yaml:"log"`
	CloudflareAccounts []CF     `yaml:"cloudflareAccounts"`
	DomainFiles        []string `yaml:"domainFiles" env:"DOMAIN_FILES" envSeparator:","`
}

type Telegram struct {
	BotToken string `yaml:"botToken" env:"TELEGRAM_BOT_TOKEN"`
	// AllowedChats 为空时所有聊天都可以使用命令
	AllowedChats   []int64       `yaml:"allowedChats" env:"TELEGRAM_ALLOWED_CHATS" envSeparator:","`
	RetryTimes     int           `yaml:"retryTimes"`
	RateInterval   time.Duration `yaml:"rateInterval"`
	SendTimeout    time.Duration `yaml:"sendTimeout"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
}

// Registry 描述域名信息查询来源：api（JSON 接口）、rdap、whois。
type Registry struct {
	Provider    string        `yaml:"provider" env:"REGISTRY_PROVIDER"`
	Fallback    []string      `yaml:"fallback" env:"REGISTRY_FALLBACK" envSeparator:","`
	APIURL      string        `yaml:"apiURL" env:"REGISTRY_API_URL"`
	APIKey      string        `yaml:"apiKey" env:"REGISTRY_API_KEY"`
	Timeout     time.Duration `yaml:"timeout" env:"REGISTRY_TIMEOUT"`
	Concurrency int           `yaml:"concurrency" env:"REGISTRY_CONCURRENCY"`
	// RateLimit 每秒请求数，0 表示不限速
	RateLimit float64 `yaml:"rateLimit" env:"REGISTRY_RATE_LIMIT"`
}

type Database struct {
	Driver          string        `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	SkipMigrate     bool          `yaml:"skipMigrate" env:"DATABASE_SKIP_MIGRATE"`
}

// Schedule 每天固定时间刷新并推送到期提醒。
type Schedule struct {
	Hour     int  `yaml:"hour"`
	Minute   int  `yaml:"minute"`
	Disabled bool `yaml:"disabled"`
	// RunOnStart 启动时先跑一次刷新和推送
	RunOnStart bool `yaml:"runOnStart" env:"SCHEDULE_RUN_ON_START"`
}

type Notify struct {
	// MinInterval 同一个聊天两次提醒之间的最短间隔
	MinInterval time.Duration `yaml:"minInterval"`
}

type HTTP struct {
	// Addr 为空时不启动管理接口
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

type Log struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

type CF struct {
	Label     string `yaml:"label"`
	Email     string `yaml:"email"`
	APIToken  string `yaml:"apiToken"`
	AccountID string `yaml:"accountID"`
}

// Load 依次读取 .env、YAML 配置文件和环境变量，后者覆盖前者。
// path 为空时只使用环境变量。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AlertDays <= 0 {
		c.AlertDays = 30
	}
	if c.Telegram.RetryTimes <= 0 {
		c.Telegram.RetryTimes = 2
	}
	if c.Telegram.RateInterval <= 0 {
		c.Telegram.RateInterval = time.Second
	}
	if c.Telegram.SendTimeout <= 0 {
		c.Telegram.SendTimeout = 10 * time.Second
	}
	if c.Telegram.CommandTimeout <= 0 {
		c.Telegram.CommandTimeout = 2 * time.Minute
	}
	if c.Registry.Provider == "" {
		c.Registry.Provider = "api"
	}
	if c.Registry.APIURL == "" {
		c.Registry.APIURL = DefaultAPIURL
	}
	if c.Registry.Timeout <= 0 {
		c.Registry.Timeout = 15 * time.Second
	}
	if c.Registry.Concurrency <= 0 {
		c.Registry.Concurrency = 4
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "domainwatch.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if c.Schedule.Hour == 0 && c.Schedule.Minute == 0 {
		c.Schedule.Hour = 15
	}
	if c.Notify.MinInterval <= 0 {
		c.Notify.MinInterval = 20 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for %s", c.Database.Driver)
	}
	for _, p := range append([]string{c.Registry.Provider}, c.Registry.Fallback...) {
		switch strings.ToLower(p) {
		case "api", "rdap", "whois":
		default:
			return fmt.Errorf("unsupported registry provider %q", p)
		}
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 || c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("invalid schedule time %02d:%02d", c.Schedule.Hour, c.Schedule.Minute)
	}
	return nil
}

// AccountByLabel 按标签查找 Cloudflare 账号，不区分大小写。
func (c *Config) AccountByLabel(label string) (CF, bool) {
	return FindAccount(c.CloudflareAccounts, label)
}

func FindAccount(accounts []CF, label string) (CF, bool) {
	for _, acc := range accounts {
		if strings.EqualFold(acc.Label, label) {
			return acc, true
		}
	}
	return CF{}, false
}
