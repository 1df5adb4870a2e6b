package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"DomainWatch/cfclient"
	"DomainWatch/config"
	"DomainWatch/domain"
	"DomainWatch/metrics"
)

// Service 是命令层用到的域名操作，由 *domain.Service 实现。
type Service interface {
	Check(ctx context.Context, name string) (domain.Record, error)
	Add(ctx context.Context, name string) (domain.Record, error)
	Update(ctx context.Context, name string) (domain.Record, error)
	AddMany(ctx context.Context, names []string) (domain.AddManyResult, error)
	Delete(ctx context.Context, name string) (string, error)
	DeleteMany(ctx context.Context, names []string) ([]string, error)
	List(ctx context.Context) ([]domain.Record, error)
	ListExpiring(ctx context.Context, days int) ([]domain.Record, error)
	Subscribe(ctx context.Context, chatID int64, name string) (domain.Subscriber, error)
	Unsubscribe(ctx context.Context, chatID int64) (bool, error)
}

// CommandHandler 处理聊天中的命令消息，每条命令在独立的 goroutine 里执行，
// 无论成功失败都会回复。
type CommandHandler struct {
	Service      Service
	Sender       Sender
	CFClient     cfclient.Client
	Accounts     []config.CF
	AllowedChats []int64
	AlertDays    int
	Timeout      time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics

	now func() time.Time
}

func NewCommandHandler(svc Service, sender Sender, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *CommandHandler {
	if sender == nil {
		sender = NoopSender{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &CommandHandler{
		Service:   svc,
		Sender:    sender,
		AlertDays: 30,
		Logger:    logger,
		Metrics:   m,
	}
	if cfg != nil {
		h.Accounts = cfg.CloudflareAccounts
		h.AllowedChats = cfg.Telegram.AllowedChats
		h.AlertDays = cfg.AlertDays
		h.Timeout = cfg.Telegram.CommandTimeout
		if len(cfg.CloudflareAccounts) > 0 {
			h.CFClient = cfclient.NewClient()
		}
	}
	return h
}

// commandFunc 返回回复文本；err 只用于日志和指标，回复里已经包含了给用户的说明。
type commandFunc func(h *CommandHandler, ctx context.Context, msg *tgbotapi.Message, args string) (string, error)

var commands = map[string]commandFunc{
	"check":          (*CommandHandler).handleCheck,
	"add_domain":     (*CommandHandler).handleAddDomain,
	"update_domain":  (*CommandHandler).handleUpdateDomain,
	"add_domains":    (*CommandHandler).handleAddDomains,
	"delete_domain":  (*CommandHandler).handleDeleteDomain,
	"delete_domains": (*CommandHandler).handleDeleteDomains,
	"check_domains":  (*CommandHandler).handleCheckDomains,
	"list":           (*CommandHandler).handleList,
	"subscribe":      (*CommandHandler).handleSubscribe,
	"unsubscribe":    (*CommandHandler).handleUnsubscribe,
	"import_cf":      (*CommandHandler).handleImportCF,
	"ping":           (*CommandHandler).handlePing,
	"help":           (*CommandHandler).handleHelp,
	"start":          (*CommandHandler).handleHelp,
}

// HandleMessage 是 Sender.StartListener 的消息回调。
func (h *CommandHandler) HandleMessage(msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	if !Allowed(h.AllowedChats, msg.Chat.ID) {
		h.Logger.Info("command_ignored", zap.Int64("chat_id", msg.Chat.ID), zap.String("command", msg.Command()))
		return
	}
	go h.run(msg)
}

func (h *CommandHandler) run(msg *tgbotapi.Message) {
	ctx := context.Background()
	cancel := func() {}
	if h.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
	}
	defer cancel()

	reply := h.Reply(ctx, msg)
	if err := h.Sender.Send(ctx, msg.Chat.ID, reply); err != nil {
		h.Logger.Warn("reply_failed", zap.Int64("chat_id", msg.Chat.ID), zap.String("command", msg.Command()), zap.Error(err))
	}
}

// Reply 同步执行命令并返回回复文本。
func (h *CommandHandler) Reply(ctx context.Context, msg *tgbotapi.Message) string {
	name := strings.ToLower(msg.Command())
	fn, ok := commands[name]
	if !ok {
		h.Metrics.IncCommand("unknown", "ignored")
		return "未知命令，发送 /help 查看用法。"
	}

	start := time.Now()
	reply, err := func() (reply string, err error) {
		defer func() {
			if r := recover(); r != nil {
				reply, err = "命令执行异常，请稍后重试。", fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(h, ctx, msg, strings.TrimSpace(msg.CommandArguments()))
	}()

	fields := []zap.Field{
		zap.String("command", name),
		zap.Int64("chat_id", msg.Chat.ID),
		zap.String("operator", FormatOperator(msg.From)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		h.Metrics.IncCommand(name, "error")
		h.Logger.Warn("command_failed", append(fields, zap.Error(err))...)
	} else {
		h.Metrics.IncCommand(name, "ok")
		h.Logger.Info("command_handled", fields...)
	}
	return reply
}

func (h *CommandHandler) today() domain.Date {
	if h.now != nil {
		return domain.DateOf(h.now().UTC())
	}
	return domain.Today()
}

func (h *CommandHandler) handlePing(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	return "pong", nil
}

const helpText = `域名到期提醒机器人
/check <域名> 查看已跟踪域名的信息
/add_domain <域名> 添加一个域名
/update_domain <域名> 重新查询并更新域名
/add_domains <域名1,域名2,...> 批量添加
/delete_domain <域名> 删除一个域名
/delete_domains <域名1,域名2,...> 批量删除
/check_domains [天数] 列出指定天数内到期的域名
/list 列出所有跟踪的域名
/subscribe 订阅每日到期提醒
/unsubscribe 取消订阅
/import_cf [账号] 从 Cloudflare 导入域名
/ping 检查机器人是否在线`

func (h *CommandHandler) handleHelp(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	return helpText, nil
}
