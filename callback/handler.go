package callback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"DomainWatch/domain"
	"DomainWatch/telegram"
)

// 回调数据格式：action|domain
const (
	ActionRefresh       = "refresh"
	ActionDelete        = "delete"
	ActionDeleteConfirm = "delete_confirm"
	ActionDeleteCancel  = "delete_cancel"
	ActionNoop          = "noop"
)

// MaxDataLen 是 Telegram 允许的回调数据最大字节数。
const MaxDataLen = 64

var ErrInvalidData = errors.New("invalid callback data")

// Service 是按钮操作用到的域名操作。
type Service interface {
	Update(ctx context.Context, name string) (domain.Record, error)
	Delete(ctx context.Context, name string) (string, error)
}

// Handler 处理到期提醒上的内联按钮。
type Handler struct {
	Service      Service
	Sender       telegram.Sender
	AllowedChats []int64
	Timeout      time.Duration
	Logger       *zap.Logger
}

// Data 生成按钮的回调数据。
func Data(action, name string) string {
	return action + "|" + name
}

// ParseData 解析 action|domain，domain 会被规范化。
func ParseData(data string) (action, name string, err error) {
	parts := strings.Split(strings.TrimSpace(data), "|")
	action = parts[0]
	if action == ActionNoop {
		return action, "", nil
	}
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidData, data)
	}
	switch action {
	case ActionRefresh, ActionDelete, ActionDeleteConfirm, ActionDeleteCancel:
	default:
		return "", "", fmt.Errorf("%w: unknown action %q", ErrInvalidData, action)
	}
	name, err = domain.NormalizeName(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return action, name, nil
}

// ExpiryButtons 是到期提醒里每个域名附带的按钮。
// 域名太长、确认按钮的数据会超过 MaxDataLen 时返回 nil，否则整条消息都会被 Telegram 拒绝。
func ExpiryButtons(name string) []telegram.Button {
	if len(Data(ActionDeleteConfirm, name)) > MaxDataLen {
		return nil
	}
	return []telegram.Button{
		{Text: "🔄 刷新 " + name, CallbackData: Data(ActionRefresh, name)},
		{Text: "🗑 删除", CallbackData: Data(ActionDelete, name)},
	}
}

// HandleCallback 是 Sender.StartListener 的回调入口，耗时操作放到 goroutine 里。
func (h *Handler) HandleCallback(cb *tgbotapi.CallbackQuery) {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	logger := h.logger()
	chatID := cb.Message.Chat.ID
	if !telegram.Allowed(h.AllowedChats, chatID) {
		logger.Info("callback_ignored", zap.Int64("chat_id", chatID))
		return
	}

	go func() {
		ctx := context.Background()
		cancel := func() {}
		if h.Timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		}
		defer cancel()

		_ = h.Sender.AnswerCallback(ctx, cb.ID, "操作已收到")
		reply, buttons := h.Process(ctx, cb.Data, cb.From)
		if reply == "" {
			return
		}
		if err := h.Sender.SendWithButtons(ctx, chatID, reply, buttons); err != nil {
			logger.Warn("callback_reply_failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}()
}

// Process 执行一次按钮操作，返回要发送的回复和附带的按钮。
func (h *Handler) Process(ctx context.Context, data string, user *tgbotapi.User) (string, [][]telegram.Button) {
	logger := h.logger()
	action, name, err := ParseData(data)
	if err != nil {
		logger.Warn("callback_invalid", zap.String("data", data), zap.Error(err))
		return "按钮已失效，请使用命令操作。", nil
	}
	operator := telegram.FormatOperator(user)
	logger.Info("callback_received", zap.String("action", action), zap.String("domain", name), zap.String("operator", operator))

	switch action {
	case ActionNoop:
		return "", nil

	case ActionRefresh:
		rec, err := h.Service.Update(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Sprintf("域名 %s 已不在跟踪列表中。", name), nil
		}
		if errors.Is(err, domain.ErrFetchFailed) {
			return fmt.Sprintf("无法获取域名 %s 的注册信息，请稍后重试。", name), nil
		}
		if err != nil {
			return fmt.Sprintf("刷新 %s 失败: %v", name, err), nil
		}
		return "已刷新\n" + telegram.FormatRecord(rec, domain.Today()), nil

	case ActionDelete:
		msg := fmt.Sprintf("⚠️【删除二次确认】\n操作人: %s\n域名: %s\n\n删除后将不再提醒该域名，确认删除吗？", operator, name)
		return msg, [][]telegram.Button{{
			{Text: "✅ 确认删除", CallbackData: Data(ActionDeleteConfirm, name)},
			{Text: "❌ 取消", CallbackData: Data(ActionDeleteCancel, name)},
		}}

	case ActionDeleteConfirm:
		if _, err := h.Service.Delete(ctx, name); err != nil {
			return fmt.Sprintf("删除域名失败: %s (%v)", name, err), nil
		}
		return fmt.Sprintf("✅ 已删除域名: %s (操作人: %s)", name, operator), nil

	case ActionDeleteCancel:
		return fmt.Sprintf("已取消删除: %s (操作人: %s)", name, operator), nil
	}
	return "", nil
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
