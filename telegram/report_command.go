package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *CommandHandler) handleCheckDomains(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	days, err := parseDays(args, h.AlertDays)
	if err != nil {
		return "用法: /check_domains [天数]，天数为非负整数", nil
	}
	records, err := h.Service.ListExpiring(ctx, days)
	if err != nil {
		return describeError("到期查询", err), err
	}
	if len(records) == 0 {
		return fmt.Sprintf("未来 %d 天内没有即将到期的域名。", days), nil
	}
	title := fmt.Sprintf("未来 %d 天内到期的域名（%d 个）:", days, len(records))
	return FormatDigest(title, records, h.today()), nil
}

func (h *CommandHandler) handleList(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	records, err := h.Service.List(ctx)
	if err != nil {
		return describeError("列表", err), err
	}
	if len(records) == 0 {
		return "还没有跟踪任何域名，可以用 /add_domain 添加。", nil
	}
	return FormatDigest(fmt.Sprintf("共跟踪 %d 个域名:", len(records)), records, h.today()), nil
}

func (h *CommandHandler) handleSubscribe(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	sub, err := h.Service.Subscribe(ctx, msg.Chat.ID, chatName(msg))
	if err != nil {
		return describeError("订阅", err), err
	}
	return fmt.Sprintf("已订阅到期提醒（提前 %d 天）。\n聊天: %s", h.AlertDays, displayName(sub.Name, sub.ChatID)), nil
}

func (h *CommandHandler) handleUnsubscribe(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	ok, err := h.Service.Unsubscribe(ctx, msg.Chat.ID)
	if err != nil {
		return describeError("取消订阅", err), err
	}
	if !ok {
		return "当前聊天没有订阅到期提醒。", nil
	}
	return "已取消订阅，发送 /subscribe 可以重新订阅。", nil
}

func displayName(name string, chatID int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("id:%d", chatID)
}
