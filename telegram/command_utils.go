package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"DomainWatch/domain"
)

// FormatOperator 返回操作人的显示名，优先用 @username。
func FormatOperator(u *tgbotapi.User) string {
	if u == nil {
		return "unknown"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return fmt.Sprintf("id:%d", u.ID)
}

// chatName 用于订阅记录，群组取标题，私聊取用户名。
func chatName(msg *tgbotapi.Message) string {
	if msg.Chat != nil && msg.Chat.Title != "" {
		return msg.Chat.Title
	}
	if msg.Chat != nil && msg.Chat.UserName != "" {
		return "@" + msg.Chat.UserName
	}
	if msg.From != nil {
		return FormatOperator(msg.From)
	}
	return ""
}

// firstArg 取第一个参数，用户粘贴 "a.com," 之类也能识别。
func firstArg(args string) string {
	fields := strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func parseDays(args string, fallback int) (int, error) {
	arg := firstArg(args)
	if arg == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(arg)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("invalid days %q", arg)
	}
	return days, nil
}

func daysLeftText(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("已过期 %d 天", -days)
	case days == 0:
		return "今天到期"
	default:
		return fmt.Sprintf("剩余 %d 天", days)
	}
}

// FormatRecord 输出单个域名的完整信息。
func FormatRecord(rec domain.Record, today domain.Date) string {
	var b strings.Builder
	fmt.Fprintf(&b, "域名: %s\n", rec.Name)
	fmt.Fprintf(&b, "到期时间: %s（%s）\n", rec.ExpirationDate, daysLeftText(rec.DaysLeft(today)))
	if !rec.RegistrationDate.IsZero() {
		fmt.Fprintf(&b, "注册时间: %s\n", rec.RegistrationDate)
	}
	if rec.Status != "" {
		fmt.Fprintf(&b, "状态: %s\n", rec.Status)
	}
	if rec.NameServers != "" {
		fmt.Fprintf(&b, "NS: %s\n", rec.NameServers)
	}
	if registrar, ok := rec.Extra["registrar"].(string); ok && registrar != "" {
		fmt.Fprintf(&b, "注册商: %s\n", registrar)
	}
	if !rec.LastUpdate.IsZero() {
		fmt.Fprintf(&b, "更新时间: %s", rec.LastUpdate.UTC().Format("2006-01-02 15:04 UTC"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDigest 输出到期列表，每行一个域名，调用方负责排序。
func FormatDigest(title string, records []domain.Record, today domain.Date) string {
	var b strings.Builder
	b.WriteString(title)
	for _, rec := range records {
		fmt.Fprintf(&b, "\n- %s  %s（%s）", rec.Name, rec.ExpirationDate, daysLeftText(rec.DaysLeft(today)))
	}
	return b.String()
}

// describeError 把服务层错误翻译成给用户看的说明。
func describeError(name string, err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidName):
		return fmt.Sprintf("域名格式不正确: %s", name)
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("域名 %s 不在跟踪列表中，可以用 /add_domain 添加。", name)
	case errors.Is(err, domain.ErrAlreadyExists):
		return fmt.Sprintf("域名 %s 已在跟踪列表中，如需刷新请用 /update_domain。", name)
	case errors.Is(err, domain.ErrFetchFailed):
		return fmt.Sprintf("无法获取域名 %s 的注册信息，请稍后重试。", name)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("处理 %s 超时，请稍后重试。", name)
	default:
		return fmt.Sprintf("操作失败: %v", err)
	}
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
