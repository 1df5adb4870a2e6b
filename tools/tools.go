package tools

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// 注册局返回的日期格式五花八门，按顺序逐个尝试。
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006/01/02",
	"2006.01.02",
	"2006.01.02 15:04:05",
	"02-Jan-2006",
	"02.01.2006",
	"Jan 02, 2006",
	"January 2 2006",
	"January 02 2006",
}

var (
	expiryRegex = regexp.MustCompile(
		`(?i)\b(registry expiry date|registrar registration expiration date|expiration date|expiry date|expires on|expires|expiry|paid-till|expire)\b[^0-9A-Za-z]*([0-9A-Za-z ,:/\-T\.Z+]+)`,
	)
	createdRegex = regexp.MustCompile(
		`(?i)\b(creation date|created on|created|registered on|registration time|registered)\b[^0-9A-Za-z]*([0-9A-Za-z ,:/\-T\.Z+]+)`,
	)
)

// ParseDate 尝试所有已知格式，成功时返回 UTC 时间。
// 纯数字按 YYYYMMDD 或 unix 时间戳（秒或毫秒）处理。
func ParseDate(s string) (time.Time, bool) {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ":"))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return time.Time{}, false
	}
	if t, ok := parseNumericDate(cleaned); ok {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.UTC(), true
		}
	}
	// 有些 WHOIS 行尾带注释，例如 "2026-01-03T00:00:00Z (UTC)"
	if i := strings.IndexByte(cleaned, ' '); i > 0 {
		if t, ok := parseFirstToken(cleaned[:i]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumericDate(s string) (time.Time, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	switch {
	case len(s) == 8:
		if t, err := time.Parse("20060102", s); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	case len(s) >= 9 && len(s) <= 10:
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(sec, 0).UTC(), true
	case len(s) >= 12 && len(s) <= 13:
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func parseFirstToken(token string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if strings.Contains(layout, " ") {
			continue
		}
		if t, err := time.Parse(layout, token); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ExtractExpiry 从 WHOIS 原文中提取到期日期，返回 YYYY-MM-DD。
func ExtractExpiry(result string) (string, bool) {
	return extractDate(expiryRegex, result)
}

// ExtractCreated 从 WHOIS 原文中提取注册日期，返回 YYYY-MM-DD。
func ExtractCreated(result string) (string, bool) {
	return extractDate(createdRegex, result)
}

func extractDate(re *regexp.Regexp, result string) (string, bool) {
	for _, line := range strings.Split(strings.ReplaceAll(result, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || skipLine(line) {
			continue
		}
		match := re.FindStringSubmatch(line)
		if len(match) < 3 {
			continue
		}
		if t, ok := ParseDate(match[2]); ok {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// ExtractValues 收集所有以 key 开头的行的值（不区分大小写），保持顺序并去重。
func ExtractValues(result string, keys ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(strings.ReplaceAll(result, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || skipLine(line) {
			continue
		}
		lower := strings.ToLower(line)
		for _, k := range keys {
			if !strings.HasPrefix(lower, strings.ToLower(k)) {
				continue
			}
			value := strings.TrimSpace(line[len(k):])
			// 状态行常见格式: "clientTransferProhibited https://icann.org/epp#..."
			if fields := strings.Fields(value); len(fields) > 0 {
				value = fields[0]
			}
			value = strings.ToLower(strings.TrimSuffix(value, "."))
			if value == "" {
				break
			}
			if _, ok := seen[value]; !ok {
				seen[value] = struct{}{}
				out = append(out, value)
			}
			break
		}
	}
	return out
}

// 跳过提示/免责声明行
func skipLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "notice:") ||
		strings.HasPrefix(lower, "%") ||
		strings.HasPrefix(lower, ">>>") ||
		strings.Contains(lower, "terms of use") ||
		strings.Contains(lower, "disclaimer") ||
		strings.Contains(lower, "policy")
}

// DaysBetween 返回 from 到 to 之间的整天数，按日历日计算。
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
