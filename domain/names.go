package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
)

// NormalizeName 统一域名格式：去掉协议、路径和结尾的点，转小写。
// 国际化域名转成 A-label（xn--），和注册局返回的名字一致。
func NormalizeName(s string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http:")
	if i := strings.IndexAny(name, "/?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidName, s, err)
	}
	name = ascii

	if name == "" || len(name) > 253 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	for _, label := range labels {
		if !validLabel(label) {
			return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
		}
	}
	return name, nil
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return false
	}
	for _, r := range label {
		if r != '-' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ParseNames 拆分用户输入的一组域名（逗号、分号、空白、换行分隔），
// 返回去重后的合法域名和无法识别的原始输入。
func ParseNames(input string) (names []string, invalid []string) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		name, err := NormalizeName(f)
		if err != nil {
			invalid = append(invalid, f)
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, invalid
}
