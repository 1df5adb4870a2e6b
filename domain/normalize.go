package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Normalize 把注册局返回的 result 对象整理成 Record。
// status / nameservers 可能缺失、是字符串、也可能是字符串数组。
// expires / created 可以是日期字符串，也可以是 unix 时间戳数字。
func Normalize(raw RawRecord) (Record, error) {
	result, ok := raw["result"].(map[string]any)
	if !ok {
		return Record{}, fmt.Errorf("%w: missing result object", ErrMalformedResponse)
	}

	rawName := joinField(result["name"])
	if rawName == "" {
		return Record{}, fmt.Errorf("%w: missing domain name", ErrMalformedResponse)
	}
	name, err := NormalizeName(rawName)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	expires := joinField(result["expires"])
	if expires == "" {
		return Record{}, fmt.Errorf("%w: %s has no expiration date", ErrMalformedResponse, name)
	}
	expiration, err := ParseDate(expires)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, name, err)
	}

	// 注册日期可选，解析不了就留空
	var registration Date
	if created := joinField(result["created"]); created != "" {
		if d, err := ParseDate(created); err == nil {
			registration = d
		}
	}

	return Record{
		Name:             name,
		NameServers:      joinField(result["nameservers"]),
		RegistrationDate: registration,
		ExpirationDate:   expiration,
		Status:           joinField(result["status"]),
		Extra:            result,
	}, nil
}

func joinField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON 数字解码成 float64，时间戳不能用科学计数法输出
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []string:
		return joinParts(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			parts = append(parts, fmt.Sprint(item))
		}
		return joinParts(parts)
	default:
		return fmt.Sprint(t)
	}
}

func joinParts(parts []string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
