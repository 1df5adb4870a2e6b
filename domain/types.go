package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"DomainWatch/tools"
)

// RawRecord 是注册局接口返回的原始 JSON 负载。
type RawRecord map[string]any

// Record 是持久化的域名元数据，按域名唯一。
type Record struct {
	Name             string
	NameServers      string
	RegistrationDate Date
	ExpirationDate   Date
	Status           string
	LastUpdate       time.Time
	// Extra 保存注册局返回的完整 result 对象，未建模字段也不会丢。
	Extra map[string]any
}

// Validate 检查写库前的必填字段。
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: empty domain name", ErrInvalidRecord)
	}
	if r.ExpirationDate.IsZero() {
		return fmt.Errorf("%w: %s has no expiration date", ErrInvalidRecord, r.Name)
	}
	return nil
}

// DaysLeft 返回距离到期的天数，已过期为负数。
func (r Record) DaysLeft(today Date) int {
	return tools.DaysBetween(today.Time, r.ExpirationDate.Time)
}

// Subscriber 是订阅到期提醒的聊天。
type Subscriber struct {
	ChatID       int64
	Name         string
	Subscribed   bool
	LastInformed time.Time
}

// Date 是不带时区的日历日期，零值表示未知。
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf 截掉 t 的时间部分。
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Today 返回当前 UTC 日期。
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate 接受注册局常见的日期格式。
func ParseDate(s string) (Date, error) {
	t, ok := tools.ParseDate(s)
	if !ok {
		return Date{}, fmt.Errorf("unrecognised date %q", s)
	}
	return DateOf(t), nil
}

func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return d
	}
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(tools.DateLayout)
}

// Value 以 YYYY-MM-DD 文本入库，两种方言下字典序与时间序一致。
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into domain.Date", src)
	}
}

func (d *Date) scanString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(tools.DateLayout) {
		s = s[:len(tools.DateLayout)]
	}
	t, err := time.Parse(tools.DateLayout, s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	*d = DateOf(t)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*d = Date{}
		return nil
	}
	return d.scanString(*s)
}
