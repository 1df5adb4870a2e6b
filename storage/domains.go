package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"DomainWatch/domain"
)

const selectDomain = `
	SELECT name, name_servers, registration_date, expiration_date,
	       status, last_update, extra_info
	FROM domains`

type domainRow struct {
	Name             string      `db:"name"`
	NameServers      string      `db:"name_servers"`
	RegistrationDate domain.Date `db:"registration_date"`
	ExpirationDate   domain.Date `db:"expiration_date"`
	Status           string      `db:"status"`
	LastUpdate       int64       `db:"last_update"`
	ExtraInfo        extraJSON   `db:"extra_info"`
}

func (r domainRow) record() domain.Record {
	return domain.Record{
		Name:             r.Name,
		NameServers:      r.NameServers,
		RegistrationDate: r.RegistrationDate,
		ExpirationDate:   r.ExpirationDate,
		Status:           r.Status,
		LastUpdate:       fromMillis(r.LastUpdate),
		Extra:            map[string]any(r.ExtraInfo),
	}
}

// extraJSON 以 JSON 文本入库（PostgreSQL 下是 JSONB 列）。
type extraJSON map[string]any

func (e extraJSON) Value() (driver.Value, error) {
	if e == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(e))
	if err != nil {
		return nil, fmt.Errorf("marshal extra_info: %w", err)
	}
	return string(b), nil
}

func (e *extraJSON) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into extra_info", src)
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("unmarshal extra_info: %w", err)
	}
	*e = m
	return nil
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Store) GetDomain(ctx context.Context, name string) (domain.Record, error) {
	name = normalizeKey(name)
	var rec domain.Record
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row domainRow
		err := tx.GetContext(ctx, &row, tx.Rebind(selectDomain+` WHERE name = ?`), name)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get domain %s: %w", name, err)
		}
		rec = row.record()
		return nil
	})
	return rec, err
}

func (s *Store) ListDomains(ctx context.Context) ([]domain.Record, error) {
	return s.selectDomains(ctx, selectDomain+` ORDER BY name`)
}

// ListExpiring 按到期日升序返回 today+days 之前（含当天）到期的域名。
func (s *Store) ListExpiring(ctx context.Context, days int) ([]domain.Record, error) {
	limit := domain.DateOf(s.now().UTC()).AddDays(days)
	return s.selectDomains(ctx, selectDomain+` WHERE expiration_date <= ? ORDER BY expiration_date, name`, limit)
}

func (s *Store) selectDomains(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	var out []domain.Record
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rows []domainRow
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("list domains: %w", err)
		}
		out = make([]domain.Record, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.record())
		}
		return nil
	})
	return out, err
}

// AddDomain 插入新记录并返回入库后的版本。
func (s *Store) AddDomain(ctx context.Context, rec domain.Record) (domain.Record, error) {
	rec.Name = normalizeKey(rec.Name)
	if err := rec.Validate(); err != nil {
		return domain.Record{}, err
	}
	rec.LastUpdate = fromMillis(toMillis(s.now()))

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM domains WHERE name = ?`), rec.Name); err != nil {
			return fmt.Errorf("check domain %s: %w", rec.Name, err)
		}
		if n > 0 {
			return domain.ErrDuplicateKey
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO domains (
				name, name_servers, registration_date, expiration_date,
				status, last_update, extra_info
			) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			rec.Name, rec.NameServers, rec.RegistrationDate, rec.ExpirationDate,
			rec.Status, toMillis(rec.LastUpdate), extraJSON(rec.Extra),
		)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		if err != nil {
			return fmt.Errorf("insert domain %s: %w", rec.Name, err)
		}
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

// UpdateDomain 整体替换所有字段（包括 extra_info），记录不存在时返回 false。
func (s *Store) UpdateDomain(ctx context.Context, rec domain.Record) (bool, error) {
	rec.Name = normalizeKey(rec.Name)
	if err := rec.Validate(); err != nil {
		return false, err
	}

	var updated bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE domains SET
				name_servers = ?,
				registration_date = ?,
				expiration_date = ?,
				status = ?,
				last_update = ?,
				extra_info = ?
			WHERE name = ?`),
			rec.NameServers, rec.RegistrationDate, rec.ExpirationDate,
			rec.Status, toMillis(s.now()), extraJSON(rec.Extra),
			rec.Name,
		)
		if err != nil {
			return fmt.Errorf("update domain %s: %w", rec.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update domain %s: %w", rec.Name, err)
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

func (s *Store) DeleteDomain(ctx context.Context, name string) error {
	name = normalizeKey(name)
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM domains WHERE name = ?`), name); err != nil {
			return fmt.Errorf("delete domain %s: %w", name, err)
		}
		return nil
	})
}
