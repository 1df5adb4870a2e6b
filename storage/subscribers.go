package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"DomainWatch/domain"
)

type subscriberRow struct {
	ChatID       int64  `db:"chat_id"`
	Name         string `db:"name"`
	Subscribed   bool   `db:"subscribed"`
	LastInformed int64  `db:"last_informed"`
}

func (r subscriberRow) subscriber() domain.Subscriber {
	return domain.Subscriber{
		ChatID:       r.ChatID,
		Name:         r.Name,
		Subscribed:   r.Subscribed,
		LastInformed: fromMillis(r.LastInformed),
	}
}

const selectSubscriber = `SELECT chat_id, name, subscribed, last_informed FROM subscribers`

// UpsertSubscriber 新建或重新激活订阅，name 为空时保留原来的名字。
func (s *Store) UpsertSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	var out domain.Subscriber
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO subscribers (chat_id, name, subscribed, last_informed)
			VALUES (?, ?, ?, 0)
			ON CONFLICT (chat_id) DO UPDATE SET
				subscribed = excluded.subscribed,
				name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE subscribers.name END`),
			sub.ChatID, sub.Name, true,
		)
		if err != nil {
			return fmt.Errorf("upsert subscriber %d: %w", sub.ChatID, err)
		}
		var row subscriberRow
		if err := tx.GetContext(ctx, &row, tx.Rebind(selectSubscriber+` WHERE chat_id = ?`), sub.ChatID); err != nil {
			return fmt.Errorf("reload subscriber %d: %w", sub.ChatID, err)
		}
		out = row.subscriber()
		return nil
	})
	return out, err
}

func (s *Store) SetSubscribed(ctx context.Context, chatID int64, subscribed bool) (bool, error) {
	return s.execAffected(ctx, fmt.Sprintf("set subscribed %d", chatID),
		`UPDATE subscribers SET subscribed = ? WHERE chat_id = ?`, subscribed, chatID)
}

func (s *Store) ListSubscribed(ctx context.Context) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rows []subscriberRow
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(selectSubscriber+` WHERE subscribed = ? ORDER BY chat_id`), true); err != nil {
			return fmt.Errorf("list subscribers: %w", err)
		}
		out = make([]domain.Subscriber, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.subscriber())
		}
		return nil
	})
	return out, err
}

func (s *Store) TouchLastInformed(ctx context.Context, chatID int64) (bool, error) {
	return s.execAffected(ctx, fmt.Sprintf("touch subscriber %d", chatID),
		`UPDATE subscribers SET last_informed = ? WHERE chat_id = ?`, toMillis(s.now()), chatID)
}

func (s *Store) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	var ok bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		ok = n > 0
		return nil
	})
	return ok, err
}
