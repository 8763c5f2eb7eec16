package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo — pgx-хранилище абонементов.
type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const subCols = `id, customer_name, phone, studio_id, schedule, start_date, next_billing,
	monthly_price, status, sub_type, notes, pause_reason, paused_at,
	cancel_reason, cancelled_at, created_at, updated_at`

func (r *Repo) Get(ctx context.Context, id int64) (*Subscription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+subCols+` FROM subscriptions WHERE id=$1`, id)
	s, err := scanSub(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repo) List(ctx context.Context) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subCols+` FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, s *Subscription, entry HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	schedule, err := json.Marshal(s.Schedule)
	if err != nil {
		return err
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO subscriptions (customer_name, phone, studio_id, schedule, start_date,
			next_billing, monthly_price, status, sub_type, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING id, created_at, updated_at
	`, s.CustomerName, s.Phone, s.StudioID, schedule, s.StartDate,
		s.NextBilling, s.MonthlyPrice, string(s.Status), string(s.Type), s.Notes, s.CreatedAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return err
	}

	entry.SubscriptionID = s.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update — оптимистическая блокировка по updated_at: проигравший
// при гонке получает ErrConflict, его запись аудита не теряется молча.
func (r *Repo) Update(ctx context.Context, s *Subscription, entry HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	schedule, err := json.Marshal(s.Schedule)
	if err != nil {
		return err
	}
	err = tx.QueryRow(ctx, `
		UPDATE subscriptions SET
			customer_name=$2, phone=$3, studio_id=$4, schedule=$5, start_date=$6,
			next_billing=$7, monthly_price=$8, status=$9, sub_type=$10, notes=$11,
			pause_reason=$12, paused_at=$13, cancel_reason=$14, cancelled_at=$15,
			updated_at=now()
		WHERE id=$1 AND updated_at=$16
		RETURNING updated_at
	`, s.ID, s.CustomerName, s.Phone, s.StudioID, schedule, s.StartDate,
		s.NextBilling, s.MonthlyPrice, string(s.Status), string(s.Type), s.Notes,
		nullStr(s.PauseReason), s.PausedAt, nullStr(s.CancelReason), s.CancelledAt,
		s.UpdatedAt,
	).Scan(&s.UpdatedAt)
	if err == pgx.ErrNoRows {
		var exists bool
		if e := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE id=$1)`, s.ID).Scan(&exists); e != nil {
			return e
		}
		if exists {
			return fmt.Errorf("%w: id=%d", ErrConflict, s.ID)
		}
		return fmt.Errorf("%w: id=%d", ErrNotFound, s.ID)
	}
	if err != nil {
		return err
	}

	entry.SubscriptionID = s.ID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) History(ctx context.Context, subscriptionID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subscription_id, action, at, actor, details, old_value, new_value
		FROM subscription_history
		WHERE subscription_id=$1
		ORDER BY id
	`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.SubscriptionID, &h.Action, &h.At,
			&h.Actor, &h.Details, &h.OldValue, &h.NewValue); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, e HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscription_history (subscription_id, action, at, actor, details, old_value, new_value)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.SubscriptionID, e.Action, e.At, e.Actor, e.Details, e.OldValue, e.NewValue)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanSub(row rowScanner) (*Subscription, error) {
	var (
		s           Subscription
		schedule    []byte
		pauseReason *string
		cancelRsn   *string
	)
	if err := row.Scan(&s.ID, &s.CustomerName, &s.Phone, &s.StudioID, &schedule,
		&s.StartDate, &s.NextBilling, &s.MonthlyPrice, &s.Status, &s.Type, &s.Notes,
		&pauseReason, &s.PausedAt, &cancelRsn, &s.CancelledAt,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &s.Schedule); err != nil {
			return nil, err
		}
	}
	if pauseReason != nil {
		s.PauseReason = *pauseReason
	}
	if cancelRsn != nil {
		s.CancelReason = *cancelRsn
	}
	// даты берём как есть: в базе они лежат в UTC
	s.StartDate = s.StartDate.UTC()
	s.NextBilling = s.NextBilling.UTC()
	return &s, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
