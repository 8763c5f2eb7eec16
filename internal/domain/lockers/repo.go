package lockers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const rentalCols = `id, number, customer_name, phone, start_date, end_date,
	monthly_rate, payment_status, notes, created_at, updated_at`

func (r *Repo) Get(ctx context.Context, id int64) (*Rental, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+rentalCols+` FROM locker_rentals WHERE id=$1`, id)
	rec, err := scanRental(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Repo) List(ctx context.Context) ([]Rental, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rentalCols+` FROM locker_rentals ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rental
	for rows.Next() {
		rec, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Класс advisory-локов этого репозитория, второй ключ — номер шкафчика.
const rentalLockClass = 1811

// Create держит advisory-лок по номеру на время транзакции: мьютекс
// сервиса не защищает от второго инстанса, пишущего в ту же базу.
func (r *Repo) Create(ctx context.Context, rec *Rental) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, rentalLockClass, rec.Number); err != nil {
		return err
	}

	var taken bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM locker_rentals
			WHERE number=$1 AND end_date::date > (now() AT TIME ZONE 'utc')::date
		)`, rec.Number).Scan(&taken); err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: locker %d is occupied", ErrCapacity, rec.Number)
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO locker_rentals (number, customer_name, phone, start_date, end_date,
			monthly_rate, payment_status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING id, created_at, updated_at
	`, rec.Number, rec.CustomerName, rec.Phone, rec.StartDate, rec.EndDate,
		rec.MonthlyRate, string(rec.Payment), rec.Notes, rec.CreatedAt,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Update(ctx context.Context, rec *Rental) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE locker_rentals SET
			number=$2, customer_name=$3, phone=$4, start_date=$5, end_date=$6,
			monthly_rate=$7, payment_status=$8, notes=$9, updated_at=now()
		WHERE id=$1 AND updated_at=$10
		RETURNING updated_at
	`, rec.ID, rec.Number, rec.CustomerName, rec.Phone, rec.StartDate, rec.EndDate,
		rec.MonthlyRate, string(rec.Payment), rec.Notes, rec.UpdatedAt,
	).Scan(&rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		var exists bool
		if e := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM locker_rentals WHERE id=$1)`, rec.ID).Scan(&exists); e != nil {
			return e
		}
		if exists {
			return fmt.Errorf("%w: id=%d", ErrConflict, rec.ID)
		}
		return fmt.Errorf("%w: id=%d", ErrNotFound, rec.ID)
	}
	return err
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locker_rentals WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRental(row rowScanner) (*Rental, error) {
	var rec Rental
	if err := row.Scan(&rec.ID, &rec.Number, &rec.CustomerName, &rec.Phone,
		&rec.StartDate, &rec.EndDate, &rec.MonthlyRate, &rec.Payment, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.StartDate = rec.StartDate.UTC()
	rec.EndDate = rec.EndDate.UTC()
	return &rec, nil
}
