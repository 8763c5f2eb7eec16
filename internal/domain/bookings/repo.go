package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const bookingCols = `id, customer_name, phone, studio_id, date, slot, duration_hours,
	booking_type, price, status, notes, created_at, updated_at`

func (r *Repo) Get(ctx context.Context, id int64) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repo) List(ctx context.Context) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookingCols+` FROM bookings ORDER BY date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *Repo) ListBetween(ctx context.Context, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE date >= $1 AND date < $2 ORDER BY date, id`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *Repo) Create(ctx context.Context, b *Booking) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO bookings (customer_name, phone, studio_id, date, slot, duration_hours,
			booking_type, price, status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING id, created_at, updated_at
	`, b.CustomerName, b.Phone, b.StudioID, b.Date, string(b.Slot), b.DurationHours,
		string(b.Type), b.Price, string(b.Status), b.Notes, b.CreatedAt,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *Repo) Update(ctx context.Context, b *Booking) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE bookings SET
			customer_name=$2, phone=$3, studio_id=$4, date=$5, slot=$6,
			duration_hours=$7, booking_type=$8, price=$9, status=$10, notes=$11,
			updated_at=now()
		WHERE id=$1 AND updated_at=$12
		RETURNING updated_at
	`, b.ID, b.CustomerName, b.Phone, b.StudioID, b.Date, string(b.Slot),
		b.DurationHours, string(b.Type), b.Price, string(b.Status), b.Notes,
		b.UpdatedAt,
	).Scan(&b.UpdatedAt)
	if err == pgx.ErrNoRows {
		var exists bool
		if e := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id=$1)`, b.ID).Scan(&exists); e != nil {
			return e
		}
		if exists {
			return fmt.Errorf("%w: id=%d", ErrConflict, b.ID)
		}
		return fmt.Errorf("%w: id=%d", ErrNotFound, b.ID)
	}
	return err
}

func collect(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	if err := row.Scan(&b.ID, &b.CustomerName, &b.Phone, &b.StudioID, &b.Date,
		&b.Slot, &b.DurationHours, &b.Type, &b.Price, &b.Status, &b.Notes,
		&b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Date = b.Date.UTC()
	return &b, nil
}
