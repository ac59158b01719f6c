package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"consulting-calendar/internal/calendar"
)

//go:embed schema.sql
var schemaSQL string

// SQLSTATE unique_violation
const uniqueViolation = "23505"

// Postgres is the pgx-backed Backend.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{DB: pool}, nil
}

func (p *Postgres) Close() {
	p.DB.Close()
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.DB.Exec(ctx, schemaSQL)
	return err
}

const appointmentColumns = `id::text, appointment_date, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	coalesce(engineer_id, ''), company_id, appointment_type, description, status`

func scanAppointment(row pgx.Row) (calendar.AppointmentRecord, error) {
	var (
		r    calendar.AppointmentRecord
		date time.Time
	)
	if err := row.Scan(&r.ID, &date, &r.StartTime, &r.EndTime,
		&r.EngineerID, &r.CompanyID, &r.AppointmentType, &r.Description, &r.Status); err != nil {
		return r, err
	}
	r.Date = calendar.NormalizeTime(date).String()
	return r, nil
}

func monthBounds(m calendar.Month) (time.Time, time.Time) {
	return m.First().Time(time.UTC), m.Last().Time(time.UTC)
}

func (p *Postgres) ListAppointments(ctx context.Context, month calendar.Month) ([]calendar.AppointmentRecord, error) {
	from, to := monthBounds(month)
	q := `SELECT ` + appointmentColumns + `
	      FROM appointments
	      WHERE appointment_date >= $1 AND appointment_date <= $2 AND status <> 'cancelled'
	      ORDER BY appointment_date, start_time, id`
	rows, err := p.DB.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.AppointmentRecord
	for rows.Next() {
		r, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetAppointment(ctx context.Context, id string) (calendar.AppointmentRecord, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id::text = $1`
	r, err := scanAppointment(p.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (p *Postgres) bookedWindows(ctx context.Context, tx pgx.Tx, month calendar.Month) (dayWindows, error) {
	from, to := monthBounds(month)
	rows, err := tx.Query(ctx, `SELECT appointment_date, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')
	      FROM appointments
	      WHERE appointment_date >= $1 AND appointment_date <= $2 AND status <> 'cancelled'`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := dayWindows{}
	for rows.Next() {
		var (
			date       time.Time
			start, end string
		)
		if err := rows.Scan(&date, &start, &end); err != nil {
			return nil, err
		}
		if w, ok := windowOf(start, end); ok {
			booked.add(calendar.NormalizeTime(date), w)
		}
	}
	return booked, rows.Err()
}

// OpenSlots expands the availability rules over month, minus windows that
// overlap a live appointment.
func (p *Postgres) OpenSlots(ctx context.Context, month calendar.Month) ([]calendar.OpenSlot, error) {
	rules, err := p.ListAvailabilityRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	booked, err := p.bookedWindows(ctx, tx, month)
	if err != nil {
		return nil, err
	}
	return ExpandRules(rules, month, booked)
}

// SubmitAppointment books b as a pending, unassigned appointment.
func (p *Postgres) SubmitAppointment(ctx context.Context, b calendar.Booking) (calendar.AppointmentRecord, error) {
	if err := validateBooking(b); err != nil {
		return calendar.AppointmentRecord{}, err
	}

	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return calendar.AppointmentRecord{}, err
	}
	defer tx.Rollback(ctx)

	day := b.Day.Time(time.UTC)

	// bookings of one day are serialized until commit; a free window has no
	// row to lock
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('appointments:' || $1::text))`, b.Day.String()); err != nil {
		return calendar.AppointmentRecord{}, err
	}

	checkQ := `SELECT id::text FROM appointments
	           WHERE appointment_date = $1 AND start_time < $3::time AND end_time > $2::time
	             AND status <> 'cancelled'
	           LIMIT 1`
	var existingID string
	err = tx.QueryRow(ctx, checkQ, day, b.StartTime, b.EndTime).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return calendar.AppointmentRecord{}, err
	}
	if existingID != "" {
		return calendar.AppointmentRecord{}, ErrSlotTaken
	}

	rules, err := p.listRules(ctx, tx)
	if err != nil {
		return calendar.AppointmentRecord{}, err
	}
	candidates, err := ExpandRules(rules, calendar.MonthOf(b.Day), nil)
	if err != nil {
		return calendar.AppointmentRecord{}, err
	}
	if !offered(b, candidates) {
		return calendar.AppointmentRecord{}, ErrSlotUnavailable
	}

	insertQ := `INSERT INTO appointments
		(id, appointment_date, start_time, end_time, company_id, appointment_type, description, status, created_at)
		VALUES (gen_random_uuid(), $1, $2::time, $3::time, $4, $5, $6, $7, now())
		RETURNING ` + appointmentColumns
	rec, err := scanAppointment(tx.QueryRow(ctx, insertQ,
		day, b.StartTime, b.EndTime, b.CompanyID, b.AppointmentType, b.Description, StatusPending))
	if err != nil {
		return calendar.AppointmentRecord{}, bookingError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return calendar.AppointmentRecord{}, bookingError(err)
	}
	return rec, nil
}

// bookingError maps a violation of appointments_window_uniq to ErrSlotTaken.
func bookingError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrSlotTaken, pgErr.ConstraintName)
	}
	return err
}

func (p *Postgres) AssignEngineer(ctx context.Context, id, engineerID string) (calendar.AppointmentRecord, error) {
	q := `UPDATE appointments SET engineer_id = nullif($2, ''), status = $3
	      WHERE id::text = $1 AND status <> 'cancelled'
	      RETURNING ` + appointmentColumns
	status := StatusConfirmed
	if engineerID == "" {
		status = StatusPending
	}
	r, err := scanAppointment(p.DB.QueryRow(ctx, q, id, engineerID, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (p *Postgres) CancelAppointment(ctx context.Context, id string) error {
	var current string
	err := p.DB.QueryRow(ctx, `SELECT status FROM appointments WHERE id::text = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current == StatusCancelled {
		return ErrAlreadyCanceled
	}

	res, err := p.DB.Exec(ctx, `UPDATE appointments SET status = 'cancelled' WHERE id::text = $1 AND status <> 'cancelled'`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrAlreadyCanceled
	}
	return nil
}

func (p *Postgres) InsertAvailabilityRule(ctx context.Context, r *AvailabilityRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int
	err := p.DB.QueryRow(ctx, `SELECT id FROM availability_rules WHERE day_of_week = $1 AND available = $2 LIMIT 1`,
		r.DayOfWeek, r.Available).Scan(&existingID)
	if err == nil {
		return fmt.Errorf("%w %d", ErrRuleExists, r.DayOfWeek)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	q := `INSERT INTO availability_rules
	      (day_of_week, start_time, end_time, slot_length_minutes, title, available, created_at, updated_at)
	      VALUES ($1, $2::time, $3::time, $4, $5, $6, $7, $8) RETURNING id`
	if err := p.DB.QueryRow(ctx, q, r.DayOfWeek, r.StartTime, r.EndTime, r.SlotLengthMins,
		r.Title, r.Available, now, now).Scan(&r.ID); err != nil {
		return err
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

func (p *Postgres) UpdateAvailabilityRule(ctx context.Context, r *AvailabilityRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var clashID int
	err := p.DB.QueryRow(ctx, `SELECT o.id FROM availability_rules o
	      JOIN availability_rules r ON r.id = $1
	      WHERE o.id <> r.id AND o.day_of_week = r.day_of_week AND o.available = $2
	      LIMIT 1`, r.ID, r.Available).Scan(&clashID)
	if err == nil {
		return fmt.Errorf("%w (rule %d)", ErrRuleExists, clashID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	now := time.Now().UTC()
	q := `UPDATE availability_rules
	      SET start_time = $1::time, end_time = $2::time, slot_length_minutes = $3,
	          title = $4, available = $5, updated_at = $6
	      WHERE id = $7
	      RETURNING day_of_week, created_at`
	err = p.DB.QueryRow(ctx, q, r.StartTime, r.EndTime, r.SlotLengthMins, r.Title, r.Available, now, r.ID).
		Scan(&r.DayOfWeek, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	r.UpdatedAt = now
	return nil
}

func (p *Postgres) ListAvailabilityRules(ctx context.Context) ([]AvailabilityRule, error) {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	return p.listRules(ctx, tx)
}

func (p *Postgres) listRules(ctx context.Context, tx pgx.Tx) ([]AvailabilityRule, error) {
	q := `SELECT id, day_of_week, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	             slot_length_minutes, title, available, created_at, updated_at
	      FROM availability_rules ORDER BY id`
	rows, err := tx.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AvailabilityRule
	for rows.Next() {
		var r AvailabilityRule
		if err := rows.Scan(&r.ID, &r.DayOfWeek, &r.StartTime, &r.EndTime,
			&r.SlotLengthMins, &r.Title, &r.Available, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
