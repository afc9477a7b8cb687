package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meetwith/internal/models"

	"github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS connected_calendars (
	account_address TEXT NOT NULL,
	provider        TEXT NOT NULL,
	email           TEXT NOT NULL,
	payload         TEXT NOT NULL DEFAULT '{}',
	calendars       TEXT NOT NULL DEFAULT '[]',
	disabled        BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (account_address, provider, email)
)`

// SQLStore keeps connections in PostgreSQL or SQLite.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type connectedCalendarRow struct {
	AccountAddress string    `db:"account_address"`
	Provider       string    `db:"provider"`
	Email          string    `db:"email"`
	Payload        string    `db:"payload"`
	Calendars      string    `db:"calendars"`
	Disabled       bool      `db:"disabled"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// OpenSQL opens a store from a DSN. postgres:// URLs use pgx; sqlite: and
// file: DSNs use SQLite.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	driver, source := "", dsn
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver = "pgx"
	case strings.HasPrefix(dsn, "sqlite:"):
		driver, source = "sqlite3", strings.TrimPrefix(dsn, "sqlite:")
	case strings.HasPrefix(dsn, "file:"):
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported registry DSN %q", dsn)
	}

	db, err := sqlx.ConnectContext(ctx, driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to connect registry database: %w", err)
	}
	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create registry schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) GetConnectedCalendars(ctx context.Context, accountAddress string, opts ListOptions) ([]ConnectedCalendar, error) {
	query := `
		SELECT account_address, provider, email, payload, calendars, disabled, updated_at
		FROM connected_calendars
		WHERE account_address = ?`
	args := []any{strings.ToLower(accountAddress)}
	if opts.ActiveOnly {
		query += ` AND disabled = ?`
		args = append(args, false)
	}
	query += ` ORDER BY provider, email`

	var rows []connectedCalendarRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query connected calendars: %w", err)
	}

	out := make([]ConnectedCalendar, 0, len(rows))
	for _, row := range rows {
		cal, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, cal)
	}
	return out, nil
}

func (s *SQLStore) SaveConnectedCalendar(ctx context.Context, cal ConnectedCalendar) error {
	cal = normalize(cal)
	calendars, err := json.Marshal(cal.Calendars)
	if err != nil {
		return fmt.Errorf("failed to marshal calendars: %w", err)
	}
	payload := string(cal.Payload)
	if payload == "" {
		payload = "{}"
	}

	query := `
		INSERT INTO connected_calendars (account_address, provider, email, payload, calendars, disabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_address, provider, email) DO UPDATE SET
			payload = excluded.payload,
			calendars = excluded.calendars,
			disabled = excluded.disabled,
			updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query),
		cal.AccountAddress, string(cal.Provider), cal.Email, payload, string(calendars), cal.Disabled, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save connected calendar: %w", err)
	}
	return nil
}

func (r connectedCalendarRow) toModel() (ConnectedCalendar, error) {
	cal := ConnectedCalendar{
		AccountAddress: r.AccountAddress,
		Email:          r.Email,
		Provider:       models.Provider(r.Provider),
		Payload:        json.RawMessage(r.Payload),
		Disabled:       r.Disabled,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Calendars), &cal.Calendars); err != nil {
		return ConnectedCalendar{}, fmt.Errorf("failed to decode calendars for %s: %w", r.Email, err)
	}
	return cal, nil
}
