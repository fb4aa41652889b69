// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wneessen/geotrail/internal/geo"
)

const (
	queryAppend = `INSERT INTO locations (id, user_id, latitude, longitude, accuracy, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	queryHistory = `SELECT latitude, longitude, accuracy, recorded_at FROM locations
WHERE user_id = $1 AND recorded_at >= $2 ORDER BY recorded_at ASC LIMIT $3`
	queryAllUsers = `SELECT l.id, u.id, u.name, u.email, l.latitude, l.longitude, l.accuracy, l.recorded_at
FROM locations l JOIN users u ON u.id = l.user_id
WHERE l.recorded_at >= $1 ORDER BY l.recorded_at ASC`
	queryClear      = `DELETE FROM locations WHERE user_id = $1`
	queryUpsertUser = `INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`
	queryIsAdmin = `SELECT is_admin FROM users WHERE id = $1`
)

// Postgres is a Store backed by a PostgreSQL database accessed through the pgx driver. It also
// implements Authorizer based on the is_admin flag of the users table.
type Postgres struct {
	db *sql.DB
}

// Open opens a Postgres connection using the given DSN and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgres(db), nil
}

// NewPostgres returns a store using an already opened database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Append(ctx context.Context, userID string, reading geo.Reading) error {
	if userID == "" {
		return ErrUserRequired
	}
	_, err := p.db.ExecContext(ctx, queryAppend, uuid.New(), userID, reading.Position.Lat,
		reading.Position.Lon, reading.Accuracy, reading.At.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	return nil
}

func (p *Postgres) QueryHistory(ctx context.Context, userID string, since time.Time, limit int) ([]geo.Reading, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	// LIMIT NULL is the same as no limit
	var rowLimit sql.NullInt64
	if limit > 0 {
		rowLimit = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := p.db.QueryContext(ctx, queryHistory, userID, since.UTC(), rowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query location history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var readings []geo.Reading
	for rows.Next() {
		var reading geo.Reading
		if err = rows.Scan(&reading.Position.Lat, &reading.Position.Lon, &reading.Accuracy,
			&reading.At); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		readings = append(readings, reading)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read location history: %w", err)
	}
	return readings, nil
}

func (p *Postgres) QueryAllUsers(ctx context.Context, since time.Time) ([]Event, error) {
	rows, err := p.db.QueryContext(ctx, queryAllUsers, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []Event
	for rows.Next() {
		var event Event
		var name, email sql.NullString
		if err = rows.Scan(&event.ID, &event.Identity.ID, &name, &email, &event.Position.Lat,
			&event.Position.Lon, &event.Accuracy, &event.At); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		event.Identity.Name = name.String
		event.Identity.Email = email.String
		events = append(events, event)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read locations: %w", err)
	}
	return events, nil
}

func (p *Postgres) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if _, err := p.db.ExecContext(ctx, queryClear, userID); err != nil {
		return fmt.Errorf("failed to clear location history: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertUser(ctx context.Context, identity Identity) error {
	if identity.ID == "" {
		return ErrUserRequired
	}
	if _, err := p.db.ExecContext(ctx, queryUpsertUser, identity.ID, identity.Name,
		identity.Email); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// IsAdmin reports the is_admin flag of the user. Unknown users are not admins.
func (p *Postgres) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrUserRequired
	}
	var isAdmin bool
	err := p.db.QueryRowContext(ctx, queryIsAdmin, userID).Scan(&isAdmin)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up admin flag: %w", err)
	}
	return isAdmin, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
