package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gsarrco/MuoVErsi/internal/service"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrUnavailable wraps every connection or query failure.
	ErrUnavailable = errors.New("schedule database unavailable")
	ErrNotFound    = errors.New("not found")
	ErrUnknownMode = errors.New("no database for transport mode")
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

type conn struct {
	db *sql.DB
	// calendar is set when trips + calendar tables exist, enabling service-day filtering.
	calendar bool
}

// Store holds one read-only schedule database per transport mode.
// It is safe for concurrent use.
type Store struct {
	conns map[service.Mode]*conn
}

// NewStore wraps already opened databases and probes their optional tables.
func NewStore(ctx context.Context, dbs map[service.Mode]*sql.DB) (*Store, error) {
	s := &Store{conns: make(map[service.Mode]*conn, len(dbs))}
	for mode, d := range dbs {
		cal, err := hasTables(ctx, d, "trips", "calendar", "calendar_dates")
		if err != nil {
			return nil, fmt.Errorf("introspect %s database: %w: %w", mode, ErrUnavailable, err)
		}
		c := &conn{db: d, calendar: cal["trips"] && cal["calendar"] && cal["calendar_dates"]}
		if c.calendar {
			log.Printf("schedule db mode=%s: service calendar available", mode)
		}
		s.conns[mode] = c
	}
	return s, nil
}

func (s *Store) conn(mode service.Mode) (*conn, error) {
	c, ok := s.conns[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return c, nil
}

// Ping checks every mode's database.
func (s *Store) Ping(ctx context.Context) error {
	for mode, c := range s.conns {
		if err := Ping(ctx, c.db); err != nil {
			return fmt.Errorf("ping %s: %w: %w", mode, ErrUnavailable, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	for _, c := range s.conns {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

// hasTables reports which of the given tables are visible on the search path.
func hasTables(ctx context.Context, db *sql.DB, tables ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(tables))
	for _, t := range tables {
		var found bool
		if err := db.QueryRowContext(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, t).Scan(&found); err != nil {
			return nil, err
		}
		res[t] = found
	}
	return res, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
