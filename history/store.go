package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("history: reading not found")

// Reading is one stored illuminance sample.
type Reading struct {
	ID    int64
	Topic string
	Lux   uint16
	Time  time.Time
}

// Store keeps readings in a SQLite database. Timestamps are stored as Unix
// nanoseconds so range queries compare integers.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS lux_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	lux INTEGER NOT NULL,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lux_readings_ts ON lux_readings(ts);
`

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save stores r and sets its ID.
func (s *Store) Save(ctx context.Context, r *Reading) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lux_readings (topic, lux, ts) VALUES (?, ?, ?)`,
		r.Topic, int64(r.Lux), r.Time.UnixNano())
	if err != nil {
		return fmt.Errorf("history: failed to insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: failed to get insert id: %w", err)
	}
	r.ID = id
	return nil
}

// Latest returns the most recent reading of topic.
func (s *Store) Latest(ctx context.Context, topic string) (*Reading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topic, lux, ts FROM lux_readings WHERE topic = ? ORDER BY ts DESC, id DESC LIMIT 1`,
		topic)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: failed to query latest reading: %w", err)
	}
	return r, nil
}

// Range returns the readings of topic taken in [start, end), oldest first.
func (s *Store) Range(ctx context.Context, topic string, start, end time.Time) ([]*Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, lux, ts FROM lux_readings
		WHERE topic = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, id ASC`,
		topic, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("history: failed to query readings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var readings []*Reading
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("history: failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: failed to iterate readings: %w", err)
	}
	return readings, nil
}

// Purge deletes readings taken before cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lux_readings WHERE ts < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("history: failed to delete old readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: failed to count deleted readings: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*Reading, error) {
	var r Reading
	var lux, ts int64
	if err := row.Scan(&r.ID, &r.Topic, &lux, &ts); err != nil {
		return nil, err
	}
	r.Lux = uint16(lux)
	r.Time = time.Unix(0, ts)
	return &r, nil
}
