package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSink appends records to a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a recording database.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			cycle INTEGER NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			sensor_left INTEGER,
			sensor_center INTEGER,
			sensor_right INTEGER,
			left_speed INTEGER,
			right_speed INTEGER,
			rule TEXT,
			base_speed INTEGER,
			error TEXT,
			PRIMARY KEY (run_id, cycle)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Send(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (run_id, cycle, timestamp, sensor_left, sensor_center, sensor_right,
			left_speed, right_speed, rule, base_speed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Cycle, r.Timestamp.UTC(), r.Sensors[0], r.Sensors[1], r.Sensors[2],
		r.Motor.LeftSpeed, r.Motor.RightSpeed, r.Control.Rule, r.Control.BaseSpeed, r.Control.Error)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Records returns all samples of a run in cycle order.
func (s *SQLiteSink) Records(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle, timestamp, sensor_left, sensor_center, sensor_right,
			left_speed, right_speed, rule, base_speed, error
		FROM samples WHERE run_id = ? ORDER BY cycle`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r := Record{RunID: runID}
		if err := rows.Scan(&r.Cycle, &r.Timestamp,
			&r.Sensors[0], &r.Sensors[1], &r.Sensors[2],
			&r.Motor.LeftSpeed, &r.Motor.RightSpeed,
			&r.Control.Rule, &r.Control.BaseSpeed, &r.Control.Error); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
