package db

import (
	"database/sql"
	"fmt"
	"time"
)

// DefaultListLimit caps list queries when the caller passes a non-positive
// limit.
const DefaultListLimit = 100

// Measurement is one logged analyser state. Center and Zero are nil when
// the analyser had no estimate or no reference at capture time.
type Measurement struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	CapturedAt    time.Time `json:"captured_at"`
	Center        *float64  `json:"center"`
	Zero          *float64  `json:"zero"`
	Radius        int       `json:"radius"`
	ProfileLength int       `json:"profile_length"`
}

// Offset returns Center minus Zero when both are present.
func (m Measurement) Offset() (float64, bool) {
	if m.Center == nil || m.Zero == nil {
		return 0, false
	}
	return *m.Center - *m.Zero, true
}

// ZeroEvent records a change of the zero reference.
type ZeroEvent struct {
	ID    int64     `json:"id"`
	RunID string    `json:"run_id"`
	SetAt time.Time `json:"set_at"`
	Value float64   `json:"value"`
}

func (db *DB) RecordMeasurement(m Measurement) error {
	center, hasCenter := nullable(m.Center)
	zero, hasZero := nullable(m.Zero)
	_, err := db.Exec(
		`INSERT INTO measurements (
			run_id, captured_at, center, has_center, zero, has_zero, radius, profile_length
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.CapturedAt.UnixNano(), center, hasCenter, zero, hasZero, m.Radius, m.ProfileLength,
	)
	if err != nil {
		return fmt.Errorf("failed to record measurement: %w", err)
	}
	return nil
}

// Measurements returns the most recent measurements, newest first. An empty
// runID matches every run.
func (db *DB) Measurements(runID string, limit int) ([]Measurement, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Query(
		`SELECT measurement_id, run_id, captured_at, center, has_center, zero, has_zero, radius, profile_length
		FROM measurements
		WHERE ? = '' OR run_id = ?
		ORDER BY captured_at DESC, measurement_id DESC
		LIMIT ?`,
		runID, runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		var (
			m                  Measurement
			capturedAt         int64
			center, zero       sql.NullFloat64
			hasCenter, hasZero bool
		)
		if err := rows.Scan(&m.ID, &m.RunID, &capturedAt, &center, &hasCenter, &zero, &hasZero, &m.Radius, &m.ProfileLength); err != nil {
			return nil, err
		}
		m.CapturedAt = time.Unix(0, capturedAt).UTC()
		if hasCenter && center.Valid {
			m.Center = &center.Float64
		}
		if hasZero && zero.Valid {
			m.Zero = &zero.Float64
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) RecordZero(e ZeroEvent) error {
	_, err := db.Exec(
		`INSERT INTO zero_events (run_id, set_at, value) VALUES (?, ?, ?)`,
		e.RunID, e.SetAt.UnixNano(), e.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to record zero: %w", err)
	}
	return nil
}

// ZeroEvents returns zero changes newest first.
func (db *DB) ZeroEvents(limit int) ([]ZeroEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Query(
		`SELECT zero_event_id, run_id, set_at, value
		FROM zero_events
		ORDER BY set_at DESC, zero_event_id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ZeroEvent
	for rows.Next() {
		var (
			e     ZeroEvent
			setAt int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &setAt, &e.Value); err != nil {
			return nil, err
		}
		e.SetAt = time.Unix(0, setAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestZero returns the most recently recorded zero so a restarted daemon
// can restore it.
func (db *DB) LatestZero() (float64, bool, error) {
	var v float64
	err := db.QueryRow(
		`SELECT value FROM zero_events ORDER BY set_at DESC, zero_event_id DESC LIMIT 1`,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func nullable(v *float64) (sql.NullFloat64, bool) {
	if v == nil {
		return sql.NullFloat64{}, false
	}
	return sql.NullFloat64{Float64: *v, Valid: true}, true
}
