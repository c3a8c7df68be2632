package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alignify/formcoach/internal/feedback"
	"github.com/alignify/formcoach/internal/pose"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is a completed exercise session.
type Session struct {
	ID              string    `json:"id"`
	Exercise        pose.Kind `json:"exercise"`
	Count           int       `json:"count"`
	ErrorFrames     int       `json:"error_frames"`
	Frames          int       `json:"frames"`
	DurationSeconds int       `json:"duration_seconds"`
	Accuracy        float64   `json:"accuracy"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewSession converts a finished session summary into a storable Session.
func NewSession(s feedback.Summary) *Session {
	return &Session{
		ID:              s.ID,
		Exercise:        s.Exercise,
		Count:           s.Count,
		ErrorFrames:     s.ErrorFrames,
		Frames:          s.Frames,
		DurationSeconds: s.DurationSeconds,
		Accuracy:        math.Round(s.Accuracy()*10) / 10,
		StartedAt:       s.StartTime,
		EndedAt:         s.EndTime,
	}
}

// ListFilter narrows a session listing. Zero values mean no restriction.
type ListFilter struct {
	Exercise pose.Kind
	Since    time.Time
	Limit    int
}

// ExerciseTotals aggregates all stored sessions of one exercise.
type ExerciseTotals struct {
	Exercise     pose.Kind `json:"exercise"`
	Sessions     int       `json:"sessions"`
	TotalCount   int       `json:"total_count"`
	TotalSeconds int       `json:"total_seconds"`
	AvgAccuracy  float64   `json:"avg_accuracy"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. It sets CreatedAt on success.
func (r *SessionRepository) Create(s *Session) error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if _, err := pose.ParseKind(string(s.Exercise)); err != nil {
		return err
	}

	now := time.Now()
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, exercise, count, error_frames, frames, duration_seconds, accuracy, started_at, ended_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.Exercise), s.Count, s.ErrorFrames, s.Frames, s.DurationSeconds,
		s.Accuracy, s.StartedAt.UTC(), s.EndedAt.UTC(), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	s.CreatedAt = now
	return nil
}

// GetByID retrieves a session by its ID.
// Returns ErrNotFound if the session does not exist.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, exercise, count, error_frames, frames, duration_seconds, accuracy, started_at, ended_at, created_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List returns sessions newest first.
func (r *SessionRepository) List(f ListFilter) ([]*Session, error) {
	query := `SELECT id, exercise, count, error_frames, frames, duration_seconds, accuracy, started_at, ended_at, created_at
		 FROM sessions WHERE 1 = 1`
	var args []any
	if f.Exercise != "" {
		query += ` AND exercise = ?`
		args = append(args, string(f.Exercise))
	}
	if !f.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, f.Since.UTC())
	}
	query += ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session by its ID.
// Returns ErrNotFound if the session does not exist.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Totals aggregates stored sessions per exercise, ordered by exercise name.
func (r *SessionRepository) Totals() ([]ExerciseTotals, error) {
	rows, err := r.db.Query(
		`SELECT exercise, COUNT(*), COALESCE(SUM(count), 0), COALESCE(SUM(duration_seconds), 0), COALESCE(AVG(accuracy), 0)
		 FROM sessions GROUP BY exercise ORDER BY exercise`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []ExerciseTotals
	for rows.Next() {
		var t ExerciseTotals
		var kind string
		if err := rows.Scan(&kind, &t.Sessions, &t.TotalCount, &t.TotalSeconds, &t.AvgAccuracy); err != nil {
			return nil, err
		}
		t.Exercise = pose.Kind(kind)
		t.AvgAccuracy = math.Round(t.AvgAccuracy*10) / 10
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*Session, error) {
	var s Session
	var kind string
	err := sc.Scan(
		&s.ID, &kind, &s.Count, &s.ErrorFrames, &s.Frames, &s.DurationSeconds,
		&s.Accuracy, &s.StartedAt, &s.EndedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Exercise = pose.Kind(kind)
	return &s, nil
}
