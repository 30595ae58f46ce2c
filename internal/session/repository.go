package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Update writes the full record back iff the stored version still matches
	// s.Version, then bumps s.Version. A lost race returns ErrConflict.
	Update(ctx context.Context, s *Session) error
	List(ctx context.Context, limit int) ([]*Session, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, status, version, input, transcript, highlights, approved, removed, outputs, error, progress, stage, created_at, updated_at`

func (r *SQLiteRepository) Create(ctx context.Context, s *Session) error {
	input, transcript, highlights, approved, removed, outputs, err := marshalDocs(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, string(s.Status), s.Version, input, transcript, highlights, approved, removed, outputs,
		nullString(s.Error), s.Progress, nullString(s.Stage),
		s.CreatedAt.Format(time.RFC3339Nano), s.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = ?
	`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	return s, err
}

func (r *SQLiteRepository) Update(ctx context.Context, s *Session) error {
	input, transcript, highlights, approved, removed, outputs, err := marshalDocs(s)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, version = version + 1, input = ?, transcript = ?, highlights = ?,
		    approved = ?, removed = ?, outputs = ?, error = ?, progress = ?, stage = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, string(s.Status), input, transcript, highlights, approved, removed, outputs,
		nullString(s.Error), s.Progress, nullString(s.Stage),
		s.UpdatedAt.Format(time.RFC3339Nano), s.ID, s.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", s.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	s.Version++
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
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

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var status string
	var input, transcript, outputs, errMsg, stage sql.NullString
	var highlights, approved, removed string
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &status, &s.Version, &input, &transcript, &highlights,
		&approved, &removed, &outputs, &errMsg, &s.Progress, &stage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Status = Status(status)
	s.Error = errMsg.String
	s.Stage = stage.String
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}

	if input.Valid {
		if err := json.Unmarshal([]byte(input.String), &s.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if transcript.Valid {
		if err := json.Unmarshal([]byte(transcript.String), &s.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(highlights), &s.Highlights); err != nil {
		return nil, fmt.Errorf("decode highlights: %w", err)
	}
	if err := json.Unmarshal([]byte(approved), &s.ApprovedIndexes); err != nil {
		return nil, fmt.Errorf("decode approved indexes: %w", err)
	}
	if err := json.Unmarshal([]byte(removed), &s.RemovedIndexes); err != nil {
		return nil, fmt.Errorf("decode removed indexes: %w", err)
	}
	if outputs.Valid {
		if err := json.Unmarshal([]byte(outputs.String), &s.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs: %w", err)
		}
	}
	if s.Highlights == nil {
		s.Highlights = []Highlight{}
	}
	if s.ApprovedIndexes == nil {
		s.ApprovedIndexes = []int{}
	}
	if s.RemovedIndexes == nil {
		s.RemovedIndexes = []int{}
	}
	return &s, nil
}

func marshalDocs(s *Session) (input, transcript, highlights, approved, removed, outputs sql.NullString, err error) {
	if s.Input != nil {
		b, e := json.Marshal(s.Input)
		if e != nil {
			err = fmt.Errorf("encode input: %w", e)
			return
		}
		input = sql.NullString{String: string(b), Valid: true}
	}
	if s.Transcript != nil {
		b, e := json.Marshal(s.Transcript)
		if e != nil {
			err = fmt.Errorf("encode transcript: %w", e)
			return
		}
		transcript = sql.NullString{String: string(b), Valid: true}
	}
	if s.Outputs != nil {
		b, e := json.Marshal(s.Outputs)
		if e != nil {
			err = fmt.Errorf("encode outputs: %w", e)
			return
		}
		outputs = sql.NullString{String: string(b), Valid: true}
	}

	hb, e := json.Marshal(s.Highlights)
	if e != nil {
		err = fmt.Errorf("encode highlights: %w", e)
		return
	}
	ab, e := json.Marshal(emptyIfNil(s.ApprovedIndexes))
	if e != nil {
		err = fmt.Errorf("encode approved indexes: %w", e)
		return
	}
	rb, e := json.Marshal(emptyIfNil(s.RemovedIndexes))
	if e != nil {
		err = fmt.Errorf("encode removed indexes: %w", e)
		return
	}
	highlights = sql.NullString{String: string(hb), Valid: true}
	approved = sql.NullString{String: string(ab), Valid: true}
	removed = sql.NullString{String: string(rb), Valid: true}
	return
}

func emptyIfNil(set []int) []int {
	if set == nil {
		return []int{}
	}
	return set
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
