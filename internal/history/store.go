// Package history persists one row per toggle cycle and the user-authored
// correction pairs fed back into the formatting prompt.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fluesterlabs/fluestern/internal/config"
	_ "modernc.org/sqlite"
)

// Recording is one completed (or failed) toggle cycle. Rows are never
// mutated after insert except for the user-supplied correction; retention is
// an external concern.
type Recording struct {
	ID                  int64
	Timestamp           time.Time
	RawTranscript       string
	FormattedTranscript string
	UserCorrection      string
	AudioDurationMS     int64
	WhisperDurationMS   int64
	LLMDurationMS       int64
	TotalDurationMS     int64
	Success             bool
	ErrorMessage        string
}

// Correction is a user-supplied (misrecognized pattern, intended text) pair.
type Correction struct {
	ID           int64
	Pattern      string
	IntendedText string
	CreatedAt    time.Time
}

// Store wraps the SQLite-backed history database.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store, creating the schema lazily if absent.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS recordings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    whisper_output TEXT,
    llm_output TEXT,
    user_correction TEXT,
    audio_duration_ms INTEGER,
    whisper_duration_ms INTEGER,
    llm_duration_ms INTEGER,
    total_duration_ms INTEGER,
    success INTEGER DEFAULT 1,
    error_message TEXT
);
CREATE TABLE IF NOT EXISTS corrections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    whisper_pattern TEXT NOT NULL,
    intended_text TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_timestamp ON recordings(timestamp);
CREATE INDEX IF NOT EXISTS idx_corrections_created ON corrections(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert appends a cycle record. Parameterized statements keep free-form
// transcript and error text delimiter-safe.
func (s *Store) Insert(ctx context.Context, rec Recording) (int64, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings(timestamp, whisper_output, llm_output, user_correction,
		                        audio_duration_ms, whisper_duration_ms, llm_duration_ms,
		                        total_duration_ms, success, error_message)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339Nano), rec.RawTranscript, rec.FormattedTranscript,
		rec.UserCorrection, rec.AudioDurationMS, rec.WhisperDurationMS, rec.LLMDurationMS,
		rec.TotalDurationMS, boolToInt(rec.Success), rec.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("insert recording: %w", err)
	}
	return res.LastInsertId()
}

// Get returns one recording, or nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, whisper_output, llm_output, user_correction,
		        audio_duration_ms, whisper_duration_ms, llm_duration_ms,
		        total_duration_ms, success, error_message
		 FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Recent returns up to limit recordings ordered newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, whisper_output, llm_output, user_correction,
		        audio_duration_ms, whisper_duration_ms, llm_duration_ms,
		        total_duration_ms, success, error_message
		 FROM recordings ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// Delete removes a recording row.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}

// SaveCorrection stores the user's correction on the recording and records a
// (pattern, intended) pair for future prompt context.
func (s *Store) SaveCorrection(ctx context.Context, recordingID int64, correction string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE recordings SET user_correction = ? WHERE id = ?`, correction, recordingID); err != nil {
		return fmt.Errorf("update correction: %w", err)
	}

	var pattern sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT whisper_output FROM recordings WHERE id = ?`, recordingID).Scan(&pattern)
	if err == sql.ErrNoRows {
		return tx.Commit()
	}
	if err != nil {
		return err
	}
	if pattern.Valid && pattern.String != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO corrections(whisper_pattern, intended_text, created_at) VALUES(?, ?, ?)`,
			pattern.String, correction, s.clock().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}
	}
	return tx.Commit()
}

// RecentCorrections returns up to limit correction pairs, newest first.
func (s *Store) RecentCorrections(ctx context.Context, limit int) ([]Correction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, whisper_pattern, intended_text, created_at
		 FROM corrections ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var corrections []Correction
	for rows.Next() {
		var c Correction
		var created string
		if err := rows.Scan(&c.ID, &c.Pattern, &c.IntendedText, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			c.CreatedAt = ts
		}
		corrections = append(corrections, c)
	}
	return corrections, rows.Err()
}

// CorrectionsPromptContext renders recent corrections as the extra system
// prompt block. Returns "" when there are none.
func (s *Store) CorrectionsPromptContext(ctx context.Context, limit int) (string, error) {
	corrections, err := s.RecentCorrections(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(corrections) == 0 {
		return "", nil
	}

	lines := []string{
		"\n\nUser correction patterns (use these to better understand what the user means):",
	}
	for _, c := range corrections {
		lines = append(lines, fmt.Sprintf("- When transcribed as %q, the user meant: %q", c.Pattern, c.IntendedText))
	}
	return strings.Join(lines, "\n"), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	var rec Recording
	var ts string
	var raw, formatted, correction, errMsg sql.NullString
	var success sql.NullInt64
	if err := row.Scan(&rec.ID, &ts, &raw, &formatted, &correction,
		&rec.AudioDurationMS, &rec.WhisperDurationMS, &rec.LLMDurationMS,
		&rec.TotalDurationMS, &success, &errMsg); err != nil {
		return nil, err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		rec.Timestamp = parsed
	}
	rec.RawTranscript = raw.String
	rec.FormattedTranscript = formatted.String
	rec.UserCorrection = correction.String
	rec.ErrorMessage = errMsg.String
	rec.Success = !success.Valid || success.Int64 != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
