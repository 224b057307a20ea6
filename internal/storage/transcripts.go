package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// ErrNotFound is returned when no cached transcript matches an id.
var ErrNotFound = errors.New("transcript not found")

// TranscriptDB caches completed transcriptions locally so finished text
// survives provider outages and page reloads.
type TranscriptDB struct {
	db *sql.DB
}

// NewTranscriptDB opens (and if needed initializes) the local cache.
func NewTranscriptDB(dbPath string) (*TranscriptDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		language_code TEXT,
		audio_url TEXT,
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		word_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize transcript cache: %w", err)
	}

	return &TranscriptDB{db: db}, nil
}

// Save upserts one completed transcription.
func (t *TranscriptDB) Save(job types.Job) error {
	query := `
	INSERT INTO transcripts (id, text, language_code, audio_url, created_at, completed_at, word_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text,
		completed_at = excluded.completed_at,
		word_count = excluded.word_count
	`

	var completedAt interface{}
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}

	_, err := t.db.Exec(query,
		job.ID, job.RawText, job.LanguageCode, job.AudioRef,
		job.CreatedAt, completedAt, len(strings.Fields(job.RawText)),
	)
	if err != nil {
		return fmt.Errorf("save transcript %s: %w", job.ID, err)
	}
	return nil
}

// Get retrieves one cached transcript by id.
func (t *TranscriptDB) Get(id string) (types.Job, error) {
	query := `
	SELECT id, text, language_code, audio_url, created_at, completed_at
	FROM transcripts WHERE id = ?
	`
	job, err := scanTranscript(t.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Job{}, ErrNotFound
	}
	if err != nil {
		return types.Job{}, fmt.Errorf("get transcript %s: %w", id, err)
	}
	return job, nil
}

// List returns cached transcripts, newest first.
func (t *TranscriptDB) List(limit int) ([]types.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, text, language_code, audio_url, created_at, completed_at
	FROM transcripts ORDER BY created_at DESC LIMIT ?
	`
	rows, err := t.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes one cached transcript; missing ids are not an error.
func (t *TranscriptDB) Delete(id string) error {
	if _, err := t.db.Exec(`DELETE FROM transcripts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transcript %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (t *TranscriptDB) Close() error {
	return t.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTranscript(row rowScanner) (types.Job, error) {
	var (
		job         types.Job
		completedAt sql.NullTime
		language    sql.NullString
		audioURL    sql.NullString
	)
	if err := row.Scan(&job.ID, &job.RawText, &language, &audioURL, &job.CreatedAt, &completedAt); err != nil {
		return types.Job{}, err
	}
	job.LanguageCode = language.String
	job.AudioRef = audioURL.String
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	job.ServerStatus = types.StatusCompleted
	job.Canonical = types.StatusCompleted
	return job, nil
}
