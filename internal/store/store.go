// Package store persists finished analyses in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/truthgauge/internal/model"
)

const (
	// DefaultListLimit applies when List is called with limit <= 0
	DefaultListLimit = 20
	// MaxListLimit caps a single List call
	MaxListLimit = 100
)

// timeLayout is fixed width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for unknown IDs
var ErrNotFound = errors.New("analysis not found")

// Store is the SQLite persistence adapter.
// All methods are safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// evidenceRecord is what evidence_json holds
type evidenceRecord struct {
	Summary model.EvidenceSummary `json:"summary"`
	Claims  []model.Claim         `json:"claims"`
}

// Open opens (or creates) the database at path and applies migrations.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	version, err := runMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("store opened", "path", path, "schema_version", version)

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Save inserts a finished analysis under a new UUID and returns the ID
func (s *Store) Save(ctx context.Context, a model.Analysis, originalText string) (string, error) {
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	evidenceJSON, err := json.Marshal(evidenceRecord{Summary: a.Evidence, Claims: a.Claims})
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (
			id, input_kind, content_text, media_type, is_likely_true, confidence,
			result_json, evidence_json, model, created_at, source_url, title, provider
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(a.InputKind), originalText, a.Document.SourceMediaType,
		a.Result.IsLikelyTrue, a.Result.Confidence,
		string(resultJSON), string(evidenceJSON), a.Model,
		createdAt.UTC().Format(timeLayout),
		a.Document.SourceURL, a.Document.Title, a.Provider)
	if err != nil {
		return "", fmt.Errorf("insert analysis: %w", err)
	}
	return id, nil
}

const selectColumns = `id, input_kind, content_text, media_type, result_json, evidence_json,
	model, created_at, source_url, title, provider`

// Get loads one analysis by ID
func (s *Store) Get(ctx context.Context, id string) (*model.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns the most recent analyses, newest first
func (s *Store) List(ctx context.Context, limit int) ([]model.Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	analyses := []model.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return analyses, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*model.Analysis, error) {
	var (
		a            model.Analysis
		inputKind    string
		resultJSON   string
		evidenceJSON string
		createdAt    string
	)
	err := row.Scan(&a.ID, &inputKind, &a.Document.Text, &a.Document.SourceMediaType,
		&resultJSON, &evidenceJSON, &a.Model, &createdAt,
		&a.Document.SourceURL, &a.Document.Title, &a.Provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	a.InputKind = model.InputKind(inputKind)

	if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
		return nil, fmt.Errorf("decode result for %s: %w", a.ID, err)
	}
	var evidence evidenceRecord
	if err := json.Unmarshal([]byte(evidenceJSON), &evidence); err != nil {
		return nil, fmt.Errorf("decode evidence for %s: %w", a.ID, err)
	}
	a.Evidence = evidence.Summary
	a.Claims = evidence.Claims
	if a.Claims == nil {
		a.Claims = []model.Claim{}
	}

	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", a.ID, err)
	}
	return &a, nil
}
