package repository

import (
	"context"
	"database/sql"
	"errors"

	"mdnotes/internal/common"
	"mdnotes/internal/note/model"
	"mdnotes/pkg/logger"
)

// Store persists notes. Notes are only ever inserted; there is no update.
type Store interface {
	// Save assigns an id and returns the persisted record.
	Save(ctx context.Context, note *model.Note) (*model.Note, error)
	// FindByID returns common.ErrNotFound for unknown ids.
	FindByID(ctx context.Context, id int64) (*model.Note, error)
	// FindAll returns every note ordered by id.
	FindAll(ctx context.Context) ([]model.Note, error)
	// ListSummaries returns id, title and creation time of every note ordered by id.
	ListSummaries(ctx context.Context) ([]model.NoteSummary, error)
}

// NoteRepository is the SQL store. The same statements run on PostgreSQL
// (lib/pq) and SQLite (go-sqlite3); both accept $n placeholders and RETURNING.
type NoteRepository struct {
	DB *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

func (r *NoteRepository) Save(ctx context.Context, note *model.Note) (*model.Note, error) {
	saved := *note
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO notes (title, content, html_content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		note.Title, note.Content, note.HTMLContent, note.CreatedAt,
	).Scan(&saved.ID)
	if err != nil {
		logger.Sugar.Errorf("Failed to save note %q: %v", note.Title, err)
		return nil, err
	}
	return &saved, nil
}

func (r *NoteRepository) FindByID(ctx context.Context, id int64) (*model.Note, error) {
	var n model.Note
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, title, content, html_content, created_at FROM notes WHERE id = $1`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.HTMLContent, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get note %d: %v", id, err)
		return nil, err
	}
	return &n, nil
}

func (r *NoteRepository) FindAll(ctx context.Context) ([]model.Note, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, title, content, html_content, created_at FROM notes ORDER BY id ASC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to list notes: %v", err)
		return nil, err
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.HTMLContent, &n.CreatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan note: %v", err)
			return nil, err
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		logger.Sugar.Errorf("Failed to iterate notes: %v", err)
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepository) ListSummaries(ctx context.Context) ([]model.NoteSummary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, title, created_at FROM notes ORDER BY id ASC`)
	if err != nil {
		logger.Sugar.Errorf("Failed to list note summaries: %v", err)
		return nil, err
	}
	defer rows.Close()

	summaries := []model.NoteSummary{}
	for rows.Next() {
		var s model.NoteSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan note summary: %v", err)
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		logger.Sugar.Errorf("Failed to iterate note summaries: %v", err)
		return nil, err
	}
	return summaries, nil
}
