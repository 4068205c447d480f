package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
)

// NoteRow represents a row in the notes_metadata table. FilePath points at
// the artifact holding the note body.
type NoteRow struct {
	ID        int64
	Title     string
	Checksum  string
	FilePath  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InsertNote inserts a new metadata row. The id is assigned by the caller;
// a duplicate id or artifact pointer fails on the table constraints.
func (db *DB) InsertNote(row NoteRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO notes_metadata (id, title, checksum, file_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.ID, row.Title, row.Checksum, row.FilePath, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: insert note: %w", err)
	}
	return nil
}

// UpsertNote inserts or refreshes a metadata row. Used by recovery paths
// (startup sync, watcher) where the artifact is the source of truth.
func (db *DB) UpsertNote(row NoteRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO notes_metadata (id, title, checksum, file_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			file_path  = excluded.file_path,
			updated_at = excluded.updated_at
	`, row.ID, row.Title, row.Checksum, row.FilePath, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// ListNotes returns all metadata rows, newest first.
func (db *DB) ListNotes() ([]NoteRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, title, checksum, file_path, created_at, updated_at
		FROM notes_metadata
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var r NoteRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Checksum, &r.FilePath, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetNote returns the metadata row for one note id.
func (db *DB) GetNote(id int64) (*NoteRow, error) {
	var r NoteRow
	err := db.conn.QueryRow(`
		SELECT id, title, checksum, file_path, created_at, updated_at
		FROM notes_metadata
		WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &r.Checksum, &r.FilePath, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &r, nil
}

// InsertConnection inserts a connection row and returns the fully populated
// record, assigned id included, so the caller never needs a follow-up read.
// Endpoints referencing unknown note ids fail the foreign-key constraint
// and surface as a validation error.
func (db *DB) InsertConnection(sourceID, targetID int64, label *string, isAIGenerated bool, relation *string) (models.Connection, error) {
	createdAt := time.Now().UTC()
	var id int64
	err := db.conn.QueryRow(`
		INSERT INTO connections (source_id, target_id, label, is_ai_generated, relation, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, sourceID, targetID, label, isAIGenerated, relation, createdAt).Scan(&id)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return models.Connection{}, fmt.Errorf("index: connection endpoints must reference existing notes: %w", apperr.ErrValidation)
		}
		return models.Connection{}, fmt.Errorf("index: insert connection: %w", err)
	}
	return models.Connection{
		ID:            id,
		SourceID:      sourceID,
		TargetID:      targetID,
		Label:         label,
		IsAIGenerated: isAIGenerated,
		Relation:      relation,
		CreatedAt:     createdAt,
	}, nil
}

// ListConnections returns all connection rows, newest first.
func (db *DB) ListConnections() ([]models.Connection, error) {
	rows, err := db.conn.Query(`
		SELECT id, source_id, target_id, label, is_ai_generated, relation, created_at
		FROM connections
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list connections: %w", err)
	}
	defer rows.Close()

	var out []models.Connection
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.SourceID, &c.TargetID, &c.Label, &c.IsAIGenerated, &c.Relation, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MaxNoteID returns the highest note id, or 0 for an empty index. Used to
// seed the id generator so restarts stay collision-free.
func (db *DB) MaxNoteID() (int64, error) {
	var max sql.NullInt64
	if err := db.conn.QueryRow(`SELECT MAX(id) FROM notes_metadata`).Scan(&max); err != nil {
		return 0, fmt.Errorf("index: max note id: %w", err)
	}
	return max.Int64, nil
}

// AllChecksums returns artifact pointer → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file_path, checksum FROM notes_metadata`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
