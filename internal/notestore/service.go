// Package notestore unifies the content store and the metadata index
// behind note and connection operations. It is the sole writer of both
// stores.
package notestore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/artifact"
	"github.com/starford/gebo/internal/checksum"
	"github.com/starford/gebo/internal/index"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/storage"
)

// Service coordinates the content store and the metadata index.
type Service struct {
	store storage.Provider
	db    *index.DB
	ids   *IDGenerator
}

// NewService creates a new store facade. The id generator is seeded from
// the index so ids stay collision-free across restarts.
func NewService(store storage.Provider, db *index.DB) (*Service, error) {
	maxID, err := db.MaxNoteID()
	if err != nil {
		return nil, err
	}
	return &Service{
		store: store,
		db:    db,
		ids:   NewIDGenerator(maxID),
	}, nil
}

// CreateNote validates content, assigns an id, writes the artifact and
// then the metadata row. When the index insert fails after the artifact
// was published, the orphaned artifact is deliberately left in place (no
// rollback deletes user content on a transient index failure) and the
// error carries apperr.ErrInconsistentState.
func (s *Service) CreateNote(_ context.Context, content string) (models.Note, error) {
	if strings.TrimSpace(content) == "" {
		return models.Note{}, fmt.Errorf("notestore: content must not be empty: %w", apperr.ErrValidation)
	}

	// Sync and the watcher index foreign artifacts whose embedded ids may
	// run ahead of this machine's clock; issuing an id at or below the
	// index maximum would rename over such an artifact. Best effort: an
	// unreadable index fails the insert below anyway.
	if maxID, err := s.db.MaxNoteID(); err == nil {
		s.ids.Observe(maxID)
	}

	id := s.ids.Next()
	note := models.Note{
		ID:        id,
		Content:   content,
		CreatedAt: time.UnixMilli(id).UTC(),
	}

	data, err := artifact.Encode(note)
	if err != nil {
		return models.Note{}, err
	}
	path := strconv.FormatInt(id, 10) + ".md"
	if err := s.store.Write(path, data); err != nil {
		return models.Note{}, err
	}

	row := index.NoteRow{
		ID:        id,
		Title:     artifact.DeriveTitle(content),
		Checksum:  checksum.Sum(data),
		FilePath:  path,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.CreatedAt,
	}
	if err := s.db.InsertNote(row); err != nil {
		return models.Note{}, fmt.Errorf("notestore: index insert failed after artifact %s was written: %v: %w",
			path, err, apperr.ErrInconsistentState)
	}

	return note, nil
}

// GetNotes returns all notes, newest first, each hydrated from its
// artifact. A missing or undecodable artifact for an indexed row fails the
// whole listing with apperr.ErrCorruptState.
func (s *Service) GetNotes(_ context.Context) ([]models.Note, error) {
	rows, err := s.db.ListNotes()
	if err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(rows))
	for _, row := range rows {
		note, err := s.hydrate(row)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// GetNote returns one note hydrated from its artifact.
func (s *Service) GetNote(_ context.Context, id int64) (models.Note, error) {
	row, err := s.db.GetNote(id)
	if err != nil {
		return models.Note{}, err
	}
	return s.hydrate(*row)
}

// CreateConnection delegates to the index; endpoint existence is enforced
// by the index's referential constraint.
func (s *Service) CreateConnection(_ context.Context, sourceID, targetID int64, label *string, isAIGenerated bool, relation *string) (models.Connection, error) {
	return s.db.InsertConnection(sourceID, targetID, label, isAIGenerated, relation)
}

// GetConnections returns all connections, newest first.
func (s *Service) GetConnections(_ context.Context) ([]models.Connection, error) {
	return s.db.ListConnections()
}

// hydrate reads a row's artifact and checks the embedded id against the
// metadata row.
func (s *Service) hydrate(row index.NoteRow) (models.Note, error) {
	data, err := s.store.Read(row.FilePath)
	if err != nil {
		return models.Note{}, fmt.Errorf("notestore: artifact %s for note %d unreadable: %v: %w",
			row.FilePath, row.ID, err, apperr.ErrCorruptState)
	}
	note, err := artifact.Decode(data)
	if err != nil {
		return models.Note{}, fmt.Errorf("notestore: artifact %s undecodable: %v: %w",
			row.FilePath, err, apperr.ErrCorruptState)
	}
	if note.ID != row.ID {
		return models.Note{}, fmt.Errorf("notestore: artifact %s embeds id %d, index row has %d: %w",
			row.FilePath, note.ID, row.ID, apperr.ErrCorruptState)
	}
	return note, nil
}
