package index

import "github.com/starford/gebo/internal/models"

// MetadataIndex defines the interface for index operations. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type MetadataIndex interface {
	InsertNote(row NoteRow) error
	UpsertNote(row NoteRow) error
	ListNotes() ([]NoteRow, error)
	GetNote(id int64) (*NoteRow, error)
	InsertConnection(sourceID, targetID int64, label *string, isAIGenerated bool, relation *string) (models.Connection, error)
	ListConnections() ([]models.Connection, error)
	MaxNoteID() (int64, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies MetadataIndex at compile time.
var _ MetadataIndex = (*DB)(nil)
