package index

import (
	"log/slog"
	"time"

	"github.com/starford/gebo/internal/artifact"
	"github.com/starford/gebo/internal/storage"
)

// Sync walks the content store and brings the index up to date from the
// self-describing artifacts: missing rows are inserted and stale rows
// (checksum drift) are refreshed. Rows whose artifacts have vanished are
// left in place; they surface as corrupt state at read time rather than
// being silently repaired.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	infos, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	for _, info := range infos {
		if checksums[info.Path] == info.Checksum {
			continue
		}
		if err := syncArtifact(db, store, info.Path, info.Checksum); err != nil {
			logger.Warn("sync: index failed", slog.String("path", info.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", info.Path))
		}
	}

	return nil
}

// syncArtifact reads one artifact and upserts its metadata row.
func syncArtifact(db *DB, store storage.Provider, path, cs string) error {
	data, err := store.Read(path)
	if err != nil {
		return err
	}
	note, err := artifact.Decode(data)
	if err != nil {
		return err
	}
	return db.UpsertNote(NoteRow{
		ID:        note.ID,
		Title:     artifact.DeriveTitle(note.Content),
		Checksum:  cs,
		FilePath:  path,
		CreatedAt: note.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	})
}
