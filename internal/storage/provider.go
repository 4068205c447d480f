// Package storage implements the note content store on the local file system.
package storage

import "time"

// ArtifactInfo is a lightweight listing entry for one stored artifact.
type ArtifactInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for content store operations. Paths are
// relative to the store root. Notes are never updated or deleted, so the
// surface is intentionally write-once.
type Provider interface {
	// List returns metadata for every .md artifact in the store.
	List() ([]ArtifactInfo, error)
	// Read returns the raw bytes of the artifact at path.
	Read(path string) ([]byte, error)
	// Write atomically publishes content at path; a partially written
	// artifact is never visible to a concurrent reader.
	Write(path string, content []byte) error
}
