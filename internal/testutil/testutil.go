// Package testutil provides shared test helpers for setting up note stores
// and metadata databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/gebo/internal/index"
	"github.com/starford/gebo/internal/notestore"
	"github.com/starford/gebo/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gebo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary notes directory with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestService creates a full storage facade over temporary stores.
func TestService(t *testing.T) *notestore.Service {
	t.Helper()
	_, store := TestStore(t)
	db := TestDB(t)
	svc, err := notestore.NewService(store, db)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}
