// Package derive orchestrates pairwise relation inference: a new note
// against the existing corpus on insert, or every unordered pair on an
// explicit reprocess.
package derive

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/starford/gebo/internal/classifier"
	"github.com/starford/gebo/internal/models"
)

// Store is the slice of the storage facade the pipeline writes through.
type Store interface {
	GetNotes(ctx context.Context) ([]models.Note, error)
	CreateConnection(ctx context.Context, sourceID, targetID int64, label *string, isAIGenerated bool, relation *string) (models.Connection, error)
}

// Pipeline runs relation derivation with a bounded classifier fan-out.
type Pipeline struct {
	cls    classifier.Client
	store  Store
	limit  int
	logger *slog.Logger

	// Notify, when set, is called for every connection the pipeline
	// creates (used to broadcast SSE events).
	Notify func(models.Connection)
}

// New creates a pipeline. limit bounds concurrent classifier calls;
// values below 1 fall back to 8.
func New(cls classifier.Client, store Store, limit int, logger *slog.Logger) *Pipeline {
	if limit < 1 {
		limit = 8
	}
	return &Pipeline{cls: cls, store: store, limit: limit, logger: logger}
}

// DeriveForNote classifies note against every other note in corpus,
// concurrently, and persists a connection for each accepted relation with
// the new note as source. Pairs complete in no particular order; a failed
// classification or write simply yields no connection for that pair and is
// never retried. Returns the number of connections created.
func (p *Pipeline) DeriveForNote(ctx context.Context, note models.Note, corpus []models.Note) int {
	// Detach from the caller's lifetime: a disconnecting HTTP client must
	// not cancel in-flight classifications or drop derived connections.
	ctx = context.WithoutCancel(ctx)

	var created atomic.Int64

	// Plain Group, not WithContext: once issued, all pair classifications
	// run to completion even if one of them fails.
	var g errgroup.Group
	g.SetLimit(p.limit)

	for _, existing := range corpus {
		if existing.ID == note.ID {
			continue
		}
		g.Go(func() error {
			if p.classifyPair(ctx, note, existing) {
				created.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return int(created.Load())
}

// Reprocess enumerates all k·(k−1)/2 unordered note pairs exactly once and
// classifies each. Quadratic in corpus size; acceptable for small corpora
// only. Repeated calls create duplicate connections for the same pair —
// reprocessing does not deduplicate against existing connections.
func (p *Pipeline) Reprocess(ctx context.Context) (int, error) {
	ctx = context.WithoutCancel(ctx)

	notes, err := p.store.GetNotes(ctx)
	if err != nil {
		return 0, err
	}

	var created atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.limit)

	for i := 0; i < len(notes); i++ {
		for j := i + 1; j < len(notes); j++ {
			source, target := notes[i], notes[j]
			g.Go(func() error {
				if p.classifyPair(ctx, source, target) {
					created.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	return int(created.Load()), nil
}

// classifyPair asks the classifier about one pair and persists an accepted
// relation. Reports whether a connection was created.
func (p *Pipeline) classifyPair(ctx context.Context, source, target models.Note) bool {
	relation := p.cls.Classify(ctx, source.Content, target.Content)
	if relation == classifier.None || !models.ValidRelation(relation) {
		return false
	}

	label := "AI detected: " + relation
	conn, err := p.store.CreateConnection(ctx, source.ID, target.ID, &label, true, &relation)
	if err != nil {
		p.logger.Warn("derive: connection write failed",
			slog.Int64("source", source.ID),
			slog.Int64("target", target.ID),
			slog.String("relation", relation),
			slog.String("error", err.Error()))
		return false
	}

	p.logger.Debug("derive: connection created",
		slog.Int64("source", conn.SourceID),
		slog.Int64("target", conn.TargetID),
		slog.String("relation", relation))
	if p.Notify != nil {
		p.Notify(conn)
	}
	return true
}
