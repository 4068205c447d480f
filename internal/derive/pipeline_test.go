package derive

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/starford/gebo/internal/classifier"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/notestore"
	"github.com/starford/gebo/internal/testutil"
)

// stubClassifier counts calls and answers via fn.
type stubClassifier struct {
	mu    sync.Mutex
	calls int
	fn    func(textA, textB string) string
}

func (s *stubClassifier) Classify(_ context.Context, textA, textB string) string {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fn == nil {
		return classifier.None
	}
	return s.fn(textA, textB)
}

// classifierFunc adapts a plain function to classifier.Client.
type classifierFunc func(ctx context.Context, textA, textB string) string

func (f classifierFunc) Classify(ctx context.Context, textA, textB string) string {
	return f(ctx, textA, textB)
}

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testPipeline(t *testing.T, cls classifier.Client) (*Pipeline, *notestore.Service) {
	t.Helper()
	svc := testutil.TestService(t)
	return New(cls, svc, 4, testLogger()), svc
}

func TestDeriveForNoteCreatesConnection(t *testing.T) {
	ctx := context.Background()

	stub := &stubClassifier{fn: func(textA, textB string) string {
		if textA == "Intro continued" && textB == "# Intro\nBasics" {
			return models.RelationContinuation
		}
		return classifier.None
	}}
	p, svc := testPipeline(t, stub)

	a, err := svc.CreateNote(ctx, "# Intro\nBasics")
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.CreateNote(ctx, "Intro continued")
	if err != nil {
		t.Fatal(err)
	}

	corpus, _ := svc.GetNotes(ctx)
	created := p.DeriveForNote(ctx, b, corpus)
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	conns, err := svc.GetConnections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 1 {
		t.Fatalf("len(conns) = %d, want 1", len(conns))
	}
	conn := conns[0]
	if conn.SourceID != b.ID || conn.TargetID != a.ID {
		t.Errorf("endpoints = (%d,%d), want (%d,%d)", conn.SourceID, conn.TargetID, b.ID, a.ID)
	}
	if !conn.IsAIGenerated {
		t.Error("derived connection must be AI-flagged")
	}
	if conn.Relation == nil || *conn.Relation != models.RelationContinuation {
		t.Errorf("relation = %v, want continuation", conn.Relation)
	}
	if conn.Label == nil || *conn.Label != "AI detected: continuation" {
		t.Errorf("label = %v", conn.Label)
	}
}

func TestDeriveForNoteSkipsSelf(t *testing.T) {
	ctx := context.Background()
	stub := &stubClassifier{fn: func(string, string) string { return models.RelationExample }}
	p, svc := testPipeline(t, stub)

	only, _ := svc.CreateNote(ctx, "lonely note")
	corpus, _ := svc.GetNotes(ctx)

	if created := p.DeriveForNote(ctx, only, corpus); created != 0 {
		t.Errorf("created = %d, want 0 for single-note corpus", created)
	}
	if stub.callCount() != 0 {
		t.Errorf("classifier called %d times for a self-only corpus", stub.callCount())
	}
}

func TestDeriveForNoteLabelOutsideVocabulary(t *testing.T) {
	ctx := context.Background()
	stub := &stubClassifier{fn: func(string, string) string { return "contradiction" }}
	p, svc := testPipeline(t, stub)

	_, _ = svc.CreateNote(ctx, "a")
	b, _ := svc.CreateNote(ctx, "b")
	corpus, _ := svc.GetNotes(ctx)

	if created := p.DeriveForNote(ctx, b, corpus); created != 0 {
		t.Errorf("created = %d, want 0 for out-of-vocabulary label", created)
	}
	conns, _ := svc.GetConnections(ctx)
	if len(conns) != 0 {
		t.Errorf("connections = %d, want 0", len(conns))
	}
}

func TestDeriveForNoteClassifierFailureYieldsNothing(t *testing.T) {
	ctx := context.Background()
	// fn == nil: every pair answers None, as the HTTP client does on failure.
	stub := &stubClassifier{}
	p, svc := testPipeline(t, stub)

	_, _ = svc.CreateNote(ctx, "a")
	b, _ := svc.CreateNote(ctx, "b")
	corpus, _ := svc.GetNotes(ctx)

	if created := p.DeriveForNote(ctx, b, corpus); created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
}

func TestDeriveForNoteSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Refuses to answer on a dead context, so a leaked cancellation
	// surfaces as a missing connection.
	p, svc := testPipeline(t, classifierFunc(func(callCtx context.Context, textA, textB string) string {
		if callCtx.Err() != nil {
			return classifier.None
		}
		return models.RelationContinuation
	}))

	_, _ = svc.CreateNote(ctx, "a")
	b, _ := svc.CreateNote(ctx, "b")
	corpus, _ := svc.GetNotes(ctx)

	cancel()
	if created := p.DeriveForNote(ctx, b, corpus); created != 1 {
		t.Fatalf("created = %d, want 1 after caller cancellation", created)
	}
}

func TestReprocessSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, svc := testPipeline(t, classifierFunc(func(callCtx context.Context, textA, textB string) string {
		if callCtx.Err() != nil {
			return classifier.None
		}
		return models.RelationExample
	}))

	_, _ = svc.CreateNote(ctx, "a")
	_, _ = svc.CreateNote(ctx, "b")

	cancel()
	created, err := p.Reprocess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1 after caller cancellation", created)
	}
}

func TestReprocessPairCount(t *testing.T) {
	ctx := context.Background()
	stub := &stubClassifier{}
	p, svc := testPipeline(t, stub)

	const k = 5
	for i := 0; i < k; i++ {
		if _, err := svc.CreateNote(ctx, "note body"); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := p.Reprocess(ctx); err != nil {
		t.Fatalf("Reprocess: %v", err)
	}

	want := k * (k - 1) / 2
	if got := stub.callCount(); got != want {
		t.Errorf("classifier calls = %d, want %d", got, want)
	}
}

func TestReprocessNotIdempotent(t *testing.T) {
	ctx := context.Background()
	stub := &stubClassifier{fn: func(string, string) string { return models.RelationExample }}
	p, svc := testPipeline(t, stub)

	_, _ = svc.CreateNote(ctx, "first")
	_, _ = svc.CreateNote(ctx, "second")

	for run := 1; run <= 2; run++ {
		created, err := p.Reprocess(ctx)
		if err != nil {
			t.Fatalf("Reprocess run %d: %v", run, err)
		}
		if created != 1 {
			t.Errorf("run %d created = %d, want 1", run, created)
		}
	}

	// Two runs over the same 2-note corpus leave two duplicate connections.
	conns, _ := svc.GetConnections(ctx)
	if len(conns) != 2 {
		t.Errorf("connections = %d, want 2 (duplicates are kept)", len(conns))
	}
}

func TestReprocessNotifyFires(t *testing.T) {
	ctx := context.Background()
	stub := &stubClassifier{fn: func(string, string) string { return models.RelationAnalogy }}
	p, svc := testPipeline(t, stub)

	var mu sync.Mutex
	var notified []models.Connection
	p.Notify = func(c models.Connection) {
		mu.Lock()
		notified = append(notified, c)
		mu.Unlock()
	}

	_, _ = svc.CreateNote(ctx, "x")
	_, _ = svc.CreateNote(ctx, "y")

	created, err := p.Reprocess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(notified) != created {
		t.Errorf("notified = %d, created = %d", len(notified), created)
	}
}
