package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gebo/internal/classifier"
	"github.com/starford/gebo/internal/derive"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/testutil"
)

// fakeClassifier answers every pair with the configured relation.
type fakeClassifier struct {
	relation string
}

func (f *fakeClassifier) Classify(context.Context, string, string) string {
	return f.relation
}

func testRouter(t *testing.T, cls classifier.Client) chi.Router {
	t.Helper()
	if cls == nil {
		cls = &fakeClassifier{relation: classifier.None}
	}
	svc := testutil.TestService(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pipeline := derive.New(cls, svc, 4, logger)
	return NewRouter(svc, pipeline, nil, false, "")
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateNoteDerivesConnection(t *testing.T) {
	r := testRouter(t, &fakeClassifier{relation: models.RelationContinuation})

	rec := doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "# Intro\nBasics"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var first models.Note
	decodeInto(t, rec, &first)

	rec = doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "Intro continued"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var second models.Note
	decodeInto(t, rec, &second)

	if second.CreatedAt.IsZero() || second.Content != "Intro continued" {
		t.Errorf("unexpected note payload: %+v", second)
	}

	// Derivation completes before the create response is written.
	rec = doJSON(t, r, http.MethodGet, "/connections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list connections: status = %d", rec.Code)
	}
	var conns []models.Connection
	decodeInto(t, rec, &conns)
	if len(conns) != 1 {
		t.Fatalf("len(conns) = %d, want 1", len(conns))
	}
	conn := conns[0]
	if conn.SourceID != second.ID || conn.TargetID != first.ID {
		t.Errorf("endpoints = (%d,%d), want (%d,%d)", conn.SourceID, conn.TargetID, second.ID, first.ID)
	}
	if !conn.IsAIGenerated {
		t.Error("derived connection must report isAiGenerated")
	}
	if conn.Relation == nil || *conn.Relation != models.RelationContinuation {
		t.Errorf("relation = %v, want continuation", conn.Relation)
	}
	if conn.Label == nil || *conn.Label != "AI detected: continuation" {
		t.Errorf("label = %v", conn.Label)
	}
}

func TestCreateNoteDerivationSurvivesClientDisconnect(t *testing.T) {
	// Real HTTP classifier so request-context propagation is exercised
	// end to end.
	classifierSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"relation":"continuation"}`))
	}))
	defer classifierSrv.Close()

	svc := testutil.TestService(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cls := classifier.NewHTTP(classifierSrv.URL, 5*time.Second, logger)
	pipeline := derive.New(cls, svc, 4, logger)
	r := NewRouter(svc, pipeline, nil, false, "")

	if rec := doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "first"}); rec.Code != http.StatusCreated {
		t.Fatalf("seed create: status = %d", rec.Code)
	}

	// The client goes away before derivation starts: the pass must still
	// run to completion and persist its connections.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body, _ := json.Marshal(map[string]string{"content": "second"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/connections", nil)
	var conns []models.Connection
	decodeInto(t, rec, &conns)
	if len(conns) != 1 {
		t.Fatalf("len(conns) = %d, want 1 despite cancelled request context", len(conns))
	}
	if conns[0].Relation == nil || *conns[0].Relation != models.RelationContinuation {
		t.Errorf("relation = %v, want continuation", conns[0].Relation)
	}
}

func TestCreateNoteEmptyContent(t *testing.T) {
	r := testRouter(t, nil)

	for _, content := range []string{"", "   \n\t "} {
		rec := doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": content})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("content %q: status = %d, want 400", content, rec.Code)
		}
	}

	rec := doJSON(t, r, http.MethodGet, "/notes", nil)
	var notes []models.Note
	decodeInto(t, rec, &notes)
	if len(notes) != 0 {
		t.Errorf("rejected creates must not persist notes, got %d", len(notes))
	}
}

func TestCreateNoteInvalidBody(t *testing.T) {
	r := testRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListNotesEmpty(t *testing.T) {
	r := testRouter(t, nil)

	rec := doJSON(t, r, http.MethodGet, "/notes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty listing must serialize as [], got %q", body)
	}
}

func TestListNotesNewestFirst(t *testing.T) {
	r := testRouter(t, nil)

	for _, content := range []string{"oldest", "middle", "newest"} {
		if rec := doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": content}); rec.Code != http.StatusCreated {
			t.Fatalf("create %q: status = %d", content, rec.Code)
		}
	}

	rec := doJSON(t, r, http.MethodGet, "/notes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var notes []models.Note
	decodeInto(t, rec, &notes)
	if len(notes) != 3 {
		t.Fatalf("len(notes) = %d, want 3", len(notes))
	}
	want := []string{"newest", "middle", "oldest"}
	for i, w := range want {
		if notes[i].Content != w {
			t.Errorf("notes[%d].Content = %q, want %q", i, notes[i].Content, w)
		}
	}
}

func TestGetNote(t *testing.T) {
	r := testRouter(t, nil)

	rec := doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "solo"})
	var created models.Note
	decodeInto(t, rec, &created)

	rec = doJSON(t, r, http.MethodGet, "/notes/"+strconv.FormatInt(created.ID, 10), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got models.Note
	decodeInto(t, rec, &got)
	if got.ID != created.ID || got.Content != "solo" {
		t.Errorf("got %+v", got)
	}

	if rec := doJSON(t, r, http.MethodGet, "/notes/999999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing note: status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodGet, "/notes/abc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestManualConnection(t *testing.T) {
	r := testRouter(t, nil)

	var a, b models.Note
	decodeInto(t, doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "a"}), &a)
	decodeInto(t, doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "b"}), &b)

	rec := doJSON(t, r, http.MethodPost, "/connections", map[string]any{
		"sourceId": a.ID,
		"targetId": b.ID,
		"label":    "see also",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var conn models.Connection
	decodeInto(t, rec, &conn)
	if conn.IsAIGenerated {
		t.Error("manual connection must not be AI-flagged")
	}
	if conn.Relation != nil {
		t.Errorf("manual connection relation = %v, want nil", conn.Relation)
	}
	if conn.Label == nil || *conn.Label != "see also" {
		t.Errorf("label = %v", conn.Label)
	}
}

func TestManualConnectionValidation(t *testing.T) {
	r := testRouter(t, nil)

	// Missing endpoints.
	if rec := doJSON(t, r, http.MethodPost, "/connections", map[string]any{"label": "x"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing ids: status = %d, want 400", rec.Code)
	}

	// Endpoints that reference no note.
	rec := doJSON(t, r, http.MethodPost, "/connections", map[string]any{
		"sourceId": 111, "targetId": 222,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown ids: status = %d, want 400", rec.Code)
	}
}

func TestListConnectionsEmpty(t *testing.T) {
	r := testRouter(t, nil)

	rec := doJSON(t, r, http.MethodGet, "/connections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" && body != "[]" {
		t.Errorf("empty listing must serialize as [], got %q", body)
	}
}

func TestReprocess(t *testing.T) {
	r := testRouter(t, &fakeClassifier{relation: models.RelationSharedContext})

	// Two notes created while the classifier already links them, so the
	// incremental pass makes one connection up front.
	doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "a"})
	doJSON(t, r, http.MethodPost, "/notes", map[string]string{"content": "b"})

	rec := doJSON(t, r, http.MethodPost, "/reprocess-connections", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ReprocessResponse
	decodeInto(t, rec, &resp)
	if resp.CreatedCount != 1 {
		t.Errorf("createdCount = %d, want 1", resp.CreatedCount)
	}
}

func TestAuthMiddleware(t *testing.T) {
	svc := testutil.TestService(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pipeline := derive.New(&fakeClassifier{relation: classifier.None}, svc, 4, logger)
	r := NewRouter(svc, pipeline, nil, true, "secret")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}
}
