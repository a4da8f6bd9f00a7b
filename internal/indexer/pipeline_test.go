package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/extract"
	"studyrag/internal/storage"
	"studyrag/internal/vectorstore"
)

type testPipeline struct {
	*Pipeline
	store     *vectorstore.SQLiteStore
	documents *storage.DocumentRepo
}

func newTestPipeline(t *testing.T, load embedding.LoaderFunc, opts PipelineOptions) *testPipeline {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	if load == nil {
		load = embedding.HashingLoader(64)
	}
	embedder, err := embedding.NewService(load, embedding.Options{Model: "hashing"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	store := vectorstore.NewSQLiteStore(storage.NewChunkRepo(db))
	documents := storage.NewDocumentRepo(db)
	p := NewPipeline(extract.New(extract.Options{}), nil, embedder, store, documents, opts)

	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	return &testPipeline{Pipeline: p, store: store, documents: documents}
}

func studyNotes(seed string) []byte {
	return []byte("UNIT I\n\n" + filler(50, seed+"a") + "\n\nCHAPTER 2\n\n" + filler(60, seed+"b"))
}

func TestDocumentID(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	tests := []struct {
		filename string
		nonce    string
		want     string
	}{
		{"Lecture Notes.pdf", "a1b2c3", "lecture_notes_1700000000123_a1b2c3"},
		{"uploads/DBMS-Unit1.PDF", "a1b2c3", "dbms-unit1_1700000000123_a1b2c3"},
		{`C:\docs\week 3.md`, "a1b2c3", "week_3_1700000000123_a1b2c3"},
		{"", "a1b2c3", "document_1700000000123_a1b2c3"},
		{"...pdf", "", "document_1700000000123"},
		{"notes.txt", "A1/B2", "notes_1700000000123_a1b2"},
		{strings.Repeat("a", 80) + ".txt", "a1b2c3", strings.Repeat("a", 43) + "_1700000000123_a1b2c3"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := DocumentID(tt.filename, at, tt.nonce)
			if got != tt.want {
				t.Errorf("DocumentID(%q, %q) = %q, want %q", tt.filename, tt.nonce, got, tt.want)
			}
			if len(got) > maxDocumentIDLength {
				t.Errorf("DocumentID(%q) length = %d, want <= %d", tt.filename, len(got), maxDocumentIDLength)
			}
		})
	}
}

func TestPipeline_IngestSameFilenameSameInstant(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, nil, PipelineOptions{})
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	results := make([]*IngestResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Ingest(ctx, "notes.txt", studyNotes(fmt.Sprintf("v%d", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Ingest() #%d error = %v", i, err)
		}
	}
	if results[0].DocumentID == results[1].DocumentID {
		t.Fatalf("both uploads got document ID %q", results[0].DocumentID)
	}
	for _, res := range results {
		n, err := p.store.Count(ctx, res.DocumentID)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 2 {
			t.Errorf("Count(%q) = %d, want 2", res.DocumentID, n)
		}
	}
}

func TestPipeline_Ingest(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, nil, PipelineOptions{})

	res, err := p.Ingest(ctx, "notes.txt", studyNotes("x"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.ChunkCount != 2 {
		t.Errorf("Ingest() ChunkCount = %d, want 2", res.ChunkCount)
	}
	if res.Method != extract.MethodText {
		t.Errorf("Ingest() Method = %q, want %q", res.Method, extract.MethodText)
	}
	if !strings.HasPrefix(res.DocumentID, "notes_") {
		t.Errorf("Ingest() DocumentID = %q, want notes_ prefix", res.DocumentID)
	}

	chunks, err := p.store.ListChunks(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("ListChunks() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].SectionTitle != "UNIT I" || chunks[1].SectionTitle != "CHAPTER 2" {
		t.Errorf("section titles = %q, %q, want UNIT I, CHAPTER 2", chunks[0].SectionTitle, chunks[1].SectionTitle)
	}

	doc, err := p.documents.GetByID(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.ChunkCount != 2 || doc.Filename != "notes.txt" || doc.ContentHash == "" {
		t.Errorf("registered document = %+v", doc)
	}
}

func TestPipeline_IngestReusesIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, nil, PipelineOptions{})

	first, err := p.Ingest(ctx, "notes.txt", studyNotes("x"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	second, err := p.Ingest(ctx, "copy.txt", studyNotes("x"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if !second.Reused {
		t.Error("second Ingest() Reused = false, want true")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("second Ingest() DocumentID = %q, want %q", second.DocumentID, first.DocumentID)
	}
	count, _ := p.store.Count(ctx, "")
	if count != 2 {
		t.Errorf("store count = %d, want 2", count)
	}
}

func TestPipeline_IngestModes(t *testing.T) {
	tests := []struct {
		name      string
		replace   bool
		wantCount int
		wantDocs  int
	}{
		{name: "additive", replace: false, wantCount: 4, wantDocs: 2},
		{name: "replace on ingest", replace: true, wantCount: 2, wantDocs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := newTestPipeline(t, nil, PipelineOptions{ReplaceOnIngest: tt.replace})

			if _, err := p.Ingest(ctx, "a.txt", studyNotes("a")); err != nil {
				t.Fatalf("Ingest(a) error = %v", err)
			}
			second, err := p.Ingest(ctx, "b.txt", studyNotes("b"))
			if err != nil {
				t.Fatalf("Ingest(b) error = %v", err)
			}

			count, err := p.store.Count(ctx, "")
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if count != tt.wantCount {
				t.Errorf("store count = %d, want %d", count, tt.wantCount)
			}
			docs, err := p.documents.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(docs) != tt.wantDocs {
				t.Errorf("documents = %d, want %d", len(docs), tt.wantDocs)
			}
			if n, _ := p.store.Count(ctx, second.DocumentID); n != 2 {
				t.Errorf("latest document chunk count = %d, want 2", n)
			}
		})
	}
}

func TestPipeline_IngestErrors(t *testing.T) {
	offline := func(context.Context) (embedding.Provider, error) {
		return nil, errors.New("model download failed")
	}
	slow := func(context.Context) (embedding.Provider, error) {
		time.Sleep(200 * time.Millisecond)
		return embedding.NewHashingProvider(8), nil
	}

	tests := []struct {
		name    string
		load    embedding.LoaderFunc
		timeout time.Duration
		data    []byte
		wantErr error
	}{
		{name: "file too small", data: []byte("tiny"), wantErr: domain.ErrFileTooSmall},
		{name: "unreadable bytes", data: bytes.Repeat([]byte{0xff}, 200), wantErr: domain.ErrUnreadable},
		{name: "too few words", data: []byte(strings.Repeat("Short heading only\n\n", 6)), wantErr: domain.ErrNoText},
		{name: "model unavailable", load: offline, data: studyNotes("x"), wantErr: domain.ErrEmbedding},
		{name: "model load timeout", load: slow, timeout: 20 * time.Millisecond, data: studyNotes("x"), wantErr: domain.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := newTestPipeline(t, tt.load, PipelineOptions{Timeout: tt.timeout})

			_, err := p.Ingest(ctx, "upload.txt", tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Ingest() error = %v, want %v", err, tt.wantErr)
			}

			count, _ := p.store.Count(ctx, "")
			if count != 0 {
				t.Errorf("store count after failure = %d, want 0", count)
			}
			docs, _ := p.documents.List(ctx)
			if len(docs) != 0 {
				t.Errorf("documents after failure = %d, want 0", len(docs))
			}
		})
	}
}

func TestPipeline_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, nil, PipelineOptions{})

	a, err := p.Ingest(ctx, "a.txt", studyNotes("a"))
	if err != nil {
		t.Fatalf("Ingest(a) error = %v", err)
	}
	if _, err := p.Ingest(ctx, "b.txt", studyNotes("b")); err != nil {
		t.Fatalf("Ingest(b) error = %v", err)
	}

	n, err := p.DeleteDocument(ctx, a.DocumentID)
	if err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteDocument() = %d, want 2", n)
	}
	if _, err := p.DeleteDocument(ctx, a.DocumentID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteDocument() again error = %v, want ErrNotFound", err)
	}
	if _, err := p.DeleteDocument(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("DeleteDocument(\"\") error = %v, want ErrValidation", err)
	}

	n, err = p.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ClearAll() = %d, want 2", n)
	}
	docs, _ := p.documents.List(ctx)
	if len(docs) != 0 {
		t.Errorf("documents after ClearAll() = %d, want 0", len(docs))
	}
}

func TestPipeline_IngestPath(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, nil, PipelineOptions{})

	dir := t.TempDir()
	files := map[string][]byte{
		"unit1.txt":     studyNotes("u1"),
		"sub/unit2.md":  []byte("# Unit Two\n\n" + filler(60, "md") + "\n"),
		"sub/broken.md": []byte("x"),
		"ignored.png":   []byte("not an upload"),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}

	results, err := p.IngestPath(ctx, dir)
	if err == nil {
		t.Error("IngestPath() expected error for broken file, got nil")
	}
	if len(results) != 2 {
		t.Fatalf("IngestPath() ingested %d files, want 2", len(results))
	}

	count, _ := p.store.Count(ctx, "")
	if count != 3 {
		t.Errorf("store count = %d, want 3", count)
	}
}
