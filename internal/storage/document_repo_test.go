package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyrag/internal/domain"
)

func TestDocumentRepo_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t))

	doc := &domain.Document{ID: "notes_1", Filename: "notes.pdf", ContentHash: "abc", ChunkCount: 3, CharCount: 900}
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("Upsert() should set CreatedAt")
	}

	got, err := repo.GetByID(ctx, "notes_1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Filename != "notes.pdf" || got.ChunkCount != 3 || got.CharCount != 900 {
		t.Errorf("GetByID() = %+v", got)
	}

	doc.ChunkCount = 5
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}
	got, err = repo.GetByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if got.ID != "notes_1" || got.ChunkCount != 5 {
		t.Errorf("GetByHash() = %+v, want updated notes_1", got)
	}
}

func TestDocumentRepo_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t))

	tests := []struct {
		name string
		call func() error
	}{
		{name: "GetByID", call: func() error { _, err := repo.GetByID(ctx, "x"); return err }},
		{name: "GetByHash", call: func() error { _, err := repo.GetByHash(ctx, "x"); return err }},
		{name: "Delete", call: func() error { return repo.Delete(ctx, "x") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNotFound) {
				t.Errorf("%s() error = %v, want ErrNotFound", tt.name, err)
			}
		})
	}
}

func TestDocumentRepo_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new"} {
		doc := &domain.Document{ID: id, Filename: id + ".pdf", ContentHash: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Upsert(ctx, doc); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "new" {
		t.Fatalf("List() = %+v, want newest first", docs)
	}

	if err := repo.Delete(ctx, "old"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	n, err := repo.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteAll() = %v, want 1", n)
	}

	docs, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List() after DeleteAll = %+v, want empty", docs)
	}
}
