package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIngestPlainText(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()
	svc := NewDocumentService(st, dir, nil)
	ctx := context.Background()

	doc, err := svc.Ingest(ctx, "alice", "notes.txt", strings.NewReader("Mitochondria are the powerhouse of the cell."))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if doc.ContentType != "text/plain" || !doc.Processed {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.ExtractedText.String != "Mitochondria are the powerhouse of the cell." {
		t.Fatalf("unexpected text %q", doc.ExtractedText.String)
	}
	if filepath.Dir(doc.StoragePath) != filepath.Join(dir, "alice") {
		t.Fatalf("file stored outside owner dir: %s", doc.StoragePath)
	}
	if filepath.Ext(doc.StoragePath) != ".txt" {
		t.Fatalf("expected .txt extension, got %s", doc.StoragePath)
	}
	if _, err := os.Stat(doc.StoragePath); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	got, err := st.GetDocument(ctx, "alice", doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ExtractedText.String != doc.ExtractedText.String {
		t.Fatalf("persisted text mismatch: %q", got.ExtractedText.String)
	}
}

func TestIngestBinaryHasEmptyText(t *testing.T) {
	svc := NewDocumentService(newTestStore(t), t.TempDir(), nil)

	payload := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0, 1, 2, 3}, 64)...)
	doc, err := svc.Ingest(context.Background(), "alice", "diagram.png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if doc.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %s", doc.ContentType)
	}
	if doc.ExtractedText.String != "" || !doc.Processed {
		t.Fatalf("binary upload should be processed with empty text: %+v", doc)
	}
}

func TestIngestInvalidUTF8DegradesToEmpty(t *testing.T) {
	svc := NewDocumentService(newTestStore(t), t.TempDir(), nil)

	doc, err := svc.Ingest(context.Background(), "alice", "latin1.txt", bytes.NewReader([]byte("caf\xe9 au lait")))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.HasPrefix(doc.ContentType, "text/") {
		t.Fatalf("expected a text type, got %s", doc.ContentType)
	}
	if doc.ExtractedText.String != "" || !doc.Processed {
		t.Fatalf("invalid UTF-8 should yield empty text: %+v", doc)
	}
}

func TestIngestHTMLUsesArticleText(t *testing.T) {
	svc := NewDocumentService(newTestStore(t), t.TempDir(), nil)

	page := `<!DOCTYPE html><html><head><title>Cells</title></head><body>
<nav><a href="/">Home</a></nav>
<article><h1>Cells</h1>
<p>The cell is the basic structural and functional unit of all living organisms. Cells contain cytoplasm enclosed within a membrane.</p>
<p>Most cells are only visible under a microscope. Organisms can be classified as unicellular or multicellular, and every cell arises from a pre-existing cell.</p>
</article></body></html>`
	doc, err := svc.Ingest(context.Background(), "alice", "cells.html", strings.NewReader(page))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if doc.ContentType != "text/html" {
		t.Fatalf("expected text/html, got %s", doc.ContentType)
	}
	if !strings.Contains(doc.ExtractedText.String, "basic structural and functional unit") {
		t.Fatalf("article text missing: %q", doc.ExtractedText.String)
	}
	if strings.Contains(doc.ExtractedText.String, "<p>") {
		t.Fatalf("markup should be stripped: %q", doc.ExtractedText.String)
	}
}

func TestIngestWriteFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "uploads")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	st := newTestStore(t)
	svc := NewDocumentService(st, blocker, nil)

	if _, err := svc.Ingest(context.Background(), "alice", "notes.txt", strings.NewReader("hello")); err == nil {
		t.Fatalf("expected error when upload dir is unusable")
	}

	docs, err := st.ListDocuments(context.Background(), "alice", 0, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("no record should be created on write failure, got %d", len(docs))
	}
}

func TestSanitizePathElement(t *testing.T) {
	cases := map[string]string{
		"alice":         "alice",
		"user@mail.com": "user_mail.com",
		"../../etc":     ".._.._etc",
		"..":            "_",
		"":              "_",
		"a/b\\c":        "a_b_c",
	}
	for in, want := range cases {
		if got := sanitizePathElement(in); got != want {
			t.Fatalf("sanitizePathElement(%q) = %q, want %q", in, got, want)
		}
	}
}
