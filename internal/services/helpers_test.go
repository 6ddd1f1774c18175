package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"neuroflash/internal/llm"
	"neuroflash/internal/models"
	"neuroflash/internal/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// fakeModel records prompts and replays a canned answer.
type fakeModel struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (f *fakeModel) Model() string { return "fake" }

func (f *fakeModel) CheckAvailability(ctx context.Context) llm.Availability {
	return llm.Availability{Available: f.err == nil}
}

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (*llm.Generation, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Generation{Text: f.text, Model: "fake"}, nil
}

func (f *fakeModel) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// failingStore fails the n-th CreateFlashcard call (1-based).
type failingStore struct {
	store.Store
	failAt int
	calls  int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) CreateFlashcard(ctx context.Context, card *models.Flashcard) error {
	f.calls++
	if f.calls == f.failAt {
		return errDiskFull
	}
	return f.Store.CreateFlashcard(ctx, card)
}

func strPtr(s string) *string { return &s }
