package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"neuroflash/internal/models"
)

// storeCases run against every Store backend. owner scopes the fixture owner
// names so cases can share one database.
var storeCases = []struct {
	name string
	run  func(t *testing.T, s Store, owner func(string) string)
}{
	{"FlashcardCRUD", checkFlashcardCRUD},
	{"FlashcardOwnerScoping", checkFlashcardOwnerScoping},
	{"ListFlashcardsPaging", checkListFlashcardsPaging},
	{"DueFlashcardsOrdering", checkDueFlashcardsOrdering},
	{"SaveReview", checkSaveReview},
	{"DocumentsByIDs", checkDocumentsByIDs},
}

func newCard(owner, front, back string, now time.Time) *models.Flashcard {
	return &models.Flashcard{
		OwnerID:   owner,
		Front:     front,
		Back:      back,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func checkFlashcardCRUD(t *testing.T, s Store, owner func(string) string) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	card := newCard(owner("alice"), "What is Go?", "A language", now)
	card.Category = sql.NullString{String: "lang", Valid: true}
	if err := s.CreateFlashcard(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}
	if card.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	got, err := s.GetFlashcard(ctx, owner("alice"), card.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Front != "What is Go?" || got.Back != "A language" || got.Category.String != "lang" {
		t.Fatalf("unexpected card: %+v", got)
	}

	front := "What is Golang?"
	later := now.Add(time.Minute)
	updated, err := s.UpdateFlashcard(ctx, owner("alice"), card.ID, models.FlashcardPatch{Front: &front}, later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Front != front || updated.Back != "A language" {
		t.Fatalf("patch applied wrongly: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, updated.UpdatedAt)
	}

	if err := s.DeleteFlashcard(ctx, owner("alice"), card.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetFlashcard(ctx, owner("alice"), card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteFlashcard(ctx, owner("alice"), card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func checkFlashcardOwnerScoping(t *testing.T, s Store, owner func(string) string) {
	ctx := context.Background()
	now := time.Now().UTC()

	card := newCard(owner("alice"), "q", "a", now)
	if err := s.CreateFlashcard(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.GetFlashcard(ctx, owner("bob"), card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get as other owner: expected ErrNotFound, got %v", err)
	}
	back := "hijacked"
	if _, err := s.UpdateFlashcard(ctx, owner("bob"), card.ID, models.FlashcardPatch{Back: &back}, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update as other owner: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteFlashcard(ctx, owner("bob"), card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete as other owner: expected ErrNotFound, got %v", err)
	}

	list, err := s.ListFlashcards(ctx, owner("bob"), 0, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list for bob, got %d", len(list))
	}

	got, err := s.GetFlashcard(ctx, owner("alice"), card.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Back != "a" {
		t.Fatalf("card modified by other owner: %+v", got)
	}
}

func checkListFlashcardsPaging(t *testing.T, s Store, owner func(string) string) {
	ctx := context.Background()
	now := time.Now().UTC()

	for _, front := range []string{"one", "two", "three", "four"} {
		if err := s.CreateFlashcard(ctx, newCard(owner("alice"), front, "x", now)); err != nil {
			t.Fatalf("create %s: %v", front, err)
		}
	}

	page, err := s.ListFlashcards(ctx, owner("alice"), 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(page))
	}
	if page[0].Front != "two" || page[1].Front != "three" {
		t.Fatalf("unexpected page order: %q, %q", page[0].Front, page[1].Front)
	}
}

func checkDueFlashcardsOrdering(t *testing.T, s Store, owner func(string) string) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	fresh := newCard(owner("alice"), "fresh", "x", now)
	overdue := newCard(owner("alice"), "overdue", "x", now)
	overdue.Due = sql.NullTime{Time: now.Add(-48 * time.Hour), Valid: true}
	recent := newCard(owner("alice"), "recent", "x", now)
	recent.Due = sql.NullTime{Time: now.Add(-time.Hour), Valid: true}
	future := newCard(owner("alice"), "future", "x", now)
	future.Due = sql.NullTime{Time: now.Add(72 * time.Hour), Valid: true}

	for _, c := range []*models.Flashcard{fresh, overdue, recent, future} {
		if err := s.CreateFlashcard(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Front, err)
		}
	}

	due, err := s.DueFlashcards(ctx, owner("alice"), now, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	want := []string{"overdue", "recent", "fresh"}
	if len(due) != len(want) {
		t.Fatalf("expected %d due cards, got %d", len(want), len(due))
	}
	for i, w := range want {
		if due[i].Front != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, due[i].Front)
		}
	}
}

func checkSaveReview(t *testing.T, s Store, owner func(string) string) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	card := newCard(owner("alice"), "q", "a", now)
	if err := s.CreateFlashcard(ctx, card); err != nil {
		t.Fatalf("create: %v", err)
	}

	card.Due = sql.NullTime{Time: now.Add(24 * time.Hour), Valid: true}
	card.Reps = 1
	card.State = 2
	card.LastReview = sql.NullTime{Time: now, Valid: true}
	entry := &models.ReviewLog{Rating: 3, ScheduledDays: 1, State: 0, ReviewedAt: now}
	if err := s.SaveReview(ctx, card, entry); err != nil {
		t.Fatalf("save review: %v", err)
	}
	if entry.ID == 0 || entry.FlashcardID != card.ID {
		t.Fatalf("review log not linked: %+v", entry)
	}

	got, err := s.GetFlashcard(ctx, owner("alice"), card.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reps != 1 || got.State != 2 || !got.Due.Valid {
		t.Fatalf("schedule not persisted: %+v", got)
	}

	other := *card
	other.OwnerID = owner("bob")
	if err := s.SaveReview(ctx, &other, &models.ReviewLog{Rating: 1, ReviewedAt: now}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
}

func checkDocumentsByIDs(t *testing.T, s Store, owner func(string) string) {
	ctx := context.Background()
	now := time.Now().UTC()

	var ids []int64
	for i, docOwner := range []string{owner("alice"), owner("bob"), owner("alice")} {
		doc := &models.UploadedDocument{
			OwnerID:       docOwner,
			Filename:      "notes.txt",
			StoragePath:   "/tmp/notes.txt",
			ContentType:   "text/plain",
			Processed:     true,
			ExtractedText: sql.NullString{String: string(rune('A' + i)), Valid: true},
			UploadedAt:    now,
		}
		if err := s.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("create document: %v", err)
		}
		ids = append(ids, doc.ID)
	}

	docs, err := s.DocumentsByIDs(ctx, owner("alice"), []int64{ids[2], 9999, ids[1], ids[0]})
	if err != nil {
		t.Fatalf("documents by ids: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != ids[0] || docs[1].ID != ids[2] {
		t.Fatalf("expected ids %d,%d in order, got %d,%d", ids[0], ids[2], docs[0].ID, docs[1].ID)
	}
	if docs[0].ExtractedText.String != "A" || !docs[0].Processed {
		t.Fatalf("unexpected document: %+v", docs[0])
	}

	if _, err := s.GetDocument(ctx, owner("alice"), ids[1]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner's document, got %v", err)
	}

	list, err := s.ListDocuments(ctx, owner("bob"), 0, 100)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(list) != 1 || list[0].ID != ids[1] {
		t.Fatalf("unexpected bob documents: %+v", list)
	}
}
