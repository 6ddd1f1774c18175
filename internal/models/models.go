package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Flashcard is a single owner-scoped card together with its review schedule.
type Flashcard struct {
	ID            int64
	Front         string
	Back          string
	OwnerID       string
	Category      sql.NullString
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FlashcardInput carries the user-editable fields of a card.
type FlashcardInput struct {
	Front    string
	Back     string
	Category *string
}

// FlashcardPatch is a partial update; nil fields are left untouched.
type FlashcardPatch struct {
	Front    *string
	Back     *string
	Category *string
}

// UploadedDocument is a stored upload and the text extracted from it.
type UploadedDocument struct {
	ID            int64
	Filename      string
	StoragePath   string
	ContentType   string
	OwnerID       string
	UploadedAt    time.Time
	Processed     bool
	ExtractedText sql.NullString
}

// GenerationRequest asks the model for a batch of cards. It is never persisted.
type GenerationRequest struct {
	Prompt             string
	Category           *string
	ContextDocumentIDs []int64
}

type ReviewLog struct {
	ID            int64
	FlashcardID   int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

func (c *Flashcard) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *Flashcard) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

// CategoryPtr returns the category or nil when unset.
func (c *Flashcard) CategoryPtr() *string {
	if !c.Category.Valid {
		return nil
	}
	v := c.Category.String
	return &v
}

// NullString converts an optional string to its column form.
func NullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
