package store

import (
	"context"
	"errors"
	"time"

	"neuroflash/internal/models"
)

// ErrNotFound is returned when a record is absent or belongs to another owner.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary. Every read and write is scoped to an owner.
type Store interface {
	CreateFlashcard(ctx context.Context, card *models.Flashcard) error
	ListFlashcards(ctx context.Context, ownerID string, skip, limit int) ([]models.Flashcard, error)
	GetFlashcard(ctx context.Context, ownerID string, id int64) (*models.Flashcard, error)
	UpdateFlashcard(ctx context.Context, ownerID string, id int64, patch models.FlashcardPatch, now time.Time) (*models.Flashcard, error)
	DeleteFlashcard(ctx context.Context, ownerID string, id int64) error
	DueFlashcards(ctx context.Context, ownerID string, now time.Time, limit int) ([]models.Flashcard, error)

	// SaveReview persists the card's new schedule and appends the log entry atomically.
	SaveReview(ctx context.Context, card *models.Flashcard, entry *models.ReviewLog) error

	CreateDocument(ctx context.Context, doc *models.UploadedDocument) error
	GetDocument(ctx context.Context, ownerID string, id int64) (*models.UploadedDocument, error)
	ListDocuments(ctx context.Context, ownerID string, skip, limit int) ([]models.UploadedDocument, error)
	// DocumentsByIDs returns the owner's documents among ids, ordered by id. Unknown ids are ignored.
	DocumentsByIDs(ctx context.Context, ownerID string, ids []int64) ([]models.UploadedDocument, error)

	Ping(ctx context.Context) error
	Close() error
}
