package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"go.uber.org/zap"

	"neuroflash/internal/models"
	"neuroflash/internal/store"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// FlashcardService validates card input and schedules reviews with FSRS.
type FlashcardService struct {
	store  store.Store
	params fsrs.Parameters
	logger *zap.Logger
	now    func() time.Time
}

func NewFlashcardService(st store.Store, logger *zap.Logger) *FlashcardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlashcardService{
		store:  st,
		params: fsrs.DefaultParam(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *FlashcardService) Create(ctx context.Context, ownerID string, in models.FlashcardInput) (*models.Flashcard, error) {
	if err := validateSide("front", in.Front); err != nil {
		return nil, err
	}
	if err := validateSide("back", in.Back); err != nil {
		return nil, err
	}

	now := s.now()
	card := &models.Flashcard{
		OwnerID:   ownerID,
		Front:     in.Front,
		Back:      in.Back,
		Category:  models.NullString(in.Category),
		State:     int(fsrs.New),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateFlashcard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *FlashcardService) List(ctx context.Context, ownerID string, skip, limit int) ([]models.Flashcard, error) {
	skip, limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListFlashcards(ctx, ownerID, skip, limit)
}

func (s *FlashcardService) Get(ctx context.Context, ownerID string, id int64) (*models.Flashcard, error) {
	return s.store.GetFlashcard(ctx, ownerID, id)
}

func (s *FlashcardService) Update(ctx context.Context, ownerID string, id int64, patch models.FlashcardPatch) (*models.Flashcard, error) {
	if patch.Front != nil {
		if err := validateSide("front", *patch.Front); err != nil {
			return nil, err
		}
	}
	if patch.Back != nil {
		if err := validateSide("back", *patch.Back); err != nil {
			return nil, err
		}
	}
	return s.store.UpdateFlashcard(ctx, ownerID, id, patch, s.now())
}

func (s *FlashcardService) Delete(ctx context.Context, ownerID string, id int64) error {
	return s.store.DeleteFlashcard(ctx, ownerID, id)
}

// Due lists cards that were never reviewed or whose due time has passed, due ones first.
func (s *FlashcardService) Due(ctx context.Context, ownerID string, limit int) ([]models.Flashcard, error) {
	_, limit, err := normalizePage(0, limit)
	if err != nil {
		return nil, err
	}
	return s.store.DueFlashcards(ctx, ownerID, s.now(), limit)
}

// Review updates the scheduling information based on the user's rating.
func (s *FlashcardService) Review(ctx context.Context, ownerID string, id int64, rating fsrs.Rating) (*models.Flashcard, *models.ReviewLog, error) {
	card, err := s.store.GetFlashcard(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	scheduling := s.params.Repeat(card.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		return nil, nil, &ValidationError{Field: "rating", Message: fmt.Sprintf("rating %d not supported", rating)}
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	entry := &models.ReviewLog{
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}
	if err := s.store.SaveReview(ctx, card, entry); err != nil {
		return nil, nil, err
	}

	s.logger.Debug("flashcard reviewed",
		zap.Int64("flashcard_id", card.ID),
		zap.Int("rating", entry.Rating),
		zap.Int("scheduled_days", card.ScheduledDays),
	)
	return card, entry, nil
}

// ParseRating maps again/hard/good/easy onto FSRS ratings.
func ParseRating(raw string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, &ValidationError{Field: "rating", Message: fmt.Sprintf("unknown rating %q", raw)}
	}
}

func validateSide(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "must not be blank"}
	}
	return nil
}

func normalizePage(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, &ValidationError{Field: "skip", Message: "must not be negative"}
	}
	if limit < 0 {
		return 0, 0, &ValidationError{Field: "limit", Message: "must not be negative"}
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return skip, limit, nil
}
