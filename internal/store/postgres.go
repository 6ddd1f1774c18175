package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"neuroflash/internal/models"
)

type flashcardRow struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	OwnerID       string         `gorm:"type:text;not null;index:idx_flashcards_owner"`
	Front         string         `gorm:"type:text;not null"`
	Back          string         `gorm:"type:text;not null"`
	Category      sql.NullString `gorm:"type:text"`
	Due           sql.NullTime   `gorm:"index"`
	Stability     float64        `gorm:"not null;default:0"`
	Difficulty    float64        `gorm:"not null;default:0"`
	ElapsedDays   int            `gorm:"not null;default:0"`
	ScheduledDays int            `gorm:"not null;default:0"`
	Reps          int            `gorm:"not null;default:0"`
	Lapses        int            `gorm:"not null;default:0"`
	State         int            `gorm:"not null;default:0"`
	LastReview    sql.NullTime
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (flashcardRow) TableName() string { return "flashcards" }

type documentRow struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	OwnerID       string         `gorm:"type:text;not null;index:idx_documents_owner"`
	Filename      string         `gorm:"type:text;not null"`
	StoragePath   string         `gorm:"type:text;not null"`
	ContentType   string         `gorm:"size:255;not null"`
	Processed     bool           `gorm:"not null;default:false"`
	ExtractedText sql.NullString `gorm:"type:text"`
	UploadedAt    time.Time      `gorm:"not null"`
}

func (documentRow) TableName() string { return "uploaded_documents" }

type reviewLogRow struct {
	ID            int64        `gorm:"primaryKey;autoIncrement"`
	FlashcardID   int64        `gorm:"not null;index"`
	Flashcard     flashcardRow `gorm:"constraint:OnDelete:CASCADE;"`
	Rating        int          `gorm:"not null"`
	ScheduledDays int          `gorm:"not null"`
	ElapsedDays   int          `gorm:"not null"`
	State         int          `gorm:"not null"`
	ReviewedAt    time.Time    `gorm:"not null"`
}

func (reviewLogRow) TableName() string { return "review_logs" }

// GormStore implements Store on PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects with dsn and auto-migrates the schema.
func OpenPostgres(dsn string, debug bool) (*GormStore, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := conn.AutoMigrate(&flashcardRow{}, &documentRow{}, &reviewLogRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: conn}, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) CreateFlashcard(ctx context.Context, card *models.Flashcard) error {
	row := toFlashcardRow(card)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert flashcard: %w", err)
	}
	card.ID = row.ID
	return nil
}

func (s *GormStore) ListFlashcards(ctx context.Context, ownerID string, skip, limit int) ([]models.Flashcard, error) {
	var rows []flashcardRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query flashcards: %w", err)
	}
	return fromFlashcardRows(rows), nil
}

func (s *GormStore) GetFlashcard(ctx context.Context, ownerID string, id int64) (*models.Flashcard, error) {
	var row flashcardRow
	if err := s.db.WithContext(ctx).First(&row, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load flashcard %d: %w", id, err)
	}
	card := fromFlashcardRow(row)
	return &card, nil
}

func (s *GormStore) UpdateFlashcard(ctx context.Context, ownerID string, id int64, patch models.FlashcardPatch, now time.Time) (*models.Flashcard, error) {
	var card models.Flashcard
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row flashcardRow
		if err := tx.First(&row, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load flashcard %d: %w", id, err)
		}

		updates := map[string]any{"updated_at": now}
		if patch.Front != nil {
			row.Front = *patch.Front
			updates["front"] = row.Front
		}
		if patch.Back != nil {
			row.Back = *patch.Back
			updates["back"] = row.Back
		}
		if patch.Category != nil {
			row.Category = models.NullString(patch.Category)
			updates["category"] = row.Category
		}
		row.UpdatedAt = now

		if err := tx.Model(&flashcardRow{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("update flashcard %d: %w", id, err)
		}
		card = fromFlashcardRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *GormStore) DeleteFlashcard(ctx context.Context, ownerID string, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&flashcardRow{})
	if res.Error != nil {
		return fmt.Errorf("delete flashcard %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DueFlashcards(ctx context.Context, ownerID string, now time.Time, limit int) ([]models.Flashcard, error) {
	var rows []flashcardRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND (due IS NULL OR due <= ?)", ownerID, now).
		Order("due ASC NULLS LAST").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query due flashcards: %w", err)
	}
	return fromFlashcardRows(rows), nil
}

func (s *GormStore) SaveReview(ctx context.Context, card *models.Flashcard, entry *models.ReviewLog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&flashcardRow{}).
			Where("id = ? AND owner_id = ?", card.ID, card.OwnerID).
			Updates(map[string]any{
				"due":            card.Due,
				"stability":      card.Stability,
				"difficulty":     card.Difficulty,
				"elapsed_days":   card.ElapsedDays,
				"scheduled_days": card.ScheduledDays,
				"reps":           card.Reps,
				"lapses":         card.Lapses,
				"state":          card.State,
				"last_review":    card.LastReview,
				"updated_at":     card.UpdatedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("update flashcard %d: %w", card.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		row := reviewLogRow{
			FlashcardID:   card.ID,
			Rating:        entry.Rating,
			ScheduledDays: entry.ScheduledDays,
			ElapsedDays:   entry.ElapsedDays,
			State:         entry.State,
			ReviewedAt:    entry.ReviewedAt,
		}
		if err := tx.Omit("Flashcard").Create(&row).Error; err != nil {
			return fmt.Errorf("insert review log: %w", err)
		}
		entry.ID = row.ID
		entry.FlashcardID = card.ID
		return nil
	})
}

func (s *GormStore) CreateDocument(ctx context.Context, doc *models.UploadedDocument) error {
	row := documentRow{
		OwnerID:       doc.OwnerID,
		Filename:      doc.Filename,
		StoragePath:   doc.StoragePath,
		ContentType:   doc.ContentType,
		Processed:     doc.Processed,
		ExtractedText: doc.ExtractedText,
		UploadedAt:    doc.UploadedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.ID = row.ID
	return nil
}

func (s *GormStore) GetDocument(ctx context.Context, ownerID string, id int64) (*models.UploadedDocument, error) {
	var row documentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load document %d: %w", id, err)
	}
	doc := fromDocumentRow(row)
	return &doc, nil
}

func (s *GormStore) ListDocuments(ctx context.Context, ownerID string, skip, limit int) ([]models.UploadedDocument, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return fromDocumentRows(rows), nil
}

func (s *GormStore) DocumentsByIDs(ctx context.Context, ownerID string, ids []int64) ([]models.UploadedDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return fromDocumentRows(rows), nil
}

func toFlashcardRow(card *models.Flashcard) flashcardRow {
	return flashcardRow{
		ID:            card.ID,
		OwnerID:       card.OwnerID,
		Front:         card.Front,
		Back:          card.Back,
		Category:      card.Category,
		Due:           card.Due,
		Stability:     card.Stability,
		Difficulty:    card.Difficulty,
		ElapsedDays:   card.ElapsedDays,
		ScheduledDays: card.ScheduledDays,
		Reps:          card.Reps,
		Lapses:        card.Lapses,
		State:         card.State,
		LastReview:    card.LastReview,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
	}
}

func fromFlashcardRow(row flashcardRow) models.Flashcard {
	return models.Flashcard{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Front:         row.Front,
		Back:          row.Back,
		Category:      row.Category,
		Due:           row.Due,
		Stability:     row.Stability,
		Difficulty:    row.Difficulty,
		ElapsedDays:   row.ElapsedDays,
		ScheduledDays: row.ScheduledDays,
		Reps:          row.Reps,
		Lapses:        row.Lapses,
		State:         row.State,
		LastReview:    row.LastReview,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func fromFlashcardRows(rows []flashcardRow) []models.Flashcard {
	out := make([]models.Flashcard, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromFlashcardRow(row))
	}
	return out
}

func fromDocumentRow(row documentRow) models.UploadedDocument {
	return models.UploadedDocument{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Filename:      row.Filename,
		StoragePath:   row.StoragePath,
		ContentType:   row.ContentType,
		Processed:     row.Processed,
		ExtractedText: row.ExtractedText,
		UploadedAt:    row.UploadedAt,
	}
}

func fromDocumentRows(rows []documentRow) []models.UploadedDocument {
	out := make([]models.UploadedDocument, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromDocumentRow(row))
	}
	return out
}
