package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"neuroflash/internal/db"
	"neuroflash/internal/models"
)

const flashcardColumns = `id, owner_id, front, back, category, due, stability, difficulty,
	elapsed_days, scheduled_days, reps, lapses, state, last_review, created_at, updated_at`

const documentColumns = `id, owner_id, filename, storage_path, content_type, processed,
	extracted_text, uploaded_at`

// SQLStore implements Store on top of a SQLite connection.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database file at path.
func OpenSQLite(path string) (*SQLStore, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(conn), nil
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{db: conn}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateFlashcard(ctx context.Context, card *models.Flashcard) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO flashcards (owner_id, front, back, category, due, stability, difficulty,
			elapsed_days, scheduled_days, reps, lapses, state, last_review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		card.OwnerID,
		card.Front,
		card.Back,
		card.Category,
		card.Due,
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		card.LastReview,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flashcard: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("flashcard id: %w", err)
	}
	card.ID = id
	return nil
}

func (s *SQLStore) ListFlashcards(ctx context.Context, ownerID string, skip, limit int) ([]models.Flashcard, error) {
	return s.queryCards(ctx, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE owner_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?;
	`, ownerID, limit, skip)
}

func (s *SQLStore) GetFlashcard(ctx context.Context, ownerID string, id int64) (*models.Flashcard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE id = ? AND owner_id = ?;
	`, id, ownerID)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load flashcard %d: %w", id, err)
	}
	return card, nil
}

func (s *SQLStore) UpdateFlashcard(ctx context.Context, ownerID string, id int64, patch models.FlashcardPatch, now time.Time) (*models.Flashcard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var card *models.Flashcard
	card, err = scanCard(tx.QueryRowContext(ctx, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE id = ? AND owner_id = ?;
	`, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
			return nil, err
		}
		return nil, fmt.Errorf("load flashcard %d: %w", id, err)
	}

	if patch.Front != nil {
		card.Front = *patch.Front
	}
	if patch.Back != nil {
		card.Back = *patch.Back
	}
	if patch.Category != nil {
		card.Category = models.NullString(patch.Category)
	}
	card.UpdatedAt = now

	if _, err = tx.ExecContext(ctx, `
		UPDATE flashcards SET front = ?, back = ?, category = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?;
	`, card.Front, card.Back, card.Category, card.UpdatedAt, id, ownerID); err != nil {
		return nil, fmt.Errorf("update flashcard %d: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return card, nil
}

func (s *SQLStore) DeleteFlashcard(ctx context.Context, ownerID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flashcards WHERE id = ? AND owner_id = ?;`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete flashcard %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete flashcard %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DueFlashcards(ctx context.Context, ownerID string, now time.Time, limit int) ([]models.Flashcard, error) {
	return s.queryCards(ctx, `
		SELECT `+flashcardColumns+`
		FROM flashcards
		WHERE owner_id = ? AND (due IS NULL OR due <= ?)
		ORDER BY due IS NULL ASC, due ASC, id ASC
		LIMIT ?;
	`, ownerID, now, limit)
}

func (s *SQLStore) SaveReview(ctx context.Context, card *models.Flashcard, entry *models.ReviewLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		UPDATE flashcards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?;
	`,
		card.Due,
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		card.LastReview,
		card.UpdatedAt,
		card.ID,
		card.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update flashcard %d: %w", card.ID, err)
	}
	var n int64
	if n, err = res.RowsAffected(); err != nil {
		return fmt.Errorf("update flashcard %d: %w", card.ID, err)
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (flashcard_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, entry.Rating, entry.ScheduledDays, entry.ElapsedDays, entry.State, entry.ReviewedAt)
	if err != nil {
		return fmt.Errorf("insert review log: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("review log id: %w", err)
	}
	entry.FlashcardID = card.ID

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit review: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateDocument(ctx context.Context, doc *models.UploadedDocument) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO uploaded_documents (owner_id, filename, storage_path, content_type, processed,
			extracted_text, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`, doc.OwnerID, doc.Filename, doc.StoragePath, doc.ContentType, doc.Processed, doc.ExtractedText, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("document id: %w", err)
	}
	doc.ID = id
	return nil
}

func (s *SQLStore) GetDocument(ctx context.Context, ownerID string, id int64) (*models.UploadedDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM uploaded_documents
		WHERE id = ? AND owner_id = ?;
	`, id, ownerID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load document %d: %w", id, err)
	}
	return doc, nil
}

func (s *SQLStore) ListDocuments(ctx context.Context, ownerID string, skip, limit int) ([]models.UploadedDocument, error) {
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM uploaded_documents
		WHERE owner_id = ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?;
	`, ownerID, limit, skip)
}

func (s *SQLStore) DocumentsByIDs(ctx context.Context, ownerID string, ids []int64) ([]models.UploadedDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	return s.queryDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM uploaded_documents
		WHERE owner_id = ? AND id IN (`+placeholders+`)
		ORDER BY id ASC;
	`, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Flashcard, error) {
	card := &models.Flashcard{}
	if err := row.Scan(
		&card.ID,
		&card.OwnerID,
		&card.Front,
		&card.Back,
		&card.Category,
		&card.Due,
		&card.Stability,
		&card.Difficulty,
		&card.ElapsedDays,
		&card.ScheduledDays,
		&card.Reps,
		&card.Lapses,
		&card.State,
		&card.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return card, nil
}

func scanDocument(row rowScanner) (*models.UploadedDocument, error) {
	doc := &models.UploadedDocument{}
	if err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Filename,
		&doc.StoragePath,
		&doc.ContentType,
		&doc.Processed,
		&doc.ExtractedText,
		&doc.UploadedAt,
	); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLStore) queryCards(ctx context.Context, query string, args ...any) ([]models.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flashcards: %w", err)
	}
	defer rows.Close()

	out := []models.Flashcard{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flashcard: %w", err)
		}
		out = append(out, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flashcards: %w", err)
	}
	return out, nil
}

func (s *SQLStore) queryDocuments(ctx context.Context, query string, args ...any) ([]models.UploadedDocument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := []models.UploadedDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
