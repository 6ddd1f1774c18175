package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neuroflash/internal/models"
	"neuroflash/internal/store"
)

type DocumentService struct {
	store     store.Store
	uploadDir string
	logger    *zap.Logger
	now       func() time.Time
}

func NewDocumentService(st store.Store, uploadDir string, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		store:     st,
		uploadDir: uploadDir,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores the upload under the owner's directory, extracts its text and records it.
// Extraction problems never fail the upload; the document is saved with empty text.
func (s *DocumentService) Ingest(ctx context.Context, ownerID, filename string, src io.Reader) (*models.UploadedDocument, error) {
	dir := filepath.Join(s.uploadDir, sanitizePathElement(ownerID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}

	storedPath := filepath.Join(dir, uuid.NewString()+storedExtension(filename))
	if err := writeUpload(storedPath, src); err != nil {
		return nil, err
	}

	contentType, err := sniffContentType(storedPath)
	if err != nil {
		return nil, err
	}

	text, err := extractText(storedPath, contentType)
	if err != nil {
		s.logger.Warn("text extraction failed, storing document without text",
			zap.String("filename", filename),
			zap.String("content_type", contentType),
			zap.Error(err),
		)
		text = ""
	}

	doc := &models.UploadedDocument{
		OwnerID:       ownerID,
		Filename:      filename,
		StoragePath:   storedPath,
		ContentType:   contentType,
		Processed:     true,
		ExtractedText: sql.NullString{String: text, Valid: true},
		UploadedAt:    s.now(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document ingested",
		zap.Int64("document_id", doc.ID),
		zap.String("content_type", contentType),
		zap.Int("text_length", len(text)),
	)
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, ownerID string, id int64) (*models.UploadedDocument, error) {
	return s.store.GetDocument(ctx, ownerID, id)
}

func (s *DocumentService) List(ctx context.Context, ownerID string, skip, limit int) ([]models.UploadedDocument, error) {
	skip, limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, ownerID, skip, limit)
}

func writeUpload(path string, src io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// sanitizePathElement reduces s to a single safe directory name.
func sanitizePathElement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out == "." || out == ".." {
		return "_"
	}
	return out
}

func storedExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "." || sanitizePathElement(ext) != ext {
		return ""
	}
	return ext
}
