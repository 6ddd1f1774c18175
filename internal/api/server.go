package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"neuroflash/internal/auth"
	"neuroflash/internal/llm"
	"neuroflash/internal/middleware"
	"neuroflash/internal/models"
	"neuroflash/internal/services"
)

const defaultMaxUploadBytes = 20 << 20 // 20 MB

type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

type Server struct {
	engine     *gin.Engine
	flashcards *services.FlashcardService
	documents  *services.DocumentService
	generation *services.GenerationService
	model      llm.Client
	tokens     *auth.Manager
	tracker    *RequestTracker
	logger     *zap.Logger
	opts       Options
}

func NewServer(
	flashcards *services.FlashcardService,
	documents *services.DocumentService,
	generation *services.GenerationService,
	model llm.Client,
	tokens *auth.Manager,
	logger *zap.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		engine:     gin.New(),
		flashcards: flashcards,
		documents:  documents,
		generation: generation,
		model:      model,
		tokens:     tokens,
		tracker:    NewRequestTracker(),
		logger:     logger,
		opts:       opts,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.logger))
	r.Use(cors.New(s.corsConfig()))

	r.GET("/health", s.handleHealth)

	authed := r.Group("", middleware.Auth(s.tokens))
	authed.POST("/generate", s.handleGenerateText)

	cards := authed.Group("/flashcards")
	for _, root := range []string{"", "/"} {
		cards.POST(root, s.handleCreateFlashcard)
		cards.GET(root, s.handleListFlashcards)
	}
	cards.GET("/due", s.handleDueFlashcards)
	cards.POST("/generate", s.handleGenerateFlashcards)
	cards.POST("/upload", s.handleUpload)
	cards.GET("/:id", s.handleGetFlashcard)
	cards.PUT("/:id", s.handleUpdateFlashcard)
	cards.DELETE("/:id", s.handleDeleteFlashcard)
	cards.POST("/:id/review", s.handleReviewFlashcard)

	docs := authed.Group("/documents")
	for _, root := range []string{"", "/"} {
		docs.GET(root, s.handleListDocuments)
	}
	docs.GET("/:id", s.handleGetDocument)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.opts.AllowedOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = s.opts.AllowedOrigins
	}
	return cfg
}

func (s *Server) handleHealth(c *gin.Context) {
	availability := s.model.CheckAvailability(c.Request.Context())

	body := gin.H{
		"status":               "healthy",
		"model_connection":     availability.Available,
		"model":                s.model.Model(),
		"active_request_count": s.tracker.ActiveCount(),
	}
	status := http.StatusOK
	if !availability.Available {
		body["status"] = "unhealthy"
		body["error"] = availability.Reason
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}

type generateTextRequest struct {
	Prompt       string   `json:"prompt" binding:"required,min=1"`
	MaxTokens    *int     `json:"max_tokens" binding:"omitempty,gt=0"`
	Temperature  *float64 `json:"temperature" binding:"omitempty,gte=0,lte=1"`
	SystemPrompt *string  `json:"system_prompt"`
}

func (s *Server) handleGenerateText(c *gin.Context) {
	var payload generateTextRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.writeBindError(c, err)
		return
	}

	done := s.tracker.Start(middleware.CurrentRequestID(c), RequestKindText, middleware.CurrentOwnerID(c))
	defer done()

	gen, err := s.generation.GenerateText(c.Request.Context(), llm.Request{
		Prompt:      payload.Prompt,
		MaxTokens:   payload.MaxTokens,
		Temperature: payload.Temperature,
		System:      payload.SystemPrompt,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("text generated",
		zap.String("request_id", middleware.CurrentRequestID(c)),
		zap.Duration("processing_time", gen.ProcessingTime),
	)

	c.JSON(http.StatusOK, gin.H{
		"text":            gen.Text,
		"model":           gen.Model,
		"processing_time": gen.ProcessingTime.Seconds(),
	})
}

type flashcardRequest struct {
	Front    string  `json:"front" binding:"required"`
	Back     string  `json:"back" binding:"required"`
	Category *string `json:"category"`
}

func (s *Server) handleCreateFlashcard(c *gin.Context) {
	var payload flashcardRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.writeBindError(c, err)
		return
	}
	card, err := s.flashcards.Create(c.Request.Context(), middleware.CurrentOwnerID(c), models.FlashcardInput{
		Front:    payload.Front,
		Back:     payload.Back,
		Category: payload.Category,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardJSON(card))
}

func (s *Server) handleListFlashcards(c *gin.Context) {
	skip, limit, ok := s.pageParams(c)
	if !ok {
		return
	}
	cards, err := s.flashcards.List(c.Request.Context(), middleware.CurrentOwnerID(c), skip, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardsJSON(cards))
}

func (s *Server) handleGetFlashcard(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	card, err := s.flashcards.Get(c.Request.Context(), middleware.CurrentOwnerID(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardJSON(card))
}

type flashcardPatchRequest struct {
	Front    *string `json:"front"`
	Back     *string `json:"back"`
	Category *string `json:"category"`
}

func (s *Server) handleUpdateFlashcard(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	var payload flashcardPatchRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.writeBindError(c, err)
		return
	}
	card, err := s.flashcards.Update(c.Request.Context(), middleware.CurrentOwnerID(c), id, models.FlashcardPatch{
		Front:    payload.Front,
		Back:     payload.Back,
		Category: payload.Category,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardJSON(card))
}

func (s *Server) handleDeleteFlashcard(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	if err := s.flashcards.Delete(c.Request.Context(), middleware.CurrentOwnerID(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleDueFlashcards(c *gin.Context) {
	limit, ok := s.intQuery(c, "limit", 0)
	if !ok {
		return
	}
	cards, err := s.flashcards.Due(c.Request.Context(), middleware.CurrentOwnerID(c), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardsJSON(cards))
}

type reviewRequest struct {
	Rating string `json:"rating" binding:"required"`
}

func (s *Server) handleReviewFlashcard(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	var payload reviewRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.writeBindError(c, err)
		return
	}
	rating, err := services.ParseRating(payload.Rating)
	if err != nil {
		s.writeError(c, err)
		return
	}

	card, logEntry, err := s.flashcards.Review(c.Request.Context(), middleware.CurrentOwnerID(c), id, rating)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"card": flashcardJSON(card),
		"log": gin.H{
			"rating":         logEntry.Rating,
			"scheduled_days": logEntry.ScheduledDays,
			"reviewed_at":    logEntry.ReviewedAt.Format(timeLayout),
		},
	})
}

type generateFlashcardsRequest struct {
	Prompt             string  `json:"prompt" binding:"required"`
	Category           *string `json:"category"`
	ContextDocumentIDs []int64 `json:"context_document_ids"`
}

func (s *Server) handleGenerateFlashcards(c *gin.Context) {
	var payload generateFlashcardsRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.writeBindError(c, err)
		return
	}

	owner := middleware.CurrentOwnerID(c)
	done := s.tracker.Start(middleware.CurrentRequestID(c), RequestKindFlashcards, owner)
	defer done()

	cards, err := s.generation.Generate(c.Request.Context(), owner, models.GenerationRequest{
		Prompt:             payload.Prompt,
		Category:           payload.Category,
		ContextDocumentIDs: payload.ContextDocumentIDs,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardsJSON(cards))
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		s.writeUploadError(c, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer file.Close()

	doc, err := s.documents.Ingest(c.Request.Context(), middleware.CurrentOwnerID(c), header.Filename, file)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           doc.ID,
		"filename":     doc.Filename,
		"content_type": doc.ContentType,
		"processed":    doc.Processed,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	skip, limit, ok := s.pageParams(c)
	if !ok {
		return
	}
	docs, err := s.documents.List(c.Request.Context(), middleware.CurrentOwnerID(c), skip, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(docs))
	for i := range docs {
		out = append(out, documentJSON(&docs[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDocument(c *gin.Context) {
	id, ok := s.idParam(c)
	if !ok {
		return
	}
	doc, err := s.documents.Get(c.Request.Context(), middleware.CurrentOwnerID(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	body := documentJSON(doc)
	body["extracted_text"] = nullString(doc.ExtractedText)
	c.JSON(http.StatusOK, body)
}

func (s *Server) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) pageParams(c *gin.Context) (int, int, bool) {
	skip, ok := s.intQuery(c, "skip", 0)
	if !ok {
		return 0, 0, false
	}
	limit, ok := s.intQuery(c, "limit", services.DefaultListLimit)
	if !ok {
		return 0, 0, false
	}
	return skip, limit, true
}

func (s *Server) intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}

const timeLayout = time.RFC3339

func flashcardJSON(card *models.Flashcard) gin.H {
	return gin.H{
		"id":          card.ID,
		"front":       card.Front,
		"back":        card.Back,
		"category":    card.CategoryPtr(),
		"owner_id":    card.OwnerID,
		"created_at":  card.CreatedAt.Format(timeLayout),
		"updated_at":  card.UpdatedAt.Format(timeLayout),
		"due":         nullTimeToString(card.Due),
		"state":       card.State,
		"reps":        card.Reps,
		"last_review": nullTimeToString(card.LastReview),
	}
}

func flashcardsJSON(cards []models.Flashcard) []gin.H {
	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, flashcardJSON(&cards[i]))
	}
	return out
}

func documentJSON(doc *models.UploadedDocument) gin.H {
	return gin.H{
		"id":           doc.ID,
		"filename":     doc.Filename,
		"content_type": doc.ContentType,
		"processed":    doc.Processed,
		"uploaded_at":  doc.UploadedAt.Format(timeLayout),
	}
}

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.Format(timeLayout)
		return &str
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if v.Valid {
		str := v.String
		return &str
	}
	return nil
}
