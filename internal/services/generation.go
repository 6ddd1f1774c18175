package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"go.uber.org/zap"

	"neuroflash/internal/llm"
	"neuroflash/internal/models"
	"neuroflash/internal/store"
)

// flashcardInstruction is sent ahead of every generation prompt.
const flashcardInstruction = `You are a helpful AI that creates flashcards. Generate 3-5 flashcards based on the given prompt.
Each flashcard should have a front (question/concept) and back (answer/explanation).
Return the flashcards in JSON format like this:
{
    "flashcards": [
        {"front": "...", "back": "..."},
        {"front": "...", "back": "..."}
    ]
}`

type generationState string

const (
	stateCollectContext generationState = "collect_context"
	stateBuildPrompt    generationState = "build_prompt"
	stateCallModel      generationState = "call_model"
	stateParseResponse  generationState = "parse_response"
	statePersist        generationState = "persist"
	stateDone           generationState = "done"
	stateFailed         generationState = "failed"
)

type generatedCard struct {
	Front *string `json:"front"`
	Back  *string `json:"back"`
}

type generatedBatch struct {
	Flashcards *[]generatedCard `json:"flashcards"`
}

// GenerationService turns prompts and uploaded context into persisted flashcards.
type GenerationService struct {
	store  store.Store
	model  llm.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewGenerationService(st store.Store, model llm.Client, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		store:  st,
		model:  model,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate runs one generation request for ownerID and returns the created cards in model order.
func (s *GenerationService) Generate(ctx context.Context, ownerID string, req models.GenerationRequest) ([]models.Flashcard, error) {
	log := s.logger.With(zap.String("request_id", RequestIDFrom(ctx)), zap.String("owner_id", ownerID))
	enter := func(state generationState, fields ...zap.Field) {
		log.Debug("generation state", append([]zap.Field{zap.String("state", string(state))}, fields...)...)
	}
	fail := func(err error) ([]models.Flashcard, error) {
		enter(stateFailed, zap.Error(err))
		return nil, err
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return fail(&ValidationError{Field: "prompt", Message: "must not be blank"})
	}

	enter(stateCollectContext, zap.Int("document_ids", len(req.ContextDocumentIDs)))
	contextText, err := s.collectContext(ctx, ownerID, req.ContextDocumentIDs)
	if err != nil {
		return fail(err)
	}

	enter(stateBuildPrompt, zap.Int("context_length", len(contextText)))
	prompt := buildPrompt(req.Prompt, contextText)

	enter(stateCallModel, zap.String("model", s.model.Model()))
	// The model call outlives a disconnected client so the request still settles.
	gen, err := s.model.Generate(context.WithoutCancel(ctx), llm.Request{Prompt: prompt})
	if err != nil {
		return fail(upstream(err))
	}

	enter(stateParseResponse, zap.Int("response_length", len(gen.Text)))
	items, err := parseFlashcards(gen.Text)
	if err != nil {
		return fail(err)
	}

	enter(statePersist, zap.Int("items", len(items)))
	created, err := s.persist(context.WithoutCancel(ctx), ownerID, req.Category, items)
	if err != nil {
		return fail(err)
	}

	enter(stateDone, zap.Int("created", len(created)))
	return created, nil
}

// GenerateText proxies a raw prompt to the model.
func (s *GenerationService) GenerateText(ctx context.Context, req llm.Request) (*llm.Generation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &ValidationError{Field: "prompt", Message: "must not be blank"}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 1) {
		return nil, &ValidationError{Field: "temperature", Message: "must be between 0 and 1"}
	}
	gen, err := s.model.Generate(context.WithoutCancel(ctx), req)
	if err != nil {
		return nil, upstream(err)
	}
	return gen, nil
}

func (s *GenerationService) collectContext(ctx context.Context, ownerID string, ids []int64) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	docs, err := s.store.DocumentsByIDs(ctx, ownerID, ids)
	if err != nil {
		return "", fmt.Errorf("load context documents: %w", err)
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.ExtractedText.Valid && doc.ExtractedText.String != "" {
			parts = append(parts, doc.ExtractedText.String)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *GenerationService) persist(ctx context.Context, ownerID string, category *string, items []generatedCard) ([]models.Flashcard, error) {
	created := make([]models.Flashcard, 0, len(items))
	for _, item := range items {
		now := s.now()
		card := &models.Flashcard{
			OwnerID:   ownerID,
			Front:     *item.Front,
			Back:      *item.Back,
			Category:  models.NullString(category),
			State:     int(fsrs.New),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateFlashcard(ctx, card); err != nil {
			return nil, &PersistError{Created: len(created), Err: err}
		}
		created = append(created, *card)
	}
	return created, nil
}

func buildPrompt(prompt, contextText string) string {
	user := prompt
	if contextText != "" {
		user = "Context:\n" + contextText + "\n\nPrompt: " + prompt
	}
	return flashcardInstruction + "\n\nUser: " + user
}

// extractJSON returns the text from the first '{' to the last '}'.
func extractJSON(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

func parseFlashcards(text string) ([]generatedCard, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return nil, &MalformedOutputError{Reason: "no JSON object in model output", Raw: text}
	}

	var batch generatedBatch
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return nil, &MalformedOutputError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: text}
	}
	if batch.Flashcards == nil {
		return nil, &MalformedOutputError{Reason: `missing "flashcards" list`, Raw: text}
	}

	items := *batch.Flashcards
	for i, item := range items {
		if item.Front == nil || strings.TrimSpace(*item.Front) == "" {
			return nil, &MalformedOutputError{Reason: fmt.Sprintf("flashcard %d has no front", i), Raw: text}
		}
		if item.Back == nil || strings.TrimSpace(*item.Back) == "" {
			return nil, &MalformedOutputError{Reason: fmt.Sprintf("flashcard %d has no back", i), Raw: text}
		}
	}
	return items, nil
}

func upstream(err error) error {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return &UpstreamError{Err: llmErr}
	}
	return &UpstreamError{Err: &llm.Error{Code: llm.CodeUnexpected, Message: "Unexpected error", Details: err.Error()}}
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id used in log fields.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
