package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/example/lexiday/pkg/config"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

const systemPrompt = "You are an English vocabulary tutor. You write short, warm lessons that teach exactly one new word " +
	"and you always answer with a single JSON object and nothing else."

// ErrNotConfigured is returned by NewLessonGenerator without an API key
var ErrNotConfigured = errors.New("OPENAI_API_KEY is not set")

// LessonGenerator asks a language model for a personalized lesson
type LessonGenerator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
	log         *zap.Logger
}

// NewLessonGenerator creates a generator backed by an OpenAI-compatible endpoint
func NewLessonGenerator(cfg config.AIConfig, log *zap.Logger) (*LessonGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return NewLessonGeneratorWithModel(llm, log), nil
}

// NewLessonGeneratorWithModel wraps an existing model
func NewLessonGeneratorWithModel(llm llms.Model, log *zap.Logger) *LessonGenerator {
	return &LessonGenerator{
		llm:         llm,
		temperature: 0.8,
		maxTokens:   900,
		log:         logger.OrNop(log),
	}
}

// GenerateLesson requests one lesson. The caller bounds the call through ctx.
func (g *LessonGenerator) GenerateLesson(ctx context.Context, req models.LessonRequest) (*models.LessonPayload, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, BuildPrompt(req)),
	}

	resp, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate lesson: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	payload, err := ParsePayload(resp.Choices[0].Content)
	if err != nil {
		g.log.Debug("unparseable lesson", zap.String("content", resp.Choices[0].Content))
		return nil, err
	}
	return payload, nil
}

// BuildPrompt renders the lesson request as model instructions
func BuildPrompt(req models.LessonRequest) string {
	var b strings.Builder
	level := req.UserLevel
	if !level.Valid() {
		level = models.LevelBeginner
	}
	fmt.Fprintf(&b, "Create a vocabulary lesson for a learner at %s level.\n", level)
	if req.UserName != "" {
		fmt.Fprintf(&b, "The learner's name is %s; you may use it in the story.\n", req.UserName)
	}
	if len(req.LearningGoals) > 0 {
		fmt.Fprintf(&b, "Their learning goals are: %s. Pick a word useful for them.\n", strings.Join(req.LearningGoals, ", "))
	}
	if len(req.PreviousWords) > 0 {
		fmt.Fprintf(&b, "Do NOT use any of these words, they are already learned: %s.\n", strings.Join(req.PreviousWords, ", "))
	}
	b.WriteString(`Answer with JSON of this shape:
{
  "targetWord": "word",
  "definition": "short definition",
  "story": "3-4 sentence story using the word",
  "emoji": "one emoji",
  "steps": [
    {"step": 1, "question": "What happened in the story?", "options": ["a","b","c","d"], "correctAnswer": "a"},
    {"step": 2, "question": "What does the word mean?", "options": ["a","b","c","d"], "correctAnswer": "a"},
    {"step": 3, "letters": ["W","O","R","D"]},
    {"step": 4, "question": "Which sentence uses the word correctly?", "options": ["a","b","c","d"], "correctAnswer": "a"}
  ]
}
Each correctAnswer must be copied exactly from its options.`)
	return b.String()
}

// ParsePayload decodes a model answer, tolerating markdown fences and chatter
// around the JSON object.
func ParsePayload(content string) (*models.LessonPayload, error) {
	text := strings.TrimSpace(content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in lesson response")
	}

	var payload models.LessonPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode lesson: %w", err)
	}
	return &payload, nil
}
