package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/example/lexiday/pkg/config"
	"github.com/example/lexiday/pkg/models"
)

type fakeModel struct {
	content  string
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.content}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGenerateLesson(t *testing.T) {
	model := &fakeModel{content: "Here you go:\n```json\n{\"targetWord\":\"mercy\",\"definition\":\"kindness\",\"steps\":[{\"step\":1,\"options\":[\"a\",\"b\"],\"correctAnswer\":\"a\"}]}\n```"}
	gen := NewLessonGeneratorWithModel(model, nil)

	payload, err := gen.GenerateLesson(context.Background(), models.LessonRequest{
		UserLevel:     models.LevelIntermediate,
		PreviousWords: []string{"harbor", "lantern"},
		UserName:      "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "mercy", payload.TargetWord)
	assert.Equal(t, "kindness", payload.Definition)
	require.Len(t, payload.Steps, 1)
	assert.Equal(t, "a", payload.Steps[0].CorrectAnswer)

	require.Len(t, model.messages, 2)
	assert.Equal(t, schema.ChatMessageTypeSystem, model.messages[0].Role)
}

func TestGenerateLesson_ModelError(t *testing.T) {
	gen := NewLessonGeneratorWithModel(&fakeModel{err: errors.New("rate limited")}, nil)
	_, err := gen.GenerateLesson(context.Background(), models.LessonRequest{})
	assert.Error(t, err)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload(`{"targetWord":"orbit","letters":["T","I","B","R","O"]}`)
	require.NoError(t, err)
	assert.Equal(t, "orbit", p.TargetWord)
	assert.Len(t, p.Letters, 5)

	_, err = ParsePayload("sorry, I can't help with that")
	assert.Error(t, err)

	_, err = ParsePayload("{not json}")
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(models.LessonRequest{
		UserLevel:     models.LevelAdvanced,
		PreviousWords: []string{"harbor"},
		LearningGoals: []string{"travel"},
		UserName:      "Ada",
	})
	assert.Contains(t, prompt, "Advanced level")
	assert.Contains(t, prompt, "already learned: harbor")
	assert.Contains(t, prompt, "travel")
	assert.Contains(t, prompt, "Ada")

	assert.Contains(t, BuildPrompt(models.LessonRequest{}), "Beginner level")
}

func TestNewLessonGenerator_RequiresKey(t *testing.T) {
	_, err := NewLessonGenerator(config.AIConfig{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
