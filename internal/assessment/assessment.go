// Package assessment scores the placement test that picks a learner's starting level.
package assessment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/example/lexiday/internal/cache"
	"github.com/example/lexiday/pkg/models"
)

// ResultTTL is how long a scored assessment waits for the user to sign up
const ResultTTL = 24 * time.Hour

// Question is one placement question
type Question struct {
	ID      string       `json:"id"`
	Word    string       `json:"word"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options"`
	Answer  string       `json:"-"`
	Level   models.Level `json:"level"`
}

// Result is a scored assessment
type Result struct {
	Correct int          `json:"correct"`
	Total   int          `json:"total"`
	Percent int          `json:"percent"`
	Level   models.Level `json:"level"`
	Goals   []string     `json:"goals,omitempty"`
}

var questions = []Question{
	{ID: "q1", Word: "happy", Prompt: "What does \"happy\" mean?", Answer: "Feeling good or pleased", Level: models.LevelBeginner,
		Options: []string{"Feeling good or pleased", "Very tired", "Hungry", "Angry"}},
	{ID: "q2", Word: "borrow", Prompt: "What does \"borrow\" mean?", Answer: "To take something and give it back later", Level: models.LevelBeginner,
		Options: []string{"To buy something", "To take something and give it back later", "To lose something", "To break something"}},
	{ID: "q3", Word: "quiet", Prompt: "Which word is the opposite of \"quiet\"?", Answer: "Loud", Level: models.LevelBeginner,
		Options: []string{"Silent", "Calm", "Loud", "Soft"}},
	{ID: "q4", Word: "reluctant", Prompt: "What does \"reluctant\" mean?", Answer: "Unwilling or hesitant", Level: models.LevelIntermediate,
		Options: []string{"Very eager", "Unwilling or hesitant", "Extremely tired", "Openly angry"}},
	{ID: "q5", Word: "thrive", Prompt: "What does \"thrive\" mean?", Answer: "To grow or develop well", Level: models.LevelIntermediate,
		Options: []string{"To grow or develop well", "To fall asleep", "To argue loudly", "To travel abroad"}},
	{ID: "q6", Word: "ambiguous", Prompt: "What does \"ambiguous\" mean?", Answer: "Having more than one possible meaning", Level: models.LevelIntermediate,
		Options: []string{"Completely clear", "Having more than one possible meaning", "Very large", "Easily broken"}},
	{ID: "q7", Word: "meticulous", Prompt: "What does \"meticulous\" mean?", Answer: "Showing great attention to detail", Level: models.LevelAdvanced,
		Options: []string{"Careless", "Showing great attention to detail", "Quick-tempered", "Generous"}},
	{ID: "q8", Word: "ephemeral", Prompt: "What does \"ephemeral\" mean?", Answer: "Lasting a very short time", Level: models.LevelAdvanced,
		Options: []string{"Lasting forever", "Lasting a very short time", "Extremely heavy", "Brightly colored"}},
	{ID: "q9", Word: "obfuscate", Prompt: "What does \"obfuscate\" mean?", Answer: "To make something unclear", Level: models.LevelAdvanced,
		Options: []string{"To explain simply", "To make something unclear", "To decorate", "To celebrate"}},
	{ID: "q10", Word: "ubiquitous", Prompt: "What does \"ubiquitous\" mean?", Answer: "Found everywhere", Level: models.LevelAdvanced,
		Options: []string{"Very rare", "Found everywhere", "Hidden underground", "Recently invented"}},
}

// Module hands out and scores the placement test
type Module struct {
	cache *cache.Store

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewModule creates a module. cache may be nil, in which case results are not kept.
func NewModule(c *cache.Store, rnd *rand.Rand) *Module {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Module{cache: c, rnd: rnd}
}

// Questions returns the test with each question's options shuffled
func (m *Module) Questions() []Question {
	out := make([]Question, len(questions))
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, q := range questions {
		opts := append([]string(nil), q.Options...)
		m.rnd.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		q.Options = opts
		out[i] = q
	}
	return out
}

// Score grades answers keyed by question id. Unknown ids are ignored.
func Score(answers map[string]string) Result {
	res := Result{Total: len(questions)}
	for _, q := range questions {
		if answers[q.ID] == q.Answer {
			res.Correct++
		}
	}
	res.Percent = res.Correct * 100 / res.Total
	res.Level = LevelFor(res.Percent)
	return res
}

// LevelFor maps a percentage to a level: under 40 Beginner, under 75 Intermediate, else Advanced
func LevelFor(percent int) models.Level {
	switch {
	case percent < 40:
		return models.LevelBeginner
	case percent < 75:
		return models.LevelIntermediate
	default:
		return models.LevelAdvanced
	}
}

// Submit scores answers and keeps the result for the client until sign-up
func (m *Module) Submit(ctx context.Context, clientID string, answers map[string]string, goals []string) (Result, error) {
	res := Score(answers)
	res.Goals = models.NewGoalSet(goals...)
	if m.cache == nil || clientID == "" {
		return res, nil
	}
	return res, m.cache.SetJSON(ctx, cache.AssessmentPrefix+clientID, res, ResultTTL)
}

// Take returns and forgets the stored result for a client
func (m *Module) Take(ctx context.Context, clientID string) (Result, bool) {
	var res Result
	if m.cache == nil || clientID == "" {
		return res, false
	}
	key := cache.AssessmentPrefix + clientID
	if !m.cache.GetJSON(ctx, key, &res) {
		return res, false
	}
	_ = m.cache.Delete(ctx, key)
	return res, true
}
