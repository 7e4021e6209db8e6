// Package lesson turns raw lesson payloads into the four-step exercise the
// learning flow runs, and chooses where a lesson comes from.
package lesson

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/example/lexiday/pkg/models"
)

// MaxOptions is the number of choices rendered per question
const MaxOptions = 4

var optionIDs = [MaxOptions]string{"A", "B", "C", "D"}

var distractorWords = []string{"harbor", "lantern", "whisper", "meadow", "puzzle", "courage", "orbit"}

var distractorMeanings = []string{
	"A loud noise made by an animal",
	"A feeling of being very tired",
	"A small piece of furniture",
	"A type of cold weather",
}

// Transformer normalizes lesson payloads. The zero value is not usable; call NewTransformer.
type Transformer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTransformer creates a transformer. A nil rng seeds one from the clock.
func NewTransformer(rng *rand.Rand) *Transformer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Transformer{rng: rng}
}

// Transform builds an ExerciseSet from p. It reports false and returns the
// built-in lesson when p has no usable target word. Each step falls back to
// synthesized content on its own when its part of the payload is missing or broken.
func (t *Transformer) Transform(p *models.LessonPayload) (models.ExerciseSet, bool) {
	if p == nil {
		return Fallback(), false
	}
	word := strings.TrimSpace(p.TargetWord)
	if word == "" || len(letters(word)) == 0 {
		return Fallback(), false
	}

	set := models.ExerciseSet{
		TargetWord: strings.ToUpper(word),
		Definition: strings.TrimSpace(p.Definition),
		Emoji:      p.Emoji,
		Story:      strings.TrimSpace(p.Story),
	}
	if set.Emoji == "" {
		set.Emoji = "📘"
	}
	if set.Definition == "" {
		set.Definition = fmt.Sprintf("The meaning of the word %q", strings.ToLower(word))
	}
	if set.Story == "" {
		set.Story = fmt.Sprintf("Today's word is %q. Read it aloud, then picture a moment when you might use it.", strings.ToLower(word))
	}

	set.StoryOptions = t.group(step(p, 1), func() []models.Option { return storyGroup(word) })
	set.MeaningOptions = t.group(step(p, 2), func() []models.Option { return meaningGroup(word, set.Definition) })
	set.SpellingLetters = t.spelling(word, p)
	set.UsageOptions = t.group(step(p, 4), func() []models.Option { return usageGroup(word) })
	return set, true
}

// step finds step n by its number, falling back to its position
func step(p *models.LessonPayload, n int) *models.LessonStep {
	for i := range p.Steps {
		if p.Steps[i].Step == n {
			return &p.Steps[i]
		}
	}
	if len(p.Steps) >= n && p.Steps[n-1].Step == 0 {
		return &p.Steps[n-1]
	}
	return nil
}

// group renders a step's options, or the synthesized group when the step is
// missing or does not end up with exactly one correct option. Groups shorter
// than MaxOptions are topped up with synthesized distractors.
func (t *Transformer) group(s *models.LessonStep, synth func() []models.Option) []models.Option {
	if s == nil || len(s.Options) == 0 {
		return synth()
	}
	opts := BuildOptions(s.Options, s.CorrectAnswer)
	if !ValidGroup(opts) {
		return synth()
	}
	if len(opts) < MaxOptions {
		opts = pad(opts, synth())
	}
	return opts
}

// pad appends distractors from extra whose text is not already in opts
func pad(opts, extra []models.Option) []models.Option {
	texts := make([]string, 0, MaxOptions)
	correct := ""
	for _, o := range opts {
		texts = append(texts, o.Text)
		if o.Correct {
			correct = o.Text
		}
	}
	for _, o := range extra {
		if len(texts) == MaxOptions {
			break
		}
		if o.Correct || containsFold(texts, o.Text) {
			continue
		}
		texts = append(texts, o.Text)
	}
	return BuildOptions(texts, correct)
}

func containsFold(texts []string, s string) bool {
	for _, t := range texts {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// BuildOptions caps texts at four, assigns ids A-D by position and marks the
// options whose text equals correct.
func BuildOptions(texts []string, correct string) []models.Option {
	if len(texts) > MaxOptions {
		texts = texts[:MaxOptions]
	}
	opts := make([]models.Option, len(texts))
	for i, text := range texts {
		opts[i] = models.Option{ID: optionIDs[i], Text: text, Correct: text == correct}
	}
	return opts
}

// ValidGroup reports whether exactly one option is correct
func ValidGroup(opts []models.Option) bool {
	n := 0
	for _, o := range opts {
		if o.Correct {
			n++
		}
	}
	return n == 1
}

func (t *Transformer) spelling(word string, p *models.LessonPayload) []string {
	want := letters(word)
	explicit := p.Letters
	if len(explicit) == 0 {
		if s := step(p, 3); s != nil {
			explicit = s.Letters
		}
	}
	if len(explicit) > 0 {
		upper := make([]string, len(explicit))
		for i, l := range explicit {
			upper[i] = strings.ToUpper(strings.TrimSpace(l))
		}
		if IsPermutation(upper, want) {
			return upper
		}
	}

	shuffled := append([]string(nil), want...)
	t.mu.Lock()
	t.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	t.mu.Unlock()
	return shuffled
}

// letters splits the uppercased word into its letters, dropping spaces and punctuation
func letters(word string) []string {
	var out []string
	for _, r := range strings.ToUpper(word) {
		if unicode.IsLetter(r) {
			out = append(out, string(r))
		}
	}
	return out
}

// IsPermutation reports whether a and b hold the same letters
func IsPermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// place puts correct among distractors at a position derived from the word
func place(word, correct string, distractors []string) []models.Option {
	texts := make([]string, 0, MaxOptions)
	for _, d := range distractors {
		if len(texts) == MaxOptions-1 {
			break
		}
		if !strings.EqualFold(d, correct) {
			texts = append(texts, d)
		}
	}
	pos := len(word) % (len(texts) + 1)
	texts = append(texts, "")
	copy(texts[pos+1:], texts[pos:])
	texts[pos] = correct
	return BuildOptions(texts, correct)
}

func storyGroup(word string) []models.Option {
	return place(word, strings.ToLower(word), distractorWords)
}

func meaningGroup(word, definition string) []models.Option {
	return place(word, definition, distractorMeanings)
}

func usageGroup(word string) []models.Option {
	w := strings.ToLower(word)
	correct := fmt.Sprintf("I learned the word %q and used it in a sentence today.", w)
	return place(word, correct, []string{
		fmt.Sprintf("The %s is made of metal and glass.", w),
		fmt.Sprintf("She %s the door very quickly.", w),
		fmt.Sprintf("We %s lunch every afternoon.", w),
	})
}
