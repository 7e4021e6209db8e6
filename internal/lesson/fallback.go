package lesson

import "github.com/example/lexiday/pkg/models"

// FallbackWord is the target word of the built-in lesson
const FallbackWord = "journey"

// Fallback returns the fixed lesson used when no usable payload is available.
// Every call returns a fresh copy.
func Fallback() models.ExerciseSet {
	return models.ExerciseSet{
		TargetWord: "JOURNEY",
		Definition: "A trip from one place to another, especially a long one",
		Emoji:      "🧭",
		Story: "Mia packed a small bag, kissed her grandmother goodbye and boarded the night train. " +
			"The journey across the mountains took two days, and every station brought a new surprise.",
		StoryOptions: []models.Option{
			{ID: "A", Text: "Mia stayed at home all week", Correct: false},
			{ID: "B", Text: "Mia took a long trip by train", Correct: true},
			{ID: "C", Text: "Mia lost her grandmother's bag", Correct: false},
			{ID: "D", Text: "Mia worked at a train station", Correct: false},
		},
		MeaningOptions: []models.Option{
			{ID: "A", Text: "A short nap in the afternoon", Correct: false},
			{ID: "B", Text: "A letter sent to a friend", Correct: false},
			{ID: "C", Text: "A trip from one place to another, especially a long one", Correct: true},
			{ID: "D", Text: "A meal shared with family", Correct: false},
		},
		SpellingLetters: []string{"R", "J", "E", "O", "Y", "U", "N"},
		UsageOptions: []models.Option{
			{ID: "A", Text: "The journey from Paris to Rome took all night.", Correct: true},
			{ID: "B", Text: "I journey my coffee with milk.", Correct: false},
			{ID: "C", Text: "She is very journey today.", Correct: false},
			{ID: "D", Text: "The journey of the table is wooden.", Correct: false},
		},
	}
}
