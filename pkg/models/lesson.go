package models

// LessonRequest is what the lesson generator personalizes a lesson from
type LessonRequest struct {
	UserLevel     Level    `json:"user_level"`
	PreviousWords []string `json:"previous_words"`
	LearningGoals []string `json:"learning_goals"`
	UserName      string   `json:"user_name"`
}

// LessonPayload is the raw lesson returned by the lesson generator.
// Every field is optional; the transformer fills the gaps.
type LessonPayload struct {
	TargetWord string       `json:"targetWord"`
	Definition string       `json:"definition"`
	Story      string       `json:"story"`
	Emoji      string       `json:"emoji,omitempty"`
	Letters    []string     `json:"letters,omitempty"`
	Steps      []LessonStep `json:"steps,omitempty"`
}

// LessonStep is one of the four raw exercise steps
type LessonStep struct {
	Step          int      `json:"step,omitempty"`
	Question      string   `json:"question,omitempty"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Letters       []string `json:"letters,omitempty"`
}

// Option is one rendered answer choice
type Option struct {
	ID      string `json:"id"` // A-D
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// ExerciseSet is the normalized four-step lesson: discovery, meaning, spelling, usage
type ExerciseSet struct {
	TargetWord      string   `json:"target_word"` // uppercased
	Definition      string   `json:"definition"`
	Emoji           string   `json:"emoji"`
	Story           string   `json:"story"`
	StoryOptions    []Option `json:"story_options"`
	MeaningOptions  []Option `json:"meaning_options"`
	SpellingLetters []string `json:"spelling_letters"`
	UsageOptions    []Option `json:"usage_options"`
}
