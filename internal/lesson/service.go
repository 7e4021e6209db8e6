package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/lexiday/internal/metrics"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Source says where a served lesson came from
type Source string

const (
	SourceGenerator Source = "generator"
	SourceBank      Source = "bank"
	SourceFallback  Source = "fallback"
)

// DefaultTimeout bounds a generator call when none is configured
const DefaultTimeout = 20 * time.Second

// ErrRepeatedWord is returned for a generated word the user already learned
var ErrRepeatedWord = errors.New("generated word was already learned")

// Generator produces a raw lesson for a request
type Generator interface {
	GenerateLesson(ctx context.Context, req models.LessonRequest) (*models.LessonPayload, error)
}

// Bank supplies offline lessons
type Bank interface {
	RandomExcluding(ctx context.Context, level models.Level, exclude []string) (*models.BankEntry, error)
}

// Result is a lesson ready to run
type Result struct {
	Exercise models.ExerciseSet `json:"exercise"`
	Source   Source             `json:"source"`
}

// Service picks a lesson: the generator first, then the offline bank, then
// the built-in lesson. It never fails.
type Service struct {
	generator   Generator
	bank        Bank
	transformer *Transformer
	timeout     time.Duration
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// NewService creates a lesson service. generator and bank may be nil.
func NewService(generator Generator, bank Bank, transformer *Transformer, timeout time.Duration, log *zap.Logger) *Service {
	if transformer == nil {
		transformer = NewTransformer(nil)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		generator:   generator,
		bank:        bank,
		transformer: transformer,
		timeout:     timeout,
		log:         logger.OrNop(log),
		metrics:     metrics.New(),
	}
}

// Load returns a lesson for req
func (s *Service) Load(ctx context.Context, req models.LessonRequest) Result {
	set, err := s.fromGenerator(ctx, req)
	if err == nil {
		return s.served(set, SourceGenerator)
	}
	s.log.Warn("lesson generator unavailable",
		zap.String("op", "lesson.generate"),
		zap.String("level", string(req.UserLevel)),
		zap.Error(err))

	set, err = s.fromBank(ctx, req)
	if err == nil {
		return s.served(set, SourceBank)
	}
	s.log.Warn("lesson bank unavailable",
		zap.String("op", "lesson.bank"),
		zap.String("level", string(req.UserLevel)),
		zap.Error(err))

	return s.served(Fallback(), SourceFallback)
}

func (s *Service) served(set models.ExerciseSet, src Source) Result {
	s.metrics.LessonsServed.WithLabelValues(string(src)).Inc()
	s.log.Debug("lesson served", zap.String("word", set.TargetWord), zap.String("source", string(src)))
	return Result{Exercise: set, Source: src}
}

func (s *Service) fromGenerator(ctx context.Context, req models.LessonRequest) (models.ExerciseSet, error) {
	if s.generator == nil {
		return models.ExerciseSet{}, errors.New("no generator configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	payload, err := s.generator.GenerateLesson(ctx, req)
	s.metrics.LessonDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return models.ExerciseSet{}, err
	}
	if payload != nil && learned(req.PreviousWords, payload.TargetWord) {
		return models.ExerciseSet{}, fmt.Errorf("%w: %s", ErrRepeatedWord, payload.TargetWord)
	}
	set, ok := s.transformer.Transform(payload)
	if !ok {
		return models.ExerciseSet{}, errors.New("generated lesson has no target word")
	}
	return set, nil
}

func (s *Service) fromBank(ctx context.Context, req models.LessonRequest) (models.ExerciseSet, error) {
	if s.bank == nil {
		return models.ExerciseSet{}, errors.New("no lesson bank configured")
	}
	level := req.UserLevel
	if !level.Valid() {
		level = models.LevelBeginner
	}
	entry, err := s.bank.RandomExcluding(ctx, level, req.PreviousWords)
	if err != nil {
		return models.ExerciseSet{}, err
	}
	if entry == nil {
		return models.ExerciseSet{}, fmt.Errorf("no unused %s words in the bank", level)
	}
	set, ok := s.transformer.Transform(entry.Payload())
	if !ok {
		return models.ExerciseSet{}, fmt.Errorf("bank entry %d has no word", entry.ID)
	}
	return set, nil
}

func learned(previous []string, word string) bool {
	word = strings.TrimSpace(word)
	for _, w := range previous {
		if strings.EqualFold(strings.TrimSpace(w), word) {
			return true
		}
	}
	return false
}
