package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/audit"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/platform/cache"
	"github.com/p-n-ai/pai-planner/internal/platform/metrics"
)

// maxLoggedResponse bounds how much of an unreadable response is logged.
const maxLoggedResponse = 2000

// Generator produces raw plan text. *ai.Adapter implements it.
type Generator interface {
	Generate(ctx context.Context, spec ai.PromptSpec, backend ai.Backend) (ai.RawContent, error)
}

// ResponseCache stores generator output that parsed successfully.
// *cache.Cache implements it.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Result describes a completed synthesis.
type Result struct {
	Weeks     []WeeklyPlan
	Tier      Source
	Reason    Reason
	WeekCount int
}

// Synthesizer turns a course into a stored multi-week plan. Generation
// failures never reach the caller: they degrade to the fallback builder.
type Synthesizer struct {
	gen       Generator
	store     Store
	cache     ResponseCache
	events    audit.Logger
	backend   ai.Backend
	prefixLen int
	now       func() time.Time
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithResponseCache consults c before calling the generator.
func WithResponseCache(c ResponseCache) SynthesizerOption {
	return func(s *Synthesizer) { s.cache = c }
}

// WithAuditLogger records a plan_synthesized event per synthesis.
func WithAuditLogger(l audit.Logger) SynthesizerOption {
	return func(s *Synthesizer) { s.events = l }
}

// WithDefaultBackend sets the backend Synthesize uses.
func WithDefaultBackend(b ai.Backend) SynthesizerOption {
	return func(s *Synthesizer) { s.backend = b }
}

// WithActivityPrefixLen sets how many description runes go into activity keys.
func WithActivityPrefixLen(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		if n > 0 {
			s.prefixLen = n
		}
	}
}

// WithClock overrides time.Now for week counting.
func WithClock(now func() time.Time) SynthesizerOption {
	return func(s *Synthesizer) { s.now = now }
}

// NewSynthesizer creates a Synthesizer writing to store.
func NewSynthesizer(gen Generator, store Store, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		gen:       gen,
		store:     store,
		events:    audit.Nop{},
		backend:   ai.BackendPrimary,
		prefixLen: DefaultActivityPrefixLen,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrefixLen reports the activity key prefix length in use.
func (s *Synthesizer) PrefixLen() int { return s.prefixLen }

// DefaultBackend reports the backend Synthesize uses.
func (s *Synthesizer) DefaultBackend() ai.Backend { return s.backend }

// Synthesize builds and stores the plan using the default backend.
func (s *Synthesizer) Synthesize(ctx context.Context, c course.Course) (Result, error) {
	return s.SynthesizeWith(ctx, c, s.backend)
}

// SynthesizeWith builds and stores the plan using backend. The only errors
// are a cancelled ctx (nothing stored), a ValidationError or a PersistenceError.
func (s *Synthesizer) SynthesizeWith(ctx context.Context, c course.Course, backend ai.Backend) (Result, error) {
	if c.ID == "" {
		return Result{}, Invalid("course_id", "is required")
	}

	weekCount := WeekCount(c.ExamDate, s.now())
	weeks, reason := s.draft(ctx, c, weekCount, backend)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tier := SourceGenerated
	if reason != ReasonNone {
		tier = SourceFallback
	}
	res := Result{Weeks: weeks, Tier: tier, Reason: reason, WeekCount: weekCount}

	for _, w := range weeks {
		err := Retry(ctx, "upsert plan", w.WeekNumber, func() error {
			return s.store.UpsertWeek(ctx, c.ID, w.WeekNumber, w)
		})
		if err != nil {
			return res, err
		}
	}
	if err := Retry(ctx, "trim plan", 0, func() error {
		return s.store.TrimWeeks(ctx, c.ID, weekCount)
	}); err != nil {
		return res, err
	}

	metrics.Syntheses.WithLabelValues(string(tier), string(reason)).Inc()
	audit.Record(ctx, s.events, audit.Event{
		UserID:   c.UserID,
		CourseID: c.ID,
		Type:     audit.PlanSynthesized,
		Data: map[string]any{
			"tier":       string(tier),
			"reason":     string(reason),
			"week_count": weekCount,
			"backend":    backend.String(),
		},
	})
	slog.Info("plan synthesized",
		"course_id", c.ID,
		"weeks", weekCount,
		"tier", tier,
		"reason", reason,
		"backend", backend.String(),
	)
	return res, nil
}

func (s *Synthesizer) draft(ctx context.Context, c course.Course, weekCount int, backend ai.Backend) ([]WeeklyPlan, Reason) {
	spec := PromptFor(c, weekCount, DaysRemaining(c.ExamDate, s.now()))
	key := cache.Key(backend.String(), spec.Render())

	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("plan cache read failed", "course_id", c.ID, "error", err)
		case ok:
			if drafts, err := ParsePlan(text); err == nil {
				slog.Debug("plan served from cache", "course_id", c.ID)
				return Normalize(c, drafts, weekCount, s.prefixLen), ReasonNone
			}
		}
	}

	raw, err := s.gen.Generate(ctx, spec, backend)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ReasonGeneric
		}
		reason := ReasonGeneric
		switch {
		case errors.Is(err, ai.ErrRateLimited):
			reason = ReasonRateLimited
		case errors.Is(err, ai.ErrInvalidResponse):
			reason = ReasonParse
		}
		slog.Warn("plan generation failed, using fallback",
			"course_id", c.ID,
			"backend", backend.String(),
			"reason", reason,
			"error", err,
		)
		return Fallback(c, weekCount, reason, s.prefixLen), reason
	}

	drafts, err := ParsePlan(raw.Text)
	if err != nil {
		slog.Warn("unreadable plan response, using fallback",
			"course_id", c.ID,
			"backend", backend.String(),
			"provider", raw.Provider,
			"error", err,
			"raw", truncate(raw.Text, maxLoggedResponse),
		)
		return Fallback(c, weekCount, ReasonParse, s.prefixLen), ReasonParse
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, raw.Text); err != nil {
			slog.Warn("plan cache write failed", "course_id", c.ID, "error", err)
		}
	}
	return Normalize(c, drafts, weekCount, s.prefixLen), ReasonNone
}

const planSchemaHint = `{
  "weeks": [
    {
      "week_number": 1,
      "topics": [
        {
          "title": "Topic title",
          "resources": [{"type": "video|article|document|case|practice|research", "title": "...", "url": "...", "duration": "45 min"}],
          "test_questions": [{"question": "...", "difficulty": "easy|medium|hard"}]
        }
      ],
      "daily_activities": [
        {"day": "Monday", "activities": [{"type": "video|reading|practice|review|test", "description": "...", "duration": "1 hour", "resource_url": "..."}]}
      ],
      "study_hours": 14,
      "tips": ["..."]
    }
  ]
}`

// PromptFor builds the generation request for a course.
func PromptFor(c course.Course, weekCount, daysRemaining int) ai.PromptSpec {
	return ai.PromptSpec{
		Task:    ai.TaskPlan,
		Subject: c.Subject,
		Instructions: fmt.Sprintf(
			"Create a detailed %d-week study plan for the %s exam. The student's current level is %s, the target grade is %s and they can study %s per day. The exam is in %d days.",
			weekCount, c.Subject, c.Level, c.TargetGrade, formatHours(c.StudyHoursPerDay), daysRemaining,
		),
		Constraints: []string{
			fmt.Sprintf("exactly %d weeks, numbered from 1", weekCount),
			"every topic has typed resources and easy, medium and hard test questions",
			"daily activities fit the daily study budget",
			"resource and activity types come from the listed values",
		},
		SchemaHint: planSchemaHint,
		Hints: map[string]string{
			"weeks":          strconv.Itoa(weekCount),
			"level":          c.Level.String(),
			"target_grade":   c.TargetGrade,
			"daily_hours":    strconv.FormatFloat(c.StudyHoursPerDay, 'f', -1, 64),
			"days_remaining": strconv.Itoa(daysRemaining),
		},
		MaxTokens: 8192,
	}
}

// Retry runs fn and, when it fails with anything other than a ValidationError
// or a cancelled ctx, runs it once more. A second failure becomes a PersistenceError.
func Retry(ctx context.Context, op string, week int, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return err
	}
	if ctx.Err() != nil {
		return &PersistenceError{Op: op, Week: week, Err: err}
	}
	slog.Warn("write failed, retrying", "op", op, "week", week, "error", err)
	if err := fn(); err != nil {
		return &PersistenceError{Op: op, Week: week, Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
