package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-planner/internal/audit"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/plan"
	"github.com/p-n-ai/pai-planner/internal/platform/metrics"
)

// Submission is one attempt at a week's test. Answers[i] answers the i-th
// question in topic order.
type Submission struct {
	UserID   string   `json:"user_id"`
	CourseID string   `json:"course_id"`
	Week     int      `json:"week_number"`
	Answers  []string `json:"answers"`
}

// Result is a scored submission.
type Result struct {
	Score    Score        `json:"score"`
	Level    course.Level `json:"level"`
	Previous course.Level `json:"previous_level"`
	Promoted bool         `json:"promoted"`
}

// Evaluator scores submissions and applies the upgrade-only promotion rule:
// only an Advanced result changes the stored level.
type Evaluator struct {
	courses  course.Store
	plans    plan.Store
	strategy Strategy
	events   audit.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithStrategy replaces the default presence strategy.
func WithStrategy(s Strategy) EvaluatorOption {
	return func(e *Evaluator) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithAuditLogger records assessment_scored and level_promoted events.
func WithAuditLogger(l audit.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.events = l }
}

func NewEvaluator(courses course.Store, plans plan.Store, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		courses:  courses,
		plans:    plans,
		strategy: PresenceStrategy{},
		events:   audit.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Questions returns the week's test questions in topic order.
func (e *Evaluator) Questions(ctx context.Context, courseID string, week int) ([]plan.TestQuestion, error) {
	p, err := e.week(ctx, courseID, week)
	if err != nil {
		return nil, err
	}
	return plan.TestQuestions(p), nil
}

// Evaluate scores the submission against the stored week.
func (e *Evaluator) Evaluate(ctx context.Context, sub Submission) (Result, error) {
	c, err := e.courses.Get(ctx, sub.CourseID)
	if errors.Is(err, course.ErrNotFound) {
		return Result{}, plan.Invalid("course_id", "course %s not found", sub.CourseID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load course: %w", err)
	}
	p, err := e.week(ctx, sub.CourseID, sub.Week)
	if err != nil {
		return Result{}, err
	}

	score := Grade(plan.TestQuestions(p), sub.Answers, e.strategy)
	res := Result{Score: score, Level: LevelFor(score.Percentage), Previous: c.Level}

	audit.Record(ctx, e.events, audit.Event{
		UserID:   sub.UserID,
		CourseID: c.ID,
		Type:     audit.AssessmentScored,
		Data: map[string]any{
			"week_number": sub.Week,
			"correct":     score.Correct,
			"total":       score.Total,
			"percentage":  score.Percentage,
			"level":       res.Level.String(),
		},
	})

	if res.Level != course.LevelAdvanced || c.Level == course.LevelAdvanced {
		return res, nil
	}

	var changed bool
	err = plan.Retry(ctx, "promote level", sub.Week, func() error {
		var err error
		changed, err = e.courses.PromoteLevel(ctx, c.ID, course.LevelAdvanced)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	res.Promoted = changed
	if changed {
		metrics.Promotions.Inc()
		slog.Info("course level promoted", "course_id", c.ID, "from", c.Level.String(), "to", course.LevelAdvanced.String())
		audit.Record(ctx, e.events, audit.Event{
			UserID:   sub.UserID,
			CourseID: c.ID,
			Type:     audit.LevelPromoted,
			Data:     map[string]any{"from": c.Level.String(), "to": course.LevelAdvanced.String()},
		})
	}
	return res, nil
}

func (e *Evaluator) week(ctx context.Context, courseID string, week int) (plan.WeeklyPlan, error) {
	if week < 1 {
		return plan.WeeklyPlan{}, plan.Invalid("week_number", "must be at least 1, got %d", week)
	}
	p, err := e.plans.GetWeek(ctx, courseID, week)
	if errors.Is(err, plan.ErrNotFound) {
		return plan.WeeklyPlan{}, plan.Invalid("week_number", "course %s has no week %d", courseID, week)
	}
	if err != nil {
		return plan.WeeklyPlan{}, fmt.Errorf("load week %d: %w", week, err)
	}
	return p, nil
}
