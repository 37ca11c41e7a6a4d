package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/p-n-ai/pai-planner/internal/audit"
	"github.com/p-n-ai/pai-planner/internal/plan"
	"github.com/p-n-ai/pai-planner/internal/platform/metrics"
)

// Tracker toggles and reads activity completion. With a plan store attached
// it checks that the week exists and records progress under the activity's
// stored ID, accepting legacy content-derived keys from older clients.
type Tracker struct {
	store     Store
	plans     plan.Store
	prefixLen int
	events    audit.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPlans validates keys against the stored plan.
func WithPlans(plans plan.Store, prefixLen int) TrackerOption {
	return func(t *Tracker) {
		t.plans = plans
		if prefixLen > 0 {
			t.prefixLen = prefixLen
		}
	}
}

// WithAuditLogger records an activity_toggled event per toggle.
func WithAuditLogger(l audit.Logger) TrackerOption {
	return func(t *Tracker) { t.events = l }
}

func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:     store,
		prefixLen: plan.DefaultActivityPrefixLen,
		events:    audit.Nop{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Toggle flips completion for the activity and returns the new state. A
// toggle is not idempotent, so a failed write is surfaced without a retry.
func (t *Tracker) Toggle(ctx context.Context, userID, courseID string, week int, activityID string) (Record, error) {
	key := Key{UserID: userID, CourseID: courseID, Week: week, ActivityID: activityID}
	if err := key.validate(); err != nil {
		return Record{}, err
	}
	key, err := t.canonical(ctx, key)
	if err != nil {
		return Record{}, err
	}

	rec, err := t.store.Toggle(ctx, key)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			return Record{}, err
		}
		return Record{}, &plan.PersistenceError{Op: "toggle progress", Week: week, Err: err}
	}

	metrics.Toggles.WithLabelValues(strconv.FormatBool(rec.Completed)).Inc()
	audit.Record(ctx, t.events, audit.Event{
		UserID:   userID,
		CourseID: courseID,
		Type:     audit.ActivityToggled,
		Data: map[string]any{
			"week_number": week,
			"activity_id": key.ActivityID,
			"completed":   rec.Completed,
		},
	})
	return rec, nil
}

// IsCompleted reports the stored flag, false when no record exists.
func (t *Tracker) IsCompleted(ctx context.Context, userID, courseID string, week int, activityID string) (bool, error) {
	key := Key{UserID: userID, CourseID: courseID, Week: week, ActivityID: activityID}
	if err := key.validate(); err != nil {
		return false, err
	}
	key, err := t.canonical(ctx, key)
	if err != nil {
		return false, err
	}
	rec, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read progress: %w", err)
	}
	return ok && rec.Completed, nil
}

// WeekStatus is the completion state of every activity in one week.
type WeekStatus struct {
	Week      int             `json:"week_number"`
	Completed map[string]bool `json:"completed"`
	Done      int             `json:"done"`
	Total     int             `json:"total"`
}

// Percent returns the completed share of the week's activities.
func (s WeekStatus) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total) * 100
}

// WeekStatus maps each activity of the week to its completion flag. Without
// a plan store only activities with a record are listed.
func (t *Tracker) WeekStatus(ctx context.Context, userID, courseID string, week int) (WeekStatus, error) {
	if userID == "" {
		return WeekStatus{}, plan.Invalid("user_id", "is required")
	}
	records, err := t.store.ListWeek(ctx, userID, courseID, week)
	if err != nil {
		return WeekStatus{}, fmt.Errorf("list progress: %w", err)
	}
	stored := make(map[string]bool, len(records))
	for _, r := range records {
		stored[r.ActivityID] = r.Completed
	}

	status := WeekStatus{Week: week, Completed: make(map[string]bool)}
	if t.plans == nil {
		for id, done := range stored {
			status.Completed[id] = done
		}
	} else {
		p, err := t.week(ctx, courseID, week)
		if err != nil {
			return WeekStatus{}, err
		}
		for _, a := range plan.Activities(p) {
			status.Completed[a.ID] = stored[a.ID]
		}
	}

	status.Total = len(status.Completed)
	for _, done := range status.Completed {
		if done {
			status.Done++
		}
	}
	return status, nil
}

func (t *Tracker) canonical(ctx context.Context, key Key) (Key, error) {
	if t.plans == nil {
		return key, nil
	}
	p, err := t.week(ctx, key.CourseID, key.Week)
	if err != nil {
		return Key{}, err
	}
	_, id, ok := plan.ResolveActivity(p, key.ActivityID, t.prefixLen)
	if !ok {
		return Key{}, plan.Invalid("activity_id", "%q is not in week %d", key.ActivityID, key.Week)
	}
	key.ActivityID = id
	return key, nil
}

func (t *Tracker) week(ctx context.Context, courseID string, week int) (plan.WeeklyPlan, error) {
	p, err := t.plans.GetWeek(ctx, courseID, week)
	if errors.Is(err, plan.ErrNotFound) {
		return plan.WeeklyPlan{}, plan.Invalid("week_number", "course %s has no week %d", courseID, week)
	}
	if err != nil {
		return plan.WeeklyPlan{}, fmt.Errorf("load week %d: %w", week, err)
	}
	return p, nil
}
