package plan_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/audit"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

const twoWeekResponse = "```json\n" + `{"weeks":[
  {"week_number":1,"topics":[{"title":"Kişilik Hakları","test_questions":[{"question":"q","difficulty":"easy"}]}],
   "daily_activities":[{"day":"Pazartesi","activities":[{"type":"video","description":"Kişilik hakları videosu izle","duration":"1 saat"}]}],
   "study_hours":14,"tips":["t1"]},
  {"week_number":2,"topics":["Aile Hukuku"]}
]}` + "\n```"

func newSynth(t *testing.T, provider ai.Provider, store plan.Store, opts ...plan.SynthesizerOption) *plan.Synthesizer {
	t.Helper()
	adapter := ai.NewAdapter()
	if provider != nil {
		adapter.Register(ai.BackendPrimary, "mock", provider)
	}
	opts = append([]plan.SynthesizerOption{plan.WithClock(func() time.Time { return today })}, opts...)
	return plan.NewSynthesizer(adapter, store, opts...)
}

func assertWeeks(t *testing.T, store plan.Store, courseID string, want int) []plan.WeeklyPlan {
	t.Helper()
	weeks, err := store.ListWeeks(context.Background(), courseID)
	if err != nil {
		t.Fatalf("ListWeeks() error = %v", err)
	}
	if len(weeks) != want {
		t.Fatalf("len(ListWeeks) = %d, want %d", len(weeks), want)
	}
	for i, w := range weeks {
		if w.WeekNumber != i+1 {
			t.Errorf("weeks[%d].WeekNumber = %d, want %d", i, w.WeekNumber, i+1)
		}
	}
	return weeks
}

func TestSynthesize_Generated(t *testing.T) {
	store := plan.NewMemoryStore()
	events := audit.NewMemory()
	mock := ai.NewMockProvider(twoWeekResponse)
	s := newSynth(t, mock, store, plan.WithAuditLogger(events))
	c := testCourse(14)

	res, err := s.Synthesize(context.Background(), c)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.Tier != plan.SourceGenerated || res.Reason != plan.ReasonNone || res.WeekCount != 2 {
		t.Errorf("Result = tier %q reason %q weeks %d", res.Tier, res.Reason, res.WeekCount)
	}

	weeks := assertWeeks(t, store, c.ID, 2)
	if weeks[0].Topics[0].Title != "Kişilik Hakları" {
		t.Errorf("week 1 topic = %q", weeks[0].Topics[0].Title)
	}
	if weeks[1].Topics[0].Title != "Aile Hukuku" || weeks[1].StudyHours != 14 {
		t.Errorf("week 2 = %+v", weeks[1])
	}
	if weeks[0].DailyActivities[0].Activities[0].ID == "" {
		t.Error("activities should carry stored IDs")
	}

	req := mock.LastRequest()
	if req == nil || req.Hints["weeks"] != "2" || req.Hints["level"] != "beginner" {
		t.Errorf("request hints = %v", req.Hints)
	}
	if !strings.Contains(req.Messages[1].Content, "Medeni Hukuk") {
		t.Errorf("prompt does not mention the subject: %q", req.Messages[1].Content)
	}
	if got := events.OfType(audit.PlanSynthesized); len(got) != 1 || got[0].Data["tier"] != "generated" {
		t.Errorf("audit events = %+v", got)
	}
}

func TestSynthesize_PadsShortResponse(t *testing.T) {
	store := plan.NewMemoryStore()
	s := newSynth(t, ai.NewMockProvider(twoWeekResponse), store)
	c := testCourse(35)

	res, err := s.Synthesize(context.Background(), c)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	weeks := assertWeeks(t, store, c.ID, 5)
	if res.Tier != plan.SourceGenerated {
		t.Errorf("Tier = %q", res.Tier)
	}
	if weeks[4].Source != plan.SourceFallback {
		t.Errorf("padded week source = %q", weeks[4].Source)
	}
}

func TestSynthesize_FallbackWhenGeneratorAlwaysFails(t *testing.T) {
	tests := []struct {
		name       string
		provider   ai.Provider
		wantReason plan.Reason
	}{
		{"no backend", nil, plan.ReasonGeneric},
		{"server error", &ai.MockProvider{Err: &ai.APIError{Provider: "p", StatusCode: http.StatusInternalServerError}}, plan.ReasonGeneric},
		{"rate limited", &ai.MockProvider{Err: &ai.APIError{Provider: "p", StatusCode: http.StatusTooManyRequests}}, plan.ReasonRateLimited},
		{"quota text", &ai.MockProvider{Err: errors.New("Quota exceeded for project")}, plan.ReasonRateLimited},
		{"invalid json", ai.NewMockProvider("Sorry, here is a plan: weeks one and two"), plan.ReasonParse},
		{"empty weeks", ai.NewMockProvider(`{"weeks": []}`), plan.ReasonParse},
		{"empty content", ai.NewMockProvider(""), plan.ReasonParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := plan.NewMemoryStore()
			s := newSynth(t, tt.provider, store)
			c := testCourse(21)

			res, err := s.Synthesize(context.Background(), c)
			if err != nil {
				t.Fatalf("Synthesize() error = %v, want nil", err)
			}
			if res.Tier != plan.SourceFallback || res.Reason != tt.wantReason {
				t.Errorf("Result = tier %q reason %q, want fallback/%q", res.Tier, res.Reason, tt.wantReason)
			}
			for _, w := range assertWeeks(t, store, c.ID, 3) {
				if len(w.Topics) == 0 || len(plan.Activities(w)) == 0 || len(w.Tips) == 0 {
					t.Errorf("week %d is empty: %+v", w.WeekNumber, w)
				}
			}
		})
	}
}

func TestSynthesize_PastExamYieldsOneWeek(t *testing.T) {
	store := plan.NewMemoryStore()
	s := newSynth(t, nil, store)
	c := testCourse(-3)
	if _, err := s.Synthesize(context.Background(), c); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	assertWeeks(t, store, c.ID, 1)
}

func TestSynthesize_RegenerationOverwritesAndTrims(t *testing.T) {
	store := plan.NewMemoryStore()
	c := testCourse(35)
	if _, err := newSynth(t, nil, store).Synthesize(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	assertWeeks(t, store, c.ID, 5)

	c.ExamDate = c.ExamDate.AddDate(0, 0, -21)
	if _, err := newSynth(t, ai.NewMockProvider(twoWeekResponse), store).Synthesize(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	weeks := assertWeeks(t, store, c.ID, 2)
	if weeks[0].Source != plan.SourceGenerated {
		t.Errorf("week 1 not overwritten: source %q", weeks[0].Source)
	}
}

func TestSynthesize_CancelledPersistsNothing(t *testing.T) {
	store := plan.NewMemoryStore()
	s := newSynth(t, &ai.MockProvider{Block: true}, store)
	c := testCourse(14)

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := s.Synthesize(ctx, c)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Synthesize() error = %v, want context.Canceled", err)
	}
	weeks, _ := store.ListWeeks(context.Background(), c.ID)
	if len(weeks) != 0 {
		t.Errorf("persisted %d weeks after cancellation", len(weeks))
	}
}

func TestSynthesize_RequiresCourseID(t *testing.T) {
	s := newSynth(t, nil, plan.NewMemoryStore())
	c := testCourse(7)
	c.ID = ""
	var verr *plan.ValidationError
	if _, err := s.Synthesize(context.Background(), c); !errors.As(err, &verr) {
		t.Fatalf("Synthesize() error = %v, want ValidationError", err)
	}
}

// flakyStore fails the first `failures` UpsertWeek calls.
type flakyStore struct {
	*plan.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) UpsertWeek(ctx context.Context, courseID string, week int, p plan.WeeklyPlan) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return f.MemoryStore.UpsertWeek(ctx, courseID, week, p)
}

func TestSynthesize_RetriesWriteOnce(t *testing.T) {
	store := &flakyStore{MemoryStore: plan.NewMemoryStore(), failures: 1}
	c := testCourse(14)
	if _, err := newSynth(t, nil, store).Synthesize(context.Background(), c); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	assertWeeks(t, store, c.ID, 2)
	if store.calls != 3 {
		t.Errorf("UpsertWeek calls = %d, want 3", store.calls)
	}
}

func TestSynthesize_PersistenceErrorAfterRetry(t *testing.T) {
	store := &flakyStore{MemoryStore: plan.NewMemoryStore(), failures: 100}
	c := testCourse(14)
	_, err := newSynth(t, nil, store).Synthesize(context.Background(), c)

	var perr *plan.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Synthesize() error = %v, want PersistenceError", err)
	}
	if perr.Week != 1 {
		t.Errorf("PersistenceError.Week = %d, want 1", perr.Week)
	}
	if store.calls != 2 {
		t.Errorf("UpsertWeek calls = %d, want 2", store.calls)
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestSynthesize_UsesResponseCache(t *testing.T) {
	rc := &mapCache{data: map[string]string{}}
	mock := ai.NewMockProvider(twoWeekResponse)
	c := testCourse(14)

	for i := 0; i < 2; i++ {
		store := plan.NewMemoryStore()
		res, err := newSynth(t, mock, store, plan.WithResponseCache(rc)).Synthesize(context.Background(), c)
		if err != nil {
			t.Fatal(err)
		}
		if res.Tier != plan.SourceGenerated {
			t.Errorf("run %d tier = %q", i, res.Tier)
		}
		assertWeeks(t, store, c.ID, 2)
	}
	if mock.Calls() != 1 {
		t.Errorf("generator calls = %d, want 1", mock.Calls())
	}
	if len(rc.data) != 1 {
		t.Errorf("cache entries = %d, want 1", len(rc.data))
	}
}

func TestSynthesize_DoesNotCacheFailures(t *testing.T) {
	rc := &mapCache{data: map[string]string{}}
	c := testCourse(14)
	if _, err := newSynth(t, ai.NewMockProvider("not json"), plan.NewMemoryStore(), plan.WithResponseCache(rc)).Synthesize(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if len(rc.data) != 0 {
		t.Errorf("cache entries = %d, want 0", len(rc.data))
	}
}

func TestSynthesizeWith_SelectsBackend(t *testing.T) {
	adapter := ai.NewAdapter()
	primary := ai.NewMockProvider(twoWeekResponse)
	tertiary := ai.NewMockProvider(twoWeekResponse)
	adapter.Register(ai.BackendPrimary, "primary", primary)
	adapter.Register(ai.BackendTertiary, "static", tertiary)

	s := plan.NewSynthesizer(adapter, plan.NewMemoryStore(), plan.WithClock(func() time.Time { return today }))
	if _, err := s.SynthesizeWith(context.Background(), testCourse(14), ai.BackendTertiary); err != nil {
		t.Fatal(err)
	}
	if primary.Calls() != 0 || tertiary.Calls() != 1 {
		t.Errorf("calls primary=%d tertiary=%d", primary.Calls(), tertiary.Calls())
	}
}

func TestPromptFor(t *testing.T) {
	c := testCourse(28)
	c.Level = course.LevelIntermediate
	spec := plan.PromptFor(c, 4, 28)
	if spec.Task != ai.TaskPlan || spec.Subject != "Medeni Hukuk" {
		t.Errorf("spec = %+v", spec)
	}
	text := spec.Render()
	for _, want := range []string{"4-week", "intermediate", "AA", "2 hours", "28 days"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q:\n%s", want, text)
		}
	}
}
