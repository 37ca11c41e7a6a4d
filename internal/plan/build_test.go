package plan_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

var today = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func testCourse(daysOut int) course.Course {
	return course.Course{
		ID:               "22222222-2222-2222-2222-222222222222",
		UserID:           "user-1",
		Subject:          "Medeni Hukuk",
		TargetGrade:      "AA",
		Level:            course.LevelBeginner,
		ExamDate:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, daysOut),
		StudyHoursPerDay: 2,
	}
}

func TestWeekCount(t *testing.T) {
	tests := []struct {
		daysOut int
		want    int
	}{
		{-30, 1},
		{-1, 1},
		{0, 1},
		{6, 1},
		{7, 1},
		{13, 1},
		{14, 2},
		{30, 4},
		{70, 10},
	}
	for _, tt := range tests {
		exam := testCourse(tt.daysOut).ExamDate
		if got := plan.WeekCount(exam, today); got != tt.want {
			t.Errorf("WeekCount(%d days) = %d, want %d", tt.daysOut, got, tt.want)
		}
	}
}

func TestDaysRemaining_IgnoresTimeOfDay(t *testing.T) {
	exam := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	if got := plan.DaysRemaining(exam, late); got != 7 {
		t.Errorf("DaysRemaining() = %d, want 7", got)
	}
}

func TestNormalize(t *testing.T) {
	c := testCourse(28)
	hours := 10.0
	drafts := []plan.Draft{
		{Topics: []plan.Topic{{Title: "Kişilik Hakları"}, {Title: "Kişilik hakları"}, {Title: ""}}, StudyHours: &hours},
		{},
	}

	weeks := plan.Normalize(c, drafts, 4, 20)

	if len(weeks) != 4 {
		t.Fatalf("len(weeks) = %d, want 4", len(weeks))
	}
	for i, w := range weeks {
		if w.WeekNumber != i+1 {
			t.Errorf("weeks[%d].WeekNumber = %d, want %d", i, w.WeekNumber, i+1)
		}
		if w.CourseID != c.ID {
			t.Errorf("weeks[%d].CourseID = %q", i, w.CourseID)
		}
		if w.Topics == nil || w.DailyActivities == nil || w.Tips == nil {
			t.Errorf("weeks[%d] has nil slices: %+v", i, w)
		}
	}

	w1 := weeks[0]
	if w1.StudyHours != 10 || w1.Source != plan.SourceGenerated {
		t.Errorf("week 1 = hours %v source %q", w1.StudyHours, w1.Source)
	}
	ids := map[string]bool{}
	for _, topic := range w1.Topics {
		ids[plan.TopicID(topic.Title)] = true
	}
	if len(ids) != 3 {
		t.Errorf("topic IDs in week 1 not unique: %v", ids)
	}
	if w1.Topics[2].Title != "Medeni Hukuk 3" {
		t.Errorf("empty title backfilled as %q", w1.Topics[2].Title)
	}

	w2 := weeks[1]
	if w2.StudyHours != 14 {
		t.Errorf("week 2 StudyHours = %v, want daily*7 = 14", w2.StudyHours)
	}
	if len(w2.Topics) != 0 || len(w2.Tips) != 0 {
		t.Errorf("week 2 should be backfilled empty, got %+v", w2)
	}

	if weeks[2].Source != plan.SourceFallback || weeks[3].Source != plan.SourceFallback {
		t.Error("padded weeks should come from the fallback builder")
	}
}

func TestNormalize_TruncatesExtraWeeks(t *testing.T) {
	weeks := plan.Normalize(testCourse(14), make([]plan.Draft, 5), 2, 20)
	if len(weeks) != 2 {
		t.Fatalf("len(weeks) = %d, want 2", len(weeks))
	}
}

func TestNormalize_DefaultsActivities(t *testing.T) {
	drafts := []plan.Draft{{DailyActivities: []plan.DailyActivity{
		{Activities: []plan.Activity{{Description: "Read chapter 1"}}},
	}}}
	w := plan.Normalize(testCourse(7), drafts, 1, 20)[0]
	a := w.DailyActivities[0].Activities[0]
	if w.DailyActivities[0].Day != "Monday" {
		t.Errorf("Day = %q, want Monday", w.DailyActivities[0].Day)
	}
	if a.Type != plan.ActivityReading || a.ID == "" {
		t.Errorf("activity = %+v", a)
	}
}

func TestFallback(t *testing.T) {
	c := testCourse(21)
	weeks := plan.Fallback(c, 3, plan.ReasonGeneric, 20)

	if len(weeks) != 3 {
		t.Fatalf("len(weeks) = %d, want 3", len(weeks))
	}
	for i, w := range weeks {
		if w.WeekNumber != i+1 {
			t.Errorf("WeekNumber = %d, want %d", w.WeekNumber, i+1)
		}
		if len(w.Topics) != 1 {
			t.Errorf("week %d topics = %d, want 1", w.WeekNumber, len(w.Topics))
		}
		acts := plan.Activities(w)
		if len(acts) != 1 || acts[0].Type != plan.ActivityReading || acts[0].Duration != "2 hours" {
			t.Errorf("week %d activities = %+v", w.WeekNumber, acts)
		}
		if len(w.Tips) != 1 || !strings.HasPrefix(w.Tips[0], "Week ") {
			t.Errorf("week %d tips = %v", w.WeekNumber, w.Tips)
		}
		if w.StudyHours != 14 {
			t.Errorf("week %d StudyHours = %v, want 14", w.WeekNumber, w.StudyHours)
		}
		if w.Source != plan.SourceFallback {
			t.Errorf("Source = %q", w.Source)
		}
	}

	if again := plan.Fallback(c, 3, plan.ReasonGeneric, 20); !reflect.DeepEqual(weeks, again) {
		t.Error("Fallback() is not deterministic")
	}
}

func TestFallback_ReasonChangesTip(t *testing.T) {
	c := testCourse(7)
	generic := plan.Fallback(c, 1, plan.ReasonGeneric, 20)[0].Tips[0]
	limited := plan.Fallback(c, 1, plan.ReasonRateLimited, 20)[0].Tips[0]
	parse := plan.Fallback(c, 1, plan.ReasonParse, 20)[0].Tips[0]
	if generic == limited || limited == parse || generic == parse {
		t.Errorf("tips should differ by reason: %q / %q / %q", generic, limited, parse)
	}
	if !strings.Contains(limited, "usage limit") {
		t.Errorf("rate-limited tip = %q", limited)
	}
}

func TestFallback_FloorsWeekCount(t *testing.T) {
	if got := plan.Fallback(testCourse(-5), 0, plan.ReasonGeneric, 20); len(got) != 1 {
		t.Errorf("len(Fallback(0)) = %d, want 1", len(got))
	}
}
