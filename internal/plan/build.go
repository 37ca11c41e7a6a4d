package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-planner/internal/course"
)

// Reason says why a week came from the deterministic fallback.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonGeneric     Reason = "generic"
	ReasonRateLimited Reason = "rate_limited"
	ReasonParse       Reason = "parse"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DaysRemaining counts calendar days from now until the exam date. It is
// negative once the exam has passed.
func DaysRemaining(examDate, now time.Time) int {
	exam := time.Date(examDate.Year(), examDate.Month(), examDate.Day(), 0, 0, 0, 0, time.UTC)
	local := now.In(examDate.Location())
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return int(exam.Sub(today).Hours() / 24)
}

// WeekCount is max(1, DaysRemaining / 7).
func WeekCount(examDate, now time.Time) int {
	weeks := DaysRemaining(examDate, now) / 7
	if weeks < 1 {
		return 1
	}
	return weeks
}

// Normalize turns drafts into exactly weekCount stored weeks numbered 1..weekCount
// by position. Extra drafts are dropped and missing weeks are filled from the
// fallback builder. Missing fields get defaults instead of failing the week.
func Normalize(c course.Course, drafts []Draft, weekCount, prefixLen int) []WeeklyPlan {
	if weekCount < 1 {
		weekCount = 1
	}
	weeks := make([]WeeklyPlan, 0, weekCount)
	for i := 0; i < weekCount; i++ {
		number := i + 1
		if i >= len(drafts) {
			weeks = append(weeks, fallbackWeek(c, number, ReasonGeneric, prefixLen))
			continue
		}
		weeks = append(weeks, fromDraft(c, number, drafts[i], prefixLen))
	}
	return weeks
}

func fromDraft(c course.Course, number int, d Draft, prefixLen int) WeeklyPlan {
	w := WeeklyPlan{
		CourseID:        c.ID,
		WeekNumber:      number,
		Topics:          orEmpty(d.Topics),
		DailyActivities: orEmpty(d.DailyActivities),
		Tips:            orEmpty(d.Tips),
		Source:          SourceGenerated,
	}
	if d.StudyHours != nil && *d.StudyHours >= 0 {
		w.StudyHours = *d.StudyHours
	} else {
		w.StudyHours = c.StudyHoursPerDay * 7
	}

	for i := range w.Topics {
		t := &w.Topics[i]
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			t.Title = fmt.Sprintf("%s %d", c.Subject, i+1)
		}
		t.Resources = orEmpty(t.Resources)
		t.TestQuestions = orEmpty(t.TestQuestions)
	}
	dedupeTopicTitles(w.Topics)

	for i := range w.DailyActivities {
		day := &w.DailyActivities[i]
		day.Day = strings.TrimSpace(day.Day)
		if day.Day == "" {
			day.Day = weekdays[i%len(weekdays)]
		}
		day.Activities = orEmpty(day.Activities)
		for j := range day.Activities {
			if day.Activities[j].Type == "" {
				day.Activities[j].Type = ActivityReading
			}
		}
	}
	AssignActivityIDs(&w, prefixLen)
	return w
}

// Fallback builds weekCount weeks from the course alone. It has no external
// dependency and the same inputs always give the same plan.
func Fallback(c course.Course, weekCount int, reason Reason, prefixLen int) []WeeklyPlan {
	if weekCount < 1 {
		weekCount = 1
	}
	weeks := make([]WeeklyPlan, weekCount)
	for i := range weeks {
		weeks[i] = fallbackWeek(c, i+1, reason, prefixLen)
	}
	return weeks
}

func fallbackWeek(c course.Course, number int, reason Reason, prefixLen int) WeeklyPlan {
	w := WeeklyPlan{
		CourseID:   c.ID,
		WeekNumber: number,
		Topics: []Topic{{
			Title:         c.Subject + " general topics",
			Resources:     []Resource{},
			TestQuestions: []TestQuestion{},
		}},
		DailyActivities: []DailyActivity{{
			Day: weekdays[0],
			Activities: []Activity{{
				Type:        ActivityReading,
				Description: "Read " + c.Subject + " course notes",
				Duration:    formatHours(c.StudyHoursPerDay),
			}},
		}},
		StudyHours: c.StudyHoursPerDay * 7,
		Tips:       []string{fallbackTip(number, reason, c.StudyHoursPerDay)},
		Source:     SourceFallback,
	}
	AssignActivityIDs(&w, prefixLen)
	return w
}

func fallbackTip(week int, reason Reason, daily float64) string {
	switch reason {
	case ReasonRateLimited:
		return fmt.Sprintf("Week %d: the plan generator is over its usage limit, so this is a basic plan. Regenerate it later for a detailed one.", week)
	case ReasonParse:
		return fmt.Sprintf("Week %d: the generated plan could not be read, so this basic plan was built instead.", week)
	default:
		return fmt.Sprintf("Week %d: study %s every day and review the previous week's notes.", week, formatHours(daily))
	}
}

func formatHours(h float64) string {
	s := strconv.FormatFloat(h, 'f', -1, 64)
	if h == 1 {
		return s + " hour"
	}
	return s + " hours"
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
