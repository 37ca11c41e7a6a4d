// Package plan builds, normalizes and stores week-by-week study plans.
package plan

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Source records which tier produced a stored week.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Resource types.
const (
	ResourceVideo    = "video"
	ResourceArticle  = "article"
	ResourceDocument = "document"
	ResourceCase     = "case"
	ResourcePractice = "practice"
	ResourceResearch = "research"
)

// Activity types.
const (
	ActivityVideo    = "video"
	ActivityReading  = "reading"
	ActivityPractice = "practice"
	ActivityReview   = "review"
	ActivityTest     = "test"
)

// Question difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Resource is study material attached to a topic.
type Resource struct {
	Type     string `json:"type" yaml:"type"`
	Title    string `json:"title" yaml:"title"`
	URL      string `json:"url,omitempty" yaml:"url"`
	Duration string `json:"duration,omitempty" yaml:"duration"`
}

// TestQuestion is one question of a week's test. Answer is an optional key
// used by stricter scoring strategies.
type TestQuestion struct {
	Question   string `json:"question" yaml:"question"`
	Difficulty string `json:"difficulty,omitempty" yaml:"difficulty"`
	Answer     string `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// UnmarshalJSON accepts a bare string as a question of unknown difficulty.
func (q *TestQuestion) UnmarshalJSON(data []byte) error {
	if s, ok := jsonString(data); ok {
		*q = TestQuestion{Question: s}
		return nil
	}
	type alias TestQuestion
	return json.Unmarshal(data, (*alias)(q))
}

// Topic is a subject-matter unit within a week.
type Topic struct {
	Title         string         `json:"title" yaml:"title"`
	Resources     []Resource     `json:"resources" yaml:"resources"`
	TestQuestions []TestQuestion `json:"test_questions" yaml:"test_questions"`
}

// UnmarshalJSON accepts a bare string as a title-only topic.
func (t *Topic) UnmarshalJSON(data []byte) error {
	if s, ok := jsonString(data); ok {
		*t = Topic{Title: s}
		return nil
	}
	type alias Topic
	return json.Unmarshal(data, (*alias)(t))
}

// Activity is a single study task on one day.
type Activity struct {
	ID          string `json:"id,omitempty" yaml:"-"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Duration    string `json:"duration,omitempty" yaml:"duration"`
	ResourceURL string `json:"resource_url,omitempty" yaml:"resource_url"`
}

// DailyActivity groups the activities for one weekday.
type DailyActivity struct {
	Day        string     `json:"day" yaml:"day"`
	Activities []Activity `json:"activities" yaml:"activities"`
}

// WeeklyPlan is one stored week of a course's plan.
type WeeklyPlan struct {
	CourseID        string          `json:"course_id"`
	WeekNumber      int             `json:"week_number"`
	Topics          []Topic         `json:"topics"`
	DailyActivities []DailyActivity `json:"daily_activities"`
	StudyHours      float64         `json:"study_hours"`
	Tips            []string        `json:"tips"`
	Source          Source          `json:"source"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Draft is one week as produced by a generator, before normalization.
// A nil StudyHours means the generator left it out.
type Draft struct {
	Topics          []Topic         `json:"topics" yaml:"topics"`
	DailyActivities []DailyActivity `json:"daily_activities" yaml:"daily_activities"`
	StudyHours      *float64        `json:"study_hours,omitempty" yaml:"study_hours"`
	Tips            []string        `json:"tips" yaml:"tips"`
}

// UnmarshalJSON tolerates study_hours written as a string ("14", "14 saat").
func (d *Draft) UnmarshalJSON(data []byte) error {
	type alias Draft
	aux := struct {
		*alias
		StudyHours json.RawMessage `json:"study_hours"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.StudyHours = parseHours(aux.StudyHours)
	return nil
}

func parseHours(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	s, ok := jsonString(raw)
	if !ok {
		return nil
	}
	fields := strings.Fields(strings.ReplaceAll(s, ",", "."))
	if len(fields) == 0 {
		return nil
	}
	if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
		return &f
	}
	return nil
}

func jsonString(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}
