// Package course holds the exam-preparation goal a study plan is built for.
package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNotFound is returned when a course does not exist.
var ErrNotFound = errors.New("course not found")

// Level is a learner's proficiency. Levels are ordered: Beginner < Intermediate < Advanced.
type Level int

const (
	LevelBeginner Level = iota
	LevelIntermediate
	LevelAdvanced
)

func (l Level) String() string {
	switch l {
	case LevelBeginner:
		return "beginner"
	case LevelIntermediate:
		return "intermediate"
	case LevelAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// ParseLevel accepts English and Turkish level names in any case.
func ParseLevel(s string) (Level, error) {
	switch cases.Lower(language.Turkish).String(strings.TrimSpace(s)) {
	case "beginner", "başlangıç", "baslangic":
		return LevelBeginner, nil
	case "intermediate", "orta":
		return LevelIntermediate, nil
	case "advanced", "ileri":
		return LevelAdvanced, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if l < LevelBeginner || l > LevelAdvanced {
		return nil, fmt.Errorf("invalid level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Course is one user's exam target.
type Course struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	Subject          string    `json:"subject"`
	TargetGrade      string    `json:"target_grade"`
	Level            Level     `json:"current_level"`
	ExamDate         time.Time `json:"exam_date"`
	StudyHoursPerDay float64   `json:"study_hours_per_day"`
	CreatedAt        time.Time `json:"created_at"`
}

// Validate checks the fields a plan cannot be built without.
func (c Course) Validate() error {
	switch {
	case strings.TrimSpace(c.UserID) == "":
		return fmt.Errorf("user_id is required")
	case strings.TrimSpace(c.Subject) == "":
		return fmt.Errorf("subject is required")
	case c.ExamDate.IsZero():
		return fmt.Errorf("exam_date is required")
	case c.StudyHoursPerDay <= 0 || c.StudyHoursPerDay > 24:
		return fmt.Errorf("study_hours_per_day must be between 0 and 24, got %v", c.StudyHoursPerDay)
	case c.Level < LevelBeginner || c.Level > LevelAdvanced:
		return fmt.Errorf("invalid level %d", int(c.Level))
	}
	return nil
}

// Store persists courses. Level changes only go up.
type Store interface {
	Create(ctx context.Context, c Course) (Course, error)
	Get(ctx context.Context, id string) (Course, error)
	// PromoteLevel raises the stored level to `to` and reports whether it changed.
	// A stored level at or above `to` is left alone.
	PromoteLevel(ctx context.Context, id string, to Level) (bool, error)
}
