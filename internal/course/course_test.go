package course_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/platform/database/databasetest"
)

func sampleCourse() course.Course {
	return course.Course{
		UserID:           "user-1",
		Title:            "Final",
		Subject:          "Medeni Hukuk",
		TargetGrade:      "AA",
		Level:            course.LevelBeginner,
		ExamDate:         time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		StudyHoursPerDay: 2,
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want course.Level
	}{
		{"beginner", course.LevelBeginner},
		{"Başlangıç", course.LevelBeginner},
		{"BAŞLANGIÇ", course.LevelBeginner},
		{"Orta", course.LevelIntermediate},
		{"Intermediate", course.LevelIntermediate},
		{"İleri", course.LevelAdvanced},
		{" advanced ", course.LevelAdvanced},
	}
	for _, tt := range tests {
		got, err := course.ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := course.ParseLevel("expert"); err == nil {
		t.Error("ParseLevel(expert) should fail")
	}
}

func TestLevel_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		L course.Level `json:"l"`
	}{course.LevelIntermediate})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"l":"intermediate"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var out struct {
		L course.Level `json:"l"`
	}
	if err := json.Unmarshal([]byte(`{"l":"İleri"}`), &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.L != course.LevelAdvanced {
		t.Errorf("L = %v, want advanced", out.L)
	}
}

func TestCourse_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*course.Course)
	}{
		{"no user", func(c *course.Course) { c.UserID = "" }},
		{"no subject", func(c *course.Course) { c.Subject = "  " }},
		{"no exam date", func(c *course.Course) { c.ExamDate = time.Time{} }},
		{"zero hours", func(c *course.Course) { c.StudyHoursPerDay = 0 }},
		{"too many hours", func(c *course.Course) { c.StudyHoursPerDay = 25 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sampleCourse()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
	if err := sampleCourse().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func testStore(t *testing.T, store course.Store) {
	ctx := context.Background()

	created, err := store.Create(ctx, sampleCourse())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() returned empty ID")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Subject != "Medeni Hukuk" || got.Level != course.LevelBeginner {
		t.Errorf("Get() = %+v", got)
	}

	changed, err := store.PromoteLevel(ctx, created.ID, course.LevelAdvanced)
	if err != nil || !changed {
		t.Fatalf("PromoteLevel(advanced) = %v, %v; want true, nil", changed, err)
	}
	changed, err = store.PromoteLevel(ctx, created.ID, course.LevelAdvanced)
	if err != nil || changed {
		t.Errorf("second PromoteLevel(advanced) = %v, %v; want false, nil", changed, err)
	}
	changed, err = store.PromoteLevel(ctx, created.ID, course.LevelIntermediate)
	if err != nil || changed {
		t.Errorf("PromoteLevel(intermediate) = %v, %v; want false, nil", changed, err)
	}

	got, _ = store.Get(ctx, created.ID)
	if got.Level != course.LevelAdvanced {
		t.Errorf("Level = %v, want advanced", got.Level)
	}

	if _, err := store.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, course.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.PromoteLevel(ctx, "not-a-course", course.LevelAdvanced); !errors.Is(err, course.ErrNotFound) {
		t.Errorf("PromoteLevel(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.Create(ctx, course.Course{}); err == nil {
		t.Error("Create(empty) should fail validation")
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, course.NewMemoryStore())
}

func TestPostgresStore(t *testing.T) {
	pool := databasetest.NewPool(t)
	store, err := course.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	testStore(t, store)
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := course.NewPostgresStore(nil); err == nil {
		t.Fatal("NewPostgresStore(nil) should fail")
	}
}
