package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/catalog"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

const shippedCatalog = "../../catalog"

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTemplate(t, dir, "law.yaml", `
id: law
subject: Hukuk
match: [hukuk]
topics:
  - title: Hukukun Kaynakları
    test_questions:
      - {question: Kaynaklar nelerdir?, difficulty: easy}
study_hours: 8
`)
	writeTemplate(t, dir, "civil.yml", `
id: civil
subject: Medeni Hukuk
match: [civil law]
week_tip: "Week {week}: revise."
topics:
  - title: Kişilik Hakları
daily_activities:
  - day: Monday
    activities:
      - {type: reading, description: Read the code, duration: 1 hour}
tips: [Study daily]
`)
	writeTemplate(t, dir, "broken.yaml", "subject: [unclosed")
	writeTemplate(t, dir, "notes.yaml", "title: not a template\n")
	writeTemplate(t, dir, "README.md", "# ignored")
	return dir
}

func TestLoader_LoadsTemplates(t *testing.T) {
	loader, err := catalog.NewLoader(setupTestCatalog(t))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	templates := loader.Templates()
	if len(templates) != 2 {
		t.Fatalf("len(Templates()) = %d, want 2", len(templates))
	}
	if templates[0].ID != "civil" || templates[1].ID != "law" {
		t.Errorf("Templates() order = %s, %s", templates[0].ID, templates[1].ID)
	}

	law, ok := loader.Get("law")
	if !ok {
		t.Fatal("Get(law) not found")
	}
	if law.StudyHours == nil || *law.StudyHours != 8 {
		t.Errorf("StudyHours = %v, want 8", law.StudyHours)
	}
	if len(law.Topics) != 1 || law.Topics[0].TestQuestions[0].Difficulty != plan.DifficultyEasy {
		t.Errorf("Topics = %+v", law.Topics)
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	loader, err := catalog.NewLoader(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if n := len(loader.Templates()); n != 0 {
		t.Errorf("len(Templates()) = %d, want 0", n)
	}
}

func TestLoader_Match(t *testing.T) {
	loader, err := catalog.NewLoader(setupTestCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		subject string
		want    string
	}{
		{"Medeni Hukuk", "civil"},
		{"MEDENİ HUKUK final", "civil"},
		{"Intro to Civil Law", "civil"},
		{"Ceza Hukuku", "law"},
		{"Borçlar hukuku", "law"},
		{"Organic Chemistry", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, ok := loader.Match(tt.subject)
		if tt.want == "" {
			if ok {
				t.Errorf("Match(%q) = %s, want no match", tt.subject, got.ID)
			}
			continue
		}
		if !ok || got.ID != tt.want {
			t.Errorf("Match(%q) = %q (%v), want %q", tt.subject, got.ID, ok, tt.want)
		}
	}
}

func TestShippedCatalog(t *testing.T) {
	loader, err := catalog.NewLoader(shippedCatalog)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	tmpl, ok := loader.Match("Medeni Hukuk")
	if !ok {
		t.Fatal("shipped catalog has no civil-law template")
	}
	if len(tmpl.Topics) != 3 || len(tmpl.DailyActivities) != 5 {
		t.Errorf("civil-law template: %d topics, %d days", len(tmpl.Topics), len(tmpl.DailyActivities))
	}
	if tmpl.StudyHours == nil || *tmpl.StudyHours != 14 {
		t.Errorf("StudyHours = %v, want 14", tmpl.StudyHours)
	}
	if len(tmpl.Guidance.Steps) != 4 || len(tmpl.Guidance.ResourcesByLevel["advanced"]) == 0 {
		t.Errorf("Guidance = %+v", tmpl.Guidance)
	}
}

func planRequest(subject, weeks string) ai.CompletionRequest {
	return ai.PromptSpec{
		Task:    ai.TaskPlan,
		Subject: subject,
		Hints:   map[string]string{"weeks": weeks, "daily_hours": "3"},
	}.Request()
}

func TestResponder_TemplatePlan(t *testing.T) {
	loader, err := catalog.NewLoader(setupTestCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	r := catalog.NewResponder(loader)

	resp, err := r.Complete(context.Background(), planRequest("Medeni Hukuk", "3"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Model != "static/civil" {
		t.Errorf("Model = %q", resp.Model)
	}

	drafts, err := plan.ParsePlan(resp.Content)
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(drafts) != 3 {
		t.Fatalf("len(drafts) = %d, want 3", len(drafts))
	}
	for i, d := range drafts {
		if len(d.Topics) != 1 || d.Topics[0].Title != "Kişilik Hakları" {
			t.Errorf("week %d topics = %+v", i+1, d.Topics)
		}
		if len(d.Tips) != 2 || d.Tips[1] != fmt.Sprintf("Week %d: revise.", i+1) {
			t.Errorf("week %d tips = %v", i+1, d.Tips)
		}
	}
}

func TestResponder_GenericPlan(t *testing.T) {
	r := catalog.NewResponder(nil)

	resp, err := r.Complete(context.Background(), planRequest("Organic Chemistry", "2"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	drafts, err := plan.ParsePlan(resp.Content)
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("len(drafts) = %d, want 2", len(drafts))
	}
	d := drafts[1]
	if len(d.Topics) != 1 || !strings.Contains(d.Topics[0].Title, "Organic Chemistry") {
		t.Errorf("Topics = %+v", d.Topics)
	}
	if d.StudyHours == nil || *d.StudyHours != 15 {
		t.Errorf("StudyHours = %v, want 15", d.StudyHours)
	}
	if len(d.Tips) != 1 || !strings.HasPrefix(d.Tips[0], "Week 2:") {
		t.Errorf("Tips = %v", d.Tips)
	}
}

func TestResponder_BadWeekHint(t *testing.T) {
	r := catalog.NewResponder(nil)
	for _, weeks := range []string{"", "zero", "-4"} {
		resp, err := r.Complete(context.Background(), planRequest("Math", weeks))
		if err != nil {
			t.Fatalf("Complete(%q) error = %v", weeks, err)
		}
		drafts, err := plan.ParsePlan(resp.Content)
		if err != nil || len(drafts) != 1 {
			t.Errorf("weeks=%q: %d drafts, err %v", weeks, len(drafts), err)
		}
	}
}

func TestResponder_Insight(t *testing.T) {
	loader, err := catalog.NewLoader(shippedCatalog)
	if err != nil {
		t.Fatal(err)
	}
	r := catalog.NewResponder(loader)

	resp, err := r.Complete(context.Background(), ai.PromptSpec{Task: ai.TaskInsight, Subject: "Medeni Hukuk"}.Request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	var doc struct {
		Topics   []string `json:"topics"`
		Keywords []string `json:"keywords"`
		Level    string   `json:"level"`
		Summary  string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &doc); err != nil {
		t.Fatalf("insight JSON: %v", err)
	}
	if len(doc.Topics) != 3 || len(doc.Keywords) == 0 || doc.Level == "" || doc.Summary == "" {
		t.Errorf("insight = %+v", doc)
	}
	if strings.Contains(doc.Summary, "{topic}") {
		t.Errorf("Summary leaks placeholder: %q", doc.Summary)
	}
}

func TestResponder_CancelledContext(t *testing.T) {
	r := catalog.NewResponder(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Complete(ctx, planRequest("Math", "1")); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() error = %v, want context.Canceled", err)
	}
}

func TestResponder_ThroughAdapter(t *testing.T) {
	a := ai.NewAdapter()
	a.Register(ai.BackendTertiary, "static", catalog.NewResponder(nil))

	raw, err := a.Generate(context.Background(), ai.PromptSpec{Task: ai.TaskPlan, Subject: "Physics", Hints: map[string]string{"weeks": "4"}}, ai.BackendTertiary)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if drafts, err := plan.ParsePlan(raw.Text); err != nil || len(drafts) != 4 {
		t.Errorf("ParsePlan() = %d drafts, err %v", len(drafts), err)
	}
}
