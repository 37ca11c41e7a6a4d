package plan_test

import (
	"testing"

	"github.com/p-n-ai/pai-planner/internal/plan"
)

func TestTopicID(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Kişilik Hakları", "kisilik-haklari"},
		{"KİŞİLİK HAKLARI", "kisilik-haklari"},
		{"Medeni Hukuk Temel Kavramlar", "medeni-hukuk-temel-kavramlar"},
		{"Aile Hukuku", "aile-hukuku"},
		{"Eşya Hukuku: Zilyetlik & Tapu", "esya-hukuku-zilyetlik-tapu"},
		{"  Çocuk   Öğrenme  ", "cocuk-ogrenme"},
		{"Week 3 — Review!", "week-3-review"},
		{"", "topic"},
		{"!!!", "topic"},
	}
	for _, tt := range tests {
		if got := plan.TopicID(tt.title); got != tt.want {
			t.Errorf("TopicID(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestTopicID_Deterministic(t *testing.T) {
	first := plan.TopicID("Kişilik Hakları")
	second := plan.TopicID("Kişilik Hakları")
	if first != second {
		t.Fatalf("TopicID not stable: %q vs %q", first, second)
	}
	// Decomposed input folds to the same bytes.
	if got := plan.TopicID("Kis\u0327ilik Hakları"); got != first {
		t.Errorf("TopicID(decomposed) = %q, want %q", got, first)
	}
}

func TestFold(t *testing.T) {
	if got := plan.Fold("İSTANBUL ığdır"); got != "istanbul igdir" {
		t.Errorf("Fold() = %q, want %q", got, "istanbul igdir")
	}
}

func samplePlan() plan.WeeklyPlan {
	p := plan.WeeklyPlan{
		CourseID:   "11111111-1111-1111-1111-111111111111",
		WeekNumber: 2,
		Topics: []plan.Topic{
			{Title: "Kişilik Hakları", TestQuestions: []plan.TestQuestion{{Question: "q1"}, {Question: "q2"}}},
			{Title: "Aile Hukuku", TestQuestions: []plan.TestQuestion{{Question: "q3"}}},
		},
		DailyActivities: []plan.DailyActivity{
			{Day: "Pazartesi", Activities: []plan.Activity{
				{Type: "video", Description: "Medeni hukuk temel kavramlar videosu izle"},
				{Type: "reading", Description: "Medeni Kanun maddelerini oku"},
			}},
			{Day: "Salı", Activities: []plan.Activity{
				{Type: "practice", Description: "Kişilik hakları soruları çöz"},
			}},
		},
	}
	plan.AssignActivityIDs(&p, 20)
	return p
}

func TestFindTopic(t *testing.T) {
	p := samplePlan()
	topic, ok := plan.FindTopic(p, "aile-hukuku")
	if !ok {
		t.Fatal("FindTopic(aile-hukuku) not found")
	}
	if topic.Title != "Aile Hukuku" {
		t.Errorf("Title = %q", topic.Title)
	}
	if _, ok := plan.FindTopic(p, "esya-hukuku"); ok {
		t.Error("FindTopic(esya-hukuku) should not match")
	}
}

func TestTestQuestions(t *testing.T) {
	qs := plan.TestQuestions(samplePlan())
	if len(qs) != 3 {
		t.Fatalf("len = %d, want 3", len(qs))
	}
	if qs[0].Question != "q1" || qs[2].Question != "q3" {
		t.Errorf("questions out of topic order: %+v", qs)
	}
}

func TestLegacyActivityKey(t *testing.T) {
	a := plan.Activity{Type: "video", Description: "Medeni hukuk temel kavramlar videosu izle"}
	got := plan.LegacyActivityKey("Pazartesi", a, 20)
	if got != "Pazartesi_video_Medeni hukuk temel k" {
		t.Errorf("LegacyActivityKey() = %q", got)
	}

	// Prefix counts runes, not bytes.
	b := plan.Activity{Type: "practice", Description: "Kişilik hakları soruları çöz"}
	if got := plan.LegacyActivityKey("Salı", b, 8); got != "Salı_practice_Kişilik " {
		t.Errorf("LegacyActivityKey(runes) = %q", got)
	}
}

func TestAssignActivityIDs(t *testing.T) {
	p := samplePlan()
	again := samplePlan()

	ids := map[string]bool{}
	for d, day := range p.DailyActivities {
		for i, a := range day.Activities {
			if a.ID == "" {
				t.Fatalf("activity %d/%d has no ID", d, i)
			}
			if a.ID != again.DailyActivities[d].Activities[i].ID {
				t.Errorf("ID not deterministic for %q", a.Description)
			}
			ids[a.ID] = true
		}
	}
	if len(ids) != 3 {
		t.Errorf("distinct IDs = %d, want 3", len(ids))
	}
}

func TestAssignActivityIDs_DuplicateKeys(t *testing.T) {
	p := plan.WeeklyPlan{
		CourseID:   "c",
		WeekNumber: 1,
		DailyActivities: []plan.DailyActivity{{Day: "Monday", Activities: []plan.Activity{
			{Type: "review", Description: "Review the notes of this week"},
			{Type: "review", Description: "Review the notes of this week again"},
		}}},
	}
	plan.AssignActivityIDs(&p, 20)
	acts := p.DailyActivities[0].Activities
	if acts[0].ID == acts[1].ID {
		t.Fatalf("activities sharing a legacy key got the same ID %q", acts[0].ID)
	}
}

func TestAssignActivityIDs_ScopedByWeek(t *testing.T) {
	p := samplePlan()
	other := samplePlan()
	other.WeekNumber = 3
	plan.AssignActivityIDs(&other, 20)
	if p.DailyActivities[0].Activities[0].ID == other.DailyActivities[0].Activities[0].ID {
		t.Error("same activity in different weeks should get different IDs")
	}
}

func TestResolveActivity(t *testing.T) {
	p := samplePlan()
	stored := p.DailyActivities[1].Activities[0].ID

	a, canonical, ok := plan.ResolveActivity(p, stored, 20)
	if !ok || canonical != stored || a.Type != "practice" {
		t.Errorf("ResolveActivity(stored) = %+v, %q, %v", a, canonical, ok)
	}

	legacy := plan.LegacyActivityKey("Salı", p.DailyActivities[1].Activities[0], 20)
	a, canonical, ok = plan.ResolveActivity(p, legacy, 20)
	if !ok || canonical != stored {
		t.Errorf("ResolveActivity(legacy) = %+v, %q, %v; want canonical %q", a, canonical, ok, stored)
	}

	if _, _, ok := plan.ResolveActivity(p, "nope", 20); ok {
		t.Error("ResolveActivity(nope) should fail")
	}
	if _, _, ok := plan.ResolveActivity(p, "", 20); ok {
		t.Error("ResolveActivity(empty) should fail")
	}
}
