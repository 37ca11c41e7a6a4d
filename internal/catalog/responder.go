package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

// maxWeeks caps how many weeks the responder will emit for one request.
const maxWeeks = 104

// Responder answers generation requests from the catalog. It is the static
// backend: deterministic, offline, and it only fails on a cancelled context.
type Responder struct {
	loader *Loader
}

// NewResponder creates a responder over l. A nil loader answers every
// subject with the generic plan.
func NewResponder(l *Loader) *Responder {
	return &Responder{loader: l}
}

type weekDoc struct {
	WeekNumber int `json:"week_number"`
	plan.Draft
}

type insightDoc struct {
	Topics   []string `json:"topics"`
	Keywords []string `json:"keywords"`
	Level    string   `json:"level"`
	Summary  string   `json:"summary"`
}

// Complete implements ai.Provider.
func (r *Responder) Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return ai.CompletionResponse{}, err
	}

	subject := strings.TrimSpace(req.Hints["subject"])
	tmpl, matched := r.loader.Match(subject)
	model := "static/generic"
	if matched {
		model = "static/" + tmpl.ID
	}

	var doc any
	switch req.Task {
	case ai.TaskInsight:
		doc = r.insight(subject, tmpl, matched)
	default:
		weeks := weekHint(req.Hints["weeks"])
		daily := hoursHint(req.Hints["daily_hours"])
		out := make([]weekDoc, 0, weeks)
		for n := 1; n <= weeks; n++ {
			if matched {
				out = append(out, weekDoc{WeekNumber: n, Draft: templateWeek(tmpl, n)})
			} else {
				out = append(out, weekDoc{WeekNumber: n, Draft: genericWeek(subject, n, daily)})
			}
		}
		doc = map[string]any{"weeks": out}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return ai.CompletionResponse{}, fmt.Errorf("encoding static response: %w", err)
	}
	return ai.CompletionResponse{Content: string(body), Model: model}, nil
}

func (r *Responder) insight(subject string, tmpl Template, matched bool) insightDoc {
	if !matched {
		if subject == "" {
			subject = "General"
		}
		return insightDoc{
			Topics:   []string{subject},
			Keywords: []string{plan.Fold(subject)},
			Level:    "intermediate",
			Summary:  fmt.Sprintf("Study material for %s.", subject),
		}
	}
	doc := insightDoc{
		Keywords: append([]string(nil), tmpl.Match...),
		Level:    tmpl.Level,
		Summary:  strings.TrimSpace(tmpl.Guidance.Overview),
	}
	for _, t := range tmpl.Topics {
		doc.Topics = append(doc.Topics, t.Title)
	}
	if doc.Level == "" {
		doc.Level = "intermediate"
	}
	if doc.Summary == "" || strings.Contains(doc.Summary, "{topic}") {
		doc.Summary = fmt.Sprintf("Study material for %s.", tmpl.Subject)
	}
	return doc
}

// templateWeek copies the template's week and appends the week-numbered tip.
func templateWeek(t Template, week int) plan.Draft {
	d := plan.Draft{
		Topics:          append([]plan.Topic(nil), t.Topics...),
		DailyActivities: append([]plan.DailyActivity(nil), t.DailyActivities...),
		StudyHours:      t.StudyHours,
		Tips:            append([]string(nil), t.Tips...),
	}
	if t.WeekTip != "" {
		d.Tips = append(d.Tips, strings.ReplaceAll(t.WeekTip, "{week}", strconv.Itoa(week)))
	}
	return d
}

var genericDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

func genericWeek(subject string, week int, daily float64) plan.Draft {
	if subject == "" {
		subject = "General"
	}
	duration := strconv.FormatFloat(daily, 'f', -1, 64) + " hours"
	days := make([]plan.DailyActivity, 0, len(genericDays))
	for i, day := range genericDays {
		a := plan.Activity{Type: plan.ActivityReading, Description: fmt.Sprintf("Study %s notes", subject), Duration: duration}
		switch i {
		case 2:
			a = plan.Activity{Type: plan.ActivityPractice, Description: fmt.Sprintf("Solve %s practice problems", subject), Duration: duration}
		case 4:
			a = plan.Activity{Type: plan.ActivityReview, Description: fmt.Sprintf("Review the week's %s material", subject), Duration: duration}
		}
		days = append(days, plan.DailyActivity{Day: day, Activities: []plan.Activity{a}})
	}
	hours := daily * float64(len(genericDays))
	return plan.Draft{
		Topics: []plan.Topic{{
			Title:     subject + " fundamentals",
			Resources: []plan.Resource{{Type: plan.ResourceDocument, Title: subject + " course notes", Duration: duration}},
			TestQuestions: []plan.TestQuestion{
				{Question: fmt.Sprintf("What are the core concepts of %s?", subject), Difficulty: plan.DifficultyEasy},
				{Question: fmt.Sprintf("How do those concepts relate to each other in %s?", subject), Difficulty: plan.DifficultyMedium},
			},
		}},
		DailyActivities: days,
		StudyHours:      &hours,
		Tips:            []string{fmt.Sprintf("Week %d: review your notes from earlier weeks before starting new material.", week)},
	}
}

func weekHint(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxWeeks)
}

func hoursHint(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 2
	}
	return f
}
