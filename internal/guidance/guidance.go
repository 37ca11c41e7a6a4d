// Package guidance builds level-aware study advice for one topic of a plan.
package guidance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/p-n-ai/pai-planner/internal/catalog"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

// Step is one stage of the study path.
type Step struct {
	Number      int      `json:"step"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    string   `json:"duration"`
	Activities  []string `json:"activities"`
}

// Guidance is the advice page for a topic.
type Guidance struct {
	TopicID            string              `json:"topic_id"`
	Title              string              `json:"title"`
	Week               int                 `json:"week_number"`
	Level              string              `json:"level"`
	Overview           string              `json:"overview"`
	Objectives         []string            `json:"learning_objectives"`
	Prerequisites      []string            `json:"prerequisites"`
	Steps              []Step              `json:"step_by_step"`
	Resources          []plan.Resource     `json:"resources"`
	Exercises          []catalog.Exercise  `json:"practice_exercises"`
	Questions          []plan.TestQuestion `json:"questions"`
	CommonMistakes     []string            `json:"common_mistakes"`
	TipsForSuccess     []string            `json:"tips_for_success"`
	AssessmentCriteria []string            `json:"assessment_criteria"`
	NextSteps          []string            `json:"next_steps"`
}

// Builder produces guidance from catalog templates, falling back to generic
// advice for subjects the catalog does not cover.
type Builder struct {
	catalog *catalog.Loader
}

// NewBuilder creates a builder. l may be nil.
func NewBuilder(l *catalog.Loader) *Builder {
	return &Builder{catalog: l}
}

// resource type order per level, most useful first.
var resourceOrder = map[course.Level][]string{
	course.LevelBeginner:     {plan.ResourceVideo, plan.ResourceArticle, plan.ResourceDocument, plan.ResourcePractice, plan.ResourceCase, plan.ResourceResearch},
	course.LevelIntermediate: {plan.ResourceArticle, plan.ResourceCase, plan.ResourcePractice, plan.ResourceVideo, plan.ResourceDocument, plan.ResourceResearch},
	course.LevelAdvanced:     {plan.ResourceResearch, plan.ResourceCase, plan.ResourceArticle, plan.ResourcePractice, plan.ResourceDocument, plan.ResourceVideo},
}

var questionOrder = map[course.Level][]string{
	course.LevelBeginner:     {plan.DifficultyEasy, plan.DifficultyMedium, plan.DifficultyHard},
	course.LevelIntermediate: {plan.DifficultyMedium, plan.DifficultyHard, plan.DifficultyEasy},
	course.LevelAdvanced:     {plan.DifficultyHard, plan.DifficultyMedium, plan.DifficultyEasy},
}

// ForTopic builds guidance for topic in the given week of c.
func (b *Builder) ForTopic(c course.Course, topic plan.Topic, week int) Guidance {
	g := Guidance{
		TopicID: plan.TopicID(topic.Title),
		Title:   topic.Title,
		Week:    week,
		Level:   c.Level.String(),
	}

	src, ok := b.catalog.Match(c.Subject)
	if !ok || src.Guidance.Overview == "" {
		src = catalog.Template{Guidance: generic(c)}
	}
	fill := func(s string) string { return strings.ReplaceAll(s, "{topic}", topic.Title) }
	fillAll := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, fill(s))
		}
		return out
	}

	tg := src.Guidance
	g.Overview = fill(tg.Overview)
	g.Objectives = fillAll(tg.Objectives)
	g.Prerequisites = fillAll(tg.Prerequisites)
	g.CommonMistakes = fillAll(tg.CommonMistakes)
	g.TipsForSuccess = fillAll(tg.TipsForSuccess)
	g.AssessmentCriteria = fillAll(tg.AssessmentCriteria)
	g.NextSteps = fillAll(tg.NextSteps)
	g.Exercises = exercisesFor(c.Level, tg.Exercises)

	steps := tg.Steps
	if c.Level == course.LevelAdvanced && len(steps) > 1 {
		steps = steps[1:]
	}
	g.Steps = make([]Step, 0, len(steps))
	for i, s := range steps {
		g.Steps = append(g.Steps, Step{
			Number:      i + 1,
			Title:       fill(s.Title),
			Description: fill(s.Description),
			Duration:    s.Duration,
			Activities:  fillAll(s.Activities),
		})
	}

	resources := append([]plan.Resource(nil), topic.Resources...)
	for _, r := range tg.ResourcesByLevel[c.Level.String()] {
		r.Title = fill(r.Title)
		resources = append(resources, r)
	}
	g.Resources = orderBy(resources, resourceOrder[c.Level], func(r plan.Resource) string { return r.Type })
	g.Questions = orderBy(append([]plan.TestQuestion(nil), topic.TestQuestions...), questionOrder[c.Level],
		func(q plan.TestQuestion) string { return q.Difficulty })

	return g
}

// exercisesFor drops the easiest exercise blocks for advanced learners and
// the hardest ones for beginners.
func exercisesFor(level course.Level, in []catalog.Exercise) []catalog.Exercise {
	out := []catalog.Exercise{}
	for _, e := range in {
		switch {
		case level == course.LevelBeginner && e.Difficulty == plan.DifficultyHard:
			continue
		case level == course.LevelAdvanced && e.Difficulty == plan.DifficultyEasy:
			continue
		}
		out = append(out, e)
	}
	return out
}

// orderBy stable-sorts items by the position of key(item) in order.
// Unknown keys sort last.
func orderBy[T any](items []T, order []string, key func(T) string) []T {
	rank := make(map[string]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	pos := func(t T) int {
		if r, ok := rank[key(t)]; ok {
			return r
		}
		return len(order)
	}
	sort.SliceStable(items, func(i, j int) bool { return pos(items[i]) < pos(items[j]) })
	if items == nil {
		return []T{}
	}
	return items
}

func generic(c course.Course) catalog.Guidance {
	return catalog.Guidance{
		Overview: fmt.Sprintf("{topic} is part of your %s preparation. Work through it step by step and check yourself with the week's questions.", c.Subject),
		Objectives: []string{
			"Define the key concepts of {topic}",
			"Explain how {topic} connects to the rest of " + c.Subject,
			"Answer exam-style questions on {topic}",
		},
		Prerequisites: []string{"Notes from the previous weeks"},
		Steps: []catalog.Step{
			{Title: "Learn the basics", Description: "Read an introduction to {topic} and list its key terms", Duration: "1 hour", Activities: []string{"Reading", "Making a glossary"}},
			{Title: "Study in depth", Description: "Work through the main material on {topic}", Duration: "2 hours", Activities: []string{"Video lectures", "Note taking"}},
			{Title: "Practice", Description: "Solve problems and worked examples", Duration: "2 hours", Activities: []string{"Practice questions"}},
			{Title: "Review", Description: "Test yourself and revisit weak points", Duration: "1 hour", Activities: []string{"Self-test", "Revision"}},
		},
		Exercises: []catalog.Exercise{
			{Type: "multiple_choice", Title: "Multiple choice questions", Count: 15, Difficulty: plan.DifficultyEasy},
			{Type: "problem_solving", Title: "Problem solving", Count: 5, Difficulty: plan.DifficultyMedium},
			{Type: "essay", Title: "Open questions", Count: 2, Difficulty: plan.DifficultyHard},
		},
		CommonMistakes:     []string{"Memorising definitions without examples", "Skipping review sessions"},
		TipsForSuccess:     []string{"Study a little every day", "Explain {topic} in your own words"},
		AssessmentCriteria: []string{"Correct definitions", "Applying concepts to problems"},
		NextSteps:          []string{"Move on once the week's questions feel easy"},
	}
}
