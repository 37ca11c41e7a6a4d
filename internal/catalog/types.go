// Package catalog loads subject templates from YAML and answers generation
// requests from them without any network call.
package catalog

import "github.com/p-n-ai/pai-planner/internal/plan"

// Template is one subject's canned weekly plan.
type Template struct {
	ID      string   `yaml:"id"`
	Subject string   `yaml:"subject"`
	Level   string   `yaml:"level"`
	Match   []string `yaml:"match"`
	// WeekTip is appended to each week's tips with {week} replaced by the week number.
	WeekTip    string   `yaml:"week_tip"`
	Guidance   Guidance `yaml:"guidance"`
	plan.Draft `yaml:",inline"`
}

// Guidance is subject-specific study advice for the topics of a template.
// {topic} in any text is replaced with the topic title by the guidance package.
type Guidance struct {
	Overview           string                     `yaml:"overview"`
	Objectives         []string                   `yaml:"objectives"`
	Prerequisites      []string                   `yaml:"prerequisites"`
	Steps              []Step                     `yaml:"steps"`
	ResourcesByLevel   map[string][]plan.Resource `yaml:"resources_by_level"`
	Exercises          []Exercise                 `yaml:"practice_exercises"`
	CommonMistakes     []string                   `yaml:"common_mistakes"`
	TipsForSuccess     []string                   `yaml:"tips_for_success"`
	AssessmentCriteria []string                   `yaml:"assessment_criteria"`
	NextSteps          []string                   `yaml:"next_steps"`
}

// Exercise is a block of practice work of one kind.
type Exercise struct {
	Type       string `yaml:"type" json:"type"`
	Title      string `yaml:"title" json:"title"`
	Count      int    `yaml:"count" json:"count"`
	Difficulty string `yaml:"difficulty" json:"difficulty"`
}

// Step is one stage of the study path through a topic.
type Step struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Duration    string   `yaml:"duration"`
	Activities  []string `yaml:"activities"`
}

// Keywords returns the folded strings that select this template.
func (t Template) Keywords() []string {
	out := make([]string, 0, len(t.Match)+1)
	if t.Subject != "" {
		out = append(out, plan.Fold(t.Subject))
	}
	for _, m := range t.Match {
		if m != "" {
			out = append(out, plan.Fold(m))
		}
	}
	return out
}
