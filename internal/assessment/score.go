// Package assessment scores weekly tests and promotes course levels.
package assessment

import (
	"strings"

	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/plan"
)

// Level thresholds in percent.
const (
	AdvancedThreshold     = 80.0
	IntermediateThreshold = 60.0
)

// Strategy decides whether a single answer counts as correct.
type Strategy interface {
	Correct(q plan.TestQuestion, answer string) bool
}

// PresenceStrategy counts every non-blank answer as correct.
type PresenceStrategy struct{}

func (PresenceStrategy) Correct(_ plan.TestQuestion, answer string) bool {
	return strings.TrimSpace(answer) != ""
}

// AnswerKeyStrategy compares answers with the question's key after case and
// accent folding. Questions without a key fall back to presence.
type AnswerKeyStrategy struct{}

func (AnswerKeyStrategy) Correct(q plan.TestQuestion, answer string) bool {
	answer = strings.TrimSpace(answer)
	key := strings.TrimSpace(q.Answer)
	if key == "" {
		return answer != ""
	}
	return normalize(answer) == normalize(key)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(plan.Fold(s)), " ")
}

// ParseStrategy returns the strategy registered under name.
func ParseStrategy(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "presence":
		return PresenceStrategy{}, true
	case "answer_key", "answer-key":
		return AnswerKeyStrategy{}, true
	}
	return nil, false
}

// Score is the outcome of one test attempt.
type Score struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Grade scores answers positionally against questions. Missing answers count
// as wrong and answers beyond the last question are ignored.
func Grade(questions []plan.TestQuestion, answers []string, s Strategy) Score {
	if s == nil {
		s = PresenceStrategy{}
	}
	score := Score{Total: len(questions)}
	for i, q := range questions {
		if i < len(answers) && s.Correct(q, answers[i]) {
			score.Correct++
		}
	}
	if score.Total > 0 {
		score.Percentage = float64(score.Correct) / float64(score.Total) * 100
	}
	return score
}

// LevelFor maps a percentage to a proficiency level.
func LevelFor(pct float64) course.Level {
	switch {
	case pct >= AdvancedThreshold:
		return course.LevelAdvanced
	case pct >= IntermediateThreshold:
		return course.LevelIntermediate
	default:
		return course.LevelBeginner
	}
}
