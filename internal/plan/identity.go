package plan

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultActivityPrefixLen is how many runes of an activity description go
// into its legacy key.
const DefaultActivityPrefixLen = 20

// activityNamespace scopes the v5 UUIDs minted for activities.
var activityNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://pai.dev/planner/activity"))

// Fold lowercases s with Turkish casing rules, maps dotless ı to i and strips
// combining marks, so "KİŞİLİK", "Kişilik" and "kisilik" fold alike.
func Fold(s string) string {
	// Casers and transform chains hold state; build them per call.
	lower := cases.Lower(language.Turkish).String(s)
	lower = strings.ReplaceAll(lower, "ı", "i")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}

// TopicID derives the deep-link identifier of a topic from its title alone.
// Letters and digits are kept after folding, every other run of characters
// becomes a single hyphen.
func TopicID(title string) string {
	var b strings.Builder
	pending := false
	for _, r := range Fold(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "topic"
	}
	return b.String()
}

// FindTopic returns the topic of p whose TopicID equals id.
func FindTopic(p WeeklyPlan, id string) (Topic, bool) {
	for _, t := range p.Topics {
		if TopicID(t.Title) == id {
			return t, true
		}
	}
	return Topic{}, false
}

// LegacyActivityKey is the content-derived activity identifier:
// day, type and the first n runes of the description joined by underscores.
func LegacyActivityKey(day string, a Activity, n int) string {
	if n <= 0 {
		n = DefaultActivityPrefixLen
	}
	desc := []rune(a.Description)
	if len(desc) > n {
		desc = desc[:n]
	}
	return day + "_" + a.Type + "_" + string(desc)
}

// ActivityID mints the stored identifier for an activity. It is a pure
// function of the course, week and legacy key.
func ActivityID(courseID string, week int, legacyKey string) string {
	name := courseID + "\x00" + strconv.Itoa(week) + "\x00" + legacyKey
	return uuid.NewSHA1(activityNamespace, []byte(name)).String()
}

// AssignActivityIDs gives every activity in p its stored ID. Activities that
// share a legacy key within the week are told apart with #2, #3 suffixes.
func AssignActivityIDs(p *WeeklyPlan, prefixLen int) {
	seen := make(map[string]int)
	for d := range p.DailyActivities {
		day := &p.DailyActivities[d]
		for i := range day.Activities {
			key := LegacyActivityKey(day.Day, day.Activities[i], prefixLen)
			seen[key]++
			if n := seen[key]; n > 1 {
				key += "#" + strconv.Itoa(n)
			}
			day.Activities[i].ID = ActivityID(p.CourseID, p.WeekNumber, key)
		}
	}
}

// ResolveActivity finds an activity in p by its stored ID or by its legacy key.
// It returns the activity and its canonical stored ID.
func ResolveActivity(p WeeklyPlan, id string, prefixLen int) (Activity, string, bool) {
	if id == "" {
		return Activity{}, "", false
	}
	for _, day := range p.DailyActivities {
		for _, a := range day.Activities {
			if a.ID == id {
				return a, a.ID, true
			}
		}
	}
	for _, day := range p.DailyActivities {
		for _, a := range day.Activities {
			if LegacyActivityKey(day.Day, a, prefixLen) == id {
				return a, a.ID, true
			}
		}
	}
	return Activity{}, "", false
}

// Activities returns every activity of the week in day order.
func Activities(p WeeklyPlan) []Activity {
	var out []Activity
	for _, day := range p.DailyActivities {
		out = append(out, day.Activities...)
	}
	return out
}

// TestQuestions collects the week's questions in topic order.
func TestQuestions(p WeeklyPlan) []TestQuestion {
	var out []TestQuestion
	for _, t := range p.Topics {
		out = append(out, t.TestQuestions...)
	}
	return out
}

// dedupeTopicTitles suffixes repeated titles so TopicID stays unique in a week.
func dedupeTopicTitles(topics []Topic) {
	used := make(map[string]bool, len(topics))
	for i := range topics {
		base := topics[i].Title
		title := base
		for n := 2; used[TopicID(title)]; n++ {
			title = base + " (" + strconv.Itoa(n) + ")"
		}
		topics[i].Title = title
		used[TopicID(title)] = true
	}
}
