package engine

import (
	"strings"

	"github.com/zxcv8096-dotcom/line-tool/models"
)

// Domain is a wellness category answers are bucketed into for scoring.
type Domain string

const (
	DomainSleep    Domain = "sleep"
	DomainFocus    Domain = "focus"
	DomainMood     Domain = "mood"
	DomainGut      Domain = "gut"
	DomainWeight   Domain = "weight"
	DomainRecovery Domain = "recovery"
	DomainDiet     Domain = "diet"
	DomainSkin     Domain = "skin"
	DomainCycle    Domain = "cycle"
	DomainImmune   Domain = "immune"
	DomainBalance  Domain = "balance"
)

// AllDomains fixes the enumeration order. Ranking ties break on this order,
// which keeps report regeneration byte-stable.
var AllDomains = []Domain{
	DomainSleep,
	DomainFocus,
	DomainMood,
	DomainGut,
	DomainWeight,
	DomainRecovery,
	DomainDiet,
	DomainSkin,
	DomainCycle,
	DomainImmune,
	DomainBalance,
}

// Scores maps each domain to its accumulated severity. Always transient;
// recomputed from the full answer trail on every report build.
type Scores map[Domain]int

// domainTriggers routes a question's text to the domains it informs. The
// tables are data: swapping the heuristic means editing phrases, not flow.
var domainTriggers = map[Domain][]string{
	DomainSleep:    {"fall asleep", "bedtime", "wake up", "middle of the night", "before bed", "sleepy during the day", "wind down"},
	DomainFocus:    {"focus", "concentration", "afternoon energy", "coffee", "eye strain", "screen"},
	DomainMood:     {"mood", "stress", "tense", "irritable", "feeling low", "impatient", "deep breathing", "meditation"},
	DomainGut:      {"bowel", "bloating", "after meals", "digestion", "stomach"},
	DomainWeight:   {"body shape", "appetite", "snack", "dessert", "late-night eating", "buffet", "eating speed"},
	DomainRecovery: {"activity level", "recovery", "cramp", "sitting for long", "stamina", "protein", "exercise", "workout"},
	DomainDiet:     {"eating out", "vegetable", "fruit", "sugary", "three meals", "breakfast", "portion", "beverage"},
	DomainSkin:     {"skin", "dryness", "oily", "dull", "rough", "moisture"},
	DomainCycle:    {"cycle", "fluctuation", "water retention", "premenstrual", "easily tired", "emotionally sensitive"},
	DomainImmune:   {"season change", "crowded places", "immune", "seasonal"},
}

// hydrationTriggers is handled separately: poor hydration feeds several
// domains at half weight instead of scoring its own bucket.
var hydrationTriggers = []string{"water intake", "drinking water", "hydration"}

var hydrationSpill = []Domain{DomainSleep, DomainFocus, DomainGut, DomainSkin}

// severityTiers classifies an answer's text into 3 (pronounced), 2
// (moderate) or 1 (mild). No match scores 0.
var severityTiers = []struct {
	score   int
	phrases []string
}{
	{3, []string{"very frequently", "very noticeable", "almost every day", "all day", "after 2am", "three days or more", "very irregular", "rarely", "very hard", "toss and turn"}},
	{2, []string{"often", "on the low side", "easily", "need coffee", "takes real effort", "too full", "feel sleepy", "keeps dipping", "eat out and snack late"}},
	{1, []string{"occasionally", "average", "it's okay", "a few times a week", "about half", "10-30 minutes", "every other day", "a bit heavy"}},
}

// focusQuestionPhrases identifies the dedicated "which area do you most want
// to improve first" question; its first answer becomes the session's focus
// area.
var focusQuestionPhrases = []string{"most want to improve"}

var focusAreaDomains = map[Domain][]string{
	DomainSleep:    {"sleep", "relax"},
	DomainFocus:    {"energy", "focus"},
	DomainMood:     {"stress", "mood"},
	DomainGut:      {"gut", "digestion", "bowel"},
	DomainWeight:   {"body shape", "appetite"},
	DomainRecovery: {"stamina", "recovery"},
	DomainDiet:     {"diet", "eating out"},
	DomainSkin:     {"skin"},
	DomainCycle:    {"cycle", "women"},
	DomainImmune:   {"immune", "season"},
}

// Score accumulates domain severities from the answer trail plus the flat
// focus-area bonus. Pure: identical input always yields identical scores.
func Score(answers []models.Answer, focusArea string) Scores {
	s := make(Scores, len(AllDomains))
	for _, d := range AllDomains {
		s[d] = 0
	}

	for _, a := range answers {
		sev := severity(a.Text)
		for _, d := range AllDomains {
			if containsAny(a.Question, domainTriggers[d]) {
				s[d] += sev
			}
		}
		if containsAny(a.Question, hydrationTriggers) {
			for _, d := range hydrationSpill {
				s[d] += sev / 2
			}
		}
	}

	if focusArea != "" {
		if d, ok := MapFocusArea(focusArea); ok {
			s[d]++
		}
	}
	return s
}

func severity(answer string) int {
	for _, tier := range severityTiers {
		if containsAny(answer, tier.phrases) {
			return tier.score
		}
	}
	return 0
}

// IsFocusQuestion reports whether a prompt is the priority-direction
// question.
func IsFocusQuestion(prompt string) bool {
	return containsAny(prompt, focusQuestionPhrases)
}

// MapFocusArea maps the user's stated priority to a domain.
func MapFocusArea(text string) (Domain, bool) {
	for _, d := range AllDomains {
		if containsAny(text, focusAreaDomains[d]) {
			return d, true
		}
	}
	return "", false
}

func containsAny(s string, phrases []string) bool {
	low := strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}
