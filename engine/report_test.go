package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxcv8096-dotcom/line-tool/models"
)

func TestRankStableTieBreak(t *testing.T) {
	scores := make(Scores)
	for _, d := range AllDomains {
		scores[d] = 0
	}

	ranked := Rank(scores)
	require.Len(t, ranked, len(AllDomains))
	for i, d := range AllDomains {
		assert.Equal(t, d, ranked[i].Domain)
	}

	// Equal top scores keep the enumeration order: sleep before focus.
	scores[DomainFocus] = 5
	scores[DomainSleep] = 5
	ranked = Rank(scores)
	assert.Equal(t, DomainSleep, ranked[0].Domain)
	assert.Equal(t, DomainFocus, ranked[1].Domain)
	assert.Equal(t, DomainMood, ranked[2].Domain)
}

func TestBuildReportMaintenanceWhenScoresLow(t *testing.T) {
	survey := &models.Survey{Name: "demo", Title: "Demo Check", Mode: models.ModeBranch}
	sess := &models.Session{
		SurveyName: "demo",
		Answers: []models.Answer{
			{Question: "How well do you fall asleep at night?", Text: "It's okay"},
		},
	}

	report := BuildReport(survey, sess)
	assert.Contains(t, report, "[Demo Check]")
	assert.Contains(t, report, "maintenance mode")
	assert.NotContains(t, report, "Top priority")
}

func TestBuildReportSecondaryThreshold(t *testing.T) {
	survey := &models.Survey{Name: "demo", Title: "Demo Check", Mode: models.ModeBranch}

	// Sleep pronounced, mood pronounced: both plans merge.
	sess := &models.Session{
		SurveyName: "demo",
		Answers: []models.Answer{
			{Question: "How well do you fall asleep at night?", Text: "Very hard"},
			{Question: "How is your mood lately?", Text: "Very frequently tense"},
		},
	}
	report := BuildReport(survey, sess)
	assert.Contains(t, report, "🎯 Top priority: Sleep & relaxation")
	assert.Contains(t, report, "(secondary: Stress & mood stability)")

	// A secondary below 3 stays out of the report.
	sess.Answers[1].Text = "Often tense"
	report = BuildReport(survey, sess)
	assert.Contains(t, report, "🎯 Top priority: Sleep & relaxation")
	assert.NotContains(t, report, "secondary")
}

func TestBuildReportCapsMergedPlans(t *testing.T) {
	survey := &models.Survey{Name: "demo", Mode: models.ModeBranch}
	sess := &models.Session{
		SurveyName: "demo",
		Answers: []models.Answer{
			{Question: "How well do you fall asleep at night?", Text: "Very hard"},
			{Question: "How is your focus and concentration?", Text: "Very frequently scattered"},
		},
	}

	report := BuildReport(survey, sess)
	assert.Equal(t, maxReportActions, strings.Count(section(t, report, "✅ What you can start today:"), "\n- "))
	assert.Equal(t, maxReportNutrients, strings.Count(section(t, report, "🧩 Nutrients worth prioritizing:"), "\n- "))
	assert.Contains(t, report, reportDisclaimer)
}

// section returns the bullet block following the given header.
func section(t *testing.T, report, header string) string {
	t.Helper()
	_, rest, ok := strings.Cut(report, header)
	require.True(t, ok, "header %q missing", header)
	block, _, _ := strings.Cut(rest, "\n\n")
	return block
}

func TestBuildReportIsDeterministic(t *testing.T) {
	survey := &models.Survey{Name: "demo", Title: "Demo Check", Mode: models.ModeBranch}
	sess := &models.Session{
		SurveyName: "demo",
		FocusArea:  "Sleep",
		Answers: []models.Answer{
			{Question: "How well do you fall asleep at night?", Text: "Very hard"},
			{Question: "Do you snack late at night?", Text: "Often"},
		},
	}

	assert.Equal(t, BuildReport(survey, sess), BuildReport(survey, sess))
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{" a ", "b", "a", "c", "b", "d"}, 3)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got = dedupe(nil, 3)
	assert.Empty(t, got)
}

func TestPlanForFallsBackToBalance(t *testing.T) {
	p := PlanFor(Domain("unknown"))
	assert.Equal(t, plans[DomainBalance].Label, p.Label)
}
