package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zxcv8096-dotcom/line-tool/models"
)

// Plan is the static content block a domain contributes to a report.
type Plan struct {
	Label     string
	Actions   []string
	Nutrients []string
}

const (
	maxReportActions   = 3
	maxReportNutrients = 5
)

const reportDisclaimer = "(Note: this is lifestyle nutrition advice, not a promise of results. If you have dietary restrictions or take medication, talk to a professional first.)"

var plans = map[Domain]Plan{
	DomainSleep: {
		Label: "Sleep & relaxation",
		Actions: []string{
			"Dim your screens for the last 60 minutes before bed; swap in music, stretching or a warm shower",
			"Skip caffeine after 2pm; go decaf or a warm drink if you still want one",
			"Get 10-20 minutes of outdoor light after waking so evenings feel sleepier",
		},
		Nutrients: []string{"Magnesium (for winding down)", "B vitamins (daytime energy)", "Glycine (bedtime ritual)", "L-theanine (calmer pace)"},
	},
	DomainFocus: {
		Label: "Energy & focus",
		Actions: []string{
			"Work in 25-minute blocks with 3-5 minute breaks away from the screen",
			"Lead lunch with protein (beans, eggs, meat or dairy) so afternoons dip less",
			"Drink at least 6-8 glasses of water a day, adjusted for your size and activity",
		},
		Nutrients: []string{"B vitamins", "Omega-3", "Magnesium", "Lutein (long screen hours)"},
	},
	DomainMood: {
		Label: "Stress & mood stability",
		Actions: []string{
			"Do two one-minute slow-breathing rounds a day (4 seconds in, 6 out)",
			"Walk or stretch for 10 minutes after dinner to switch out of tension",
			"Trade sugary drinks for unsweetened ones; mood swings usually settle",
		},
		Nutrients: []string{"Magnesium", "Omega-3", "Vitamin C", "B6 (mood metabolism)"},
	},
	DomainGut: {
		Label: "Gut comfort & regularity",
		Actions: []string{
			"Start each meal with a fist of vegetables or add seaweed or mushrooms for fiber",
			"Drink warm water right after waking and keep a fixed bathroom time",
			"When eating out pick a light staple plus protein plus vegetables; go easy on fried food",
		},
		Nutrients: []string{"Probiotics (pick strains that suit you)", "Soluble fiber", "Magnesium (regularity)", "Vitamin D (overall support)"},
	},
	DomainWeight: {
		Label: "Body shape & appetite",
		Actions: []string{
			"Eat protein and vegetables before the starch at dinner; sweet cravings usually drop",
			"Swap the late-night snack for a warm unsweetened drink plus 5 minutes of stretching for 3 days",
			"When snacky, try water, fruit or a small handful of nuts first",
		},
		Nutrients: []string{"Protein (cover every meal first)", "Magnesium", "Chromium (appetite control)", "Dietary fiber"},
	},
	DomainRecovery: {
		Label: "Stamina & recovery",
		Actions: []string{
			"Stretch 3-5 minutes after walks or workouts; next-day stiffness fades",
			"Add protein to every meal so recovery stays steady",
			"Stand and walk 2 minutes for every 60 minutes of sitting",
		},
		Nutrients: []string{"Protein", "Magnesium (cramps and tightness)", "Omega-3", "Vitamin D"},
	},
	DomainDiet: {
		Label: "Eating habits & takeout",
		Actions: []string{
			"When eating out, check for protein first: chicken, fish, tofu or eggs; add one if missing",
			"Cut sugary drinks to unsweetened or half-sugar, starting with 2-3 fewer a week",
			"Get protein at breakfast (eggs, soy milk, yogurt) to avoid the afternoon crash",
		},
		Nutrients: []string{"B vitamins", "Vitamin C", "Dietary fiber", "Omega-3"},
	},
	DomainSkin: {
		Label: "Skin condition & base care",
		Actions: []string{
			"Cover hydration first, sipping through the day; skin usually steadies",
			"Trim sweets and fried food by 2-3 times a week and watch for 14 days",
			"On late nights simplify skincare to cleanse plus moisturize and hold the routine",
		},
		Nutrients: []string{"Vitamin C", "Zinc", "Omega-3", "Collagen (paired with C)"},
	},
	DomainCycle: {
		Label: "Cycle & monthly fluctuation",
		Actions: []string{
			"Fix bedtime within 15-30 minutes the week before your cycle; swings shrink",
			"Keep sweets and sugary drinks to daytime, not evenings",
			"Add warm foods and regular walks around your cycle",
		},
		Nutrients: []string{"Magnesium", "Vitamin B6", "Omega-3", "Iron (if you eat little meat)"},
	},
	DomainImmune: {
		Label: "Immune support & seasonal change",
		Actions: []string{
			"Protect sleep first: a fixed bedtime keeps your resilience steady",
			"Have at least one serving of fruit or two colors of vegetables daily",
			"After crowded places: water, hand washing and a change of clothes",
		},
		Nutrients: []string{"Vitamin D", "Vitamin C", "Zinc", "Probiotics (gut support)"},
	},
	DomainBalance: {
		Label: "Daily rhythm",
		Actions: []string{
			"Steady your sleep schedule and three meals first",
			"Sip water through the day",
			"Get protein with every meal",
		},
		Nutrients: []string{"A balanced diet comes first"},
	},
}

// PlanFor returns the domain's plan, falling back to the balance plan.
func PlanFor(d Domain) Plan {
	if p, ok := plans[d]; ok {
		return p
	}
	return plans[DomainBalance]
}

// RankedDomain pairs a domain with its accumulated score.
type RankedDomain struct {
	Domain Domain
	Score  int
}

// Rank orders domains by score descending. The sort is stable over
// AllDomains, so equal scores keep the fixed enumeration order.
func Rank(scores Scores) []RankedDomain {
	ranked := make([]RankedDomain, 0, len(AllDomains))
	for _, d := range AllDomains {
		ranked = append(ranked, RankedDomain{Domain: d, Score: scores[d]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// BuildReport renders the personalized report for a finished (or replayed)
// session. Deterministic: an unchanged session reproduces the exact bytes.
func BuildReport(survey *models.Survey, sess *models.Session) string {
	title := survey.DisplayTitle()
	ranked := Rank(Score(sess.Answers, sess.FocusArea))

	top1 := ranked[0]
	// A top score this low means the user is mostly fine; suggest upkeep
	// instead of pushing supplements.
	if top1.Score <= 2 {
		return maintenanceReport(title)
	}

	plan1 := PlanFor(top1.Domain)
	var plan2 *Plan
	if len(ranked) > 1 && ranked[1].Score >= 3 {
		p := PlanFor(ranked[1].Domain)
		plan2 = &p
	}

	actions := plan1.Actions
	nutrients := plan1.Nutrients
	if plan2 != nil {
		actions = append(append([]string{}, actions...), plan2.Actions...)
		nutrients = append(append([]string{}, nutrients...), plan2.Nutrients...)
	}
	actions = dedupe(actions, maxReportActions)
	nutrients = dedupe(nutrients, maxReportNutrients)

	focus := "🎯 Top priority: " + plan1.Label
	if plan2 != nil {
		focus += " (secondary: " + plan2.Label + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ [%s]\n\n", title)
	b.WriteString(focus + "\n\n")
	b.WriteString("✅ What you can start today:\n")
	for _, a := range actions {
		b.WriteString("- " + a + "\n")
	}
	b.WriteString("\n🧩 Nutrients worth prioritizing:\n")
	for _, n := range nutrients {
		b.WriteString("- " + n + "\n")
	}
	b.WriteString("\n📌 Reminder: if your diet is already balanced and your routine steady, supplements are optional. Adjust lifestyle first, supplement only when needed.\n\n")
	b.WriteString(reportDisclaimer)
	return b.String()
}

func maintenanceReport(title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ [%s]\n\n", title)
	b.WriteString("🔎 Overall: looking steady (maintenance mode)\n\n")
	b.WriteString("✅ What you can start today:\n")
	b.WriteString("- Your overall state looks stable. No strong need to supplement right now.\n")
	b.WriteString("- Keep a regular schedule, drink enough water and get protein with every meal; that alone maintains it.\n")
	b.WriteString("- Want an extra edge? 10-20 minutes of outdoor light daily plus a 5-10 minute walk after meals steadies energy and sleep.\n\n")
	b.WriteString("🍽️ Nutrients:\n")
	b.WriteString("- Stick with a balanced diet, nothing extra needed; if you eat out a lot, cover vegetables and protein first.\n\n")
	b.WriteString(reportDisclaimer)
	return b.String()
}

// dedupe keeps first-seen order, drops duplicates by trimmed text and caps
// the result.
func dedupe(items []string, max int) []string {
	out := make([]string, 0, max)
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		k := strings.TrimSpace(it)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
		if len(out) == max {
			break
		}
	}
	return out
}
