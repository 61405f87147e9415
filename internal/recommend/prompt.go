package recommend

import (
	"fmt"
	"strings"

	"github.com/bargn/bargn/pkg/models"
)

const systemPrompt = `You are a conversion rate optimization expert for e-commerce and SaaS funnels. ` +
	`You read funnel analytics and give concrete, prioritized recommendations that a product team can act on this week. ` +
	`Be specific and refer to the numbers you were given.`

func buildPrompt(snapshot models.FunnelSnapshot, steps []models.DropOffStep, cohorts []models.CohortSummary, windowDays int) string {
	var b strings.Builder

	b.WriteString("Analyze the following conversion funnel and recommend improvements.\n\n")
	fmt.Fprintf(&b, "Funnel: %s\n", snapshot.FunnelName)
	fmt.Fprintf(&b, "Completion rate: %.1f%%\n", snapshot.CompletionRate)
	fmt.Fprintf(&b, "Total entries: %d\n", snapshot.TotalEntries)
	fmt.Fprintf(&b, "Completions: %d\n", snapshot.Completions)

	fmt.Fprintf(&b, "\nStep drop-off (last %d days):\n", windowDays)
	if len(steps) == 0 {
		b.WriteString("No step activity recorded in this window.\n")
	}
	for _, s := range steps {
		fmt.Fprintf(&b, "%d. %s: %d sessions, %.1f%% drop-off from previous step\n",
			s.StepNumber, s.StepName, s.SessionsReached, s.DropOffRate)
	}

	for _, summary := range cohorts {
		fmt.Fprintf(&b, "\nCohorts by %s:\n", summary.Type)
		if len(summary.Cohorts) == 0 {
			b.WriteString("- no entries\n")
			continue
		}
		for _, c := range summary.Cohorts {
			fmt.Fprintf(&b, "- %s: %.1f%% conversion, %d entries\n", c.CohortName, c.CompletionRate, c.TotalEntries)
		}
	}

	b.WriteString("\nRespond with a numbered list of 5-7 recommendations ordered by expected impact. ")
	b.WriteString("For each recommendation give:\n")
	b.WriteString("- Issue: what the data shows\n")
	b.WriteString("- Impact: why it matters for conversion\n")
	b.WriteString("- Action: the specific change to make\n")
	return b.String()
}
