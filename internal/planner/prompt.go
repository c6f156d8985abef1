package planner

import (
	"fmt"
	"strings"

	"tripweaver/internal/conversation"
)

const itinerarySystemPrompt = `You are a travel planning engine. You respond
with a single JSON object and nothing else: no prose, no markdown fences.`

const followUpSystemPrompt = `You are a friendly travel assistant collecting
trip details one at a time. The user's last answer did not contain the detail
being asked for. If you can infer the detail, restate it plainly in one
sentence. Otherwise ask one short clarifying question. Never ask about more
than one detail at once.`

const itinerarySchema = `{
  "days": [
    {
      "date": "YYYY-MM-DD",
      "activities": [
        {
          "time": "HH:MM",
          "name": "activity name",
          "location": "where it happens",
          "duration": "2 hours",
          "cost": 25,
          "notes": "one helpful sentence"
        }
      ],
      "accommodation": {"name": "where to stay this night", "cost": 120},
      "meals_budget": 60
    }
  ]
}`

// buildItineraryPrompt renders the confirmed draft into the generation
// request. It must communicate duration, per-person and total budget, the
// preference list, geographic clustering, time-of-day scheduling, and the
// exact output schema.
func buildItineraryPrompt(draft conversation.TripDraft, transcript []conversation.Message) string {
	var b strings.Builder

	days := draft.DurationDays()
	fmt.Fprintf(&b, "Plan a %d-day trip to %s", days, draft.Destination)
	if draft.Dates != nil {
		fmt.Fprintf(&b, " from %s to %s",
			draft.Dates.Start.Format("2006-01-02"), draft.Dates.End.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, " for %d traveller(s).\n", draft.PartySize)

	total := draft.BudgetPerPerson * float64(draft.PartySize)
	fmt.Fprintf(&b, "Budget: $%.0f per person, $%.0f total for the group.\n",
		draft.BudgetPerPerson, total)

	if len(draft.Accommodation) > 0 {
		fmt.Fprintf(&b, "Accommodation preference: %s.\n", strings.Join(draft.Accommodation, ", "))
	}
	if len(draft.Activities) > 0 {
		fmt.Fprintf(&b, "Activity interests: %s.\n", strings.Join(draft.Activities, ", "))
	}
	if draft.Pace != "" {
		fmt.Fprintf(&b, "Pace: %s.\n", draft.Pace)
	}

	b.WriteString("Cluster each day's activities geographically so travellers are not " +
		"criss-crossing the city. Schedule activities at sensible times of day " +
		"(sightseeing in the morning, meals at mealtimes, nightlife in the evening).\n")
	b.WriteString("Every day must include an accommodation entry and a meals_budget.\n")

	if notes := userNotes(transcript); notes != "" {
		fmt.Fprintf(&b, "Additional context from the conversation:\n%s\n", notes)
	}

	fmt.Fprintf(&b, "Respond with exactly this JSON shape:\n%s\n", itinerarySchema)
	return b.String()
}

// userNotes condenses the user's side of the transcript so free-text wishes
// that never mapped to a slot still reach the generator.
func userNotes(transcript []conversation.Message) string {
	var lines []string
	for _, m := range transcript {
		if m.Role == conversation.RoleUser {
			lines = append(lines, "- "+m.Text)
		}
	}
	return strings.Join(lines, "\n")
}
