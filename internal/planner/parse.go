package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"tripweaver/internal/itinerary"
)

type generatedItinerary struct {
	Days []generatedDay `json:"days"`
}

type generatedDay struct {
	Date          string              `json:"date"`
	Activities    []generatedActivity `json:"activities"`
	Accommodation *generatedStay      `json:"accommodation"`
	MealsBudget   float64             `json:"meals_budget"`
}

type generatedActivity struct {
	Time     string  `json:"time"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Duration string  `json:"duration"`
	Cost     float64 `json:"cost"`
	Notes    string  `json:"notes"`
	URL      string  `json:"url"`
}

type generatedStay struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

var (
	fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	timeRe  = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
)

// parseItinerary turns the raw model reply into itinerary days. The reply is
// untrusted: markdown fences are stripped, the JSON must unmarshal, every day
// needs a parseable date and at least one activity with a valid HH:MM time.
// Anything less is a parse failure, not a partial result. Omitted
// accommodation or meals entries are filled with defaults so a day object is
// never partially populated.
func parseItinerary(raw string, fallbackMeals float64) ([]itinerary.TripDay, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in reply: %w", ErrParse)
	}

	var gen generatedItinerary
	if err := json.Unmarshal([]byte(payload), &gen); err != nil {
		return nil, fmt.Errorf("unmarshaling itinerary: %v: %w", err, ErrParse)
	}
	if len(gen.Days) == 0 {
		return nil, fmt.Errorf("itinerary has no days: %w", ErrParse)
	}

	days := make([]itinerary.TripDay, 0, len(gen.Days))
	for _, gd := range gen.Days {
		date, err := time.Parse("2006-01-02", gd.Date)
		if err != nil {
			return nil, fmt.Errorf("day has bad date %q: %w", gd.Date, ErrParse)
		}
		if len(gd.Activities) == 0 {
			return nil, fmt.Errorf("day %s has no activities: %w", gd.Date, ErrParse)
		}

		day := itinerary.TripDay{
			Date:        gd.Date,
			DayOfWeek:   date.Weekday().String(),
			MealsBudget: gd.MealsBudget,
		}
		for _, ga := range gd.Activities {
			hhmm, ok := normalizeTime(ga.Time)
			if !ok {
				return nil, fmt.Errorf("activity %q has bad time %q: %w", ga.Name, ga.Time, ErrParse)
			}
			if strings.TrimSpace(ga.Name) == "" {
				return nil, fmt.Errorf("day %s has an unnamed activity: %w", gd.Date, ErrParse)
			}
			notes := ga.Notes
			if ga.Cost > 0 {
				notes = strings.TrimSpace(fmt.Sprintf("%s (about $%.0f)", ga.Notes, ga.Cost))
			}
			day.TimeSlots = append(day.TimeSlots, itinerary.Activity{
				Time:     hhmm,
				Activity: strings.TrimSpace(ga.Name),
				Location: strings.TrimSpace(ga.Location),
				Duration: strings.TrimSpace(ga.Duration),
				Notes:    notes,
				URL:      strings.TrimSpace(ga.URL),
			})
		}
		sort.SliceStable(day.TimeSlots, func(i, j int) bool {
			return day.TimeSlots[i].Time < day.TimeSlots[j].Time
		})

		// Never a partially populated day: fill sentinels when omitted.
		if gd.Accommodation != nil && strings.TrimSpace(gd.Accommodation.Name) != "" {
			day.Accommodation = &itinerary.Stay{
				Name: strings.TrimSpace(gd.Accommodation.Name),
				Cost: gd.Accommodation.Cost,
			}
		} else {
			day.Accommodation = &itinerary.Stay{Name: "TBD", Cost: 0}
		}
		if day.MealsBudget <= 0 {
			day.MealsBudget = fallbackMeals
		}

		days = append(days, day)
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// extractJSON pulls the JSON object out of a reply that may wrap it in
// markdown fences or surrounding prose.
func extractJSON(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// normalizeTime validates HH:MM and zero-pads single-digit hours.
func normalizeTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if len(m[1]) == 1 {
		return "0" + s, true
	}
	return s, true
}
