package itinerary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ManualEdit overwrites selected fields of one existing slot, addressed by
// (date, index into the day's sorted slot list). Nil fields are left alone.
type ManualEdit struct {
	Date      string
	SlotIndex int
	Patch     ActivityPatch
}

// ActivityPatch carries the fields a manual edit may change.
type ActivityPatch struct {
	Time     *string `json:"time,omitempty"`
	Activity *string `json:"activity,omitempty"`
	Location *string `json:"location,omitempty"`
	Duration *string `json:"duration,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	URL      *string `json:"url,omitempty"`
}

// CalendarEvent is one entry of a calendar-driven batch. The batch is
// day-authoritative: for every day it covers, slots not represented among the
// batch's events are removed.
type CalendarEvent struct {
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
	Notes    string    `json:"notes,omitempty"`
	URL      string    `json:"url,omitempty"`
}

func (e CalendarEvent) date() string { return e.Start.Format("2006-01-02") }
func (e CalendarEvent) slot() string { return e.Start.Format("15:04") }

func (e CalendarEvent) key() string {
	return e.slot() + "|" + strings.ToLower(strings.TrimSpace(e.Title))
}

// ErrSlotNotFound is returned when a manual edit addresses a day or slot index
// that does not exist on the trip.
type ErrSlotNotFound struct {
	Date  string
	Index int
}

func (e ErrSlotNotFound) Error() string {
	return fmt.Sprintf("no slot %d on day %s", e.Index, e.Date)
}

// normalize restores the per-day invariants after a mutation: no two slots
// share a (time, activity) key (later entries win) and slots are sorted by
// time ascending. Sorting is stable so same-time slots keep insertion order.
func (d *TripDay) normalize() {
	byKey := make(map[string]int, len(d.TimeSlots))
	kept := d.TimeSlots[:0]
	for _, s := range d.TimeSlots {
		if i, ok := byKey[s.Key()]; ok {
			kept[i] = s
			continue
		}
		byKey[s.Key()] = len(kept)
		kept = append(kept, s)
	}
	d.TimeSlots = kept
	sort.SliceStable(d.TimeSlots, func(i, j int) bool {
		return d.TimeSlots[i].Time < d.TimeSlots[j].Time
	})
}

// ApplyManualEdit overwrites the provided fields of one slot and marks it
// edited. Other slots are untouched.
func ApplyManualEdit(trip *Trip, edit ManualEdit) error {
	day := trip.Day(edit.Date)
	if day == nil || edit.SlotIndex < 0 || edit.SlotIndex >= len(day.TimeSlots) {
		return ErrSlotNotFound{Date: edit.Date, Index: edit.SlotIndex}
	}

	s := &day.TimeSlots[edit.SlotIndex]
	if p := edit.Patch.Time; p != nil {
		s.Time = *p
	}
	if p := edit.Patch.Activity; p != nil {
		s.Activity = *p
	}
	if p := edit.Patch.Location; p != nil {
		s.Location = *p
	}
	if p := edit.Patch.Duration; p != nil {
		s.Duration = *p
	}
	if p := edit.Patch.Notes; p != nil {
		s.Notes = *p
	}
	if p := edit.Patch.URL; p != nil {
		s.URL = *p
	}
	s.IsEdited = true

	day.normalize()
	return nil
}

// AddActivity appends a manually created slot to the target day and re-sorts.
func AddActivity(trip *Trip, date string, a Activity) error {
	day := trip.Day(date)
	if day == nil {
		return ErrSlotNotFound{Date: date}
	}
	a.IsEdited = true
	day.TimeSlots = append(day.TimeSlots, a)
	day.normalize()
	return nil
}

// ApplyCalendarBatch reconciles a batch of calendar events into the trip.
// Events matching an existing (time, activity) key overwrite that slot's
// detail fields; unmatched events insert new slots; existing slots with no
// matching event are removed from the days the batch covers. Events dated
// outside the trip's day range are ignored.
func ApplyCalendarBatch(trip *Trip, events []CalendarEvent) {
	perDay := lo.GroupBy(events, CalendarEvent.date)

	for date, dayEvents := range perDay {
		day := trip.Day(date)
		if day == nil {
			continue
		}

		existing := make(map[string]int, len(day.TimeSlots))
		for i := range day.TimeSlots {
			existing[day.TimeSlots[i].Key()] = i
		}

		// Later events with the same key win.
		byKey := lo.KeyBy(dayEvents, CalendarEvent.key)

		for _, ev := range byKey {
			if i, ok := existing[ev.key()]; ok {
				s := &day.TimeSlots[i]
				s.Location = ev.Location
				s.Notes = ev.Notes
				s.Duration = DurationLabel(ev.End.Sub(ev.Start))
				s.URL = ev.URL
				s.IsEdited = true
				continue
			}
			day.TimeSlots = append(day.TimeSlots, Activity{
				Time:     ev.slot(),
				Activity: ev.Title,
				Location: ev.Location,
				Duration: DurationLabel(ev.End.Sub(ev.Start)),
				Notes:    ev.Notes,
				URL:      ev.URL,
				IsEdited: true,
			})
		}

		// The calendar is the source of truth for this day.
		day.TimeSlots = lo.Filter(day.TimeSlots, func(s Activity, _ int) bool {
			_, ok := byKey[s.Key()]
			return ok
		})

		day.normalize()
	}
}

// MergeRegenerated replaces the slot lists of the days present in the
// regeneration output. Previously attached weather context and alternative
// activities survive when the new day omits them, matched by date, and a slot
// the user edited keeps its edited flag when the regenerated day carries the
// same (time, activity) key. Days the regeneration does not mention are left
// alone.
func MergeRegenerated(trip *Trip, days []TripDay) {
	for _, nd := range days {
		cur := trip.Day(nd.Date)
		if cur == nil {
			nd.normalize()
			trip.Days = append(trip.Days, nd)
			continue
		}
		edited := make(map[string]bool, len(cur.TimeSlots))
		for _, s := range cur.TimeSlots {
			if s.IsEdited {
				edited[s.Key()] = true
			}
		}
		for i := range nd.TimeSlots {
			if edited[nd.TimeSlots[i].Key()] {
				nd.TimeSlots[i].IsEdited = true
			}
		}
		if nd.Weather == nil {
			nd.Weather = cur.Weather
		}
		if len(nd.AlternativeActivities) == 0 {
			nd.AlternativeActivities = cur.AlternativeActivities
		}
		if nd.Accommodation == nil {
			nd.Accommodation = cur.Accommodation
		}
		if nd.MealsBudget == 0 {
			nd.MealsBudget = cur.MealsBudget
		}
		*cur = nd
		cur.normalize()
	}
	sort.SliceStable(trip.Days, func(i, j int) bool {
		return trip.Days[i].Date < trip.Days[j].Date
	})
}

// DurationLabel renders an event length the way slot durations are stored:
// "N minutes" under an hour, "N hours" on exact hours, otherwise
// "N hours and M minutes", singular when N is 1.
func DurationLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Minutes())
	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%d %s", m, plural(m, "minute"))
	case m == 0:
		return fmt.Sprintf("%d %s", h, plural(h, "hour"))
	default:
		return fmt.Sprintf("%d %s and %d %s", h, plural(h, "hour"), m, plural(m, "minute"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// ParseDurationText is the inverse of DurationLabel, tolerant of the free-text
// durations the generator produces ("2 hours", "90 minutes", "1.5 hours").
// Unparseable input falls back to one hour.
func ParseDurationText(s string) time.Duration {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Hour
	}

	var total time.Duration
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	for i := 0; i+1 < len(fields); i++ {
		var n float64
		if _, err := fmt.Sscanf(fields[i], "%f", &n); err != nil {
			continue
		}
		unit := fields[i+1]
		switch {
		case strings.HasPrefix(unit, "hour") || unit == "h" || unit == "hr" || unit == "hrs":
			total += time.Duration(n * float64(time.Hour))
		case strings.HasPrefix(unit, "min") || unit == "m":
			total += time.Duration(n * float64(time.Minute))
		}
	}
	if total == 0 {
		return time.Hour
	}
	return total
}
