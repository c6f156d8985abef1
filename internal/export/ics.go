// Package export renders itineraries for consumption outside the API, to
// start with as iCalendar documents.
package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"tripweaver/internal/itinerary"
)

const prodID = "-//tripweaver//itinerary//EN"

// Calendar serializes a trip's scheduled activities as an iCalendar document.
// Each time slot becomes one VEVENT; its end time comes from the slot's
// duration text. Accommodation and meal budgets are advisory and stay out of
// the calendar.
func Calendar(trip *itinerary.Trip) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)
	cal.SetName(trip.Title)

	now := time.Now().UTC()
	for _, day := range trip.Days {
		for _, slot := range day.TimeSlots {
			start, err := time.Parse("2006-01-02 15:04", day.Date+" "+slot.Time)
			if err != nil {
				return "", fmt.Errorf("slot %q on %s has unparseable time %q: %w",
					slot.Activity, day.Date, slot.Time, err)
			}

			ev := cal.AddEvent(eventUID(trip.ID, day.Date, slot))
			ev.SetDtStampTime(now)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(itinerary.ParseDurationText(slot.Duration)))
			ev.SetSummary(slot.Activity)
			if slot.Location != "" {
				ev.SetLocation(slot.Location)
			}
			if slot.Notes != "" {
				ev.SetDescription(slot.Notes)
			}
			if slot.URL != "" {
				ev.SetURL(slot.URL)
			}
		}
	}

	return cal.Serialize(), nil
}

// eventUID is stable across exports of the same slot so calendar apps update
// events in place instead of duplicating them.
func eventUID(tripID int, date string, slot itinerary.Activity) string {
	return fmt.Sprintf("trip-%d-%s-%s@tripweaver", tripID, date, slot.Time)
}
