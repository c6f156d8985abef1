package itinerary_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripweaver/internal/itinerary"
)

func day(date string, slots ...itinerary.Activity) itinerary.TripDay {
	return itinerary.TripDay{Date: date, TimeSlots: slots}
}

func sampleTrip() *itinerary.Trip {
	return &itinerary.Trip{
		ID:          1,
		Destination: "Lisbon",
		StartDate:   "2026-05-01",
		EndDate:     "2026-05-02",
		IsActive:    true,
		Days: []itinerary.TripDay{
			day("2026-05-01",
				itinerary.Activity{Time: "09:00", Activity: "Castle visit", Location: "São Jorge"},
				itinerary.Activity{Time: "13:00", Activity: "Lunch", Location: "Alfama"},
				itinerary.Activity{Time: "16:00", Activity: "Tram ride"},
			),
			day("2026-05-02",
				itinerary.Activity{Time: "10:00", Activity: "Museum"},
			),
		},
	}
}

func event(title, start, end string) itinerary.CalendarEvent {
	s, _ := time.Parse("2006-01-02 15:04", start)
	e, _ := time.Parse("2006-01-02 15:04", end)
	return itinerary.CalendarEvent{Title: title, Start: s, End: e}
}

func assertSorted(t *testing.T, d itinerary.TripDay) {
	t.Helper()
	for i := 0; i+1 < len(d.TimeSlots); i++ {
		assert.LessOrEqual(t, d.TimeSlots[i].Time, d.TimeSlots[i+1].Time,
			"slots out of order on %s", d.Date)
	}
}

// ---- manual edits ----

func TestApplyManualEdit_OverwritesAndMarksEdited(t *testing.T) {
	trip := sampleTrip()
	loc := "Belém"
	err := itinerary.ApplyManualEdit(trip, itinerary.ManualEdit{
		Date:      "2026-05-01",
		SlotIndex: 0,
		Patch:     itinerary.ActivityPatch{Location: &loc},
	})
	require.NoError(t, err)

	got := trip.Days[0].TimeSlots[0]
	assert.Equal(t, "Belém", got.Location)
	assert.Equal(t, "Castle visit", got.Activity, "unpatched fields stay")
	assert.True(t, got.IsEdited)
	assert.False(t, trip.Days[0].TimeSlots[1].IsEdited, "other slots untouched")
}

func TestApplyManualEdit_UnknownDay(t *testing.T) {
	trip := sampleTrip()
	err := itinerary.ApplyManualEdit(trip, itinerary.ManualEdit{Date: "2026-07-09"})
	require.Error(t, err)
	assert.ErrorAs(t, err, &itinerary.ErrSlotNotFound{})
}

func TestApplyManualEdit_TimeChangeResorts(t *testing.T) {
	trip := sampleTrip()
	newTime := "18:00"
	err := itinerary.ApplyManualEdit(trip, itinerary.ManualEdit{
		Date:      "2026-05-01",
		SlotIndex: 0,
		Patch:     itinerary.ActivityPatch{Time: &newTime},
	})
	require.NoError(t, err)

	assertSorted(t, trip.Days[0])
	assert.Equal(t, "Castle visit", trip.Days[0].TimeSlots[2].Activity)
}

func TestAddActivity_AppendsSortsAndMarksEdited(t *testing.T) {
	trip := sampleTrip()
	err := itinerary.AddActivity(trip, "2026-05-01", itinerary.Activity{
		Time: "11:00", Activity: "Coffee break",
	})
	require.NoError(t, err)

	d := trip.Days[0]
	require.Len(t, d.TimeSlots, 4)
	assertSorted(t, d)
	assert.Equal(t, "Coffee break", d.TimeSlots[1].Activity)
	assert.True(t, d.TimeSlots[1].IsEdited)
}

func TestAddActivity_DuplicateKeyReplaces(t *testing.T) {
	trip := sampleTrip()
	err := itinerary.AddActivity(trip, "2026-05-01", itinerary.Activity{
		Time: "09:00", Activity: "Castle visit", Notes: "bring water",
	})
	require.NoError(t, err)

	d := trip.Days[0]
	require.Len(t, d.TimeSlots, 3, "same (time, activity) key must not duplicate")
	assert.Equal(t, "bring water", d.TimeSlots[0].Notes)
}

// ---- calendar batches ----

func TestApplyCalendarBatch_DayAuthoritative(t *testing.T) {
	trip := sampleTrip()

	// A with a changed location, plus B unchanged; C (tram ride) absent.
	a := event("Castle visit", "2026-05-01 09:00", "2026-05-01 11:00")
	a.Location = "Moorish quarter"
	b := event("Lunch", "2026-05-01 13:00", "2026-05-01 14:30")

	itinerary.ApplyCalendarBatch(trip, []itinerary.CalendarEvent{a, b})

	d := trip.Days[0]
	require.Len(t, d.TimeSlots, 2, "slot missing from the batch must be removed")
	assert.Equal(t, "Moorish quarter", d.TimeSlots[0].Location)
	assert.True(t, d.TimeSlots[0].IsEdited)
	assert.Equal(t, "2 hours", d.TimeSlots[0].Duration)
	assert.Equal(t, "1 hour and 30 minutes", d.TimeSlots[1].Duration)
	assertSorted(t, d)

	// The other day was not covered by the batch and is untouched.
	assert.Len(t, trip.Days[1].TimeSlots, 1)
}

func TestApplyCalendarBatch_Idempotent(t *testing.T) {
	trip := sampleTrip()
	batch := []itinerary.CalendarEvent{
		event("Castle visit", "2026-05-01 09:00", "2026-05-01 10:30"),
		event("Sunset walk", "2026-05-01 19:00", "2026-05-01 20:00"),
	}

	itinerary.ApplyCalendarBatch(trip, batch)
	first := make([]itinerary.Activity, len(trip.Days[0].TimeSlots))
	copy(first, trip.Days[0].TimeSlots)

	itinerary.ApplyCalendarBatch(trip, batch)

	assert.Equal(t, first, trip.Days[0].TimeSlots, "reapplying the batch must be a no-op")
	assertSorted(t, trip.Days[0])
}

func TestApplyCalendarBatch_InsertsNewSlots(t *testing.T) {
	trip := sampleTrip()
	ev := event("Fado show", "2026-05-02 21:00", "2026-05-02 22:45")
	ev.URL = "https://example.com/fado"

	itinerary.ApplyCalendarBatch(trip, []itinerary.CalendarEvent{
		event("Museum", "2026-05-02 10:00", "2026-05-02 12:00"),
		ev,
	})

	d := trip.Days[1]
	require.Len(t, d.TimeSlots, 2)
	assert.Equal(t, "Fado show", d.TimeSlots[1].Activity)
	assert.Equal(t, "21:00", d.TimeSlots[1].Time)
	assert.Equal(t, "https://example.com/fado", d.TimeSlots[1].URL)
	assert.True(t, d.TimeSlots[1].IsEdited)
}

func TestApplyCalendarBatch_IgnoresDatesOutsideTrip(t *testing.T) {
	trip := sampleTrip()
	itinerary.ApplyCalendarBatch(trip, []itinerary.CalendarEvent{
		event("Stray event", "2026-09-01 09:00", "2026-09-01 10:00"),
	})
	assert.Len(t, trip.Days[0].TimeSlots, 3)
	assert.Len(t, trip.Days[1].TimeSlots, 1)
}

// ---- regeneration merges ----

func TestMergeRegenerated_PreservesWeatherByDate(t *testing.T) {
	trip := sampleTrip()
	trip.Days[0].Weather = &itinerary.WeatherContext{Description: "light rain", PrecipitationPct: 60}
	trip.Days[0].AlternativeActivities = []string{"Visit the tile museum"}

	itinerary.MergeRegenerated(trip, []itinerary.TripDay{
		day("2026-05-01",
			itinerary.Activity{Time: "10:00", Activity: "Aquarium"},
		),
	})

	d := trip.Days[0]
	require.Len(t, d.TimeSlots, 1, "slot list is replaced wholesale")
	require.NotNil(t, d.Weather)
	assert.Equal(t, "light rain", d.Weather.Description)
	assert.Equal(t, []string{"Visit the tile museum"}, d.AlternativeActivities)
}

func TestMergeRegenerated_KeepsManualEditFlag(t *testing.T) {
	trip := sampleTrip()
	notes := "book tickets ahead"
	require.NoError(t, itinerary.ApplyManualEdit(trip, itinerary.ManualEdit{
		Date:      "2026-05-01",
		SlotIndex: 0,
		Patch:     itinerary.ActivityPatch{Notes: &notes},
	}))

	itinerary.MergeRegenerated(trip, []itinerary.TripDay{
		day("2026-05-01",
			itinerary.Activity{Time: "09:00", Activity: "Castle visit", Location: "regenerated"},
			itinerary.Activity{Time: "15:00", Activity: "Tile museum"},
		),
	})

	d := trip.Days[0]
	require.Len(t, d.TimeSlots, 2)
	assert.True(t, d.TimeSlots[0].IsEdited,
		"edited flag must survive a regeneration that keeps the slot")
	assert.Equal(t, "regenerated", d.TimeSlots[0].Location,
		"regenerated fields still win")
	assert.False(t, d.TimeSlots[1].IsEdited, "new slots come in unedited")
}

func TestMergeRegenerated_UntouchedDaysSurvive(t *testing.T) {
	trip := sampleTrip()
	itinerary.MergeRegenerated(trip, []itinerary.TripDay{
		day("2026-05-02", itinerary.Activity{Time: "09:30", Activity: "Beach morning"}),
	})

	assert.Len(t, trip.Days[0].TimeSlots, 3, "day not in the regeneration is untouched")
	assert.Equal(t, "Beach morning", trip.Days[1].TimeSlots[0].Activity)
}

// ---- duration helpers ----

func TestDurationLabel(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{time.Minute, "1 minute"},
		{45 * time.Minute, "45 minutes"},
		{time.Hour, "1 hour"},
		{3 * time.Hour, "3 hours"},
		{90 * time.Minute, "1 hour and 30 minutes"},
		{61 * time.Minute, "1 hour and 1 minute"},
		{0, "0 minutes"},
		{-time.Minute, "0 minutes"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, itinerary.DurationLabel(c.in))
	}
}

func TestParseDurationText(t *testing.T) {
	assert.Equal(t, 2*time.Hour, itinerary.ParseDurationText("2 hours"))
	assert.Equal(t, 90*time.Minute, itinerary.ParseDurationText("90 minutes"))
	assert.Equal(t, 90*time.Minute, itinerary.ParseDurationText("1 hours and 30 minutes"))
	assert.Equal(t, time.Hour, itinerary.ParseDurationText(""), "unparseable falls back to an hour")
	assert.Equal(t, time.Hour, itinerary.ParseDurationText("a while"))
}
