package itinerary

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WeatherContext holds the forecast attached to a single itinerary day.
// A nil WeatherContext means no forecast was available; the day is still usable.
type WeatherContext struct {
	Description        string  `json:"description"`
	TemperatureF       float64 `json:"temperature_f"`
	Humidity           int     `json:"humidity"`
	WindSpeedMPH       float64 `json:"wind_speed_mph"`
	PrecipitationPct   int     `json:"precipitation_probability"`
	SuitableForOutdoor bool    `json:"suitable_for_outdoor"`
	Warning            string  `json:"warning,omitempty"`
}

// Activity is one scheduled time slot within a day.
type Activity struct {
	Time     string `json:"time"` // HH:MM, 24-hour
	Activity string `json:"activity"`
	Location string `json:"location,omitempty"`
	Duration string `json:"duration,omitempty"` // free-text magnitude, e.g. "2 hours"
	Notes    string `json:"notes,omitempty"`
	IsEdited bool   `json:"is_edited"`
	URL      string `json:"url,omitempty"`
}

// Key identifies an activity within one day. Two slots with the same key are
// considered the same entry; later writes replace earlier ones.
func (a Activity) Key() string {
	return a.Time + "|" + strings.ToLower(strings.TrimSpace(a.Activity))
}

// Stay is the accommodation entry for a day. Name "TBD" with zero cost is the
// sentinel used when the generator omits one.
type Stay struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// TripDay is one calendar day of an itinerary.
type TripDay struct {
	Date                  string          `json:"date"` // 2006-01-02
	DayOfWeek             string          `json:"day_of_week,omitempty"`
	TimeSlots             []Activity      `json:"time_slots"`
	Accommodation         *Stay           `json:"accommodation,omitempty"`
	MealsBudget           float64         `json:"meals_budget,omitempty"`
	Weather               *WeatherContext `json:"weather,omitempty"`
	AlternativeActivities []string        `json:"alternative_activities,omitempty"`
	IsFinalized           bool            `json:"is_finalized"`
}

// Preferences are the trip-level tastes collected during the conversation.
type Preferences struct {
	Accommodation []string `json:"accommodation,omitempty"`
	Activities    []string `json:"activities,omitempty"`
	Pace          string   `json:"pace,omitempty"`
	MustSee       []string `json:"must_see,omitempty"`
	Dietary       []string `json:"dietary,omitempty"`
	Transport     []string `json:"transport,omitempty"`
}

// Trip is the persisted aggregate: one owner, an ordered sequence of days.
// Deletion is soft (IsActive=false); archival is an independent flag.
type Trip struct {
	ID              int         `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Title           string      `json:"title"`
	Destination     string      `json:"destination"`
	StartDate       string      `json:"start_date"`
	EndDate         string      `json:"end_date"`
	BudgetPerPerson float64     `json:"budget_per_person"`
	PartySize       int         `json:"party_size"`
	Preferences     Preferences `json:"preferences"`
	Days            []TripDay   `json:"days"`
	IsArchived      bool        `json:"is_archived"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Day returns a pointer to the day with the given date, or nil.
func (t *Trip) Day(date string) *TripDay {
	for i := range t.Days {
		if t.Days[i].Date == date {
			return &t.Days[i]
		}
	}
	return nil
}
