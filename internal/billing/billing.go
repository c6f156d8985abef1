// Package billing maps account plans to feature entitlements.
package billing

// Plan names as stored on the users table.
const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanPremium = "premium"
)

// FreeTripLimit is the number of concurrent (non-archived) trips a free
// account may hold.
const FreeTripLimit = 3

// Entitlements are the features a plan unlocks.
type Entitlements struct {
	CalendarSync   bool `json:"calendar_sync"`
	UnlimitedTrips bool `json:"unlimited_trips"`
	WeatherAware   bool `json:"weather_aware"`
	ICSExport      bool `json:"ics_export"`
}

// For returns the entitlements of a plan. Unknown plans are treated as free.
func For(plan string) Entitlements {
	switch plan {
	case PlanPremium:
		return Entitlements{
			CalendarSync:   true,
			UnlimitedTrips: true,
			WeatherAware:   true,
			ICSExport:      true,
		}
	case PlanPro:
		return Entitlements{
			CalendarSync: true,
			WeatherAware: true,
			ICSExport:    true,
		}
	default:
		return Entitlements{WeatherAware: true}
	}
}

// CanCreateTrip reports whether an account with the given plan and current
// trip count may start another trip.
func CanCreateTrip(plan string, activeTrips int) bool {
	if For(plan).UnlimitedTrips {
		return true
	}
	return activeTrips < FreeTripLimit
}

// Valid reports whether plan is one of the known plan names.
func Valid(plan string) bool {
	switch plan {
	case PlanFree, PlanPro, PlanPremium:
		return true
	}
	return false
}
