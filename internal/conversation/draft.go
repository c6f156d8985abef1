package conversation

// TripDraft accumulates slot values during a conversation. It is created
// empty, filled field by field by the state machine, read by the generator,
// and discarded once a trip is persisted or the conversation is reset.
type TripDraft struct {
	Destination     string
	Dates           *DateRange
	BudgetPerPerson float64
	PartySize       int
	Accommodation   []string
	Activities      []string
	Pace            string
	Confirmed       bool
}

// Collected reports whether the slot's field is non-empty. This is the single
// definition of "collected"; there is no separate bookkeeping set.
func (d *TripDraft) Collected(s Slot) bool {
	switch s {
	case SlotDestination:
		return d.Destination != ""
	case SlotDates:
		return d.Dates != nil
	case SlotBudget:
		return d.BudgetPerPerson > 0
	case SlotPartySize:
		return d.PartySize >= 1
	case SlotAccommodation:
		return len(d.Accommodation) > 0
	case SlotActivities:
		return len(d.Activities) > 0
	case SlotPace:
		return d.Pace != ""
	case SlotConfirmation:
		return d.Confirmed
	}
	return false
}

func (d *TripDraft) apply(s Slot, v SlotValue) {
	switch s {
	case SlotDestination:
		d.Destination = v.Destination
	case SlotDates:
		d.Dates = v.Dates
	case SlotBudget:
		d.BudgetPerPerson = v.Budget
	case SlotPartySize:
		d.PartySize = v.PartySize
	case SlotAccommodation:
		d.Accommodation = v.Tags
	case SlotActivities:
		d.Activities = v.Tags
	case SlotPace:
		d.Pace = v.Pace
	case SlotConfirmation:
		d.Confirmed = v.Confirmed
	}
}

// DurationDays is the trip length in days, inclusive of both endpoints.
// Zero until dates are collected.
func (d *TripDraft) DurationDays() int {
	if d.Dates == nil {
		return 0
	}
	return int(d.Dates.End.Sub(d.Dates.Start).Hours()/24) + 1
}
