package conversation

// Slot is one named trip detail awaited in the fixed conversational sequence.
type Slot string

const (
	SlotDestination   Slot = "destination"
	SlotDates         Slot = "dates"
	SlotBudget        Slot = "budget"
	SlotPartySize     Slot = "party_size"
	SlotAccommodation Slot = "accommodation"
	SlotActivities    Slot = "activities"
	SlotPace          Slot = "pace"
	SlotConfirmation  Slot = "confirmation"
)

// SlotSequence is the order slots are collected in. Confirmation is the
// terminal marker: capturing it triggers generation instead of advancing.
var SlotSequence = []Slot{
	SlotDestination,
	SlotDates,
	SlotBudget,
	SlotPartySize,
	SlotAccommodation,
	SlotActivities,
	SlotPace,
	SlotConfirmation,
}

var slotPrompts = map[Slot]string{
	SlotDestination:   "Where would you like to go?",
	SlotDates:         "When are you travelling? Give me a range like \"from June 5 to June 12\".",
	SlotBudget:        "What's your budget per person?",
	SlotPartySize:     "How many people are travelling?",
	SlotAccommodation: "Any preference for where you stay — hotel, hostel, apartment, resort?",
	SlotActivities:    "What do you enjoy when you travel? Museums, food, nature, nightlife — or just say everything.",
	SlotPace:          "Do you prefer a relaxed pace, a busy schedule, or something in between?",
}

// accommodationVocab is the fixed vocabulary scanned for accommodation tags.
// Multi-word entries must come before their single-word substrings.
var accommodationVocab = []string{
	"vacation rental",
	"hotel",
	"hostel",
	"apartment",
	"airbnb",
	"resort",
	"villa",
	"cottage",
}

// activityVocab is the fixed vocabulary of activity preference tags. It is
// also the full default set selected by a catch-all like "everything".
var activityVocab = []string{
	"museums",
	"food",
	"nightlife",
	"nature",
	"shopping",
	"history",
	"art",
	"beaches",
	"hiking",
	"adventure",
	"relaxation",
	"local culture",
}

// Pace classification keyword sets, checked in priority order busy > relaxed
// > moderate.
var (
	busyWords = []string{
		"busy", "packed", "jam-packed", "action-packed", "fast-paced",
		"fast paced", "full schedule", "as much as possible", "nonstop",
		"non-stop",
	}
	relaxedWords = []string{
		"relaxed", "relaxing", "slow", "chill", "laid-back", "laid back",
		"leisurely", "easy", "take it easy",
	}
	moderateWords = []string{
		"moderate", "balanced", "in between", "something in between",
		"bit of both", "medium", "mix",
	}
)
