package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is a parsed start/end pair. End is inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SlotValue is the typed result of a successful extraction. Only the field
// matching the extracted slot is populated.
type SlotValue struct {
	Destination string
	Dates       *DateRange
	Budget      float64
	PartySize   int
	Tags        []string
	Pace        string
	Confirmed   bool
}

// ExtractSlot runs the extractor for the awaited slot against a raw user
// utterance. ok=false means the utterance carried no recognizable value;
// that is not an error, it tells the state machine to escalate to the
// AI fallback.
func ExtractSlot(slot Slot, utterance string) (SlotValue, bool) {
	switch slot {
	case SlotDestination:
		if v, ok := extractDestination(utterance); ok {
			return SlotValue{Destination: v}, true
		}
	case SlotDates:
		if v, ok := extractDateRange(utterance); ok {
			return SlotValue{Dates: v}, true
		}
	case SlotBudget:
		if v, ok := extractBudget(utterance); ok {
			return SlotValue{Budget: v}, true
		}
	case SlotPartySize:
		if v, ok := extractPartySize(utterance); ok {
			return SlotValue{PartySize: v}, true
		}
	case SlotAccommodation:
		if v, ok := extractVocab(utterance, accommodationVocab); ok {
			return SlotValue{Tags: v}, true
		}
	case SlotActivities:
		if v, ok := extractActivities(utterance); ok {
			return SlotValue{Tags: v}, true
		}
	case SlotPace:
		if v, ok := extractPace(utterance); ok {
			return SlotValue{Pace: v}, true
		}
	case SlotConfirmation:
		if confirmRe.MatchString(utterance) {
			return SlotValue{Confirmed: true}, true
		}
	}
	return SlotValue{}, false
}

// A capitalized phrase: one or more capitalized words, each at least two
// letters so a bare "I" never matches.
const capPhrase = `([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*)`

var (
	destAfterPrep = regexp.MustCompile(`\b(?:going to|travel to|visit|to|in)\s+` + capPhrase)
	destAtStart   = regexp.MustCompile(`^\s*` + capPhrase)

	fromToRe   = regexp.MustCompile(`(?i)from\s+(.+?)\s+to\s+(.+?)(?:[,.!?]|$)`)
	betweenRe  = regexp.MustCompile(`(?i)between\s+(.+?)\s+and\s+(.+?)(?:[,.!?]|$)`)
	budgetRe   = regexp.MustCompile(`\$?\s?(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)
	partyRe    = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons?|travell?ers?|adults?|guests?)`)
	bareIntRe  = regexp.MustCompile(`^\s*(\d+)\s*$`)
	confirmRe  = regexp.MustCompile(`(?i)^\s*(yes|yep|yeah|yup|sure|ok(ay)?|sounds good|looks good|let'?s (do it|go)|go ahead|confirm(ed)?|absolutely|perfect)\b`)
	everything = regexp.MustCompile(`(?i)\b(everything|anything|all of it|surprise me)\b`)
)

var dateLayouts = []string{
	"2006-01-02",
	"January 2 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"January 2",
	"Jan 2",
}

func extractDestination(s string) (string, bool) {
	if m := destAfterPrep.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := destAtStart.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// parseDate tries the accepted layouts. Layouts without a year resolve to the
// next occurrence from now.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	s = ordinalRe.ReplaceAllString(s, "$1")
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			now := time.Now()
			t = t.AddDate(now.Year(), 0, 0)
			if t.Before(now) {
				t = t.AddDate(1, 0, 0)
			}
		}
		return t, true
	}
	return time.Time{}, false
}

var ordinalRe = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)\b`)

// extractDateRange needs an explicit "from X to Y" or "between X and Y" pair.
// Both halves must parse or the whole extraction fails; partial pairs are
// rejected rather than retried field by field.
func extractDateRange(s string) (*DateRange, bool) {
	for _, re := range []*regexp.Regexp{fromToRe, betweenRe} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		start, ok1 := parseDate(m[1])
		end, ok2 := parseDate(m[2])
		if !ok1 || !ok2 || end.Before(start) {
			continue
		}
		return &DateRange{Start: start, End: end}, true
	}
	return nil, false
}

func extractBudget(s string) (float64, bool) {
	m := budgetRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func extractPartySize(s string) (int, bool) {
	m := partyRe.FindStringSubmatch(s)
	if m == nil {
		m = bareIntRe.FindStringSubmatch(s)
	}
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// extractVocab collects every vocabulary entry mentioned in the utterance,
// case-insensitively, in vocabulary order.
func extractVocab(s string, vocab []string) ([]string, bool) {
	lower := strings.ToLower(s)
	var found []string
	for _, v := range vocab {
		if strings.Contains(lower, v) {
			found = append(found, v)
		}
	}
	return found, len(found) > 0
}

func extractActivities(s string) ([]string, bool) {
	if tags, ok := extractVocab(s, activityVocab); ok {
		return tags, true
	}
	// Catch-all selects the full default set only when nothing specific hit.
	if everything.MatchString(s) {
		return append([]string(nil), activityVocab...), true
	}
	return nil, false
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func extractPace(s string) (string, bool) {
	lower := strings.ToLower(s)
	switch {
	case containsAny(lower, busyWords):
		return "busy", true
	case containsAny(lower, relaxedWords):
		return "relaxed", true
	case containsAny(lower, moderateWords):
		return "moderate", true
	}
	return "", false
}
