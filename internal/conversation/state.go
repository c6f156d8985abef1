package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripweaver/internal/itinerary"
)

// Role tags a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one transcript entry. The transcript is append-only for the
// lifetime of a conversation.
type Message struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Phase is the coarse state of the machine beyond the slot cursor.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseGenerating Phase = "generating"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

var (
	// ErrBusy is returned when a message arrives while a generation or
	// fallback call is still outstanding.
	ErrBusy = errors.New("conversation has a pending call")
	// ErrFinished is returned once an itinerary has been delivered.
	ErrFinished = errors.New("conversation is finished")
	// ErrStale is returned when a response arrives for a conversation that
	// was reset while the call was in flight.
	ErrStale = errors.New("conversation was reset during the call")
	// ErrNotFailed is returned by Retry outside the failed phase.
	ErrNotFailed = errors.New("nothing to retry")
)

// Assistant produces a follow-up reply when local extraction misses.
type Assistant interface {
	FollowUp(ctx context.Context, transcript []Message, utterance string) (string, error)
}

// Generator turns a confirmed draft plus transcript into itinerary days.
type Generator interface {
	Generate(ctx context.Context, draft TripDraft, transcript []Message) ([]itinerary.TripDay, error)
}

// Conversation drives the slot-filling state machine for one planning
// session. It is message-at-a-time: concurrent Advance calls beyond the
// first are rejected with ErrBusy while a network call is outstanding.
type Conversation struct {
	ID uuid.UUID

	mu         sync.Mutex
	busy       bool
	epoch      uint64
	draft      TripDraft
	cursor     int
	phase      Phase
	transcript []Message

	assistant Assistant
	generator Generator
	log       *slog.Logger
}

// Reply is what one user turn produced: the assistant messages appended this
// turn, the resulting phase, and the generated days when the turn finished
// the pipeline.
type Reply struct {
	Messages []Message
	Phase    Phase
	Draft    TripDraft
	Days     []itinerary.TripDay
}

const greeting = "Hi! I'll help you plan a trip. " +
	"Where would you like to go?"

// New starts a conversation at the first slot with a seeded greeting.
func New(assistant Assistant, generator Generator, log *slog.Logger) *Conversation {
	c := &Conversation{
		ID:        uuid.New(),
		phase:     PhaseCollecting,
		assistant: assistant,
		generator: generator,
		log:       log,
	}
	c.transcript = append(c.transcript, Message{Role: RoleAssistant, Text: greeting, At: time.Now()})
	return c
}

// Phase returns the current phase.
func (c *Conversation) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Busy reports whether a generation or fallback call is outstanding.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Transcript returns a copy of the transcript.
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Draft returns a copy of the accumulated draft.
func (c *Conversation) Draft() TripDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Reset discards the draft and transcript and returns to the first slot.
// Responses from calls issued before the reset are discarded when they land.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.draft = TripDraft{}
	c.cursor = 0
	c.phase = PhaseCollecting
	c.transcript = []Message{{Role: RoleAssistant, Text: greeting, At: time.Now()}}
}

func (c *Conversation) appendLocked(role Role, text string) Message {
	m := Message{Role: role, Text: text, At: time.Now()}
	c.transcript = append(c.transcript, m)
	return m
}

// Advance feeds one user message through the machine. On an extraction miss
// the assistant fallback is consulted; if its reply re-extracts, the value is
// captured, otherwise the reply is surfaced and the slot stays awaited.
// Capturing the confirmation slot runs the generation pipeline.
func (c *Conversation) Advance(ctx context.Context, utterance string) (*Reply, error) {
	c.mu.Lock()

	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.phase == PhaseDone {
		c.mu.Unlock()
		return nil, ErrFinished
	}

	c.appendLocked(RoleUser, utterance)

	if c.phase == PhaseFailed {
		msg := c.appendLocked(RoleAssistant,
			"I couldn't build that itinerary. Use retry when you're ready and I'll try again.")
		reply := &Reply{Messages: []Message{msg}, Phase: c.phase, Draft: c.draft}
		c.mu.Unlock()
		return reply, nil
	}

	slot := SlotSequence[c.cursor]
	value, captured := ExtractSlot(slot, utterance)

	if !captured {
		fallbackText, err := c.callAssistant(ctx, utterance)
		if err != nil {
			if errors.Is(err, ErrStale) {
				c.mu.Unlock()
				return nil, err
			}
			// The miss itself is never an error for the user; re-ask locally.
			c.log.Warn("fallback call failed", "conversation", c.ID, "slot", slot, "err", err)
			msg := c.appendLocked(RoleAssistant, c.promptFor(slot))
			reply := &Reply{Messages: []Message{msg}, Phase: c.phase, Draft: c.draft}
			c.mu.Unlock()
			return reply, nil
		}
		// First successful extraction from the assistant's restated text is
		// authoritative.
		if v, ok := ExtractSlot(slot, fallbackText); ok {
			value, captured = v, true
		} else {
			msg := c.appendLocked(RoleAssistant, fallbackText)
			reply := &Reply{Messages: []Message{msg}, Phase: c.phase, Draft: c.draft}
			c.mu.Unlock()
			return reply, nil
		}
	}

	c.draft.apply(slot, value)

	if slot == SlotConfirmation {
		return c.generateLocked(ctx)
	}

	c.cursor++
	msg := c.appendLocked(RoleAssistant, c.promptFor(SlotSequence[c.cursor]))
	reply := &Reply{Messages: []Message{msg}, Phase: c.phase, Draft: c.draft}
	c.mu.Unlock()
	return reply, nil
}

// Retry re-invokes generation after a failure without revisiting any slot.
func (c *Conversation) Retry(ctx context.Context) (*Reply, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.phase != PhaseFailed {
		c.mu.Unlock()
		return nil, ErrNotFailed
	}
	return c.generateLocked(ctx)
}

// callAssistant releases the lock around the network call and guards the
// conversation with the busy flag meanwhile. Must be called with the lock
// held; returns with the lock held.
func (c *Conversation) callAssistant(ctx context.Context, utterance string) (string, error) {
	c.busy = true
	e := c.epoch
	transcript := make([]Message, len(c.transcript))
	copy(transcript, c.transcript)
	c.mu.Unlock()

	text, err := c.assistant.FollowUp(ctx, transcript, utterance)

	c.mu.Lock()
	c.busy = false
	if c.epoch != e {
		return "", ErrStale
	}
	return text, err
}

// generateLocked runs the generation pipeline. Must be called with the lock
// held; the lock is released before returning.
func (c *Conversation) generateLocked(ctx context.Context) (*Reply, error) {
	c.phase = PhaseGenerating
	c.busy = true
	e := c.epoch
	draft := c.draft
	transcript := make([]Message, len(c.transcript))
	copy(transcript, c.transcript)
	c.mu.Unlock()

	days, err := c.generator.Generate(ctx, draft, transcript)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.epoch != e {
		return nil, ErrStale
	}

	if err != nil {
		c.phase = PhaseFailed
		c.log.Warn("itinerary generation failed", "conversation", c.ID, "err", err)
		msg := c.appendLocked(RoleAssistant,
			"Something went wrong while building your itinerary. You can retry without re-entering your details.")
		return &Reply{Messages: []Message{msg}, Phase: c.phase, Draft: c.draft}, nil
	}

	c.phase = PhaseDone
	msg := c.appendLocked(RoleAssistant,
		fmt.Sprintf("Your %d-day itinerary for %s is ready!", len(days), draft.Destination))
	return &Reply{Messages: []Message{msg}, Phase: c.phase, Draft: c.draft, Days: days}, nil
}

func (c *Conversation) promptFor(slot Slot) string {
	if slot == SlotConfirmation {
		return confirmationPrompt(c.draft)
	}
	return slotPrompts[slot]
}

func confirmationPrompt(d TripDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's what I have: %s", d.Destination)
	if d.Dates != nil {
		fmt.Fprintf(&b, ", %s to %s",
			d.Dates.Start.Format("Jan 2"), d.Dates.End.Format("Jan 2, 2006"))
	}
	fmt.Fprintf(&b, ", %d traveller(s), $%.0f per person", d.PartySize, d.BudgetPerPerson)
	if len(d.Accommodation) > 0 {
		fmt.Fprintf(&b, ", staying in a %s", strings.Join(d.Accommodation, "/"))
	}
	if d.Pace != "" {
		fmt.Fprintf(&b, ", %s pace", d.Pace)
	}
	b.WriteString(". Shall I build the itinerary?")
	return b.String()
}
