// Package planner wraps the external text-generation capability behind the
// two contracts the conversation needs: full itinerary generation and the
// free-text follow-up used when local slot extraction misses.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"tripweaver/internal/conversation"
	"tripweaver/internal/itinerary"
)

// ErrParse marks generation output that did not parse as a valid itinerary.
// The caller gets a failure, never a degraded itinerary.
var ErrParse = errors.New("generation output did not parse as an itinerary")

const defaultModel = openai.ChatModelGPT4oMini

// Generator calls the OpenAI chat API. The raw response is treated as
// untrusted text and strictly parsed.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator constructs a Generator with the given API key.
func NewGenerator(apiKey string) *Generator {
	return &Generator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultModel,
	}
}

// NewGeneratorWithOptions constructs a Generator with custom client options
// (for tests, e.g. option.WithBaseURL).
func NewGeneratorWithOptions(opts ...option.RequestOption) *Generator {
	return &Generator{client: openai.NewClient(opts...), model: defaultModel}
}

var _ conversation.Generator = (*Generator)(nil)
var _ conversation.Assistant = (*Generator)(nil)

// Generate builds the itinerary prompt from the confirmed draft and
// transcript, invokes the model, and parses the reply.
func (g *Generator) Generate(ctx context.Context, draft conversation.TripDraft, transcript []conversation.Message) ([]itinerary.TripDay, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(itinerarySystemPrompt),
			openai.UserMessage(buildItineraryPrompt(draft, transcript)),
		},
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return nil, fmt.Errorf("calling generation backend: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("generation backend returned no choices: %w", ErrParse)
	}

	days, err := parseItinerary(completion.Choices[0].Message.Content, defaultMealsBudget(draft))
	if err != nil {
		return nil, err
	}
	return days, nil
}

// FollowUp forwards the transcript plus the unmatched utterance and returns
// the assistant's reply verbatim. The caller decides whether the reply
// re-extracts or is surfaced to the user.
func (g *Generator) FollowUp(ctx context.Context, transcript []conversation.Message, utterance string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(followUpSystemPrompt),
	}
	for _, m := range transcript {
		switch m.Role {
		case conversation.RoleUser:
			messages = append(messages, openai.UserMessage(m.Text))
		case conversation.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		}
	}
	messages = append(messages, openai.UserMessage(utterance))

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    messages,
		Temperature: openai.Float(0.5),
	})
	if err != nil {
		return "", fmt.Errorf("calling fallback backend: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("fallback backend returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// defaultMealsBudget is the per-day meals allowance substituted when the
// backend omits one: a quarter of the per-person budget spread over the trip.
func defaultMealsBudget(draft conversation.TripDraft) float64 {
	days := draft.DurationDays()
	if days < 1 {
		days = 1
	}
	return draft.BudgetPerPerson * 0.25 / float64(days)
}
