package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tripweaver/internal/api"
	"tripweaver/internal/billing"
	"tripweaver/internal/conversation"
	"tripweaver/internal/itinerary"
	"tripweaver/internal/storage"
)

// ---- mock implementations ----

type mockUsers struct {
	createFn  func(ctx context.Context, email, passwordHash, plan string) (*storage.User, error)
	byEmailFn func(ctx context.Context, email string) (*storage.User, error)
	byIDFn    func(ctx context.Context, id uuid.UUID) (*storage.User, error)
}

func (m *mockUsers) CreateUser(ctx context.Context, email, passwordHash, plan string) (*storage.User, error) {
	if m.createFn == nil {
		return &storage.User{ID: uuid.New(), Email: email, PasswordHash: passwordHash, Plan: plan}, nil
	}
	return m.createFn(ctx, email, passwordHash, plan)
}
func (m *mockUsers) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	if m.byEmailFn == nil {
		return nil, nil
	}
	return m.byEmailFn(ctx, email)
}
func (m *mockUsers) GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error) {
	if m.byIDFn == nil {
		return nil, nil
	}
	return m.byIDFn(ctx, id)
}

type mockTrips struct {
	createFn     func(ctx context.Context, t *itinerary.Trip) error
	getFn        func(ctx context.Context, id int, userID uuid.UUID) (*itinerary.Trip, error)
	updateDaysFn func(ctx context.Context, id int, userID uuid.UUID, days []itinerary.TripDay) error
	archiveFn    func(ctx context.Context, id int, userID uuid.UUID, archived bool) error
	deleteFn     func(ctx context.Context, id int, userID uuid.UUID) error
	listFn       func(ctx context.Context, userID uuid.UUID, archived bool) ([]*itinerary.Trip, error)
	countFn      func(ctx context.Context, userID uuid.UUID) (int, error)
	topFn        func(ctx context.Context, limit int) ([]storage.DestinationCount, error)
}

func (m *mockTrips) CreateTrip(ctx context.Context, t *itinerary.Trip) error {
	if m.createFn == nil {
		t.ID = 1
		return nil
	}
	return m.createFn(ctx, t)
}
func (m *mockTrips) GetTrip(ctx context.Context, id int, userID uuid.UUID) (*itinerary.Trip, error) {
	if m.getFn == nil {
		return nil, nil
	}
	return m.getFn(ctx, id, userID)
}
func (m *mockTrips) UpdateTripDays(ctx context.Context, id int, userID uuid.UUID, days []itinerary.TripDay) error {
	if m.updateDaysFn == nil {
		return nil
	}
	return m.updateDaysFn(ctx, id, userID, days)
}
func (m *mockTrips) SetTripArchived(ctx context.Context, id int, userID uuid.UUID, archived bool) error {
	if m.archiveFn == nil {
		return nil
	}
	return m.archiveFn(ctx, id, userID, archived)
}
func (m *mockTrips) DeleteTrip(ctx context.Context, id int, userID uuid.UUID) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id, userID)
}
func (m *mockTrips) ListTrips(ctx context.Context, userID uuid.UUID, archived bool) ([]*itinerary.Trip, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, userID, archived)
}
func (m *mockTrips) CountActiveTrips(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.countFn == nil {
		return 0, nil
	}
	return m.countFn(ctx, userID)
}
func (m *mockTrips) TopDestinations(ctx context.Context, limit int) ([]storage.DestinationCount, error) {
	if m.topFn == nil {
		return nil, nil
	}
	return m.topFn(ctx, limit)
}

type mockEnricher struct {
	enrichFn func(ctx context.Context, days []itinerary.TripDay, destination string) []itinerary.TripDay
}

func (m *mockEnricher) Enrich(ctx context.Context, days []itinerary.TripDay, destination string) []itinerary.TripDay {
	if m.enrichFn == nil {
		return days
	}
	return m.enrichFn(ctx, days, destination)
}

type mockAssistant struct {
	followUpFn func(ctx context.Context, transcript []conversation.Message, utterance string) (string, error)
}

func (m *mockAssistant) FollowUp(ctx context.Context, transcript []conversation.Message, utterance string) (string, error) {
	if m.followUpFn == nil {
		return "", fmt.Errorf("no fallback configured")
	}
	return m.followUpFn(ctx, transcript, utterance)
}

type mockGenerator struct {
	generateFn func(ctx context.Context, draft conversation.TripDraft, transcript []conversation.Message) ([]itinerary.TripDay, error)
}

func (m *mockGenerator) Generate(ctx context.Context, draft conversation.TripDraft, transcript []conversation.Message) ([]itinerary.TripDay, error) {
	if m.generateFn == nil {
		return generatedDays(), nil
	}
	return m.generateFn(ctx, draft, transcript)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// ---- fixtures ----

var testUserID = uuid.MustParse("6f1d2f3a-0a0b-4c4d-8e8f-101112131415")

func generatedDays() []itinerary.TripDay {
	return []itinerary.TripDay{
		{
			Date:      "2026-06-05",
			DayOfWeek: "Friday",
			TimeSlots: []itinerary.Activity{
				{Time: "09:00", Activity: "Castle of São Jorge", Duration: "2 hours"},
				{Time: "14:00", Activity: "Alfama walking tour", Duration: "90 minutes"},
			},
			Accommodation: &itinerary.Stay{Name: "Hotel Lisboa Centro", Cost: 140},
			MealsBudget:   55,
		},
	}
}

func storedTrip() *itinerary.Trip {
	return &itinerary.Trip{
		ID:          7,
		UserID:      testUserID,
		Title:       "Trip to Lisbon",
		Destination: "Lisbon",
		StartDate:   "2026-06-05",
		EndDate:     "2026-06-05",
		PartySize:   2,
		Days:        generatedDays(),
		IsActive:    true,
	}
}

type env struct {
	router http.Handler
	auth   *api.Auth
	users  *mockUsers
	trips  *mockTrips
}

func newEnv(t *testing.T, users *mockUsers, trips *mockTrips, assistant *mockAssistant, generator *mockGenerator) *env {
	t.Helper()
	if users == nil {
		users = &mockUsers{}
	}
	if trips == nil {
		trips = &mockTrips{}
	}
	if assistant == nil {
		assistant = &mockAssistant{}
	}
	if generator == nil {
		generator = &mockGenerator{}
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := api.NewAuth("test-secret", time.Hour)
	handlers := api.NewHandlers(users, trips, conversation.NewStore(),
		assistant, generator, &mockEnricher{}, auth, log)
	router := api.NewRouter(handlers, auth, api.RouterConfig{
		RateLimit:      1000,
		RateWindow:     time.Minute,
		AllowedOrigins: []string{"*"},
	}, &mockPinger{}, &mockPinger{}, log)

	return &env{router: router, auth: auth, users: users, trips: trips}
}

func (e *env) token(t *testing.T, plan string) string {
	t.Helper()
	token, err := e.auth.IssueToken(testUserID, "ana@example.com", plan)
	require.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

// ---- auth endpoints ----

func TestRegister_Success(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"email": "Ana@Example.com", "password": "correct horse"})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[map[string]string](t, w)
	assert.NotEmpty(t, resp["token"])
	assert.Equal(t, "ana@example.com", resp["email"], "email is normalized")
	assert.Equal(t, billing.PlanFree, resp["plan"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := &mockUsers{
		createFn: func(_ context.Context, _, _, _ string) (*storage.User, error) {
			return nil, storage.ErrEmailTaken
		},
	}
	e := newEnv(t, users, nil, nil, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"email": "ana@example.com", "password": "correct horse"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"email": "not-an-email", "password": "correct horse"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"email": "ana@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_Success(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &mockUsers{
		byEmailFn: func(_ context.Context, email string) (*storage.User, error) {
			return &storage.User{ID: testUserID, Email: email, PasswordHash: string(hash), Plan: billing.PlanPro}, nil
		},
	}
	e := newEnv(t, users, nil, nil, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "ana@example.com", "password": "correct horse"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]string](t, w)
	assert.Equal(t, billing.PlanPro, resp["plan"])

	// The issued token must pass the middleware.
	w = e.do(t, http.MethodGet, "/api/v1/trips", resp["token"], nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &mockUsers{
		byEmailFn: func(_ context.Context, email string) (*storage.User, error) {
			return &storage.User{ID: testUserID, Email: email, PasswordHash: string(hash)}, nil
		},
	}
	e := newEnv(t, users, nil, nil, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "ana@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_UnknownEmail(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "ghost@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ---- auth middleware ----

func TestAuth_MissingToken(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	w := e.do(t, http.MethodGet, "/api/v1/trips", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_GarbageToken(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	w := e.do(t, http.MethodGet, "/api/v1/trips", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_HealthIsPublic(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	w := e.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- conversation flow ----

var plannerTurns = []string{
	"I want to go to Lisbon",
	"from 2026-06-05 to 2026-06-12",
	"about $1,500 per person",
	"we are 2 people",
	"a small hotel would be great",
	"museums, food and hiking",
	"fairly relaxed",
}

func TestConversation_EndToEnd(t *testing.T) {
	var created *itinerary.Trip
	trips := &mockTrips{
		createFn: func(_ context.Context, trip *itinerary.Trip) error {
			trip.ID = 99
			created = trip
			return nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	start := decode[map[string]any](t, w)
	convID := start["conversation_id"].(string)
	require.NotEmpty(t, convID)

	msgURL := "/api/v1/conversations/" + convID + "/messages"
	for _, turn := range plannerTurns {
		w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": turn})
		require.Equal(t, http.StatusOK, w.Code, "turn: %q", turn)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, "collecting", resp["phase"])
	}

	w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": "yes, go ahead"})
	require.Equal(t, http.StatusOK, w.Code)
	final := decode[map[string]any](t, w)
	assert.Equal(t, "done", final["phase"])
	require.NotNil(t, final["trip"])

	require.NotNil(t, created)
	assert.Equal(t, testUserID, created.UserID)
	assert.Equal(t, "Lisbon", created.Destination)
	assert.Equal(t, "2026-06-05", created.StartDate)
	assert.Equal(t, 1500.0, created.BudgetPerPerson)
	require.Len(t, created.Days, 1)

	// The session is dropped once its trip is saved.
	w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": "hello?"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversation_TripLimitBlocksSave(t *testing.T) {
	trips := &mockTrips{
		countFn: func(_ context.Context, _ uuid.UUID) (int, error) {
			return billing.FreeTripLimit, nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	convID := decode[map[string]any](t, w)["conversation_id"].(string)

	msgURL := "/api/v1/conversations/" + convID + "/messages"
	for _, turn := range plannerTurns {
		w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": turn})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": "yes"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConversation_UnknownID(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/conversations/"+uuid.NewString()+"/messages",
		token, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/conversations/not-a-uuid/messages",
		token, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversation_EmptyMessage(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	convID := decode[map[string]any](t, w)["conversation_id"].(string)

	w = e.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/messages",
		token, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetry_NothingToRetry(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	convID := decode[map[string]any](t, w)["conversation_id"].(string)

	w = e.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/retry", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRetry_AfterGenerationFailure(t *testing.T) {
	failures := 1
	generator := &mockGenerator{
		generateFn: func(_ context.Context, _ conversation.TripDraft, _ []conversation.Message) ([]itinerary.TripDay, error) {
			if failures > 0 {
				failures--
				return nil, fmt.Errorf("backend unavailable")
			}
			return generatedDays(), nil
		},
	}
	e := newEnv(t, nil, nil, nil, generator)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/conversations", token, nil)
	convID := decode[map[string]any](t, w)["conversation_id"].(string)
	msgURL := "/api/v1/conversations/" + convID + "/messages"

	for _, turn := range plannerTurns {
		w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": turn})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = e.do(t, http.MethodPost, msgURL, token, map[string]string{"text": "yes"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", decode[map[string]any](t, w)["phase"])

	w = e.do(t, http.MethodPost, "/api/v1/conversations/"+convID+"/retry", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "done", decode[map[string]any](t, w)["phase"])
}

// ---- trips ----

func TestListTrips_EmptyIsArray(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodGet, "/api/v1/trips", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"trips":[]}`, w.Body.String())
}

func TestListTrips_ArchivedFlag(t *testing.T) {
	var gotArchived bool
	trips := &mockTrips{
		listFn: func(_ context.Context, _ uuid.UUID, archived bool) ([]*itinerary.Trip, error) {
			gotArchived = archived
			return []*itinerary.Trip{storedTrip()}, nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodGet, "/api/v1/trips?archived=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotArchived)
}

func TestCreateTrip_Validation(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/trips", token, map[string]any{
		"destination": "", "start_date": "2026-06-05", "end_date": "2026-06-07",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/trips", token, map[string]any{
		"destination": "Lisbon", "start_date": "June 5th", "end_date": "2026-06-07",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/trips", token, map[string]any{
		"destination": "Lisbon", "start_date": "2026-06-07", "end_date": "2026-06-05",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTrip_LimitReached(t *testing.T) {
	trips := &mockTrips{
		countFn: func(_ context.Context, _ uuid.UUID) (int, error) {
			return billing.FreeTripLimit, nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/trips", token, map[string]any{
		"destination": "Lisbon", "start_date": "2026-06-05", "end_date": "2026-06-07",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateTrip_PremiumIgnoresLimit(t *testing.T) {
	trips := &mockTrips{
		countFn: func(_ context.Context, _ uuid.UUID) (int, error) { return 50, nil },
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanPremium)

	w := e.do(t, http.MethodPost, "/api/v1/trips", token, map[string]any{
		"destination": "Lisbon", "start_date": "2026-06-05", "end_date": "2026-06-07",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	trip := decode[itinerary.Trip](t, w)
	assert.Equal(t, "Trip to Lisbon", trip.Title)
}

func TestGetTrip_NotFound(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodGet, "/api/v1/trips/42", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/trips/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTrip_NotFound(t *testing.T) {
	trips := &mockTrips{
		deleteFn: func(_ context.Context, _ int, _ uuid.UUID) error {
			return storage.ErrTripNotFound
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodDelete, "/api/v1/trips/42", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchiveAndRestore(t *testing.T) {
	var states []bool
	trips := &mockTrips{
		archiveFn: func(_ context.Context, _ int, _ uuid.UUID, archived bool) error {
			states = append(states, archived)
			return nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/trips/7/archive", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/api/v1/trips/7/restore", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []bool{true, false}, states)
}

// ---- slot edits ----

func TestEditSlot_PatchesAndMarks(t *testing.T) {
	var savedDays []itinerary.TripDay
	trips := &mockTrips{
		getFn: func(_ context.Context, _ int, _ uuid.UUID) (*itinerary.Trip, error) {
			return storedTrip(), nil
		},
		updateDaysFn: func(_ context.Context, _ int, _ uuid.UUID, days []itinerary.TripDay) error {
			savedDays = days
			return nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPatch, "/api/v1/trips/7/days/2026-06-05/slots/0",
		token, map[string]string{"notes": "buy tickets first"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, savedDays, 1)
	slot := savedDays[0].TimeSlots[0]
	assert.Equal(t, "buy tickets first", slot.Notes)
	assert.True(t, slot.IsEdited)
	assert.Equal(t, "Castle of São Jorge", slot.Activity, "unpatched fields survive")
}

func TestEditSlot_UnknownDay(t *testing.T) {
	trips := &mockTrips{
		getFn: func(_ context.Context, _ int, _ uuid.UUID) (*itinerary.Trip, error) {
			return storedTrip(), nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPatch, "/api/v1/trips/7/days/2030-01-01/slots/0",
		token, map[string]string{"notes": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddSlot_RequiresTimeAndActivity(t *testing.T) {
	trips := &mockTrips{
		getFn: func(_ context.Context, _ int, _ uuid.UUID) (*itinerary.Trip, error) {
			return storedTrip(), nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/trips/7/days/2026-06-05/slots",
		token, map[string]string{"activity": "Dinner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddSlot_InsertsSorted(t *testing.T) {
	var savedDays []itinerary.TripDay
	trips := &mockTrips{
		getFn: func(_ context.Context, _ int, _ uuid.UUID) (*itinerary.Trip, error) {
			return storedTrip(), nil
		},
		updateDaysFn: func(_ context.Context, _ int, _ uuid.UUID, days []itinerary.TripDay) error {
			savedDays = days
			return nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPost, "/api/v1/trips/7/days/2026-06-05/slots",
		token, map[string]string{"time": "11:00", "activity": "Coffee break"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, savedDays[0].TimeSlots, 3)
	assert.Equal(t, "Coffee break", savedDays[0].TimeSlots[1].Activity)
	assert.True(t, savedDays[0].TimeSlots[1].IsEdited)
}

// ---- calendar ----

func TestSyncCalendar_RequiresPaidPlan(t *testing.T) {
	e := newEnv(t, nil, nil, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodPut, "/api/v1/trips/7/calendar", token,
		map[string]any{"events": []any{}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSyncCalendar_BatchIsAuthoritative(t *testing.T) {
	var savedDays []itinerary.TripDay
	trips := &mockTrips{
		getFn: func(_ context.Context, _ int, _ uuid.UUID) (*itinerary.Trip, error) {
			return storedTrip(), nil
		},
		updateDaysFn: func(_ context.Context, _ int, _ uuid.UUID, days []itinerary.TripDay) error {
			savedDays = days
			return nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanPro)

	// Only the castle survives; the walking tour is absent from the batch.
	w := e.do(t, http.MethodPut, "/api/v1/trips/7/calendar", token, map[string]any{
		"events": []map[string]any{{
			"title": "Castle of São Jorge",
			"start": "2026-06-05T09:00:00Z",
			"end":   "2026-06-05T12:00:00Z",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, savedDays, 1)
	require.Len(t, savedDays[0].TimeSlots, 1)
	assert.Equal(t, "Castle of São Jorge", savedDays[0].TimeSlots[0].Activity)
	assert.Equal(t, "3 hours", savedDays[0].TimeSlots[0].Duration)
}

func TestExportCalendar(t *testing.T) {
	trips := &mockTrips{
		getFn: func(_ context.Context, _ int, _ uuid.UUID) (*itinerary.Trip, error) {
			return storedTrip(), nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)

	w := e.do(t, http.MethodGet, "/api/v1/trips/7/calendar.ics", e.token(t, billing.PlanFree), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/trips/7/calendar.ics", e.token(t, billing.PlanPro), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "SUMMARY:Castle of São Jorge")
}

// ---- stats ----

func TestTopDestinations(t *testing.T) {
	var gotLimit int
	trips := &mockTrips{
		topFn: func(_ context.Context, limit int) ([]storage.DestinationCount, error) {
			gotLimit = limit
			return []storage.DestinationCount{{Destination: "Lisbon", Trips: 12}}, nil
		},
	}
	e := newEnv(t, nil, trips, nil, nil)
	token := e.token(t, billing.PlanFree)

	w := e.do(t, http.MethodGet, "/api/v1/trips/stats/top-destinations?limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Contains(t, w.Body.String(), "Lisbon")
}

// ---- health ----

func TestHealth_Degraded(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := api.NewAuth("test-secret", time.Hour)
	handlers := api.NewHandlers(&mockUsers{}, &mockTrips{}, conversation.NewStore(),
		&mockAssistant{}, &mockGenerator{}, &mockEnricher{}, auth, log)
	router := api.NewRouter(handlers, auth, api.RouterConfig{},
		&mockPinger{err: fmt.Errorf("db unreachable")}, &mockPinger{}, log)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["db"])
	assert.Equal(t, "ok", body["redis"])
}
