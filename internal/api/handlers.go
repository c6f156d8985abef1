package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tripweaver/internal/billing"
	"tripweaver/internal/conversation"
	"tripweaver/internal/export"
	"tripweaver/internal/itinerary"
	"tripweaver/internal/storage"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	users     UserStore
	trips     TripStore
	convs     *conversation.Store
	assistant conversation.Assistant
	generator conversation.Generator
	enricher  Enricher
	auth      *Auth
	log       *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(users UserStore, trips TripStore, convs *conversation.Store,
	assistant conversation.Assistant, generator conversation.Generator,
	enricher Enricher, auth *Auth, log *slog.Logger) *Handlers {
	return &Handlers{
		users:     users,
		trips:     trips,
		convs:     convs,
		assistant: assistant,
		generator: generator,
		enricher:  enricher,
		auth:      auth,
		log:       log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---- auth ----

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error("hashing password failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Email, string(hash), billing.PlanFree)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.log.Error("creating user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.log.Error("looking up user failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

func (h *Handlers) respondWithToken(w http.ResponseWriter, status int, user *storage.User) {
	token, err := h.auth.IssueToken(user.ID, user.Email, user.Plan)
	if err != nil {
		h.log.Error("signing token failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, status, authResponse{Token: token, Email: user.Email, Plan: user.Plan})
}

// ---- conversations ----

type conversationResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Phase          conversation.Phase     `json:"phase"`
	Messages       []conversation.Message `json:"messages"`
	Trip           *itinerary.Trip        `json:"trip,omitempty"`
}

// CreateConversation handles POST /api/v1/conversations.
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	conv := conversation.New(h.assistant, h.generator, h.log)
	h.convs.Put(conv)

	writeJSON(w, http.StatusCreated, conversationResponse{
		ConversationID: conv.ID.String(),
		Phase:          conv.Phase(),
		Messages:       conv.Transcript(),
	})
}

// PostMessage handles POST /api/v1/conversations/{id}/messages.
// A 409 means a generation or fallback call is still outstanding, or the
// conversation already delivered its itinerary.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	conv := h.conversationFrom(w, r)
	if conv == nil {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "message text is required")
		return
	}

	reply, err := conv.Advance(r.Context(), req.Text)
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	h.respondWithReply(r.Context(), w, conv, reply)
}

// RetryGeneration handles POST /api/v1/conversations/{id}/retry.
func (h *Handlers) RetryGeneration(w http.ResponseWriter, r *http.Request) {
	conv := h.conversationFrom(w, r)
	if conv == nil {
		return
	}

	reply, err := conv.Retry(r.Context())
	if err != nil {
		h.writeConversationError(w, err)
		return
	}

	h.respondWithReply(r.Context(), w, conv, reply)
}

// DeleteConversation handles DELETE /api/v1/conversations/{id}. Resetting
// first invalidates any in-flight generation before the session is dropped.
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv := h.conversationFrom(w, r)
	if conv == nil {
		return
	}

	conv.Reset()
	h.convs.Delete(conv.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) conversationFrom(w http.ResponseWriter, r *http.Request) *conversation.Conversation {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return nil
	}
	conv := h.convs.Get(id)
	if conv == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil
	}
	return conv
}

func (h *Handlers) writeConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrBusy):
		writeError(w, http.StatusConflict, "a reply is still being prepared")
	case errors.Is(err, conversation.ErrFinished):
		writeError(w, http.StatusConflict, "conversation is finished")
	case errors.Is(err, conversation.ErrStale):
		writeError(w, http.StatusConflict, "conversation was reset")
	case errors.Is(err, conversation.ErrNotFailed):
		writeError(w, http.StatusConflict, "nothing to retry")
	default:
		h.log.Error("advancing conversation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondWithReply returns the turn's messages, persisting the finished trip
// when the pipeline completed this turn.
func (h *Handlers) respondWithReply(ctx context.Context, w http.ResponseWriter, conv *conversation.Conversation, reply *conversation.Reply) {
	resp := conversationResponse{
		ConversationID: conv.ID.String(),
		Phase:          reply.Phase,
		Messages:       reply.Messages,
	}

	if reply.Phase == conversation.PhaseDone {
		trip, err := h.persistTrip(ctx, reply)
		if err != nil {
			if errors.Is(err, errTripLimit) {
				writeError(w, http.StatusForbidden, "trip limit reached for your plan")
				return
			}
			h.log.Error("persisting trip failed", "err", err)
			writeError(w, http.StatusInternalServerError, "itinerary was generated but could not be saved")
			return
		}
		resp.Trip = trip
		h.convs.Delete(conv.ID)
	}

	writeJSON(w, http.StatusOK, resp)
}

var errTripLimit = errors.New("trip limit reached")

// persistTrip enriches the generated days with weather and stores the trip
// for the authenticated user. Weather enrichment is best-effort; persistence
// is not.
func (h *Handlers) persistTrip(ctx context.Context, reply *conversation.Reply) (*itinerary.Trip, error) {
	claims := claimsFrom(ctx)
	if claims == nil {
		return nil, errors.New("no authenticated user on context")
	}

	count, err := h.trips.CountActiveTrips(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("counting trips: %w", err)
	}
	if !billing.CanCreateTrip(claims.Plan, count) {
		return nil, errTripLimit
	}

	draft := reply.Draft
	days := reply.Days
	if billing.For(claims.Plan).WeatherAware {
		days = h.enricher.Enrich(ctx, days, draft.Destination)
	}

	trip := &itinerary.Trip{
		UserID:          claims.UserID,
		Title:           fmt.Sprintf("Trip to %s", draft.Destination),
		Destination:     draft.Destination,
		BudgetPerPerson: draft.BudgetPerPerson,
		PartySize:       draft.PartySize,
		Preferences: itinerary.Preferences{
			Accommodation: draft.Accommodation,
			Activities:    draft.Activities,
			Pace:          draft.Pace,
		},
		Days: days,
	}
	if draft.Dates != nil {
		trip.StartDate = draft.Dates.Start.Format("2006-01-02")
		trip.EndDate = draft.Dates.End.Format("2006-01-02")
	}

	if err := h.trips.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("creating trip: %w", err)
	}
	return trip, nil
}

// ---- trips ----

// ListTrips handles GET /api/v1/trips. ?archived=true lists the archive.
func (h *Handlers) ListTrips(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	archived := r.URL.Query().Get("archived") == "true"

	trips, err := h.trips.ListTrips(r.Context(), claims.UserID, archived)
	if err != nil {
		h.log.Error("listing trips failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if trips == nil {
		trips = []*itinerary.Trip{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": trips})
}

type createTripRequest struct {
	Title           string                `json:"title"`
	Destination     string                `json:"destination"`
	StartDate       string                `json:"start_date"`
	EndDate         string                `json:"end_date"`
	BudgetPerPerson float64               `json:"budget_per_person"`
	PartySize       int                   `json:"party_size"`
	Preferences     itinerary.Preferences `json:"preferences"`
	Days            []itinerary.TripDay   `json:"days"`
}

// CreateTrip handles POST /api/v1/trips: a direct trip, bypassing the
// conversation.
func (h *Handlers) CreateTrip(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Destination == "" {
		writeError(w, http.StatusBadRequest, "destination is required")
		return
	}
	for _, d := range []string{req.StartDate, req.EndDate} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			writeError(w, http.StatusBadRequest, "start_date and end_date must be YYYY-MM-DD")
			return
		}
	}
	if req.EndDate < req.StartDate {
		writeError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}
	if req.PartySize < 1 {
		req.PartySize = 1
	}

	count, err := h.trips.CountActiveTrips(r.Context(), claims.UserID)
	if err != nil {
		h.log.Error("counting trips failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !billing.CanCreateTrip(claims.Plan, count) {
		writeError(w, http.StatusForbidden, "trip limit reached for your plan")
		return
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Trip to %s", req.Destination)
	}
	trip := &itinerary.Trip{
		UserID:          claims.UserID,
		Title:           title,
		Destination:     req.Destination,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		BudgetPerPerson: req.BudgetPerPerson,
		PartySize:       req.PartySize,
		Preferences:     req.Preferences,
		Days:            req.Days,
	}
	if err := h.trips.CreateTrip(r.Context(), trip); err != nil {
		h.log.Error("creating trip failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, trip)
}

// GetTrip handles GET /api/v1/trips/{id}.
func (h *Handlers) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip := h.tripFrom(w, r)
	if trip == nil {
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

type updateTripRequest struct {
	Days []itinerary.TripDay `json:"days"`
}

// UpdateTrip handles PUT /api/v1/trips/{id}: merge a regenerated set of days
// into the stored trip. Weather context and alternatives already attached to
// a stored day survive when the replacement omits them.
func (h *Handlers) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	trip := h.tripFrom(w, r)
	if trip == nil {
		return
	}

	var req updateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Days) == 0 {
		writeError(w, http.StatusBadRequest, "days are required")
		return
	}

	itinerary.MergeRegenerated(trip, req.Days)
	h.saveDays(w, r, trip)
}

// DeleteTrip handles DELETE /api/v1/trips/{id} (soft delete).
func (h *Handlers) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	id, ok := tripID(w, r)
	if !ok {
		return
	}

	if err := h.trips.DeleteTrip(r.Context(), id, claims.UserID); err != nil {
		if errors.Is(err, storage.ErrTripNotFound) {
			writeError(w, http.StatusNotFound, "trip not found")
			return
		}
		h.log.Error("deleting trip failed", "trip", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveTrip handles POST /api/v1/trips/{id}/archive.
func (h *Handlers) ArchiveTrip(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// RestoreTrip handles POST /api/v1/trips/{id}/restore.
func (h *Handlers) RestoreTrip(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handlers) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	claims := claimsFrom(r.Context())
	id, ok := tripID(w, r)
	if !ok {
		return
	}

	if err := h.trips.SetTripArchived(r.Context(), id, claims.UserID, archived); err != nil {
		if errors.Is(err, storage.ErrTripNotFound) {
			writeError(w, http.StatusNotFound, "trip not found")
			return
		}
		h.log.Error("archiving trip failed", "trip", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"archived": archived})
}

// ---- slot edits ----

// EditSlot handles PATCH /api/v1/trips/{id}/days/{date}/slots/{index}.
func (h *Handlers) EditSlot(w http.ResponseWriter, r *http.Request) {
	trip := h.tripFrom(w, r)
	if trip == nil {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot index")
		return
	}

	var patch itinerary.ActivityPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	edit := itinerary.ManualEdit{
		Date:      chi.URLParam(r, "date"),
		SlotIndex: index,
		Patch:     patch,
	}
	if err := itinerary.ApplyManualEdit(trip, edit); err != nil {
		var notFound itinerary.ErrSlotNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, notFound.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.saveDays(w, r, trip)
}

// AddSlot handles POST /api/v1/trips/{id}/days/{date}/slots.
func (h *Handlers) AddSlot(w http.ResponseWriter, r *http.Request) {
	trip := h.tripFrom(w, r)
	if trip == nil {
		return
	}

	var activity itinerary.Activity
	if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if activity.Time == "" || activity.Activity == "" {
		writeError(w, http.StatusBadRequest, "time and activity are required")
		return
	}

	if err := itinerary.AddActivity(trip, chi.URLParam(r, "date"), activity); err != nil {
		var notFound itinerary.ErrSlotNotFound
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, notFound.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.saveDays(w, r, trip)
}

// ---- calendar ----

type calendarBatchRequest struct {
	Events []itinerary.CalendarEvent `json:"events"`
}

// SyncCalendar handles PUT /api/v1/trips/{id}/calendar. The batch is
// authoritative for every day it touches. Calendar sync is a paid feature.
func (h *Handlers) SyncCalendar(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !billing.For(claims.Plan).CalendarSync {
		writeError(w, http.StatusForbidden, "calendar sync requires a paid plan")
		return
	}

	trip := h.tripFrom(w, r)
	if trip == nil {
		return
	}

	var req calendarBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	itinerary.ApplyCalendarBatch(trip, req.Events)
	h.saveDays(w, r, trip)
}

// ExportCalendar handles GET /api/v1/trips/{id}/calendar.ics.
func (h *Handlers) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !billing.For(claims.Plan).ICSExport {
		writeError(w, http.StatusForbidden, "calendar export requires a paid plan")
		return
	}

	trip := h.tripFrom(w, r)
	if trip == nil {
		return
	}

	ical, err := export.Calendar(trip)
	if err != nil {
		h.log.Error("exporting calendar failed", "trip", trip.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("trip-%d.ics", trip.ID)))
	_, _ = w.Write([]byte(ical))
}

// ---- stats ----

// TopDestinations handles GET /api/v1/trips/stats/top-destinations.
func (h *Handlers) TopDestinations(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	top, err := h.trips.TopDestinations(r.Context(), limit)
	if err != nil {
		h.log.Error("querying top destinations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if top == nil {
		top = []storage.DestinationCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"destinations": top})
}

// ---- shared trip helpers ----

func tripID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip id")
		return 0, false
	}
	return id, true
}

// tripFrom loads the trip named in the URL for the authenticated user,
// writing the error response itself when it returns nil.
func (h *Handlers) tripFrom(w http.ResponseWriter, r *http.Request) *itinerary.Trip {
	claims := claimsFrom(r.Context())
	id, ok := tripID(w, r)
	if !ok {
		return nil
	}

	trip, err := h.trips.GetTrip(r.Context(), id, claims.UserID)
	if err != nil {
		h.log.Error("loading trip failed", "trip", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if trip == nil {
		writeError(w, http.StatusNotFound, "trip not found")
		return nil
	}
	return trip
}

// saveDays persists the trip's modified days and returns the full trip.
func (h *Handlers) saveDays(w http.ResponseWriter, r *http.Request, trip *itinerary.Trip) {
	claims := claimsFrom(r.Context())

	if err := h.trips.UpdateTripDays(r.Context(), trip.ID, claims.UserID, trip.Days); err != nil {
		if errors.Is(err, storage.ErrTripNotFound) {
			writeError(w, http.StatusNotFound, "trip not found")
			return
		}
		h.log.Error("saving trip days failed", "trip", trip.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, trip)
}

// ---- health ----

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity. 200 when both respond, 503 otherwise.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
