package web_server

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/gobuffalo/nulls"
	"github.com/gorilla/mux"
	"github.com/lefinal/festfinder/calendar"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/event"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/search"
	"github.com/lefinal/festfinder/store"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

// maxRequestBodySize limits the size of request bodies.
const maxRequestBodySize = 1 << 20

// Finder performs searches.
type Finder interface {
	Search(ctx context.Context, query string, locale search.Locale) (finder.Result, error)
}

// Store provides festival persistence.
type Store interface {
	// FestivalByID retrieves the festival with the given id. If not found, an
	// errors.ErrNotFound error is returned.
	FestivalByID(ctx context.Context, festivalID string) (store.Festival, error)
	// CreateFestival validates and creates a festival from the given draft.
	CreateFestival(ctx context.Context, draft store.FestivalDraft) (store.Festival, error)
	// UpdateFestival validates the draft and replaces the festival with the
	// given id while keeping its id and creation timestamp. If not found, an
	// errors.ErrNotFound error is returned.
	UpdateFestival(ctx context.Context, festivalID string, draft store.FestivalDraft) (store.Festival, error)
	// DeleteFestival deletes the festival with the given id. If not found, an
	// errors.ErrNotFound error is returned.
	DeleteFestival(ctx context.Context, festivalID string) error
	// RegisterForSubEvent registers the participant for the sub-event at the
	// given position. The returned bool is false if the participant was
	// already registered.
	RegisterForSubEvent(ctx context.Context, festivalID string, subEvent int, participant string) (store.Registration, bool, error)
}

// API serves the festival endpoints.
type API struct {
	logger *zap.Logger
	finder Finder
	store  Store
	// defaultLocale is used if the request names no supported locale.
	defaultLocale string
	// now returns the current time for calendar stamps.
	now func() time.Time
}

// NewAPI creates a new API for use in WebServer.PopulateRoutes.
func NewAPI(logger *zap.Logger, finder Finder, store Store, defaultLocale string) *API {
	return &API{
		logger:        logger,
		finder:        finder,
		store:         store,
		defaultLocale: defaultLocale,
		now:           time.Now,
	}
}

// subEventJSON is the JSON representation of store.SubEvent.
type subEventJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// festivalDraftJSON is the request body for creating festivals.
type festivalDraftJSON struct {
	College     string         `json:"college"`
	EventName   string         `json:"event_name"`
	Location    string         `json:"location"`
	Dates       string         `json:"dates"`
	Type        string         `json:"type"`
	Competition nulls.String   `json:"competition"`
	SubEvents   []subEventJSON `json:"sub_events"`
}

func (draft festivalDraftJSON) toStore() store.FestivalDraft {
	subEvents := make([]store.SubEvent, 0, len(draft.SubEvents))
	for _, sub := range draft.SubEvents {
		subEvents = append(subEvents, store.SubEvent{
			Name: sub.Name,
			Type: sub.Type,
		})
	}
	return store.FestivalDraft{
		College:     draft.College,
		EventName:   draft.EventName,
		Location:    draft.Location,
		Dates:       draft.Dates,
		Type:        draft.Type,
		Competition: draft.Competition,
		SubEvents:   subEvents,
	}
}

// festivalJSON is the JSON representation of store.Festival with normalized
// dates.
type festivalJSON struct {
	ID          string       `json:"id"`
	College     string       `json:"college"`
	EventName   string       `json:"event_name"`
	Location    string       `json:"location"`
	Dates       string       `json:"dates"`
	Start       search.Date  `json:"start"`
	End         search.Date  `json:"end"`
	DateRange   string       `json:"date_range"`
	Type        string       `json:"type"`
	Competition nulls.String `json:"competition"`
	CreatedAt   nulls.Int64  `json:"created_at"`
	// SubEvents is never nil.
	SubEvents []subEventJSON `json:"sub_events"`
}

func festivalJSONFromStore(festival store.Festival, locale search.Locale) festivalJSON {
	start, end := search.NormalizeRange(festival.Dates)
	subEvents := make([]subEventJSON, 0, len(festival.SubEvents))
	for _, sub := range festival.SubEvents {
		subEvents = append(subEvents, subEventJSON{
			Name: sub.Name,
			Type: sub.Type,
		})
	}
	return festivalJSON{
		ID:          festival.ID,
		College:     festival.College,
		EventName:   festival.EventName,
		Location:    festival.Location,
		Dates:       festival.Dates,
		Start:       start,
		End:         end,
		DateRange:   locale.FormatRange(start, end),
		Type:        festival.Type,
		Competition: festival.Competition,
		CreatedAt:   festival.CreatedAt,
		SubEvents:   subEvents,
	}
}

// registrationRequestJSON is the request body for registering for a
// sub-event.
type registrationRequestJSON struct {
	Participant string `json:"participant"`
}

// registrationJSON is the JSON representation of store.Registration.
type registrationJSON struct {
	FestivalID   string `json:"festival_id"`
	SubEvent     int    `json:"sub_event"`
	Participant  string `json:"participant"`
	RegisteredAt int64  `json:"registered_at"`
}

// locale returns the search.Locale for the request based on the locale query
// parameter and the Accept-Language header.
func (api *API) locale(r *http.Request) search.Locale {
	return search.LocaleFor(r.URL.Query().Get("locale"), r.Header.Get("Accept-Language"), api.defaultLocale)
}

// respondJSON responds with the given status and the payload as JSON.
func (api *API) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		api.respondError(w, errors.NewInternalErrorFromErr(err, "marshal response", nil))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(raw)
	if err != nil {
		api.logger.Debug("write response", zap.Error(err))
	}
}

// respondError logs the error and responds with the matching status code.
// Details are only included if the user is to blame.
func (api *API) respondError(w http.ResponseWriter, err error) {
	errors.Log(api.logger, err)
	payload := event.ErrorEventPayloadFromError(err)
	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatus(err))
	_, _ = w.Write(raw)
}

// search performs the search for the query parameter q.
func (api *API) search(r *http.Request) (finder.Result, error) {
	query := r.URL.Query().Get("q")
	result, err := api.finder.Search(r.Context(), query, api.locale(r))
	if err != nil {
		return finder.Result{}, errors.Wrap(err, "search", errors.Details{"query": query})
	}
	return result, nil
}

// handleSearch responds with the ranked festivals matching the query.
func (api *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	result, err := api.search(r)
	if err != nil {
		api.respondError(w, err)
		return
	}
	api.respondJSON(w, http.StatusOK, event.SearchHitsFromRanked(result.Events, result.Locale))
}

// handleSearchCalendar responds with the ranked festivals matching the query
// as iCalendar.
func (api *API) handleSearchCalendar(w http.ResponseWriter, r *http.Request) {
	result, err := api.search(r)
	if err != nil {
		api.respondError(w, err)
		return
	}
	var buf bytes.Buffer
	err = calendar.Write(&buf, result.Events, result.Locale, api.now())
	if err != nil {
		api.respondError(w, errors.Wrap(err, "write calendar", nil))
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="festivals.ics"`)
	w.WriteHeader(http.StatusOK)
	_, err = buf.WriteTo(w)
	if err != nil {
		api.logger.Debug("write calendar response", zap.Error(err))
	}
}

// handleGetFestival responds with the festival including sub-events.
func (api *API) handleGetFestival(w http.ResponseWriter, r *http.Request) {
	festivalID := mux.Vars(r)["festivalID"]
	festival, err := api.store.FestivalByID(r.Context(), festivalID)
	if err != nil {
		api.respondError(w, errors.Wrap(err, "festival by id", nil))
		return
	}
	api.respondJSON(w, http.StatusOK, festivalJSONFromStore(festival, api.locale(r)))
}

// decodeBody decodes the size-limited JSON request body into the given target.
func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}, what string) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(target)
	if err != nil {
		return errors.NewJSONDecodeError(err, what)
	}
	return nil
}

// handleCreateFestival creates a festival from the festivalDraftJSON body and
// responds with the created one.
func (api *API) handleCreateFestival(w http.ResponseWriter, r *http.Request) {
	var draft festivalDraftJSON
	err := decodeBody(w, r, &draft, "festival draft")
	if err != nil {
		api.respondError(w, err)
		return
	}
	festival, err := api.store.CreateFestival(r.Context(), draft.toStore())
	if err != nil {
		api.respondError(w, errors.Wrap(err, "create festival", nil))
		return
	}
	api.logger.Info("festival created",
		zap.String("festival_id", festival.ID),
		zap.String("college", festival.College),
		zap.String("event_name", festival.EventName))
	api.respondJSON(w, http.StatusCreated, festivalJSONFromStore(festival, api.locale(r)))
}

// handleUpdateFestival replaces the festival with the festivalDraftJSON body
// and responds with the updated one.
func (api *API) handleUpdateFestival(w http.ResponseWriter, r *http.Request) {
	festivalID := mux.Vars(r)["festivalID"]
	var draft festivalDraftJSON
	err := decodeBody(w, r, &draft, "festival draft")
	if err != nil {
		api.respondError(w, err)
		return
	}
	festival, err := api.store.UpdateFestival(r.Context(), festivalID, draft.toStore())
	if err != nil {
		api.respondError(w, errors.Wrap(err, "update festival", nil))
		return
	}
	api.logger.Info("festival updated", zap.String("festival_id", festival.ID))
	api.respondJSON(w, http.StatusOK, festivalJSONFromStore(festival, api.locale(r)))
}

// handleRegisterForSubEvent registers the participant from the
// registrationRequestJSON body for the sub-event. It responds with
// http.StatusCreated for new registrations and http.StatusOK if the
// participant was already registered.
func (api *API) handleRegisterForSubEvent(w http.ResponseWriter, r *http.Request) {
	festivalID := mux.Vars(r)["festivalID"]
	subEvent, err := strconv.Atoi(mux.Vars(r)["subEvent"])
	if err != nil {
		api.respondError(w, errors.NewResourceNotFoundError("sub-event not found", errors.Details{
			"festival_id": festivalID,
			"sub_event":   mux.Vars(r)["subEvent"],
		}))
		return
	}
	var request registrationRequestJSON
	err = decodeBody(w, r, &request, "registration")
	if err != nil {
		api.respondError(w, err)
		return
	}
	registration, created, err := api.store.RegisterForSubEvent(r.Context(), festivalID, subEvent, request.Participant)
	if err != nil {
		api.respondError(w, errors.Wrap(err, "register for sub-event", nil))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		api.logger.Info("registered for sub-event",
			zap.String("festival_id", festivalID),
			zap.Int("sub_event", subEvent))
	}
	api.respondJSON(w, status, registrationJSON{
		FestivalID:   registration.FestivalID,
		SubEvent:     registration.SubEvent,
		Participant:  registration.Participant,
		RegisteredAt: registration.RegisteredAt,
	})
}

// handleDeleteFestival deletes the festival.
func (api *API) handleDeleteFestival(w http.ResponseWriter, r *http.Request) {
	festivalID := mux.Vars(r)["festivalID"]
	err := api.store.DeleteFestival(r.Context(), festivalID)
	if err != nil {
		api.respondError(w, errors.Wrap(err, "delete festival", nil))
		return
	}
	api.logger.Info("festival deleted", zap.String("festival_id", festivalID))
	w.WriteHeader(http.StatusNoContent)
}
