package web_server

import (
	"context"
	"encoding/json"
	"github.com/gobuffalo/nulls"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/search"
	"github.com/lefinal/festfinder/store"
	"github.com/lefinal/festfinder/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// finderStub mocks Finder.
type finderStub struct {
	mock.Mock
}

func (stub *finderStub) Search(ctx context.Context, query string, locale search.Locale) (finder.Result, error) {
	args := stub.Called(ctx, query, locale)
	return args.Get(0).(finder.Result), args.Error(1)
}

// storeStub mocks Store.
type storeStub struct {
	mock.Mock
}

func (stub *storeStub) FestivalByID(ctx context.Context, festivalID string) (store.Festival, error) {
	args := stub.Called(ctx, festivalID)
	return args.Get(0).(store.Festival), args.Error(1)
}

func (stub *storeStub) CreateFestival(ctx context.Context, draft store.FestivalDraft) (store.Festival, error) {
	args := stub.Called(ctx, draft)
	return args.Get(0).(store.Festival), args.Error(1)
}

func (stub *storeStub) UpdateFestival(ctx context.Context, festivalID string, draft store.FestivalDraft) (store.Festival, error) {
	args := stub.Called(ctx, festivalID, draft)
	return args.Get(0).(store.Festival), args.Error(1)
}

func (stub *storeStub) DeleteFestival(ctx context.Context, festivalID string) error {
	return stub.Called(ctx, festivalID).Error(0)
}

func (stub *storeStub) RegisterForSubEvent(ctx context.Context, festivalID string, subEvent int, participant string) (store.Registration, bool, error) {
	args := stub.Called(ctx, festivalID, subEvent, participant)
	return args.Get(0).(store.Registration), args.Bool(1), args.Error(2)
}

func TestNewWebServer(t *testing.T) {
	t.Run("missing addr", func(t *testing.T) {
		_, err := NewWebServer(zap.New(zapcore.NewNopCore()), Config{})
		assert.Error(t, err, "should fail")
	})
	t.Run("ok", func(t *testing.T) {
		server, err := NewWebServer(zap.New(zapcore.NewNopCore()), Config{ServeAddr: DefaultServeAddr})
		require.NoError(t, err, "should not fail")
		assert.Equal(t, DefaultServeAddr, server.httpServer.Addr, "should set addr")
	})
}

// apiSuite tests API via the routes of WebServer.
type apiSuite struct {
	suite.Suite
	finder  *finderStub
	store   *storeStub
	server  *WebServer
	ranked  []search.RankedEvent
	metrics http.Handler
}

func (suite *apiSuite) SetupTest() {
	logger := zap.New(zapcore.NewNopCore())
	suite.finder = &finderStub{}
	suite.store = &storeStub{}
	var err error
	suite.server, err = NewWebServer(logger, Config{ServeAddr: DefaultServeAddr})
	suite.Require().NoError(err, "create web server should not fail")
	api := NewAPI(logger, suite.finder, suite.store, "en-US")
	api.now = func() time.Time {
		return time.Date(2025, time.December, 10, 12, 0, 0, 0, time.UTC)
	}
	suite.metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("catalog_festivals 2\n"))
	})
	hub := ws.NewHub(logger, ws.NewSearchListener(logger, suite.finder, "en-US"))
	suite.server.PopulateRoutes(context.Background(), hub, api, suite.metrics)
	suite.ranked = []search.RankedEvent{
		{
			Summary: search.Summary{
				ID:        "techfest",
				College:   "IIT Bombay",
				Name:      "Techfest",
				City:      "Mumbai",
				Start:     search.NewDate(2025, time.December, 12),
				End:       search.NewDate(2025, time.December, 13),
				EventType: "Technical",
			},
			Category: search.CategoryUpcoming,
		},
	}
}

func (suite *apiSuite) do(method string, target string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	suite.server.router.ServeHTTP(rr, r)
	return rr
}

func (suite *apiSuite) TestSearch() {
	suite.finder.On("Search", mock.Anything, "mumba1", mock.MatchedBy(func(locale search.Locale) bool {
		return locale.Tag() == search.LocaleFor("de").Tag()
	})).Return(finder.Result{Events: suite.ranked, Locale: search.LocaleFor("de")}, nil).Once()
	defer suite.finder.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/search?q=mumba1&locale=de", "")
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok")
	suite.NotEmpty(rr.Header().Get("Cache-Control"), "should forbid caching")
	var got []map[string]interface{}
	suite.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &got))
	suite.Require().Len(got, 1, "should respond with results")
	suite.Equal("techfest", got[0]["id"])
	suite.Equal("12.–13. Dez. 2025", got[0]["dates"])
	suite.Equal("2025-12-12", got[0]["start"])
	suite.Equal("upcoming", got[0]["category"])
	suite.NotContains(got[0], "competition", "should omit empty competition")
}

func (suite *apiSuite) TestSearchEmpty() {
	suite.finder.On("Search", mock.Anything, "", mock.Anything).
		Return(finder.Result{Events: []search.RankedEvent{}, Locale: search.DefaultLocale}, nil).Once()
	defer suite.finder.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/search", "")
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok")
	suite.JSONEq(`[]`, rr.Body.String(), "should respond with empty list")
}

func (suite *apiSuite) TestSearchFail() {
	suite.finder.On("Search", mock.Anything, "techfest", mock.Anything).
		Return(finder.Result{}, errors.NewInternalError("sad life", nil)).Once()
	defer suite.finder.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/search?q=techfest", "")
	suite.Equal(http.StatusInternalServerError, rr.Code, "should respond with internal server error")
	suite.NotContains(rr.Body.String(), "sad life", "should not leak internal message")
}

func (suite *apiSuite) TestSearchCalendar() {
	suite.finder.On("Search", mock.Anything, "techfest", mock.Anything).
		Return(finder.Result{Events: suite.ranked, Locale: search.DefaultLocale}, nil).Once()
	defer suite.finder.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/search.ics?q=techfest", "")
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok")
	suite.Contains(rr.Header().Get("Content-Type"), "text/calendar")
	suite.Contains(rr.Body.String(), "BEGIN:VCALENDAR")
	suite.Contains(rr.Body.String(), "UID:techfest@festfinder")
}

func (suite *apiSuite) TestSearchCalendarEmpty() {
	suite.finder.On("Search", mock.Anything, "nothing1", mock.Anything).
		Return(finder.Result{Events: []search.RankedEvent{}, Locale: search.DefaultLocale}, nil).Once()
	defer suite.finder.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/search.ics?q=nothing1", "")
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
}

func (suite *apiSuite) TestGetFestival() {
	suite.store.On("FestivalByID", mock.Anything, "techfest").Return(store.Festival{
		ID:        "techfest",
		College:   "IIT Bombay",
		EventName: "Techfest",
		Location:  "Mumbai",
		Dates:     "12th to 13th Dec 25",
		Type:      "Technical",
		CreatedAt: nulls.NewInt64(42),
		SubEvents: []store.SubEvent{{Name: "Robowars", Type: "Competition"}},
	}, nil).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/techfest", "")
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok")
	suite.JSONEq(`{
		"id": "techfest",
		"college": "IIT Bombay",
		"event_name": "Techfest",
		"location": "Mumbai",
		"dates": "12th to 13th Dec 25",
		"start": "2025-12-12",
		"end": "2025-12-13",
		"date_range": "12–13 Dec 2025",
		"type": "Technical",
		"competition": null,
		"created_at": 42,
		"sub_events": [{"name": "Robowars", "type": "Competition"}]
	}`, rr.Body.String())
}

func (suite *apiSuite) TestGetFestivalNotFound() {
	suite.store.On("FestivalByID", mock.Anything, "unknown").
		Return(store.Festival{}, errors.NewResourceNotFoundError("festival not found", nil)).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodGet, "/api/v1/festivals/unknown", "")
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
}

func (suite *apiSuite) TestCreateFestivalInvalidJSON() {
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPost, "/api/v1/festivals", "{meow")
	suite.Equal(http.StatusBadRequest, rr.Code, "should respond with bad request")
}

func (suite *apiSuite) TestCreateFestivalInvalidDraft() {
	suite.store.On("CreateFestival", mock.Anything, mock.Anything).
		Return(store.Festival{}, store.FestivalDraft{}.Validate()).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPost, "/api/v1/festivals", `{}`)
	suite.Equal(http.StatusBadRequest, rr.Code, "should respond with bad request")
}

func (suite *apiSuite) TestCreateFestival() {
	suite.store.On("CreateFestival", mock.Anything, store.FestivalDraft{
		College:     "IIT Bombay",
		EventName:   "Techfest",
		Location:    "Mumbai",
		Dates:       "12th to 13th Dec 25",
		Type:        "Technical",
		Competition: nulls.NewString("National"),
		SubEvents:   []store.SubEvent{{Name: "Robowars", Type: "Competition"}},
	}).Return(store.Festival{
		ID:          "techfest",
		College:     "IIT Bombay",
		EventName:   "Techfest",
		Location:    "Mumbai",
		Dates:       "12th to 13th Dec 25",
		Type:        "Technical",
		Competition: nulls.NewString("National"),
		CreatedAt:   nulls.NewInt64(42),
		SubEvents:   []store.SubEvent{{Name: "Robowars", Type: "Competition"}},
	}, nil).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPost, "/api/v1/festivals", `{
		"college": "IIT Bombay",
		"event_name": "Techfest",
		"location": "Mumbai",
		"dates": "12th to 13th Dec 25",
		"type": "Technical",
		"competition": "National",
		"sub_events": [{"name": "Robowars", "type": "Competition"}]
	}`)
	suite.Equal(http.StatusCreated, rr.Code, "should respond with created")
	var got map[string]interface{}
	suite.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &got))
	suite.Equal("techfest", got["id"])
	suite.Equal("National", got["competition"])
}

func (suite *apiSuite) TestUpdateFestival() {
	suite.store.On("UpdateFestival", mock.Anything, "techfest", store.FestivalDraft{
		College:   "IIT Bombay",
		EventName: "Techfest 2025",
		Location:  "Mumbai",
		Dates:     "13th to 14th Dec 25",
		Type:      "Technical",
		SubEvents: []store.SubEvent{},
	}).Return(store.Festival{
		ID:        "techfest",
		College:   "IIT Bombay",
		EventName: "Techfest 2025",
		Location:  "Mumbai",
		Dates:     "13th to 14th Dec 25",
		Type:      "Technical",
		CreatedAt: nulls.NewInt64(42),
		SubEvents: []store.SubEvent{},
	}, nil).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPut, "/api/v1/festivals/techfest", `{
		"college": "IIT Bombay",
		"event_name": "Techfest 2025",
		"location": "Mumbai",
		"dates": "13th to 14th Dec 25",
		"type": "Technical"
	}`)
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok")
	var got map[string]interface{}
	suite.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &got))
	suite.Equal("techfest", got["id"], "should keep id")
	suite.Equal(float64(42), got["created_at"], "should keep creation timestamp")
	suite.Equal("Techfest 2025", got["event_name"])
	suite.Equal("13–14 Dec 2025", got["date_range"])
}

func (suite *apiSuite) TestUpdateFestivalInvalidJSON() {
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPut, "/api/v1/festivals/techfest", "{meow")
	suite.Equal(http.StatusBadRequest, rr.Code, "should respond with bad request")
}

func (suite *apiSuite) TestUpdateFestivalNotFound() {
	suite.store.On("UpdateFestival", mock.Anything, "unknown", mock.Anything).
		Return(store.Festival{}, errors.NewResourceNotFoundError("festival not found", nil)).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPut, "/api/v1/festivals/unknown", `{}`)
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
}

func (suite *apiSuite) TestRegisterForSubEvent() {
	registration := store.Registration{
		FestivalID:   "techfest",
		SubEvent:     1,
		Participant:  "ada",
		RegisteredAt: 1765368000000,
	}
	suite.store.On("RegisterForSubEvent", mock.Anything, "techfest", 1, "ada").
		Return(registration, true, nil).Once()
	suite.store.On("RegisterForSubEvent", mock.Anything, "techfest", 1, "ada").
		Return(registration, false, nil).Once()
	defer suite.store.AssertExpectations(suite.T())
	want := `{"festival_id": "techfest", "sub_event": 1, "participant": "ada", "registered_at": 1765368000000}`
	rr := suite.do(http.MethodPost, "/api/v1/festivals/techfest/sub-events/1/registrations", `{"participant": "ada"}`)
	suite.Equal(http.StatusCreated, rr.Code, "should respond with created for first registration")
	suite.JSONEq(want, rr.Body.String())
	rr = suite.do(http.MethodPost, "/api/v1/festivals/techfest/sub-events/1/registrations", `{"participant": "ada"}`)
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok for repeated registration")
	suite.JSONEq(want, rr.Body.String(), "should respond with existing registration")
}

func (suite *apiSuite) TestRegisterForSubEventInvalidIndex() {
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPost, "/api/v1/festivals/techfest/sub-events/meow/registrations", `{"participant": "ada"}`)
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
	rr = suite.do(http.MethodPost, "/api/v1/festivals/techfest/sub-events/99999999999999999999/registrations", `{"participant": "ada"}`)
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found for overflowing index")
}

func (suite *apiSuite) TestRegisterForSubEventInvalidJSON() {
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPost, "/api/v1/festivals/techfest/sub-events/0/registrations", "{meow")
	suite.Equal(http.StatusBadRequest, rr.Code, "should respond with bad request")
}

func (suite *apiSuite) TestRegisterForSubEventNotFound() {
	suite.store.On("RegisterForSubEvent", mock.Anything, "techfest", 3, "ada").
		Return(store.Registration{}, false, errors.NewResourceNotFoundError("sub-event not found", nil)).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodPost, "/api/v1/festivals/techfest/sub-events/3/registrations", `{"participant": "ada"}`)
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
}

func (suite *apiSuite) TestDeleteFestival() {
	suite.store.On("DeleteFestival", mock.Anything, "techfest").Return(nil).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodDelete, "/api/v1/festivals/techfest", "")
	suite.Equal(http.StatusNoContent, rr.Code, "should respond with no content")
}

func (suite *apiSuite) TestDeleteFestivalNotFound() {
	suite.store.On("DeleteFestival", mock.Anything, "unknown").
		Return(errors.NewResourceNotFoundError("festival not found", nil)).Once()
	defer suite.store.AssertExpectations(suite.T())
	rr := suite.do(http.MethodDelete, "/api/v1/festivals/unknown", "")
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
}

func (suite *apiSuite) TestMetrics() {
	rr := suite.do(http.MethodGet, "/metrics", "")
	suite.Equal(http.StatusOK, rr.Code, "should respond with ok")
	suite.Contains(rr.Body.String(), "catalog_festivals")
}

func (suite *apiSuite) TestNotFound() {
	rr := suite.do(http.MethodGet, "/api/v1/meow", "")
	suite.Equal(http.StatusNotFound, rr.Code, "should respond with not found")
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(apiSuite))
}
