package ws

import (
	"context"
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/event"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const timeout = 3 * time.Second

// finderStub mocks Finder.
type finderStub struct {
	mock.Mock
}

func (stub *finderStub) Search(ctx context.Context, query string, locale search.Locale) (finder.Result, error) {
	args := stub.Called(ctx, query, locale)
	return args.Get(0).(finder.Result), args.Error(1)
}

func rankedTechfest() []search.RankedEvent {
	return []search.RankedEvent{
		{
			Summary: search.Summary{
				ID:      "techfest",
				College: "IIT Bombay",
				Name:    "Techfest",
				City:    "Mumbai",
				Start:   search.NewDate(2025, time.December, 12),
				End:     search.NewDate(2025, time.December, 13),
			},
			Category: search.CategoryUpcoming,
		},
	}
}

// searchResponse is the part of event.SearchResultEvent that is checked in
// tests.
type searchResponse struct {
	Seq     uint64 `json:"seq"`
	Results []struct {
		ID       string `json:"id"`
		Dates    string `json:"dates"`
		Category string `json:"category"`
	} `json:"results"`
	Error *event.ErrorEventPayload `json:"error"`
}

func newTestClient() *Client {
	return &Client{
		logger:  zap.New(zapcore.NewNopCore()),
		Receive: make(chan []byte),
		send:    make(chan []byte, 8),
	}
}

func TestClient_Send(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestClient()
		require.NoError(t, c.Send([]byte("meow")), "should not fail")
		assert.Equal(t, []byte("meow"), <-c.send, "should queue message")
	})
	t.Run("closed", func(t *testing.T) {
		c := newTestClient()
		c.closeSend()
		c.closeSend()
		err := c.Send([]byte("meow"))
		require.Error(t, err, "should fail")
		e, _ := errors.Cast(err)
		assert.Equal(t, errors.ErrCommunication, e.Code, "should fail with communication error")
	})
	t.Run("buffer full", func(t *testing.T) {
		c := newTestClient()
		c.send = make(chan []byte)
		assert.Error(t, c.Send([]byte("meow")), "should fail")
	})
}

// searchSessionSuite tests searchSession.
type searchSessionSuite struct {
	suite.Suite
	finder  *finderStub
	client  *Client
	session *searchSession
}

func (suite *searchSessionSuite) SetupTest() {
	suite.finder = &finderStub{}
	suite.client = newTestClient()
	suite.session = &searchSession{
		logger:        zap.New(zapcore.NewNopCore()),
		client:        suite.client,
		finder:        suite.finder,
		defaultLocale: "en-US",
		latestSeq:     atomic.NewUint64(0),
	}
}

func (suite *searchSessionSuite) TestRaiseLatestSeq() {
	suite.session.raiseLatestSeq(4)
	suite.EqualValues(4, suite.session.latestSeq.Load(), "should raise")
	suite.session.raiseLatestSeq(2)
	suite.EqualValues(4, suite.session.latestSeq.Load(), "should not lower")
	suite.True(suite.session.isStale(3), "lower seq should be stale")
	suite.False(suite.session.isStale(4), "latest seq should not be stale")
}

func (suite *searchSessionSuite) TestDropStale() {
	suite.finder.On("Search", mock.Anything, "techfest", mock.Anything).
		Return(finder.Result{Events: rankedTechfest()}, nil).Once()
	defer suite.finder.AssertExpectations(suite.T())
	suite.session.raiseLatestSeq(5)
	suite.session.handleSearchRequest(context.Background(), event.SearchRequestEvent{Seq: 3, Query: "techfest"})
	suite.Len(suite.client.send, 0, "should not send stale result")
}

func (suite *searchSessionSuite) TestSendLatest() {
	suite.finder.On("Search", mock.Anything, "techfest", mock.Anything).
		Return(finder.Result{Events: rankedTechfest()}, nil).Once()
	defer suite.finder.AssertExpectations(suite.T())
	suite.session.raiseLatestSeq(5)
	suite.session.handleSearchRequest(context.Background(), event.SearchRequestEvent{Seq: 5, Query: "techfest"})
	suite.Require().Len(suite.client.send, 1, "should send result")
	var got searchResponse
	suite.Require().NoError(json.Unmarshal(<-suite.client.send, &got))
	suite.EqualValues(5, got.Seq, "should include seq")
	suite.Require().Len(got.Results, 1, "should include results")
	suite.Equal("techfest", got.Results[0].ID)
	suite.Equal("upcoming", got.Results[0].Category)
	suite.Nil(got.Error, "should not include error")
}

func (suite *searchSessionSuite) TestSearchFail() {
	suite.finder.On("Search", mock.Anything, "techfest", mock.Anything).
		Return(finder.Result{}, errors.NewInternalError("sad life", nil)).Once()
	defer suite.finder.AssertExpectations(suite.T())
	suite.session.handleSearchRequest(context.Background(), event.SearchRequestEvent{Seq: 1, Query: "techfest"})
	suite.Require().Len(suite.client.send, 1, "should send result")
	var got searchResponse
	suite.Require().NoError(json.Unmarshal(<-suite.client.send, &got))
	suite.Empty(got.Results, "should include no results")
	suite.Require().NotNil(got.Error, "should include error")
	suite.Equal(string(errors.ErrInternal), got.Error.Code)
}

func (suite *searchSessionSuite) TestInvalidRequest() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		suite.session.run(context.Background())
	}()
	suite.client.Receive <- []byte("{meow")
	close(suite.client.Receive)
	select {
	case <-time.After(timeout):
		suite.Fail("timeout", "should stop when receive is closed")
	case <-done:
	}
	suite.Require().Len(suite.client.send, 1, "should send error")
	var got searchResponse
	suite.Require().NoError(json.Unmarshal(<-suite.client.send, &got))
	suite.Require().NotNil(got.Error, "should include error")
	suite.Equal(string(errors.ErrBadRequest), got.Error.Code)
}

func TestSearchSession(t *testing.T) {
	suite.Run(t, new(searchSessionSuite))
}

func TestHandleWS(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger := zap.New(zapcore.NewNopCore())
	f := &finderStub{}
	f.On("Search", mock.Anything, "techfest", mock.MatchedBy(func(locale search.Locale) bool {
		return locale.Tag() == search.LocaleFor("en-GB").Tag()
	})).Return(finder.Result{Events: rankedTechfest()}, nil).Once()
	defer f.AssertExpectations(t)
	hub := NewHub(logger, NewSearchListener(logger, f, "en-US"))
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()
	server := httptest.NewServer(HandleWS(ctx, hub))
	defer server.Close()
	// Connect.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err, "should connect")
	defer func() { _ = conn.Close() }()
	err = conn.WriteJSON(event.SearchRequestEvent{Seq: 1, Query: "techfest", Locale: "en-GB"})
	require.NoError(t, err, "should write request")
	// Await response.
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var got searchResponse
	err = conn.ReadJSON(&got)
	require.NoError(t, err, "should read response")
	assert.EqualValues(t, 1, got.Seq, "should include seq")
	require.Len(t, got.Results, 1, "should include results")
	assert.Equal(t, "12–13 Dec 2025", got.Results[0].Dates, "should format with requested locale")
	// Shutdown.
	cancel()
	<-hubDone
}
