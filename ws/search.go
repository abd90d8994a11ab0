package ws

import (
	"context"
	"encoding/json"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/event"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/search"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"sync"
)

// Finder performs searches for SearchListener.
type Finder interface {
	Search(ctx context.Context, query string, locale search.Locale) (finder.Result, error)
}

// SearchListener is a ClientListener that answers search requests sent as
// event.SearchRequestEvent with event.SearchResultEvent. Each keystroke of a
// search-as-you-type client is expected to be a new request with increasing
// sequence number.
type SearchListener struct {
	logger *zap.Logger
	finder Finder
	// defaultLocale is used if neither request nor client name a supported locale.
	defaultLocale string
}

// NewSearchListener creates a new SearchListener.
func NewSearchListener(logger *zap.Logger, finder Finder, defaultLocale string) *SearchListener {
	return &SearchListener{
		logger:        logger,
		finder:        finder,
		defaultLocale: defaultLocale,
	}
}

// searchSession serves search requests of a single Client.
type searchSession struct {
	logger *zap.Logger
	client *Client
	finder Finder
	// defaultLocale is used if the request names no locale.
	defaultLocale string
	// latestSeq is the highest sequence number requested so far. Results for
	// lower sequence numbers are dropped.
	latestSeq *atomic.Uint64
}

// AcceptClient serves search requests from the given Client until its
// connection is closed.
func (l *SearchListener) AcceptClient(ctx context.Context, client *Client) {
	session := &searchSession{
		logger:        l.logger.With(zap.String("client_id", client.ID.String())),
		client:        client,
		finder:        l.finder,
		defaultLocale: l.defaultLocale,
		latestSeq:     atomic.NewUint64(0),
	}
	session.run(ctx)
}

// SayGoodbyeToClient logs the disconnect.
func (l *SearchListener) SayGoodbyeToClient(_ context.Context, client *Client) {
	l.logger.Debug("search session closed", zap.String("client_id", client.ID.String()))
}

// run handles incoming messages until Client.Receive is closed. Requests are
// searched concurrently.
func (s *searchSession) run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for message := range s.client.Receive {
		var request event.SearchRequestEvent
		err := json.Unmarshal(message, &request)
		if err != nil {
			err = errors.NewBadRequestErr("parse search request", err, errors.Details{"message": string(message)})
			errors.Log(s.logger, err)
			errPayload := event.ErrorEventPayloadFromError(err)
			s.send(event.SearchResultEvent{
				Results: []event.SearchHit{},
				Error:   &errPayload,
			})
			continue
		}
		s.raiseLatestSeq(request.Seq)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleSearchRequest(ctx, request)
		}()
	}
}

// raiseLatestSeq sets latestSeq to the given one if greater.
func (s *searchSession) raiseLatestSeq(seq uint64) {
	for {
		latest := s.latestSeq.Load()
		if seq <= latest || s.latestSeq.CAS(latest, seq) {
			return
		}
	}
}

// isStale checks whether a newer request than the one with the given sequence
// number was received.
func (s *searchSession) isStale(seq uint64) bool {
	return seq < s.latestSeq.Load()
}

// handleSearchRequest performs the search and sends the result if no newer
// request was received in the meantime.
func (s *searchSession) handleSearchRequest(ctx context.Context, request event.SearchRequestEvent) {
	locale := search.LocaleFor(request.Locale, s.client.AcceptLanguage, s.defaultLocale)
	response := event.SearchResultEvent{
		RequestID: request.RequestID,
		Seq:       request.Seq,
		Results:   []event.SearchHit{},
	}
	result, err := s.finder.Search(ctx, request.Query, locale)
	if err != nil {
		err = errors.Wrap(err, "search", errors.Details{"query": request.Query})
		errors.Log(s.logger, err)
		errPayload := event.ErrorEventPayloadFromError(err)
		response.Error = &errPayload
	} else {
		response.Results = event.SearchHitsFromRanked(result.Events, locale)
	}
	if s.isStale(request.Seq) {
		s.logger.Debug("dropping stale search result",
			zap.Uint64("seq", request.Seq),
			zap.Uint64("latest_seq", s.latestSeq.Load()))
		return
	}
	s.send(response)
}

// send the given response to the client.
func (s *searchSession) send(response event.SearchResultEvent) {
	raw, err := json.Marshal(response)
	if err != nil {
		errors.Log(s.logger, errors.NewInternalErrorFromErr(err, "marshal search result", nil))
		return
	}
	err = s.client.Send(raw)
	if err != nil {
		errors.Log(s.logger, errors.Wrap(err, "send search result", errors.Details{"seq": response.Seq}))
	}
}
