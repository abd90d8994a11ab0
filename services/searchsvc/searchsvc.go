package searchsvc

import (
	"context"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/event"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/portal"
	"github.com/lefinal/festfinder/search"
	"github.com/lefinal/festfinder/services"
	"go.uber.org/zap"
)

// Topics.
const (
	// topicSearchRequest is where clients request searches via
	// event.SearchRequestEvent.
	topicSearchRequest portal.Topic = "festfinder/search/request"
	// topicSearchResult is where results are published as
	// event.SearchResultEvent.
	topicSearchResult portal.Topic = "festfinder/search/result"
)

// Finder performs the actual search.
type Finder interface {
	Search(ctx context.Context, query string, locale search.Locale) (finder.Result, error)
}

// searchService answers search requests received via portal.Portal.
type searchService struct {
	logger *zap.Logger
	portal portal.Portal
	finder Finder
	// defaultLocale is used when a request names no or an unsupported locale.
	defaultLocale string
}

// New creates a new services.Service that serves search requests. The given
// default locale is used for requests without locale.
func New(logger *zap.Logger, portal portal.Portal, finder Finder, defaultLocale string) services.Service {
	return &searchService{
		logger:        logger,
		portal:        portal,
		finder:        finder,
		defaultLocale: defaultLocale,
	}
}

// Run the service until the given context.Context is done.
func (s *searchService) Run(ctx context.Context) error {
	requests := portal.Subscribe[event.SearchRequestEvent](ctx, s.portal, topicSearchRequest)
	for e := range requests.Receive {
		s.handleSearchRequest(ctx, e.Payload)
	}
	return nil
}

// handleSearchRequest handles topicSearchRequest and publishes the result to
// topicSearchResult.
func (s *searchService) handleSearchRequest(ctx context.Context, request event.SearchRequestEvent) {
	preferences := make([]string, 0, 2)
	if request.Locale != "" {
		preferences = append(preferences, request.Locale)
	}
	preferences = append(preferences, s.defaultLocale)
	locale := search.LocaleFor(preferences...)
	response := event.SearchResultEvent{
		RequestID: request.RequestID,
		Seq:       request.Seq,
		Results:   []event.SearchHit{},
	}
	result, err := s.finder.Search(ctx, request.Query, locale)
	if err != nil {
		err = errors.Wrap(err, "search", errors.Details{
			"request_id": request.RequestID,
			"query":      request.Query,
		})
		errors.Log(s.logger, err)
		errPayload := event.ErrorEventPayloadFromError(err)
		response.Error = &errPayload
	} else {
		response.Results = event.SearchHitsFromRanked(result.Events, locale)
	}
	s.portal.Publish(ctx, topicSearchResult, response)
}
