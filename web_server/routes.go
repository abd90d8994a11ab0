package web_server

import (
	"context"
	"github.com/lefinal/festfinder/ws"
	"net/http"
)

// PopulateRoutes populates the WebServer with the routes.
func (server *WebServer) PopulateRoutes(wsCtx context.Context, hub *ws.Hub, api *API, metricsHandler http.Handler) {
	// Websocket stuff.
	server.router.HandleFunc("/ws", ws.HandleWS(wsCtx, hub))
	// Metrics.
	server.router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	// API stuff.
	apiRouter := server.router.PathPrefix("/api/v1").Subrouter()
	// Disable caching.
	apiRouter.Use(noCacheMiddleware)
	apiRouter.HandleFunc("/festivals/search", api.handleSearch).Methods(http.MethodGet)
	apiRouter.HandleFunc("/festivals/search.ics", api.handleSearchCalendar).Methods(http.MethodGet)
	apiRouter.HandleFunc("/festivals", api.handleCreateFestival).Methods(http.MethodPost)
	apiRouter.HandleFunc("/festivals/{festivalID}", api.handleGetFestival).Methods(http.MethodGet)
	apiRouter.HandleFunc("/festivals/{festivalID}", api.handleUpdateFestival).Methods(http.MethodPut)
	apiRouter.HandleFunc("/festivals/{festivalID}", api.handleDeleteFestival).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/festivals/{festivalID}/sub-events/{subEvent:[0-9]+}/registrations", api.handleRegisterForSubEvent).Methods(http.MethodPost)
}
