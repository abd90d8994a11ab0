package app

import (
	"context"
	"fmt"
	"github.com/lefinal/festfinder/debugstats"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/metrics"
	"github.com/lefinal/festfinder/portal"
	"github.com/lefinal/festfinder/services"
	"github.com/lefinal/festfinder/services/searchsvc"
	"github.com/lefinal/festfinder/store"
	"github.com/lefinal/festfinder/web_server"
	"github.com/lefinal/festfinder/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"time"
)

type serviceMap map[string]services.Service

// portalService runs a portal.Base as services.Service.
type portalService struct {
	base portal.Base
}

// Run opens the portal.Base until the given context.Context is done.
func (s portalService) Run(ctx context.Context) error {
	return s.base.Open(ctx)
}

// createServices creates all services to run. The given context.Context is the
// lifetime for websocket connections.
func createServices(ctx context.Context, appConfig Config, logger *zap.Logger, mall *store.Mall,
	festivalFinder *finder.Finder, m *metrics.Metrics) (serviceMap, error) {
	services := make(serviceMap)
	// Debug stats service.
	s, err := debugstats.NewService(logger.Named("debug-stats"), debugstats.Config{
		IsEnabled: appConfig.Log.SystemDebugStatsInterval.Valid,
		Interval:  time.Duration(appConfig.Log.SystemDebugStatsInterval.Int) * time.Minute,
	}, festivalFinder)
	if err != nil {
		return nil, errors.Wrap(err, "new debug stats service", nil)
	}
	services["debug-stats"] = s
	// Websocket hub.
	hub := ws.NewHub(logger.Named("ws"), ws.NewSearchListener(logger.Named("ws-search"), festivalFinder, appConfig.locale()))
	services["ws-hub"] = hub
	// Web server.
	webServer, err := web_server.NewWebServer(logger.Named("web-server"), web_server.Config{
		ServeAddr:    appConfig.ServeAddr,
		WriteTimeout: web_server.DefaultWriteTimeout,
		ReadTimeout:  web_server.DefaultReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new web server", nil)
	}
	api := web_server.NewAPI(logger.Named("api"), festivalFinder, mall, appConfig.locale())
	webServer.PopulateRoutes(ctx, hub, api, m.Handler())
	services["web-server"] = webServer
	// MQTT search service if address is provided.
	if appConfig.MQTTAddr.Valid {
		base, err := portal.NewBase(logger.Named("portal"), portal.Config{MQTTAddr: appConfig.MQTTAddr.String})
		if err != nil {
			return nil, errors.Wrap(err, "new portal base", nil)
		}
		services["portal"] = portalService{base: base}
		services["search"] = searchsvc.New(logger.Named("search"), base.NewPortal("search-service"), festivalFinder,
			appConfig.locale())
	}
	return services, nil
}

// run all services until the given context.Context is done or one fails.
func (s serviceMap) run(ctx context.Context, logger *zap.Logger) error {
	wg, lifetime := errgroup.WithContext(ctx)
	// Run each.
	for name, serviceToRun := range s {
		// Copy values.
		name, serviceToRun := name, serviceToRun
		wg.Go(func() error {
			logger.Debug(fmt.Sprintf("service %s up", name))
			defer logger.Debug(fmt.Sprintf("service %s down", name))
			if err := serviceToRun.Run(lifetime); err != nil {
				return errors.Wrap(err, "run service", errors.Details{"service_name": name})
			}
			return nil
		})
	}
	return wg.Wait()
}
