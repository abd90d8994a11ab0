package debugstats

import (
	"context"
	"fmt"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/search"
	"github.com/lefinal/festfinder/services"
	"go.uber.org/zap"
	"runtime"
	"time"
)

type Config struct {
	// IsEnabled describes whether periodic debug stats logging is desired.
	IsEnabled bool
	// Interval in which to log debug stats.
	Interval time.Duration
}

// Catalog provides the current festival catalog.
type Catalog interface {
	Catalog(ctx context.Context) ([]search.Summary, error)
}

type debugStatsService struct {
	logger  *zap.Logger
	config  Config
	catalog Catalog
	// now returns the current time for ranking the catalog.
	now func() time.Time
}

func NewService(logger *zap.Logger, config Config, catalog Catalog) (services.Service, error) {
	if config.IsEnabled && config.Interval <= 0 {
		return nil, errors.NewInternalError("debug stats interval must be positive", errors.Details{
			"was": config.Interval.String(),
		})
	}
	return &debugStatsService{
		logger:  logger,
		config:  config,
		catalog: catalog,
		now:     time.Now,
	}, nil
}

func (s *debugStatsService) Run(ctx context.Context) error {
	if !s.config.IsEnabled {
		return nil
	}
	s.logger.Debug(fmt.Sprintf("logging system state every %gs", s.config.Interval.Seconds()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.config.Interval):
			s.logCatalogStats(ctx)
			logSystemDebugStats(s.logger)
		}
	}
}

// catalogStats holds the number of festivals per search.Category.
type catalogStats struct {
	total    int
	current  int
	upcoming int
	past     int
}

// rankCatalogStats ranks the given catalog for today and counts festivals per
// category. Expired festivals are only included in total.
func rankCatalogStats(catalog []search.Summary, today search.Date) catalogStats {
	stats := catalogStats{total: len(catalog)}
	for _, e := range search.Rank(catalog, today) {
		switch e.Category {
		case search.CategoryCurrent:
			stats.current++
		case search.CategoryUpcoming:
			stats.upcoming++
		case search.CategoryPast:
			stats.past++
		}
	}
	return stats
}

// logCatalogStats logs the number of festivals in the catalog by category.
func (s *debugStatsService) logCatalogStats(ctx context.Context) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		errors.Log(s.logger, errors.Wrap(err, "catalog for debug stats", nil))
		return
	}
	stats := rankCatalogStats(catalog, search.Today(s.now()))
	s.logger.Debug("catalog stats",
		zap.Int("total", stats.total),
		zap.Int("current", stats.current),
		zap.Int("upcoming", stats.upcoming),
		zap.Int("past", stats.past),
		zap.Int("expired", stats.total-stats.current-stats.upcoming-stats.past))
}

// logSystemDebugStats logs the current system state like memory stats, current
// stack, etc. to the given zap.Logger.
func logSystemDebugStats(logger *zap.Logger) {
	// Num CPU.
	numCPU := runtime.NumCPU()
	// Num goroutines.
	numGoroutine := runtime.NumGoroutine()
	// Memory usage.
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryUsageMB := memStats.Sys / 1000 / 1000
	// Get current stack.
	buf := make([]byte, 1<<16)
	stackSize := runtime.Stack(buf, true)
	// Log it.
	logger.Debug(fmt.Sprintf(`
----------BEGIN OF DEBUG SYSTEM STATS-----------
       Num CPU: %d
Num goroutines: %d
 Memory in use: %dMB

----------BEGIN OF STACK----------
%s
----------END OF STACK------------
----------END OF DEBUG SYSTEM STATS-------------
`, numCPU, numGoroutine, memoryUsageMB, string(buf[0:stackSize])))
}
