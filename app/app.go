package app

import (
	"context"
	"github.com/lefinal/festfinder/errors"
	"github.com/lefinal/festfinder/finder"
	"github.com/lefinal/festfinder/logging"
	"github.com/lefinal/festfinder/metrics"
	"github.com/lefinal/festfinder/seed"
	"github.com/lefinal/festfinder/store"
	"go.uber.org/zap"
)

// App is a complete festfinder instance.
type App struct {
	// config is the main config used for the App.
	config Config
}

// NewApp creates a new App with the given Config. Boot it with App.Boot.
func NewApp(config Config) *App {
	return &App{
		config: config,
	}
}

// Boot sets everything up based on the set config and runs until the given
// context.Context is done.
func (app *App) Boot(ctx context.Context) error {
	// Validate config.
	err := ValidateConfig(app.config)
	if err != nil {
		return errors.Error{
			Code:    errors.ErrFatal,
			Err:     err,
			Message: "invalid config",
		}
	}
	// Setup logger.
	logger := logging.NewLogger(app.config.Log)
	defer func() { _ = logger.Sync() }()
	// Boot.
	err = app.boot(ctx, logger)
	if err != nil {
		err = errors.Wrap(err, "boot", nil)
		errors.Log(logger, err)
		return err
	}
	return nil
}

func (app *App) boot(ctx context.Context, logger *zap.Logger) error {
	logger.Info("booting up")
	// Connect database.
	logger.Debug("connecting to database")
	db, err := connectDB(ctx, logger.Named("db"), app.config.DBConn, app.config.maxDBConnections())
	if err != nil {
		return errors.Wrap(err, "connect database", nil)
	}
	defer db.Close()
	mall := store.NewMall(logger.Named("store"), db)
	logger.Debug("database ready")
	// Import seeds.
	if app.config.SeedFile.Valid {
		err = importSeedFile(ctx, logger.Named("seed"), mall, app.config.SeedFile.String)
		if err != nil {
			return errors.Wrap(err, "import seed file", errors.Details{"seed_file": app.config.SeedFile.String})
		}
	}
	// Create services.
	m := metrics.New()
	festivalFinder := finder.New(logger.Named("finder"), mall, m)
	services, err := createServices(ctx, app.config, logger, mall, festivalFinder, m)
	if err != nil {
		return errors.Wrap(err, "create services", nil)
	}
	logger.Info("setup completed. running services...")
	err = services.run(ctx, logger)
	if err != nil {
		return errors.Wrap(err, "run services", nil)
	}
	logger.Info("shut down")
	return nil
}

// importSeedFile imports all valid festivals from the given seed file. Invalid
// entries are logged and skipped.
func importSeedFile(ctx context.Context, logger *zap.Logger, s seed.Store, filename string) error {
	drafts, err := seed.LoadFile(filename)
	if err != nil {
		if len(drafts) == 0 {
			return errors.Wrap(err, "load seed file", nil)
		}
		errors.Log(logger, errors.Wrap(err, "skipping invalid seed entries", nil))
	}
	imported, err := seed.Import(ctx, logger, s, drafts)
	if err != nil {
		return errors.Wrap(err, "import", nil)
	}
	logger.Info("seed file imported", zap.Int("imported", imported), zap.Int("entries", len(drafts)))
	return nil
}
