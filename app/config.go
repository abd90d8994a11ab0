package app

import (
	"fmt"
	"github.com/gobuffalo/nulls"
	"github.com/lefinal/festfinder/logging"
	"go.uber.org/multierr"
	"golang.org/x/text/language"
	"net/url"
)

// defaultLocale is the locale used for formatting dates if none is configured.
const defaultLocale = "en-US"

// Config is the configuration needed in order to boot an App.
type Config struct {
	// DBConn is the connection string for the PostgreSQL database.
	DBConn string `json:"db_conn"`
	// MaxDBConnections is the maximum number of database connections. If not
	// set, defaultMaxDBConnections is used.
	MaxDBConnections nulls.Int `json:"max_db_connections"`
	// ServeAddr is the address, the web server will listen for connections on.
	ServeAddr string `json:"serve_addr"`
	// MQTTAddr is the optional address of the MQTT server. If set, searches
	// can be requested via MQTT.
	MQTTAddr nulls.String `json:"mqtt_addr"`
	// Locale is the default BCP 47 tag for formatting dates. Defaults to
	// defaultLocale.
	Locale string `json:"locale"`
	// SeedFile is an optional YAML file with festivals to import on boot.
	SeedFile nulls.String `json:"seed_file"`
	// Log is the logging config.
	Log logging.Config `json:"log"`
}

// ValidateConfig checks the given Config for required and invalid fields. All
// problems are reported at once.
func ValidateConfig(config Config) error {
	var err error
	if config.DBConn == "" {
		err = multierr.Append(err, fmt.Errorf("missing db connection"))
	}
	if config.MaxDBConnections.Valid && config.MaxDBConnections.Int < 1 {
		err = multierr.Append(err, fmt.Errorf("max db connections must be positive but was %d", config.MaxDBConnections.Int))
	}
	if config.ServeAddr == "" {
		err = multierr.Append(err, fmt.Errorf("missing serve addr"))
	}
	if config.MQTTAddr.Valid {
		if _, parseErr := url.Parse(config.MQTTAddr.String); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid mqtt addr: %w", parseErr))
		}
	}
	if config.Locale != "" {
		if _, parseErr := language.Parse(config.Locale); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid locale %q: %w", config.Locale, parseErr))
		}
	}
	if config.SeedFile.Valid && config.SeedFile.String == "" {
		err = multierr.Append(err, fmt.Errorf("empty seed file"))
	}
	if config.Log.MaxSize < 0 {
		err = multierr.Append(err, fmt.Errorf("log max size must not be negative"))
	}
	if config.Log.KeepDays < 0 {
		err = multierr.Append(err, fmt.Errorf("log keep days must not be negative"))
	}
	if config.Log.SystemDebugStatsInterval.Valid && config.Log.SystemDebugStatsInterval.Int < 1 {
		err = multierr.Append(err, fmt.Errorf("system debug stats interval must be positive"))
	}
	return err
}

// locale returns the configured locale or defaultLocale.
func (config Config) locale() string {
	if config.Locale == "" {
		return defaultLocale
	}
	return config.Locale
}

// maxDBConnections returns the configured maximum or defaultMaxDBConnections.
func (config Config) maxDBConnections() int {
	if config.MaxDBConnections.Valid {
		return config.MaxDBConnections.Int
	}
	return defaultMaxDBConnections
}
