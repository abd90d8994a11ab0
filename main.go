package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"github.com/lefinal/festfinder/app"
	"github.com/lefinal/festfinder/errors"
	"os"
	"os/signal"
	"syscall"
)

// defaultConfigFile is the config file that is used if no other one is
// provided via flag.
const defaultConfigFile = "config.json"

func main() {
	configFile := flag.String("config", defaultConfigFile, "path to the JSON config file")
	flag.Parse()
	config, err := readConfig(*configFile)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errors.Prettify(err))
		os.Exit(1)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err = app.NewApp(config).Boot(ctx)
	if err != nil {
		cancel()
		_, _ = fmt.Fprintln(os.Stderr, errors.Prettify(err))
		os.Exit(1)
	}
}

// readConfig reads the app.Config from the given JSON file.
func readConfig(filename string) (app.Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return app.Config{}, errors.NewInternalErrorFromErr(err, "open config file", errors.Details{"filename": filename})
	}
	defer func() { _ = f.Close() }()
	var config app.Config
	err = json.NewDecoder(f).Decode(&config)
	if err != nil {
		return app.Config{}, errors.NewJSONDecodeError(err, "config")
	}
	return config, nil
}
