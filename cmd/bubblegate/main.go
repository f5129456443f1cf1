package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/config"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/server"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "bubblegate: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and, when --config is given, a YAML file over it
func loadConfig(args []string) (*config.Config, string, error) {
	pre := flag.NewFlagSet("bubblegate", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	path := pre.StringP("config", "c", "", "")
	_ = pre.Parse(args)

	if *path == "" {
		cfg, err := config.Load()
		return cfg, "", err
	}
	cfg, err := config.LoadFile(*path)
	return cfg, *path, err
}

func run(args []string) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("bubblegate", flag.ContinueOnError)
	fs.StringP("config", "c", path, "YAML configuration file; its keys override the environment")

	// control API
	fs.StringVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "Control API port")
	fs.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Control API bind address")

	// resolution
	fs.StringVar(&cfg.Endpoint.ConfigURL, "config-url", cfg.Endpoint.ConfigURL, "Remote configuration endpoint")
	fs.StringVar(&cfg.Endpoint.AttributionURL, "attribution-url", cfg.Endpoint.AttributionURL, "Attribution data endpoint")
	fs.StringVar(&cfg.Endpoint.AppID, "app-id", cfg.Endpoint.AppID, "Numeric store app id")
	fs.DurationVar(&cfg.Endpoint.FetchTimeout, "fetch-timeout", cfg.Endpoint.FetchTimeout, "Remote configuration request timeout")

	// browsing
	fs.IntVar(&cfg.Browsing.RedirectLimit, "redirect-limit", cfg.Browsing.RedirectLimit, "Server redirects tolerated per navigation")
	fs.StringVar(&cfg.Store.Path, "store", cfg.Store.Path, "SQLite store path, empty for in-memory")
	fs.StringVar(&cfg.Connectivity.ProbeAddress, "probe", cfg.Connectivity.ProbeAddress, "host:port dialled to detect connectivity")

	// output
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging and gin debug mode")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("bubblegate %s\n", version)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	srv, err := server.NewServer(cfg, logger, server.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bubblegate starting", zap.String("version", version))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("bubblegate stopped")
	return nil
}
