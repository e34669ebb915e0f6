package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/MyelinBots/ircsdk/internal/config"
	"github.com/MyelinBots/ircsdk/internal/irc"
	"github.com/MyelinBots/ircsdk/internal/modules/hello"
	"github.com/MyelinBots/ircsdk/internal/modules/quit"
	"github.com/MyelinBots/ircsdk/internal/modules/urltitle"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	flags := pflag.NewFlagSet("ircbot", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "./config.yaml", "Path to configuration file")
	debug := flags.Bool("debug", false, "Enable debug logging")
	pidFile := flags.String("pidfile", "", "Write the process ID to this file")
	showVersion := flags.BoolP("version", "v", false, "Show version information and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("ircbot version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	level := log.InfoLevel
	if *debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "ircbot",
		ReportTimestamp: true,
		Level:           level,
	})

	if *pidFile != "" {
		if err := writePIDFile(*pidFile); err != nil {
			logger.Warn("Could not write PID file", "path", *pidFile, "err", err)
		} else {
			defer os.Remove(*pidFile)
		}
	}

	if err := run(*configPath, logger); err != nil {
		logger.Error("Exiting", "err", err)
		// deferred cleanup does not run after os.Exit
		if *pidFile != "" {
			os.Remove(*pidFile)
		}
		os.Exit(1)
	}
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

func run(configPath string, logger *log.Logger) error {
	// Make config path absolute
	if !filepath.IsAbs(configPath) {
		wd, _ := os.Getwd()
		configPath = filepath.Join(wd, configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	client := irc.NewClient(cfg, irc.WithLogger(logger.WithPrefix("irc")))
	bus := client.Bus()

	h := hello.New(bus, client, cfg.Nick)
	h.Logger = logger.WithPrefix("hello")
	q := quit.New(bus, client)
	q.Logger = logger.WithPrefix("quit")
	u := urltitle.New(bus, client)
	u.Logger = logger.WithPrefix("urltitle")

	h.StartListening()
	q.StartListening()
	u.StartListening()

	irc.EventJoinError.Subscribe(bus, func(je irc.JoinError) {
		logger.Warn("Could not join channel", "channel", je.Channel, "code", je.Code, "reason", je.Reason)
	})
	irc.EventDisconnected.Subscribe(bus, func(status string) {
		logger.Info("Disconnected", "status", status)
	})

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logger.Info("Received signal, shutting down...", "signal", sig)
		if err := client.Close(); err != nil {
			logger.Warn("Close failed", "err", err)
		}
	}()

	logger.Infof("Connecting to %s...", cfg.Addr())
	return client.Connect(context.Background())
}
