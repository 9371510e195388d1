// Command mcredirect is a reverse proxy for the Minecraft Java Edition
// handshake/login protocol: it inspects the client's handshake, routes
// the connection to a backend under one of three modes, and splices the
// resulting TCP streams.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"mcredirect/internal/config"
	"mcredirect/internal/proxy"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = pflag.String("config", "", "path to a YAML config file")
		listenAddr = pflag.String("listen-addr", "", "address to listen on")
		listenPort = pflag.Int("listen-port", 0, "port to listen on")
		primaryH   = pflag.String("primary-host", "", "primary upstream host")
		primaryP   = pflag.Int("primary-port", 0, "primary upstream port")
		sidecarH   = pflag.String("sidecar-host", "", "sidecar upstream host (hidden mode)")
		sidecarP   = pflag.Int("sidecar-port", 0, "sidecar upstream port (hidden mode)")
		domain     = pflag.String("domain", "", "server domain for pass_through_by_domain mode")
		mode       = pflag.String("mode", "", "pass_through_dedicated | pass_through_by_domain | hidden")
		syncMOTD   = pflag.Bool("sync-motd", true, "sync MOTD with the primary upstream")
		motdDef    = pflag.String("motd-default", "", "MOTD shown when --sync-motd=false")
		logLevel   = pflag.String("log-level", "", "zerolog level: debug, info, warn, error")
		help       = pflag.BoolP("help", "h", false, "show this help text")
	)
	pflag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "usage: %s [options]\n\noptions:\n%s", os.Args[0], pflag.CommandLine.FlagUsages())
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	syncMOTDSet := pflag.CommandLine.Changed("sync-motd")
	applyFlagOverrides(&cfg, *listenAddr, *listenPort, *primaryH, *primaryP, *sidecarH, *sidecarP, *domain, *mode, *motdDef, *logLevel, *syncMOTD, syncMOTDSet)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln := proxy.New(cfg, log)
	if err := ln.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("listener exited")
		return 1
	}
	return 0
}

// applyFlagOverrides layers any explicitly-set CLI flag over the YAML
// config; flags left at their zero value are treated as unset and the
// config file's value (or the built-in default) wins instead.
func applyFlagOverrides(cfg *config.Config, listenAddr string, listenPort int, primaryH string, primaryP int, sidecarH string, sidecarP int, domain, mode, motdDef, logLevel string, syncMOTD, syncMOTDSet bool) {
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if listenPort != 0 {
		cfg.ListenPort = listenPort
	}
	if primaryH != "" {
		cfg.PrimaryHost = primaryH
	}
	if primaryP != 0 {
		cfg.PrimaryPort = primaryP
	}
	if sidecarH != "" {
		cfg.SidecarHost = sidecarH
	}
	if sidecarP != 0 {
		cfg.SidecarPort = sidecarP
	}
	if domain != "" {
		cfg.ServerDomain = domain
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if motdDef != "" {
		cfg.MOTDDefault = motdDef
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if syncMOTDSet {
		cfg.SyncMOTD = syncMOTD
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
