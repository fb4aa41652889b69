// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the geotrail service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/wneessen/geotrail/internal/config"
	"github.com/wneessen/geotrail/internal/i18n"
	"github.com/wneessen/geotrail/internal/logger"
	"github.com/wneessen/geotrail/internal/service"
	"github.com/wneessen/geotrail/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.New(slog.LevelError)

	// Read config
	confRead := false
	confPath := flag.String("config", "", "path to the config file")
	adminMode := flag.Bool("admin", false, "show the timelines of all users (admin only)")
	latest := flag.Bool("latest", false, "print the latest position of all users and exit (admin only)")
	days := flag.Int("days", 0, "number of days shown in the admin timelines")
	selectUser := flag.String("select", "", "user id to highlight in the admin timelines")
	hideUsers := flag.String("hide", "", "comma separated list of user ids hidden on the admin map")
	migrate := flag.Bool("migrate", false, "apply the database migrations and exit")
	flag.Parse()

	// Read default config
	conf, err := config.New()
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	// If config file was specified, read it
	if *confPath != "" {
		file := filepath.Base(*confPath)
		path := filepath.Dir(*confPath)
		conf, err = config.NewFromFile(path, file)
		if err != nil {
			log.Error("failed to load config from file", logger.Err(err))
			os.Exit(1)
		}
		confRead = true
	}

	// Check if we have a config file in the default location
	if path, file := findConfigFile(); !confRead && (path != "" && file != "") {
		conf, err = config.NewFromFile(path, file)
		if err != nil {
			log.Error("failed to load config from file", logger.Err(err))
			os.Exit(1)
		}
	}
	if *days > 0 {
		conf.Admin.Days = *days
	}

	log = logger.New(conf.LogLevel)
	if *migrate {
		if err = store.Migrate(conf.Store.DSN); err != nil {
			log.Error("failed to apply database migrations", logger.Err(err))
			os.Exit(1)
		}
		log.Info("database migrations applied")
		return
	}

	t, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		os.Exit(1)
	}

	// Initialize the service
	serv, err := service.New(conf, log, t)
	if err != nil {
		log.Error("failed to initialize geotrail service", logger.Err(err))
		os.Exit(1)
	}
	serv.Select(*selectUser)
	for _, userID := range strings.Split(*hideUsers, ",") {
		if userID = strings.TrimSpace(userID); userID != "" {
			serv.Hide(userID, true)
		}
	}

	// Start the service loop
	log.Info(t.Get("starting geotrail service"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	switch {
	case *latest:
		err = serv.PrintLatest(ctx)
	case *adminMode:
		err = serv.RunAdmin(ctx)
	default:
		err = serv.Run(ctx)
	}
	if err != nil {
		log.Error(t.Get("failed to run geotrail service"), logger.Err(err))
		os.Exit(1)
	}
	log.Info(t.Get("shutting down geotrail service"))
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "geotrail", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
