package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/config"
	"github.com/brettbedarf/webtree/internal/util"
	"github.com/brettbedarf/webtree/seed"
	"github.com/brettbedarf/webtree/server"
)

func main() {
	// Parse command line arguments
	var (
		configPath string
		seedPath   string
		addr       string
		verbose    int
	)
	flag.StringVar(&configPath, "config", "", "Path to a config override file (.yaml, .yml or .json)")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&seedPath, "seed", "", "Path or http(s) URL of the seed tree. Defaults to the built-in sample project.")
	flag.StringVar(&seedPath, "s", "", "--seed (shorthand)")
	flag.StringVar(&addr, "addr", config.DefaultAddr, "Listen address of the HTTP server")
	flag.StringVar(&addr, "a", config.DefaultAddr, "--addr (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Parse()

	// Only flags given explicitly override file and env values
	flags := &config.ConfigOverride{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed", "s":
			flags.SeedPath = &seedPath
		case "addr", "a":
			flags.Addr = &addr
		case "verbose", "v":
			flags.LogLvl = &verbose
		}
	})

	// Logging comes up first so config errors are reported; it is
	// re-initialized below once the final level is known
	util.InitializeLogger(util.LevelFromVerbosity(util.ValueOrDefault(flags.LogLvl, config.InfoVerbose)))
	logger := util.GetLogger("main")

	envOverride, err := config.LoadEnvOverride(".env")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read environment config")
	}
	var fileOverride *config.ConfigOverride
	if configPath != "" {
		if fileOverride, err = config.LoadConfigOverrideFile(configPath); err != nil {
			logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config file")
		}
	}
	cfg := config.NewConfig(fileOverride, envOverride, flags)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	util.InitializeLogger(cfg.LogLvl)
	logger = util.GetLogger("main")

	logger.Info().
		Str("addr", cfg.Addr).
		Str("seed", cfg.SeedPath).
		Dur("session_ttl", cfg.SessionTTL).
		Msg("webtree server initializing")

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	var tree webtree.Tree
	if cfg.SeedPath != "" {
		seed.RegisterBuiltins()
		if tree, err = seed.Load(ctx, cfg.SeedPath); err != nil {
			logger.Fatal().Err(err).Str("seed", cfg.SeedPath).Msg("Failed to load seed tree")
		}
		logger.Debug().Str("seed", cfg.SeedPath).Int("entries", tree.Count()).Msg("Seed tree loaded")
	} else {
		tree = seed.Default()
		logger.Info().Int("entries", tree.Count()).Msg("No seed provided, using the sample project")
	}

	srv := server.New(cfg, tree)
	if err := srv.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		stop()
		os.Exit(1)
	}
	logger.Info().Msg("Server stopped")
}
