// Command persondb is an interactive shell over an in-memory person store.
// Commands are read from stdin one per line; results are printed as JSON.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/persondb/internal/config"
	"github.com/and161185/persondb/internal/limiter"
	"github.com/and161185/persondb/internal/logging"
	"github.com/and161185/persondb/internal/policy"
	"github.com/and161185/persondb/internal/service"
	"github.com/and161185/persondb/internal/store"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, wires the store and runs the shell on stdin.
func main() {
	cfgPath := flag.String("config", "", "config file (yaml/json/toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("persondb %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	pol, err := policy.New(cfg.Policy.MinPasswordLen)
	if err != nil {
		logger.Fatal("policy", zap.Error(err))
	}

	signKey := []byte(cfg.Auth.SignKey)
	if len(signKey) == 0 {
		signKey = make([]byte, 32)
		if _, err := rand.Read(signKey); err != nil {
			logger.Fatal("sign key", zap.Error(err))
		}
		logger.Warn("auth.sign_key not set; using a random key, tokens will not survive a restart")
	}

	svc := service.NewPersonService(
		store.New(store.WithPolicy(pol)),
		limiter.NewMemory(cfg.Limiter.Window, cfg.Limiter.MaxFails, cfg.Limiter.BlockFor),
		signKey,
		cfg.Auth.AccessTTL,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Int("minPasswordLen", pol.MinPasswordLen()),
	)

	sh := &shell{svc: svc, out: os.Stdout}
	if err := sh.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shell", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
