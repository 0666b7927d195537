// Package main is the Citadel browser engine's entry point: it loads
// settings, builds the Security Context, Tab Manager, and diagnostics
// server, opens the initial tab if requested, and shuts down gracefully
// on SIGINT/SIGTERM (spec §6 "CLI surface").
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geeknik/citadel-browser/internal/diagnostics"
	"github.com/geeknik/citadel-browser/internal/logging"
	"github.com/geeknik/citadel-browser/internal/pipeline"
	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/geeknik/citadel-browser/internal/tabmanager"
)

// Exit codes per spec §6: 0 clean shutdown, 1 fatal init error, 2 config error.
const (
	exitOK   = 0
	exitInit = 1
	exitCfg  = 2
)

// defaultLayoutCacheBytes is the layout cache's byte budget; spec §9
// open question (b) leaves this unfixed, so it is a local default rather
// than a spec-mandated constant.
const defaultLayoutCacheBytes = 128 * 1024 * 1024

func main() {
	os.Exit(run())
}

func run() int {
	url := flag.String("url", "", "open with an initial tab at URL")
	private := flag.Bool("private", false, "start with a private tab")
	profile := flag.String("profile", "", "override settings-store location")
	diagAddr := flag.String("diag-addr", "127.0.0.1:7890", "diagnostics server listen address")
	flag.Parse()

	log := logging.NewFromEnv()
	defer log.Sync()

	settings, err := settingsstore.Load(*profile)
	if err != nil {
		log.Sugar().Errorw("failed to load settings", "error", err)
		return exitCfg
	}

	baseCtx := security.New(settings)
	pl := pipeline.New(defaultLayoutCacheBytes)

	tabs := tabmanager.New(baseCtx, pl.ZkvmConfig, pl.Navigate)
	// The Critical-pressure callback only logs; background tabs' arenas
	// are not zeroed here.
	pl.Pressure().OnBackgroundCleanupNeeded(func() {
		log.Sugar().Warn("critical memory pressure: layout cache cleared")
	})
	go pl.Pressure().RunPeriodic()
	defer pl.Pressure().Stop()

	srv := diagnostics.NewServer(tabs, diagnostics.DefaultCORSConfig(), log)
	httpServer := &http.Server{Addr: *diagAddr, Handler: srv.Handler()}

	serveErr := make(chan error, 1)
	go func() {
		log.Sugar().Infow("diagnostics server listening", "addr", *diagAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	if *url != "" {
		kind := tabmanager.Normal
		if *private {
			kind = tabmanager.Private
		}
		if _, err := tabs.Open(kind, "", *url); err != nil {
			log.Sugar().Errorw("initial navigation failed", "url", *url, "error", err)
			return exitInit
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Sugar().Info("shutting down gracefully")
	case err := <-serveErr:
		log.Sugar().Errorw("diagnostics server error", "error", err)
		return exitInit
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Sugar().Errorw("error during shutdown", "error", err)
		return exitInit
	}

	fmt.Fprintln(os.Stdout, "citadel: shutdown complete")
	return exitOK
}
