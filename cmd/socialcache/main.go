package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ammar0144/socialcache"
	"github.com/ammar0144/socialcache/pkg/config"
	"github.com/ammar0144/socialcache/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("SOCIALCACHE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logData, err := logger.New().FromPath(cfg.Log.Path).Level(cfg.Log.Level).Pretty(cfg.Log.Pretty).Make()
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logData.Close()
	log := logData.Logger
	log.Info().Str("config", cfg.String()).Msg("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := socialcache.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	if err := app.Start(ctx); err != nil {
		_ = app.Close()
		log.Fatal().Err(err).Msg("startup failed")
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("socialcache listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("socialcache stopped")
}
