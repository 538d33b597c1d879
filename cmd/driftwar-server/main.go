package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/config"
	"github.com/Garsondee/Driftwar/internal/logging"
	"github.com/Garsondee/Driftwar/internal/server"
	"github.com/Garsondee/Driftwar/internal/store"
	"github.com/Garsondee/Driftwar/internal/telemetry"
)

func main() {
	configDir := flag.String("config", ".", "directory holding driftwar.json/yaml")
	addr := flag.String("addr", "", "listen address (default from config)")
	resume := flag.String("resume", "", "save slot to resume the arena from")
	flag.Parse()

	settings, err := config.Load(*configDir)
	if err != nil {
		bootLog := logging.Setup("info", os.Stderr, true)
		bootLog.Fatal().Err(err).Msg("Loading config failed")
	}
	var sinks []io.Writer
	if settings.Graylog != "" {
		gw, err := logging.Graylog(settings.Graylog)
		if err != nil {
			bootLog := logging.Setup("info", os.Stderr, true)
			bootLog.Warn().Err(err).Msg("Graylog disabled")
		} else {
			defer gw.Close()
			sinks = append(sinks, gw)
		}
	}
	log := logging.Setup(settings.LogLevel, os.Stderr, true, sinks...)
	if *addr != "" {
		settings.Server.Addr = *addr
	}

	var metrics *combat.Metrics
	if settings.Metrics.Enabled {
		mc := settings.Metrics
		tp, err := telemetry.Start(mc.ServiceName, mc.Interval, mc.Path, os.Stderr)
		if err != nil {
			log.Warn().Err(err).Msg("Combat metrics disabled")
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Warn().Err(err).Msg("Metrics shutdown failed")
				}
			}()
			if metrics, err = combat.NewMetrics(tp.MeterProvider()); err != nil {
				log.Warn().Err(err).Msg("Combat metrics disabled")
			}
		}
	}

	console := combat.NewConsole()
	core := combat.New(
		combat.WithRNG(combat.NewRNG(settings.RNGKind(), settings.Seed)),
		combat.WithLogger(logging.Component(log, "combat")),
		combat.WithConsole(console),
		combat.WithMetrics(metrics),
		combat.WithStrict(settings.Combat.Strict),
		combat.WithTimings(settings.Timings()),
	)
	space, upgrades := settings.InitialSpace(), settings.CombatUpgrades()

	var saves server.Saves
	st, err := store.Open(settings.Store.Driver, settings.Store.DSN, logging.Component(log, "store"))
	if err != nil {
		log.Warn().Err(err).Msg("Save store unavailable, save routes disabled")
	} else {
		defer st.Close()
		saves = st
		if *resume != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			rec, err := st.Load(ctx, *resume)
			cancel()
			if err != nil {
				log.Fatal().Err(err).Str("slot", *resume).Msg("Loading save failed")
			}
			core.Restore(rec.Snapshot)
			space, upgrades = rec.Space, rec.Upgrades
			log.Info().Str("slot", rec.Slot).Str("label", rec.Label).Msg("Resumed")
		}
	}

	arena := server.NewArena(core, console, space, upgrades, logging.Component(log, "arena"))
	srv := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           server.New(arena, saves, logging.Component(log, "http")).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := arena.Run(ctx, settings.Server.FrameInterval, settings.Server.TicksPerFrame); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Arena stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("Spectator server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server stopped")
	}
	f := arena.Frame()
	log.Info().Int("battles", f.Fought).Int64("honor", f.Honor).Msg("Arena closed")
}
