package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/config"
	"github.com/Garsondee/Driftwar/internal/game"
	"github.com/Garsondee/Driftwar/internal/logging"
	"github.com/Garsondee/Driftwar/internal/store"
	"github.com/Garsondee/Driftwar/internal/telemetry"
	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	configDir := flag.String("config", ".", "directory holding driftwar.json/yaml")
	resume := flag.String("resume", "", "save slot to resume")
	noStore := flag.Bool("no-store", false, "run without the save store")
	flag.Parse()

	settings, err := config.Load(*configDir)
	if err != nil {
		logging.Setup("info", os.Stderr, true).Fatal().Err(err).Msg("Loading config failed")
	}
	var sinks []io.Writer
	if settings.Graylog != "" {
		gw, err := logging.Graylog(settings.Graylog)
		if err != nil {
			logging.Setup("info", os.Stderr, true).Warn().Err(err).Msg("Graylog disabled")
		} else {
			defer gw.Close()
			sinks = append(sinks, gw)
		}
	}
	log := logging.Setup(settings.LogLevel, os.Stderr, true, sinks...)

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

	opts := game.Options{
		Settings: settings,
		Logger:   logging.Component(log, "combat"),
		Metrics:  metrics,
	}

	var st *store.Store
	if !*noStore {
		st, err = store.Open(settings.Store.Driver, settings.Store.DSN, logging.Component(log, "store"))
		if err != nil {
			log.Warn().Err(err).Msg("Save store unavailable, saving disabled")
		} else {
			defer st.Close()
			opts.Store = st
		}
	}

	g := game.New(opts)
	if *resume != "" {
		if st == nil {
			log.Fatal().Str("slot", *resume).Msg("Cannot resume without a save store")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, err := st.Load(ctx, *resume)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("slot", *resume).Msg("Loading save failed")
		}
		g.Restore(rec)
		log.Info().Str("slot", rec.Slot).Str("label", rec.Label).Msg("Resumed")
	}

	w, h := g.WindowSize()
	ebiten.SetWindowTitle("Driftwar")
	ebiten.SetWindowSize(w, h)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal().Err(err).Msg("Viewer stopped")
	}
}
