package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/config"
	"github.com/Garsondee/Driftwar/internal/logging"
	"github.com/Garsondee/Driftwar/internal/termview"
	"github.com/gdamore/tcell/v2"
)

func main() {
	configDir := flag.String("config", ".", "directory holding driftwar.json/yaml")
	logPath := flag.String("log", "", "write logs to this file (the terminal is busy drawing)")
	mute := flag.Bool("mute", false, "disable the threnody")
	flag.Parse()

	settings, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log := logging.Setup(settings.LogLevel, logOut, false)

	console := combat.NewConsole()
	core := combat.New(
		combat.WithRNG(combat.NewRNG(settings.RNGKind(), settings.Seed)),
		combat.WithLogger(logging.Component(log, "combat")),
		combat.WithConsole(console),
		combat.WithStrict(settings.Combat.Strict),
		combat.WithTimings(settings.Timings()),
	)

	var player termview.Player
	if !*mute {
		sp, err := termview.NewSpeaker()
		if err != nil {
			// Non-fatal, the view runs silent.
			log.Warn().Err(err).Msg("Audio initialization failed")
		} else {
			defer sp.Close()
			player = sp
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	view := termview.New(screen, termview.Options{
		Combat:   core,
		Console:  console,
		Space:    settings.InitialSpace(),
		Upgrades: settings.CombatUpgrades(),
		Player:   player,
		Logger:   logging.Component(log, "termview"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	runErr := view.Run(ctx)
	stop()
	screen.Fini()

	if runErr != nil && runErr != context.Canceled {
		fmt.Fprintf(os.Stderr, "Viewer stopped: %v\n", runErr)
	}
	fmt.Print(combat.BuildReport(core.Results()).String())
	s := view.Space()
	fmt.Printf("honor=%d probes=%.0f drifters=%.0f\n", core.Honor(), s.ProbeCount, s.DrifterCount)
}
