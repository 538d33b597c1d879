package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/config"
	"github.com/Garsondee/Driftwar/internal/influx"
	"github.com/Garsondee/Driftwar/internal/logging"
	"github.com/Garsondee/Driftwar/internal/store"
	"github.com/Garsondee/Driftwar/internal/telemetry"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type scenario struct {
	kind     combat.RNGKind
	ticks    int
	space    combat.Space
	upgrades combat.Upgrades
	timings  combat.Timings
	strict   bool
	logger   zerolog.Logger
	metrics  *combat.Metrics
}

type runStats struct {
	runIndex int
	seed     int64

	firstStartTick int
	firstDeathTick int
	firstEndTick   int
	firstWinTick   int
	firstLossTick  int

	deaths     map[string]int // by team
	names      map[string]struct{}
	results    []combat.BattleResult
	report     combat.Report
	honor      int64
	final      combat.Space
	snapshot   combat.Snapshot
	upgrades   combat.Upgrades
	verifyTick int    // last tick the invariant checks ran, 0 when not strict
	firstLog   string // SimLog lines of the first finished battle, verbose runs only
}

// runSummary is the YAML form of one run.
type runSummary struct {
	Run            int           `yaml:"run"`
	Seed           int64         `yaml:"seed"`
	FirstStartTick int           `yaml:"firstStartTick"`
	FirstDeathTick int           `yaml:"firstDeathTick"`
	FirstEndTick   int           `yaml:"firstEndTick"`
	Honor          int64         `yaml:"honor"`
	ProbesLeft     float64       `yaml:"probesLeft"`
	DriftersLeft   float64       `yaml:"driftersLeft"`
	Battles        []string      `yaml:"battles"`
	Report         combat.Report `yaml:"report"`
}

type output struct {
	RNG       string        `yaml:"rng"`
	Ticks     int           `yaml:"ticks"`
	Runs      []runSummary  `yaml:"runs"`
	Aggregate combat.Report `yaml:"aggregate"`
}

func main() {
	var runs int
	var ticks int
	var seedBase int64
	var seedStep int64
	var rngName string
	var configDir string
	var outPath string
	var save bool
	var verbose bool
	var toInflux bool

	flag.IntVar(&runs, "runs", 5, "number of headless simulation runs")
	flag.IntVar(&ticks, "ticks", 20000, "ticks per run")
	flag.Int64Var(&seedBase, "seed-base", 42, "base RNG seed for run 1")
	flag.Int64Var(&seedStep, "seed-step", 1, "seed increment between runs")
	flag.StringVar(&rngName, "rng", "", "rng kind: thread, legacy, best, worst (default from config)")
	flag.StringVar(&configDir, "config", ".", "directory holding driftwar.json/yaml")
	flag.StringVar(&outPath, "out", "", "write the report as YAML to this file")
	flag.BoolVar(&save, "save", false, "store each run's final state and battles in the save store")
	flag.BoolVar(&verbose, "verbose", false, "record per-death events (needed for first_death)")
	flag.BoolVar(&toInflux, "influx", false, "export every battle to InfluxDB (settings from the influx config section)")
	flag.Parse()

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		return
	}
	if ticks <= 0 {
		fmt.Println("error: -ticks must be > 0")
		return
	}

	settings, err := config.Load(configDir)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	var sinks []io.Writer
	if settings.Graylog != "" {
		gw, err := logging.Graylog(settings.Graylog)
		if err != nil {
			fmt.Printf("warning: %v\n", err)
		} else {
			defer gw.Close()
			sinks = append(sinks, gw)
		}
	}
	log := logging.Setup(settings.LogLevel, os.Stderr, true, sinks...)
	if rngName != "" {
		settings.RNG = rngName
	}

	sc := scenario{
		kind:     settings.RNGKind(),
		ticks:    ticks,
		space:    settings.InitialSpace(),
		upgrades: settings.CombatUpgrades(),
		timings:  settings.Timings(),
		strict:   settings.Combat.Strict,
		logger:   logging.Component(log, "combat"),
	}
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
			if sc.metrics, err = combat.NewMetrics(tp.MeterProvider()); err != nil {
				log.Warn().Err(err).Msg("Combat metrics disabled")
			}
		}
	}

	fmt.Printf("=== Headless Battle Report ===\n")
	fmt.Printf("rng=%s runs=%d ticks=%d seed_base=%d seed_step=%d probes=%.0f drifters=%.0f named=%t glory=%t\n\n",
		sc.kind, runs, ticks, seedBase, seedStep, sc.space.ProbeCount, sc.space.DrifterCount,
		sc.upgrades.NamedBattles, sc.upgrades.Glory)

	all := make([]runStats, 0, runs)
	for i := 0; i < runs; i++ {
		seed := seedBase + int64(i)*seedStep
		stats := runScenario(i+1, seed, sc, verbose)
		all = append(all, stats)
		printRun(stats)
	}
	printAggregate(all)

	if outPath != "" {
		if err := writeYAML(outPath, buildOutput(sc, all)); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Writing report failed")
			os.Exit(1)
		}
		log.Info().Str("path", outPath).Msg("Report written")
	}

	if save {
		if err := saveRuns(settings, all, log); err != nil {
			log.Error().Err(err).Msg("Saving runs failed")
			os.Exit(1)
		}
	}

	if toInflux || settings.Influx.Enabled {
		if err := exportRuns(settings.Influx, all, log); err != nil {
			log.Error().Err(err).Msg("Influx export failed")
			os.Exit(1)
		}
	}
}

func runScenario(runIndex int, seed int64, sc scenario, verbose bool) runStats {
	opts := []combat.SimOption{
		combat.WithRNGKind(sc.kind),
		combat.WithSeed(seed),
		combat.WithVerbose(verbose),
		combat.WithSimTimings(sc.timings),
		combat.WithSimLogger(sc.logger),
		combat.WithSimMetrics(sc.metrics),
		combat.WithProbes(sc.space.ProbeCount),
		combat.WithDrifters(sc.space.DrifterCount),
		combat.WithUpgrades(sc.upgrades),
	}
	if sc.space.SpeedBonus {
		opts = append(opts, combat.WithSpeedBonus(sc.space.ProbeSpeed))
	}
	if sc.strict {
		opts = append(opts, combat.WithStrictInvariants())
	}
	ts := combat.NewTestSim(opts...)

	// Results are collected as battles end; the core only keeps a bounded
	// history.
	var results []combat.BattleResult
	fought := 0
	for i := 0; i < sc.ticks; i++ {
		ts.RunTicks(1)
		if n := ts.Combat.BattlesFought(); n > fought {
			res := ts.Combat.Results()
			take := n - fought
			if take > len(res) {
				take = len(res)
			}
			results = append(results, res[len(res)-take:]...)
			fought = n
		}
	}

	entries := ts.SimLog.Entries()
	deaths := map[string]int{}
	names := map[string]struct{}{}
	for _, e := range entries {
		switch e.Category {
		case "death":
			deaths[e.Key]++
		case "battle":
			if e.Key == "start" && e.Value != "" {
				names[e.Value] = struct{}{}
			}
		}
	}

	rs := runStats{
		runIndex:       runIndex,
		seed:           seed,
		firstStartTick: firstTick(entries, "battle", "start", ""),
		firstDeathTick: firstTick(entries, "death", "", ""),
		firstEndTick:   firstTick(entries, "battle", "end", ""),
		firstWinTick:   firstTick(entries, "honor", "win", ""),
		firstLossTick:  firstTick(entries, "honor", "loss", ""),
		deaths:         deaths,
		names:          names,
		results:        results,
		report:         combat.BuildReport(results),
		honor:          ts.Combat.Honor(),
		final:          ts.Space,
		snapshot:       ts.Combat.Snapshot(),
		upgrades:       ts.Upgrades,
	}
	if sc.strict {
		rs.verifyTick = ts.Tick
	}
	if verbose && rs.firstStartTick >= 0 && rs.firstEndTick >= rs.firstStartTick {
		rs.firstLog = ts.SimLog.FormatRange(rs.firstStartTick, rs.firstEndTick)
	}
	return rs
}

// firstTick returns the tick of the first entry matching category, key
// (any key when empty) and a substring of the value, or -1.
func firstTick(entries []combat.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || (key != "" && e.Key != key) {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

func printRun(rs runStats) {
	fmt.Printf("--- Run %d (seed=%d) ---\n", rs.runIndex, rs.seed)
	fmt.Printf("phase_markers: first_start=%d first_death=%d first_end=%d first_win=%d first_loss=%d\n",
		rs.firstStartTick, rs.firstDeathTick, rs.firstEndTick, rs.firstWinTick, rs.firstLossTick)
	fmt.Printf("deaths: left=%d right=%d\n", rs.deaths[combat.TeamLeft.String()], rs.deaths[combat.TeamRight.String()])
	fmt.Printf("population: probes=%.0f (lost %.0f) drifters=%.0f (killed %.0f)\n",
		rs.final.ProbeCount, rs.final.ProbesLostCombat, rs.final.DrifterCount, rs.final.DriftersKilled)
	fmt.Printf("honor=%d battles_named=%s\n", rs.honor, joinSet(rs.names))
	if rs.verifyTick > 0 {
		fmt.Printf("invariants: checked through T=%d\n", rs.verifyTick)
	}
	if rs.firstLog != "" {
		fmt.Printf("first battle log:\n%s", rs.firstLog)
	}
	fmt.Print(rs.report.String())
	fmt.Print(combat.FormatResults(rs.results))
	fmt.Println()
}

func printAggregate(all []runStats) {
	var results []combat.BattleResult
	startTicks := make([]int, 0, len(all))
	endTicks := make([]int, 0, len(all))
	deathTicks := make([]int, 0, len(all))
	totalHonor := 0
	names := map[string]struct{}{}
	outcomes := map[string]int{}

	for _, rs := range all {
		results = append(results, rs.results...)
		if rs.firstStartTick >= 0 {
			startTicks = append(startTicks, rs.firstStartTick)
		}
		if rs.firstEndTick >= 0 {
			endTicks = append(endTicks, rs.firstEndTick)
		}
		if rs.firstDeathTick >= 0 {
			deathTicks = append(deathTicks, rs.firstDeathTick)
		}
		totalHonor += int(rs.honor)
		for n := range rs.names {
			names[n] = struct{}{}
		}
		for _, r := range rs.results {
			outcomes[r.Outcome.String()]++
		}
	}

	agg := combat.BuildReport(results)
	fmt.Println("=== Aggregate ===")
	fmt.Printf("runs=%d battles=%d avg_battles_per_run=%.1f\n", len(all), agg.Battles, avg(agg.Battles, len(all)))
	fmt.Printf("phase_marker_avg_ticks: first_start=%s first_death=%s first_end=%s\n",
		avgTickString(startTicks), avgTickString(deathTicks), avgTickString(endTicks))
	fmt.Printf("avg_honor_per_run=%.1f win_rate=%.1f%%\n", avg(totalHonor, len(all)), agg.WinRate()*100)
	fmt.Printf("outcomes: %s\n", joinCounts(outcomes))
	fmt.Printf("unique_names=%d\n", len(names))
	fmt.Print(agg.String())
}

func buildOutput(sc scenario, all []runStats) output {
	out := output{RNG: sc.kind.String(), Ticks: sc.ticks}
	var results []combat.BattleResult
	for _, rs := range all {
		battles := make([]string, 0, len(rs.results))
		for _, r := range rs.results {
			battles = append(battles, r.Name)
		}
		out.Runs = append(out.Runs, runSummary{
			Run:            rs.runIndex,
			Seed:           rs.seed,
			FirstStartTick: rs.firstStartTick,
			FirstDeathTick: rs.firstDeathTick,
			FirstEndTick:   rs.firstEndTick,
			Honor:          rs.honor,
			ProbesLeft:     rs.final.ProbeCount,
			DriftersLeft:   rs.final.DrifterCount,
			Battles:        battles,
			Report:         rs.report,
		})
		results = append(results, rs.results...)
	}
	out.Aggregate = combat.BuildReport(results)
	return out
}

func writeYAML(path string, out output) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush report: %w", err)
	}
	return f.Close()
}

func saveRuns(settings config.Settings, all []runStats, log zerolog.Logger) error {
	st, err := store.Open(settings.Store.Driver, settings.Store.DSN, logging.Component(log, "store"))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	for _, rs := range all {
		slot, err := st.Save(ctx, store.Record{
			Label:    fmt.Sprintf("headless run %d seed %d", rs.runIndex, rs.seed),
			Snapshot: rs.snapshot,
			Space:    rs.final,
			Upgrades: rs.upgrades,
		})
		if err != nil {
			return err
		}
		if err := st.AppendBattles(ctx, slot, rs.results); err != nil {
			return err
		}
		log.Info().Str("slot", slot).Int("run", rs.runIndex).Int("battles", len(rs.results)).Msg("Run saved")
	}
	return nil
}

// exportRuns writes every collected battle as one point, tagged by run.
func exportRuns(cfg config.InfluxConfig, all []runStats, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sink, err := influx.Open(ctx, influx.Config{
		URL:        cfg.URL,
		Token:      cfg.Token,
		Org:        cfg.Org,
		Bucket:     cfg.Bucket,
		BackupPath: cfg.BackupPath,
	}, logging.Component(log, "influx"))
	if err != nil {
		return err
	}

	at := time.Now()
	total := 0
	for _, rs := range all {
		run := fmt.Sprintf("run-%d", rs.runIndex)
		if err := sink.WriteResults(run, rs.seed, rs.results, at); err != nil {
			_ = sink.Close()
			return err
		}
		total += len(rs.results)
	}
	if err := sink.Close(); err != nil {
		return err
	}
	log.Info().Int("battles", total).Bool("online", sink.Online()).Msg("Battles exported")
	return nil
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func joinCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func joinSet(s map[string]struct{}) string {
	if len(s) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s))
	for k := range s {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
