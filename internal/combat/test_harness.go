package combat

import "github.com/rs/zerolog"

// TestSim is a headless combat harness for tests and batch reports. It owns
// the space populations and upgrades a real game would provide, and drives
// Combat.Step with deterministic seeding and structured logging.
type TestSim struct {
	Combat   *Combat
	Space    Space
	Upgrades Upgrades
	SimLog   *SimLog
	Console  *Console
	Tick     int

	rngKind RNGKind
	seed    int64
	timings Timings
	logger  zerolog.Logger
	metrics *Metrics
	strict  bool
}

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra  simOptionKind = iota // seed, rng kind, verbose, timings: applied first
	simOptSpace                       // populations and upgrades: applied after the core exists
)

// SimOption is a builder function applied to a TestSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*TestSim)
}

// WithSeed sets the RNG seed for deterministic runs.
func WithSeed(seed int64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.seed = seed
	}}
}

// WithRNGKind selects the randomness behaviour.
func WithRNGKind(k RNGKind) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.rngKind = k
	}}
}

// WithVerbose enables per-tick verbose logging.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.SimLog = NewSimLog(v)
	}}
}

// WithSimTimings overrides the lifecycle thresholds.
func WithSimTimings(t Timings) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.timings = t
	}}
}

// WithSimLogger routes the core's structured log output.
func WithSimLogger(l zerolog.Logger) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.logger = l
	}}
}

// WithSimMetrics reports battle counters through m.
func WithSimMetrics(m *Metrics) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.metrics = m
	}}
}

// WithStrictInvariants makes invariant violations panic.
func WithStrictInvariants() SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.strict = true
	}}
}

// WithProbes sets the friendly population.
func WithProbes(n float64) SimOption {
	return SimOption{simOptSpace, func(ts *TestSim) {
		ts.Space.ProbeCount = n
	}}
}

// WithDrifters sets the hazard population.
func WithDrifters(n float64) SimOption {
	return SimOption{simOptSpace, func(ts *TestSim) {
		ts.Space.DrifterCount = n
	}}
}

// WithSpeedBonus enables the probe speed bonus at the given speed.
func WithSpeedBonus(speed float64) SimOption {
	return SimOption{simOptSpace, func(ts *TestSim) {
		ts.Space.SpeedBonus = true
		ts.Space.ProbeSpeed = speed
	}}
}

// WithUpgrades sets the purchased combat projects.
func WithUpgrades(up Upgrades) SimOption {
	return SimOption{simOptSpace, func(ts *TestSim) {
		ts.Upgrades = up
	}}
}

// NewTestSim constructs a TestSim in two ordered passes:
//  1. Infrastructure (seed, rng kind, verbose, timings)
//  2. Build the combat core, then populations and upgrades
func NewTestSim(opts ...SimOption) *TestSim {
	ts := &TestSim{
		SimLog:  NewSimLog(false),
		Console: NewConsole(),
		rngKind: RNGThread,
		seed:    1,
		timings: DefaultTimings(),
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		if o.kind == simOptInfra {
			o.fn(ts)
		}
	}
	ts.Combat = New(
		WithRNG(NewRNG(ts.rngKind, ts.seed)),
		WithLogger(ts.logger),
		WithConsole(ts.Console),
		WithSimLog(ts.SimLog),
		WithMetrics(ts.metrics),
		WithStrict(ts.strict),
		WithTimings(ts.timings),
	)
	for _, o := range opts {
		if o.kind == simOptSpace {
			o.fn(ts)
		}
	}
	return ts
}

// RunTicks advances the simulation n ticks.
func (ts *TestSim) RunTicks(n int) {
	for i := 0; i < n; i++ {
		ts.Tick++
		ts.Combat.Step(&ts.Space, ts.Upgrades)
	}
}

// RunUntil advances the simulation up to maxTicks, stopping early if predicate
// returns true. Returns the tick at which the predicate was satisfied, or -1.
func (ts *TestSim) RunUntil(predicate func(*TestSim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		ts.Tick++
		ts.Combat.Step(&ts.Space, ts.Upgrades)
		if predicate(ts) {
			return ts.Tick
		}
	}
	return -1
}

// RunBattle runs until the next battle ends. It returns the finished
// battle's result, or false if none completed within maxTicks.
func (ts *TestSim) RunBattle(maxTicks int) (BattleResult, bool) {
	before := ts.Combat.BattlesFought()
	for i := 0; i < maxTicks; i++ {
		ts.Tick++
		ts.Combat.Step(&ts.Space, ts.Upgrades)
		if ts.Combat.BattlesFought() > before {
			res := ts.Combat.Results()
			return res[len(res)-1], true
		}
	}
	return BattleResult{}, false
}

// Summary returns the SimLog summary of the current combat state.
func (ts *TestSim) Summary() string {
	return ts.SimLog.Summary(ts.Combat)
}
