package combat

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// --- Lifecycle constants ---

const (
	DefaultWarTrigger     = 1000000.0 // drifters needed before battles can start
	DefaultEndTimer       = 100       // lifecycle ticks a resolved battle lingers
	DefaultStalemateTicks = 2000      // mopping-up ticks before a forced end
	DefaultMasterTicks    = 8000      // absolute battle length
	DefaultStalemateUnits = 4         // a side at or below this is being mopped up
	DefaultCooldownTicks  = 0         // lifecycle ticks between battles

	maxShipsPerSide   = 200
	saturatedShipsCap = 175.0 // random override ceiling when a side saturates
	shipsPerMillion   = 1000000.0
	unitSizeDivisor   = 100.0
	triggerChance     = 0.5
	maxResults        = 64
)

// Phase is the lifecycle state of the combat core.
type Phase int

const (
	PhaseDormant Phase = iota
	PhaseActive
	PhaseResolvedWin
	PhaseResolvedLoss
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseDormant:
		return "dormant"
	case PhaseActive:
		return "active"
	case PhaseResolvedWin:
		return "resolved_win"
	case PhaseResolvedLoss:
		return "resolved_loss"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Timings holds the lifecycle thresholds.
type Timings struct {
	WarTrigger     float64
	EndTimer       int
	StalemateTicks int
	MasterTicks    int
	StalemateUnits int
	CooldownTicks  int
}

// DefaultTimings returns the stock thresholds.
func DefaultTimings() Timings {
	return Timings{
		WarTrigger:     DefaultWarTrigger,
		EndTimer:       DefaultEndTimer,
		StalemateTicks: DefaultStalemateTicks,
		MasterTicks:    DefaultMasterTicks,
		StalemateUnits: DefaultStalemateUnits,
		CooldownTicks:  DefaultCooldownTicks,
	}
}

// Battle is the single active skirmish.
type Battle struct {
	Name  string
	Named bool // name drawn from the catalog rather than a numeric id
	Phase Phase

	Left, Right       int // live counts
	LeftCap, RightCap int
	SpeedBonus        bool
	UnitSize          float64 // population moved per death, only ever shrinks

	StalemateClock int
	EndDelay       int
	MasterClock    int

	LeftLost, RightLost        int
	ProbesLost, DriftersKilled float64
	HonorBefore                int64
}

// Combat owns the unit list, grid, optional battle and honor ledger.
// It is single-threaded: callers drive it from one tick loop.
type Combat struct {
	rng     Source
	log     zerolog.Logger
	console EventSink
	simLog  *SimLog
	metrics *Metrics
	strict  bool
	timings Timings

	units  []Unit
	grid   Grid
	battle *Battle
	ledger Ledger
	namer  *Namer

	cooldown int
	threnody bool
	tick     int
	fought   int
	results  []BattleResult
}

// Option configures a Combat.
type Option func(*Combat)

// WithRNG sets the randomness source.
func WithRNG(src Source) Option {
	return func(c *Combat) { c.rng = src }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Combat) { c.log = l }
}

// WithConsole sets the player-facing event sink.
func WithConsole(sink EventSink) Option {
	return func(c *Combat) { c.console = sink }
}

// WithSimLog records lifecycle events into sl.
func WithSimLog(sl *SimLog) Option {
	return func(c *Combat) { c.simLog = sl }
}

// WithMetrics reports battle counters through m.
func WithMetrics(m *Metrics) Option {
	return func(c *Combat) { c.metrics = m }
}

// WithStrict turns invariant violations into panics.
func WithStrict(strict bool) Option {
	return func(c *Combat) { c.strict = strict }
}

// WithTimings overrides the lifecycle thresholds.
func WithTimings(t Timings) Option {
	return func(c *Combat) { c.timings = t }
}

// New creates a dormant combat core.
func New(opts ...Option) *Combat {
	c := &Combat{
		rng:     NewRNG(RNGThread, 1),
		log:     zerolog.Nop(),
		console: NopSink{},
		timings: DefaultTimings(),
		namer:   NewNamer(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// --- Read side ---

// Units returns the unit list. Callers must not modify it.
func (c *Combat) Units() []Unit { return c.units }

// Grid returns the grid as of the last combat update.
func (c *Combat) Grid() *Grid { return &c.grid }

// Battle returns the active battle, or nil when dormant.
func (c *Combat) Battle() *Battle { return c.battle }

// Active reports whether a battle is in progress.
func (c *Combat) Active() bool { return c.battle != nil }

// Phase returns the lifecycle phase.
func (c *Combat) Phase() Phase {
	if c.battle == nil {
		return PhaseDormant
	}
	return c.battle.Phase
}

// Counts returns the live unit counts, or zeros when dormant.
func (c *Combat) Counts() (left, right int) {
	if c.battle == nil {
		return 0, 0
	}
	return c.battle.Left, c.battle.Right
}

// Caps returns the per-side unit caps of the active battle.
func (c *Combat) Caps() (left, right int) {
	if c.battle == nil {
		return 0, 0
	}
	return c.battle.LeftCap, c.battle.RightCap
}

// Honor is the ledger value.
func (c *Combat) Honor() int64 { return c.ledger.Honor }

// BonusHonor is the current consecutive-win bonus.
func (c *Combat) BonusHonor() int64 { return c.ledger.Bonus }

// Ledger exposes the honor ledger.
func (c *Combat) Ledger() Ledger { return c.ledger }

// BattleName is the display name of the active or most recent battle.
func (c *Combat) BattleName() string { return c.namer.Current }

// Memorial is the name of the most recently lost named battle.
func (c *Combat) Memorial() string { return c.namer.Memorial }

// ThrenodyTitle is the memorial line for the most recent loss.
func (c *Combat) ThrenodyTitle() string { return c.namer.ThrenodyTitle() }

// TakeThrenody reports whether a named battle was lost since the last call.
func (c *Combat) TakeThrenody() bool {
	t := c.threnody
	c.threnody = false
	return t
}

// Results returns the most recent finished battles, oldest first.
func (c *Combat) Results() []BattleResult { return c.results }

// BattlesFought is the number of battles ended since creation.
func (c *Combat) BattlesFought() int { return c.fought }

// Ticks is the number of combat updates run.
func (c *Combat) Ticks() int { return c.tick }

// AwardHonor grants honor from outside combat.
func (c *Combat) AwardHonor(n int64) {
	c.ledger.Award(n)
	c.record("honor", "award", fmt.Sprintf("+%d", n), float64(n))
}

// --- Lifecycle ---

// Step runs one unified tick: trigger check, combat update, end check.
func (c *Combat) Step(space *Space, up Upgrades) {
	c.War(space, up)
	c.UpdateCombat(space)
	c.CheckForBattleEnd(up)
}

// War evaluates the trigger and starts a battle when it fires. It returns
// true if a battle was created.
func (c *Combat) War(space *Space, up Upgrades) bool {
	if c.battle != nil {
		return false
	}
	if c.cooldown > 0 {
		c.cooldown--
		return false
	}
	if space.DrifterCount <= c.timings.WarTrigger || space.ProbeCount <= 0 {
		return false
	}
	// The coin flip is never forced, so fixed-outcome sources still trigger.
	if c.rng.FloatNoBest() >= triggerChance {
		return false
	}
	c.createBattle(space, up)
	return true
}

// createBattle sizes both fleets from the current populations, names the
// battle and spawns the units.
func (c *Combat) createBattle(space *Space, up Upgrades) {
	b := &Battle{
		Phase:       PhaseActive,
		SpeedBonus:  space.SpeedBonus,
		UnitSize:    math.Max(1, math.Min(space.ProbeCount, space.DrifterCount)/unitSizeDivisor),
		HonorBefore: c.ledger.Honor,
	}

	rr := math.Max(1, c.rng.Float(false)*space.DrifterCount)
	ss := math.Max(1, c.rng.Float(true)*space.ProbeCount)

	b.LeftCap = sideCap(ss)
	if b.LeftCap >= maxShipsPerSide && c.rng.Bool(0.5, false) {
		b.LeftCap = clampInt(int(math.Ceil(c.rng.Float(true)*saturatedShipsCap)), 1, maxShipsPerSide)
	}
	b.RightCap = sideCap(rr)

	b.Name = c.namer.Next(up.NamedBattles, c.rng)
	b.Named = up.NamedBattles
	c.battle = b
	c.spawn()

	c.log.Info().
		Str("battle", b.Name).
		Int("left_cap", b.LeftCap).
		Int("right_cap", b.RightCap).
		Float64("unit_size", b.UnitSize).
		Msg("battle started")
	c.record("battle", "start", b.Name, float64(b.LeftCap+b.RightCap))
	c.metrics.battleStarted()
}

// sideCap converts a population draw into a unit count in [1, 200].
func sideCap(draw float64) int {
	return clampInt(int(math.Min(maxShipsPerSide, math.Ceil(draw/shipsPerMillion))), 1, maxShipsPerSide)
}

// spawn replaces the unit list with a fresh fleet, alternating teams so
// neither side gets an ordering advantage.
func (c *Combat) spawn() {
	b := c.battle
	b.Left, b.Right = 0, 0
	c.units = c.units[:0]

	leftTurn := false
	for b.Left < b.LeftCap || b.Right < b.RightCap {
		if leftTurn {
			c.units = append(c.units, newUnit(TeamLeft, c.rng))
			b.Left++
			if b.Right < b.RightCap {
				leftTurn = false
			}
		} else {
			c.units = append(c.units, newUnit(TeamRight, c.rng))
			b.Right++
			if b.Left < b.LeftCap {
				leftTurn = true
			}
		}
	}
}

// UpdateCombat rebuilds the grid, moves every living unit, resolves combat
// when a battle is active and fades out corpses.
func (c *Combat) UpdateCombat(space *Space) {
	if len(c.units) == 0 {
		return
	}
	c.tick++
	c.grid.Rebuild(c.units)
	centroid := Centroid(c.units)
	for i := range c.units {
		u := &c.units[i]
		if u.Alive {
			u.Step(&c.grid, centroid)
		} else {
			u.DeadFrames++
		}
	}
	if c.battle != nil {
		c.resolve(space)
		c.verifyCounts()
	}
	c.sweep()
	if c.battle != nil {
		c.recordVerbose("tick", "counts", fmt.Sprintf("L=%d R=%d", c.battle.Left, c.battle.Right), float64(c.battle.Left+c.battle.Right))
	}
}

// sweep drops corpses whose fade window has elapsed.
func (c *Combat) sweep() {
	kept := c.units[:0]
	for _, u := range c.units {
		if !u.Alive && u.DeadFrames >= corpseFadeTicks {
			continue
		}
		kept = append(kept, u)
	}
	c.units = kept
}

// CheckForBattleEnd advances the battle clocks, scores decisive results and
// ends the battle when any end condition holds.
func (c *Combat) CheckForBattleEnd(up Upgrades) {
	b := c.battle
	if b == nil {
		return
	}

	if b.Left == 0 || b.Right == 0 {
		if b.Phase == PhaseActive {
			b.Phase = PhaseResolvedWin
			if b.Left == 0 {
				b.Phase = PhaseResolvedLoss
			}
			c.log.Info().Str("battle", b.Name).Str("phase", b.Phase.String()).Msg("battle decided")
			c.record("battle", "decided", b.Phase.String(), float64(b.Left-b.Right))
		}
		if up.NamedBattles {
			c.scoreHonor(up)
		}
		b.EndDelay++
	} else if b.Left <= c.timings.StalemateUnits || b.Right <= c.timings.StalemateUnits {
		b.StalemateClock++
		if b.StalemateClock > c.timings.StalemateTicks {
			c.endBattle(EndStalemate)
			return
		}
	}

	if b.EndDelay >= c.timings.EndTimer {
		c.endBattle(EndResolved)
		return
	}

	b.MasterClock++
	if b.MasterClock >= c.timings.MasterTicks {
		c.endBattle(EndMasterClock)
	}
}

// scoreHonor applies the decisive result to the ledger once per battle.
func (c *Combat) scoreHonor(up Upgrades) {
	b := c.battle
	if b.Left == 0 {
		if !c.ledger.Lose(b.LeftCap) {
			return
		}
		if b.Named {
			c.namer.Memorialize()
			c.threnody = true
		}
		c.console.Push(fmt.Sprintf("Battle of %s lost.", b.Name))
		c.record("honor", "loss", b.Name, float64(-b.LeftCap))
		c.metrics.honorChanged(-int64(b.LeftCap))
		return
	}
	reward, ok := c.ledger.Win(b.LeftCap, up.Glory)
	if !ok {
		return
	}
	c.console.Push(fmt.Sprintf("Battle of %s won. +%d honor", b.Name, reward))
	c.record("honor", "win", b.Name, float64(reward))
	c.metrics.honorChanged(reward)
}

// endBattle returns the core to dormant. Units are left in place; corpses
// fade out and the next battle replaces the list.
func (c *Combat) endBattle(reason EndReason) {
	b := c.battle
	if b.Phase == PhaseActive {
		b.Phase = PhaseTimedOut
	}
	res := newBattleResult(b, reason, c.ledger.Honor)
	c.fought++
	c.results = append(c.results, res)
	if len(c.results) > maxResults {
		c.results = c.results[len(c.results)-maxResults:]
	}

	c.log.Info().
		Str("battle", b.Name).
		Str("outcome", res.Outcome.String()).
		Str("reason", reason.String()).
		Int("ticks", b.MasterClock).
		Msg("battle ended")
	c.record("battle", "end", res.Outcome.String()+" ("+reason.String()+")", float64(b.MasterClock))
	c.metrics.battleEnded(res)

	c.ledger.Settle()
	c.battle = nil
	c.cooldown = c.timings.CooldownTicks
}

// --- Invariants ---

// assertf reports a broken invariant: a panic in strict mode, an error log
// otherwise.
func (c *Combat) assertf(ok bool, format string, args ...any) {
	if ok {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c.strict {
		panic("combat invariant: " + msg)
	}
	c.log.Error().Msg("combat invariant: " + msg)
}

// verifyCounts checks the battle's live counts against the unit list.
func (c *Combat) verifyCounts() {
	left, right := 0, 0
	for i := range c.units {
		if !c.units[i].Alive {
			continue
		}
		if c.units[i].Team == TeamLeft {
			left++
		} else {
			right++
		}
	}
	b := c.battle
	c.assertf(left == b.Left && right == b.Right,
		"live counts L=%d R=%d, battle says L=%d R=%d", left, right, b.Left, b.Right)
	if !c.strict && (left != b.Left || right != b.Right) {
		b.Left, b.Right = left, right
	}
}

func (c *Combat) record(category, key, value string, num float64) {
	if c.simLog == nil {
		return
	}
	c.simLog.Add(c.tick, c.namer.Current, category, key, value, num)
}

func (c *Combat) recordVerbose(category, key, value string, num float64) {
	if c.simLog == nil {
		return
	}
	c.simLog.AddVerbose(c.tick, c.namer.Current, category, key, value, num)
}
