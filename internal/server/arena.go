package server

import (
	"context"
	"sync"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/rs/zerolog"
)

const frameBuffer = 16

// UnitFrame is one unit as spectators see it.
type UnitFrame struct {
	ID    int     `json:"id" msgpack:"id"`
	Team  string  `json:"team" msgpack:"team"`
	Alive bool    `json:"alive" msgpack:"alive"`
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
}

// Frame is the live state pushed to spectators after each advance.
type Frame struct {
	Step     int         `json:"step" msgpack:"step"`
	Active   bool        `json:"active" msgpack:"active"`
	Battle   string      `json:"battle,omitempty" msgpack:"battle"`
	Phase    string      `json:"phase" msgpack:"phase"`
	Left     int         `json:"left" msgpack:"left"`
	Right    int         `json:"right" msgpack:"right"`
	LeftCap  int         `json:"leftCap" msgpack:"leftCap"`
	RightCap int         `json:"rightCap" msgpack:"rightCap"`
	Honor    int64       `json:"honor" msgpack:"honor"`
	Fought   int         `json:"fought" msgpack:"fought"`
	Probes   float64     `json:"probes" msgpack:"probes"`
	Drifters float64     `json:"drifters" msgpack:"drifters"`
	Console  string      `json:"console,omitempty" msgpack:"console"`
	Units    []UnitFrame `json:"units,omitempty" msgpack:"units"`
}

// Arena owns one running simulation and fans frames out to subscribers.
type Arena struct {
	mu       sync.RWMutex
	combat   *combat.Combat
	console  *combat.Console
	space    combat.Space
	upgrades combat.Upgrades
	steps    int

	subMu sync.Mutex
	subs  map[chan Frame]struct{}

	log zerolog.Logger
}

// NewArena wraps a combat core. The console must be the one the core pushes to.
func NewArena(core *combat.Combat, console *combat.Console, space combat.Space, up combat.Upgrades, log zerolog.Logger) *Arena {
	if console == nil {
		console = combat.NewConsole()
	}
	return &Arena{
		combat:   core,
		console:  console,
		space:    space,
		upgrades: up,
		subs:     make(map[chan Frame]struct{}),
		log:      log,
	}
}

// Advance steps the simulation n ticks and broadcasts the resulting frame.
func (a *Arena) Advance(n int) Frame {
	a.mu.Lock()
	for i := 0; i < n; i++ {
		a.combat.Step(&a.space, a.upgrades)
		a.steps++
	}
	f := a.frameLocked()
	a.mu.Unlock()

	a.broadcast(f)
	return f
}

// Frame returns the current state without advancing.
func (a *Arena) Frame() Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frameLocked()
}

// Results copies the retained battle history.
func (a *Arena) Results() []combat.BattleResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]combat.BattleResult(nil), a.combat.Results()...)
}

// SetUpgrades replaces the purchased projects.
func (a *Arena) SetUpgrades(up combat.Upgrades) {
	a.mu.Lock()
	a.upgrades = up
	a.mu.Unlock()
}

// Reinforce adds to either population.
func (a *Arena) Reinforce(probes, drifters float64) {
	a.mu.Lock()
	a.space.ProbeCount += probes
	a.space.DrifterCount += drifters
	a.mu.Unlock()
}

func (a *Arena) frameLocked() Frame {
	c := a.combat
	f := Frame{
		Step:     a.steps,
		Active:   c.Active(),
		Phase:    c.Phase().String(),
		Honor:    c.Honor(),
		Fought:   c.BattlesFought(),
		Probes:   a.space.ProbeCount,
		Drifters: a.space.DrifterCount,
		Console:  a.console.Last(),
	}
	if b := c.Battle(); b != nil {
		f.Battle = b.Name
		f.Left, f.Right = c.Counts()
		f.LeftCap, f.RightCap = c.Caps()
	}
	units := c.Units()
	if len(units) > 0 {
		f.Units = make([]UnitFrame, len(units))
		for i, u := range units {
			f.Units[i] = UnitFrame{ID: u.ID, Team: u.Team.String(), Alive: u.Alive, X: u.X, Y: u.Y}
		}
	}
	return f
}

// Subscribe registers for frames. Slow subscribers miss frames rather than
// stall the simulation. Call the returned func to unsubscribe.
func (a *Arena) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, frameBuffer)
	a.subMu.Lock()
	a.subs[ch] = struct{}{}
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, ch)
			a.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many spectators are attached.
func (a *Arena) Subscribers() int {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	return len(a.subs)
}

func (a *Arena) broadcast(f Frame) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- f:
		default:
			a.log.Trace().Int("step", f.Step).Msg("Spectator behind, frame dropped")
		}
	}
}

// Run advances ticksPerFrame ticks every interval until ctx is done.
func (a *Arena) Run(ctx context.Context, interval time.Duration, ticksPerFrame int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.log.Info().Dur("interval", interval).Int("ticksPerFrame", ticksPerFrame).Msg("Arena running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Advance(ticksPerFrame)
		}
	}
}
