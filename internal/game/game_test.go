package game

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/config"
	"github.com/Garsondee/Driftwar/internal/store"
	"github.com/rs/zerolog"
)

type fakeSaver struct {
	saved    []store.Record
	appended [][]combat.BattleResult
	err      error
}

func (f *fakeSaver) Save(_ context.Context, rec store.Record) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if rec.Slot == "" {
		rec.Slot = "0f0e0d0c-slot"
	}
	f.saved = append(f.saved, rec)
	return rec.Slot, nil
}

func (f *fakeSaver) AppendBattles(_ context.Context, _ string, results []combat.BattleResult) error {
	f.appended = append(f.appended, results)
	return nil
}

func testSettings() config.Settings {
	t := combat.DefaultTimings()
	return config.Settings{
		Seed: 21,
		RNG:  "legacy",
		Combat: config.CombatConfig{
			WarTrigger:     t.WarTrigger,
			EndTimer:       t.EndTimer,
			StalemateTicks: t.StalemateTicks,
			MasterTicks:    t.MasterTicks,
			StalemateUnits: t.StalemateUnits,
			CooldownTicks:  t.CooldownTicks,
			Strict:         true,
		},
		Space:    config.SpaceConfig{Probes: 50_000_000, Drifters: 2_000_000, ProbeSpeed: 1},
		Upgrades: config.UpgradesConfig{NamedBattles: true},
	}
}

func newTestGame(s Saver) *Game {
	return New(Options{Settings: testSettings(), Logger: zerolog.Nop(), Store: s})
}

// runUntil steps the viewer's sim until pred holds, failing after max ticks.
func runUntil(t *testing.T, g *Game, pred func() bool, max int) {
	t.Helper()
	for i := 0; i < max; i++ {
		g.simTick()
		if pred() {
			return
		}
	}
	t.Fatalf("condition not reached in %d ticks", max)
}

func eventsOfKind(g *Game, k EventKind) []EventEntry {
	var out []EventEntry
	for _, e := range g.events.Recent() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// --- Sim loop ---

func TestSimTick_LogsBattleStart(t *testing.T) {
	g := newTestGame(nil)
	runUntil(t, g, g.combat.Active, 1000)

	starts := eventsOfKind(g, EventStart)
	if len(starts) != 1 {
		t.Fatalf("expected 1 start line, got %d", len(starts))
	}
	want := "Battle of " + g.combat.BattleName()
	if !strings.HasPrefix(starts[0].Message, want) {
		t.Fatalf("start line %q should begin with %q", starts[0].Message, want)
	}
	if starts[0].Tick != g.tick {
		t.Fatalf("start line stamped at %d, want %d", starts[0].Tick, g.tick)
	}
}

func TestSimTick_LogsBattleEnd(t *testing.T) {
	g := newTestGame(nil)
	runUntil(t, g, func() bool { return g.combat.BattlesFought() > 0 }, 20000)

	ends := eventsOfKind(g, EventEnd)
	if len(ends) != 1 {
		t.Fatalf("expected 1 end line, got %d", len(ends))
	}
	res := g.combat.Results()[0]
	if ends[0].Battle != res.Name {
		t.Fatalf("end line for %q, want %q", ends[0].Battle, res.Name)
	}
	if !strings.Contains(ends[0].Message, res.Outcome.String()) {
		t.Fatalf("end line %q should name outcome %s", ends[0].Message, res.Outcome)
	}
	if g.fought != 1 {
		t.Fatalf("viewer should track 1 fought battle, got %d", g.fought)
	}
}

func TestSimTick_ConsoleLinesReachPanel(t *testing.T) {
	g := newTestGame(nil)
	runUntil(t, g, func() bool { return g.console.Last() != "" }, 100000)

	found := false
	for _, e := range g.events.Recent() {
		if e.Message == g.console.Last() {
			found = true
			if e.Kind != EventWin && e.Kind != EventLoss {
				t.Fatalf("honor line %q classified as %d", e.Message, e.Kind)
			}
		}
	}
	if !found {
		t.Fatalf("console line %q missing from panel", g.console.Last())
	}
}

// --- Persistence ---

func TestSave_WritesRecordAndNewBattlesOnce(t *testing.T) {
	fs := &fakeSaver{}
	g := newTestGame(fs)
	runUntil(t, g, func() bool { return g.combat.BattlesFought() > 0 }, 20000)

	g.save()
	if len(fs.saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(fs.saved))
	}
	if fs.saved[0].Slot != "" {
		t.Fatalf("first save should request a new slot, got %q", fs.saved[0].Slot)
	}
	if len(fs.appended) != 1 || len(fs.appended[0]) != 1 {
		t.Fatalf("expected the finished battle to be stored once, got %v", fs.appended)
	}
	if g.slot != "0f0e0d0c-slot" {
		t.Fatalf("slot not remembered, got %q", g.slot)
	}

	g.save()
	if fs.saved[1].Slot != g.slot {
		t.Fatalf("second save should reuse slot %q, got %q", g.slot, fs.saved[1].Slot)
	}
	if len(fs.appended[1]) != 0 {
		t.Fatalf("no new battles should be stored, got %d", len(fs.appended[1]))
	}
}

func TestSave_FailureKeepsBattlesPending(t *testing.T) {
	fs := &fakeSaver{err: errors.New("disk full")}
	g := newTestGame(fs)
	runUntil(t, g, func() bool { return g.combat.BattlesFought() > 0 }, 20000)

	g.save()
	if g.status != "Save failed" {
		t.Fatalf("status = %q", g.status)
	}
	if len(g.unpersisted()) != 1 {
		t.Fatalf("battle should still be pending, got %d", len(g.unpersisted()))
	}
}

func TestSave_WithoutStore(t *testing.T) {
	g := newTestGame(nil)
	g.save()
	if g.status != "No save store configured" || g.statusFrames == 0 {
		t.Fatalf("expected a flashed notice, got %q (%d frames)", g.status, g.statusFrames)
	}
}

func TestRestore_ResumesBattle(t *testing.T) {
	src := newTestGame(nil)
	runUntil(t, src, src.combat.Active, 1000)
	src.space.SpeedBonus = true
	rec := src.record()
	rec.Slot = "resumed"
	rec.Label = "mid battle"

	g := newTestGame(nil)
	g.Restore(rec)

	if g.combat.BattleName() != src.combat.BattleName() {
		t.Fatalf("battle %q, want %q", g.combat.BattleName(), src.combat.BattleName())
	}
	if !g.space.SpeedBonus || g.slot != "resumed" {
		t.Fatal("space or slot not restored")
	}
	if !g.wasActive {
		t.Fatal("restored active battle should not be announced again")
	}
	g.simTick()
	if len(eventsOfKind(g, EventStart)) != 0 {
		t.Fatal("resuming logged a spurious battle start")
	}
}

func TestReportText_ListsBattles(t *testing.T) {
	g := newTestGame(nil)
	runUntil(t, g, func() bool { return g.combat.BattlesFought() > 0 }, 20000)

	txt := g.reportText()
	if !strings.Contains(txt, "=== Battle Report ===") {
		t.Fatalf("report header missing:\n%s", txt)
	}
	if !strings.Contains(txt, g.combat.Results()[0].Name) {
		t.Fatalf("report should list %q:\n%s", g.combat.Results()[0].Name, txt)
	}
}

// --- HUD helpers ---

func TestSpeedSteps(t *testing.T) {
	cases := []struct {
		cur, slower, faster float64
	}{
		{0, 0, 0.5},
		{0.5, 0, 1},
		{1, 0.5, 2},
		{2, 1, 4},
		{4, 2, 4},
	}
	for _, c := range cases {
		if got := slowerSpeed(c.cur); got != c.slower {
			t.Errorf("slowerSpeed(%v) = %v, want %v", c.cur, got, c.slower)
		}
		if got := fasterSpeed(c.cur); got != c.faster {
			t.Errorf("fasterSpeed(%v) = %v, want %v", c.cur, got, c.faster)
		}
	}
}

func TestSpeedLabel(t *testing.T) {
	want := map[float64]string{0: "PAUSED", 0.5: "0.5x", 1: "1x", 4: "4x"}
	for in, out := range want {
		if got := speedLabel(in); got != out {
			t.Errorf("speedLabel(%v) = %q, want %q", in, got, out)
		}
	}
}

func TestFormatCount(t *testing.T) {
	want := map[float64]string{
		12:     "12",
		1500:   "1.5K",
		2e6:    "2.00M",
		5e7:    "50.00M",
		3.2e9:  "3.20B",
		1.5e12: "1.50T",
	}
	for in, out := range want {
		if got := formatCount(in); got != out {
			t.Errorf("formatCount(%v) = %q, want %q", in, got, out)
		}
	}
}

func TestUnitColor_CorpsesFade(t *testing.T) {
	live := unitColor(combat.Unit{Team: combat.TeamRight, Alive: true})
	if live != colRight {
		t.Fatalf("live drifter colour %v, want %v", live, colRight)
	}
	prev := uint8(255)
	for f := 0; f <= 12; f++ {
		c := unitColor(combat.Unit{Team: combat.TeamLeft, DeadFrames: f})
		if c.A > prev {
			t.Fatalf("corpse alpha rose at frame %d: %d > %d", f, c.A, prev)
		}
		prev = c.A
	}
	if prev == 0 {
		t.Fatal("corpse should stay faintly visible until removed")
	}
}

func TestHUDLines_ShowConsoleAndProjects(t *testing.T) {
	g := newTestGame(nil)
	g.console.Push("Battle of Ulm 1 won. +50 honor")
	g.flash("Glory: on")

	joined := strings.Join(g.hudLines(), "\n")
	for _, want := range []string{"> Battle of Ulm 1 won. +50 honor", "* Glory: on", "[N] named on", "SIM: 1x"} {
		if !strings.Contains(joined, want) {
			t.Errorf("HUD missing %q:\n%s", want, joined)
		}
	}
}

// --- Event log ---

func TestEventLog_RingKeepsNewest(t *testing.T) {
	el := NewEventLog()
	for i := 0; i < logMaxEntries+5; i++ {
		el.Add(i, "", EventNote, "line")
	}
	got := el.Recent()
	if len(got) != logMaxEntries {
		t.Fatalf("expected %d entries, got %d", logMaxEntries, len(got))
	}
	if got[0].Tick != 5 || got[len(got)-1].Tick != logMaxEntries+4 {
		t.Fatalf("wrong window: first %d last %d", got[0].Tick, got[len(got)-1].Tick)
	}
}

func TestEventLog_PushStampsAndClassifies(t *testing.T) {
	el := NewEventLog()
	el.Stamp(42, "Jena 2")
	el.Push("Battle of Jena 2 won. +12 honor")
	el.Push("Battle of Jena 2 lost.")
	el.Push("something else")

	got := el.Recent()
	kinds := []EventKind{EventWin, EventLoss, EventNote}
	for i, k := range kinds {
		if got[i].Kind != k {
			t.Errorf("entry %d kind %d, want %d", i, got[i].Kind, k)
		}
		if got[i].Tick != 42 || got[i].Battle != "Jena 2" {
			t.Errorf("entry %d stamped %d/%q", i, got[i].Tick, got[i].Battle)
		}
	}
}

func TestNewResults_TrimmedHistory(t *testing.T) {
	rs := []combat.BattleResult{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	if got := newResults(rs, 2); len(got) != 2 || got[0].Name != "b" {
		t.Fatalf("newResults(2) = %v", got)
	}
	if got := newResults(rs, 10); len(got) != 3 {
		t.Fatalf("newResults beyond history should return all, got %d", len(got))
	}
	if got := newResults(rs, 0); len(got) != 0 {
		t.Fatalf("newResults(0) = %v", got)
	}
}
