package termview

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

type countingPlayer struct{ plays int }

func (p *countingPlayer) PlayThrenody() { p.plays++ }

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func newTestView(t *testing.T, p Player) *View {
	t.Helper()
	return New(newSimScreen(t, 80, 30), Options{
		Combat:   combat.New(combat.WithRNG(combat.NewRNG(combat.RNGLegacy, 21))),
		Space:    combat.Space{ProbeCount: 50_000_000, DrifterCount: 2_000_000, ProbeSpeed: 1},
		Upgrades: combat.Upgrades{NamedBattles: true},
		Player:   p,
		Logger:   zerolog.Nop(),
	})
}

// rowText reads one screen row back as a string.
func rowText(s tcell.Screen, y, w int) string {
	var sb strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		sb.WriteRune(r)
	}
	return strings.TrimRight(sb.String(), " ")
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestToCell_ClampsIntoArena(t *testing.T) {
	cases := []struct {
		x, y   float64
		cx, cy int
	}{
		{0, 0, 1, 1},
		{combat.ArenaWidth, combat.ArenaHeight, 78, 23},
		{-5, -5, 1, 1},
		{combat.ArenaWidth / 2, combat.ArenaHeight / 2, 40, 12},
	}
	for _, c := range cases {
		cx, cy := toCell(c.x, c.y, 78, 23)
		if cx != c.cx || cy != c.cy {
			t.Errorf("toCell(%v,%v) = (%d,%d), want (%d,%d)", c.x, c.y, cx, cy, c.cx, c.cy)
		}
	}
}

func TestPlot_MarksMeleeCells(t *testing.T) {
	units := []combat.Unit{
		{Team: combat.TeamLeft, Alive: true, X: 10, Y: 10},
		{Team: combat.TeamRight, Alive: true, X: 10.1, Y: 10.1},
		{Team: combat.TeamLeft, Alive: true, X: 300, Y: 140},
		{Team: combat.TeamRight, Alive: false, X: 150, Y: 75},
	}
	g := plot(units, 78, 23)
	if len(g) != 3 {
		t.Fatalf("expected 3 occupied cells, got %d", len(g))
	}
	want := map[[2]int]rune{}
	cx, cy := toCell(10, 10, 78, 23)
	want[[2]int{cx, cy}] = '*'
	cx, cy = toCell(300, 140, 78, 23)
	want[[2]int{cx, cy}] = '>'
	cx, cy = toCell(150, 75, 78, 23)
	want[[2]int{cx, cy}] = 'x'
	for pos, r := range want {
		if g[pos].r != r {
			t.Errorf("cell %v = %q, want %q", pos, g[pos].r, r)
		}
	}
}

func TestHandleEvent_Keys(t *testing.T) {
	v := newTestView(t, nil)

	v.handleEvent(key('p'))
	if !v.paused {
		t.Fatal("p should pause")
	}
	for i := 0; i < 10; i++ {
		v.handleEvent(key('+'))
	}
	if v.ticksPerFrame != maxTicksPerFrame {
		t.Fatalf("speed should cap at %d, got %d", maxTicksPerFrame, v.ticksPerFrame)
	}
	v.handleEvent(key('-'))
	if v.ticksPerFrame != maxTicksPerFrame/2 {
		t.Fatalf("speed should halve, got %d", v.ticksPerFrame)
	}

	v.handleEvent(key('g'))
	v.handleEvent(key('n'))
	if !v.upgrades.Glory || v.upgrades.NamedBattles {
		t.Fatalf("project toggles wrong: %+v", v.upgrades)
	}
	v.handleEvent(key('r'))
	if v.space.DrifterCount != 2_000_000+drifterReinforcement {
		t.Fatalf("drifters not reinforced: %f", v.space.DrifterCount)
	}

	if !v.handleEvent(key('z')) {
		t.Fatal("unbound key should not quit")
	}
	if v.handleEvent(key('q')) {
		t.Fatal("q should quit")
	}
	if v.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Fatal("escape should quit")
	}
}

func TestFrame_PausedDoesNotStep(t *testing.T) {
	v := newTestView(t, nil)
	v.paused = true
	v.frame()
	if v.steps != 0 {
		t.Fatalf("paused frame stepped the sim %d times", v.steps)
	}
	v.paused = false
	v.ticksPerFrame = 4
	v.frame()
	if v.steps != 4 {
		t.Fatalf("expected 4 steps, got %d", v.steps)
	}
}

func TestFrame_PlaysThrenodyOncePerLoss(t *testing.T) {
	p := &countingPlayer{}
	v := newTestView(t, p)
	v.ticksPerFrame = maxTicksPerFrame

	for i := 0; i < 20000 && p.plays == 0; i++ {
		v.frame()
	}
	if p.plays == 0 {
		t.Skip("no named battle was lost in this run")
	}
	if v.banner != v.combat.ThrenodyTitle() || v.bannerFrames == 0 {
		t.Fatalf("banner %q (%d frames), want %q", v.banner, v.bannerFrames, v.combat.ThrenodyTitle())
	}
	if v.combat.TakeThrenody() {
		t.Fatal("threnody flag should already be consumed")
	}
}

func TestDraw_BorderAndStatus(t *testing.T) {
	v := newTestView(t, nil)
	v.console.Push("Battle of Ulm 1 won. +50 honor")
	v.draw()

	r, _, _, _ := v.screen.GetContent(0, 0)
	if r != tcell.RuneULCorner {
		t.Fatalf("top-left corner = %q", r)
	}
	_, h := v.arenaSize()
	if got := rowText(v.screen, h+2, 80); !strings.HasPrefix(got, "No battle  sim 1x") {
		t.Fatalf("status row = %q", got)
	}
	if got := rowText(v.screen, h+2+statusRows-1, 80); got != "Battle of Ulm 1 won. +50 honor" {
		t.Fatalf("console row = %q", got)
	}
}

func TestRun_QuitsOnKey(t *testing.T) {
	v := newTestView(t, nil)
	done := make(chan error, 1)
	go func() { done <- v.Run(context.Background()) }()

	time.Sleep(3 * frameInterval)
	v.screen.(tcell.SimulationScreen).InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on q")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	v := newTestView(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}

func TestRun_PollerExitsAfterReturn(t *testing.T) {
	v := newTestView(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()
	time.Sleep(2 * frameInterval)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation")
	}

	// The screen is still live; the next event must release the poller
	// instead of parking it on the abandoned channel.
	v.screen.(tcell.SimulationScreen).InjectKey(tcell.KeyRune, 'x', tcell.ModNone)

	exited := make(chan struct{})
	go func() {
		v.poller.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("event poller still running after Run returned")
	}
}

func TestDirge_Length(t *testing.T) {
	st, err := dirge(sampleRate)
	if err != nil {
		t.Fatalf("dirge: %v", err)
	}
	var want int
	for _, n := range threnodyNotes {
		want += sampleRate.N(n.dur)
	}
	buf := make([][2]float64, 4096)
	got := 0
	for {
		n, ok := st.Stream(buf)
		got += n
		if !ok || n == 0 {
			break
		}
	}
	if got != want {
		t.Fatalf("dirge streamed %d samples, want %d", got, want)
	}
}
