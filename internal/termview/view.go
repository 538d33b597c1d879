// Package termview renders battles in a terminal with tcell.
package termview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

const (
	frameInterval    = 33 * time.Millisecond // ~30 FPS
	statusRows       = 5
	maxTicksPerFrame = 16

	drifterReinforcement = 1_000_000
	probeReinforcement   = 10_000_000
)

var (
	styleLeft    = tcell.StyleDefault.Foreground(tcell.ColorDodgerBlue)
	styleRight   = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
	styleCorpse  = tcell.StyleDefault.Foreground(tcell.ColorDimGray)
	styleMelee   = tcell.StyleDefault.Foreground(tcell.ColorFuchsia).Bold(true)
	styleBorder  = tcell.StyleDefault.Foreground(tcell.ColorSlateGray)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorGold).Bold(true)
	styleConsole = tcell.StyleDefault.Foreground(tcell.ColorLightGreen)
)

// Player sounds the dirge when a named battle is lost.
type Player interface {
	PlayThrenody()
}

type nopPlayer struct{}

func (nopPlayer) PlayThrenody() {}

// Options configure a View.
type Options struct {
	Combat   *combat.Combat
	Console  *combat.Console
	Space    combat.Space
	Upgrades combat.Upgrades
	Player   Player // optional
	Logger   zerolog.Logger
}

// View owns a tcell screen and drives the combat core from its frame loop.
type View struct {
	screen   tcell.Screen
	combat   *combat.Combat
	console  *combat.Console
	space    combat.Space
	upgrades combat.Upgrades
	player   Player
	log      zerolog.Logger

	width, height int
	ticksPerFrame int
	paused        bool
	steps         int

	banner       string
	bannerFrames int

	poller sync.WaitGroup // the PollEvent goroutine of the current Run
}

// New wraps an initialised screen.
func New(screen tcell.Screen, opts Options) *View {
	v := &View{
		screen:        screen,
		combat:        opts.Combat,
		console:       opts.Console,
		space:         opts.Space,
		upgrades:      opts.Upgrades,
		player:        opts.Player,
		log:           opts.Logger,
		ticksPerFrame: 1,
	}
	if v.player == nil {
		v.player = nopPlayer{}
	}
	if v.console == nil {
		v.console = combat.NewConsole()
	}
	v.width, v.height = screen.Size()
	return v
}

// Space returns the populations as the view last left them.
func (v *View) Space() combat.Space { return v.space }

// Run polls input and renders until ctx is done or the user quits.
func (v *View) Run(ctx context.Context) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	stop := make(chan struct{})
	defer close(stop)
	v.poller.Add(1)
	go func() {
		defer v.poller.Done()
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return // screen finalised
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if !v.handleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			v.frame()
			v.draw()
		}
	}
}

// frame advances the sim by the current speed.
func (v *View) frame() {
	if v.bannerFrames > 0 {
		v.bannerFrames--
	}
	if v.paused {
		return
	}
	for i := 0; i < v.ticksPerFrame; i++ {
		v.combat.Step(&v.space, v.upgrades)
		v.steps++
		if v.combat.TakeThrenody() {
			v.banner = v.combat.ThrenodyTitle()
			v.bannerFrames = 90
			v.player.PlayThrenody()
			v.log.Info().Str("battle", v.combat.Memorial()).Msg("Threnody")
		}
	}
}

// handleEvent applies one input event. It returns false to quit.
func (v *View) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case 'p':
			v.paused = !v.paused
		case '+', '=':
			if v.ticksPerFrame < maxTicksPerFrame {
				v.ticksPerFrame *= 2
			}
		case '-':
			if v.ticksPerFrame > 1 {
				v.ticksPerFrame /= 2
			}
		case 'n':
			v.upgrades.NamedBattles = !v.upgrades.NamedBattles
		case 'g':
			v.upgrades.Glory = !v.upgrades.Glory
		case 'b':
			v.space.SpeedBonus = !v.space.SpeedBonus
		case 'r':
			v.space.DrifterCount += drifterReinforcement
		case 'f':
			v.space.ProbeCount += probeReinforcement
		}
	case *tcell.EventResize:
		v.width, v.height = v.screen.Size()
		v.screen.Sync()
	}
	return true
}

// arenaSize is the cell area the arena is scaled into, inside the border.
func (v *View) arenaSize() (int, int) {
	w := v.width - 2
	h := v.height - statusRows - 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// toCell maps an arena position onto a screen cell inside the border.
func toCell(x, y float64, w, h int) (int, int) {
	cx := int(x / combat.ArenaWidth * float64(w))
	cy := int(y / combat.ArenaHeight * float64(h))
	if cx >= w {
		cx = w - 1
	}
	if cy >= h {
		cy = h - 1
	}
	if cx < 0 {
		cx = 0
	}
	if cy < 0 {
		cy = 0
	}
	return cx + 1, cy + 1
}

type glyph struct {
	r     rune
	style tcell.Style
}

// plot folds the units into one glyph per cell. A cell holding living units
// of both teams shows the melee marker.
func plot(units []combat.Unit, w, h int) map[[2]int]glyph {
	type tally struct{ left, right, dead int }
	counts := make(map[[2]int]*tally)
	for _, u := range units {
		cx, cy := toCell(u.X, u.Y, w, h)
		k := [2]int{cx, cy}
		t := counts[k]
		if t == nil {
			t = &tally{}
			counts[k] = t
		}
		switch {
		case !u.Alive:
			t.dead++
		case u.Team == combat.TeamLeft:
			t.left++
		default:
			t.right++
		}
	}

	out := make(map[[2]int]glyph, len(counts))
	for k, t := range counts {
		switch {
		case t.left > 0 && t.right > 0:
			out[k] = glyph{'*', styleMelee}
		case t.left > 0:
			out[k] = glyph{'>', styleLeft}
		case t.right > 0:
			out[k] = glyph{'<', styleRight}
		default:
			out[k] = glyph{'x', styleCorpse}
		}
	}
	return out
}

func (v *View) draw() {
	v.screen.Clear()
	w, h := v.arenaSize()

	v.drawBorder(w, h)
	for pos, g := range plot(v.combat.Units(), w, h) {
		v.screen.SetContent(pos[0], pos[1], g.r, nil, g.style)
	}

	row := h + 2
	lines := v.statusLines()
	for i, line := range lines {
		style := styleStatus
		if i == len(lines)-1 {
			style = styleConsole
		}
		v.putString(0, row+i, line, style)
	}

	if v.bannerFrames > 0 {
		x := (w+2)/2 - len(v.banner)/2
		v.putString(x, (h+2)/2, v.banner, styleBanner)
	}

	v.screen.Show()
}

func (v *View) drawBorder(w, h int) {
	for x := 1; x <= w; x++ {
		v.screen.SetContent(x, 0, tcell.RuneHLine, nil, styleBorder)
		v.screen.SetContent(x, h+1, tcell.RuneHLine, nil, styleBorder)
	}
	for y := 1; y <= h; y++ {
		v.screen.SetContent(0, y, tcell.RuneVLine, nil, styleBorder)
		v.screen.SetContent(w+1, y, tcell.RuneVLine, nil, styleBorder)
	}
	v.screen.SetContent(0, 0, tcell.RuneULCorner, nil, styleBorder)
	v.screen.SetContent(w+1, 0, tcell.RuneURCorner, nil, styleBorder)
	v.screen.SetContent(0, h+1, tcell.RuneLLCorner, nil, styleBorder)
	v.screen.SetContent(w+1, h+1, tcell.RuneLRCorner, nil, styleBorder)
}

func (v *View) putString(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		if x >= v.width {
			return
		}
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// statusLines builds the text under the arena. The console line is last.
func (v *View) statusLines() []string {
	battle := "No battle"
	if v.combat.Active() {
		l, r := v.combat.Counts()
		lc, rc := v.combat.Caps()
		name := v.combat.BattleName()
		if name == "" {
			name = "?"
		}
		battle = fmt.Sprintf("Battle of %s [%s] %d/%d vs %d/%d", name, v.combat.Phase(), l, lc, r, rc)
	}
	speed := fmt.Sprintf("%dx", v.ticksPerFrame)
	if v.paused {
		speed = "PAUSED"
	}
	return []string{
		fmt.Sprintf("%s  sim %s", battle, speed),
		fmt.Sprintf("probes %.0f (lost %.0f)  drifters %.0f (killed %.0f)",
			v.space.ProbeCount, v.space.ProbesLostCombat, v.space.DrifterCount, v.space.DriftersKilled),
		fmt.Sprintf("honor %d  bonus %d  battles %d  named %s glory %s",
			v.combat.Honor(), v.combat.BonusHonor(), v.combat.BattlesFought(),
			onOff(v.upgrades.NamedBattles), onOff(v.upgrades.Glory)),
		"q quit  p pause  +/- speed  n named  g glory  b bonus  r/f reinforce",
		v.console.Last(),
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
