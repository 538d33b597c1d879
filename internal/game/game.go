package game

import (
	"fmt"
	"image/color"
	"math"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/config"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/basicfont"
)

// borderWidth is the pixel gap between the window edge and the arena.
const borderWidth = 24

// hudScale is the integer upscale factor applied to all HUD text.
const hudScale = 2

// pixelScale is screen pixels per arena unit.
const pixelScale = 5

// bannerFrames is how long the threnody banner stays up.
const bannerFrames = 240

// Reinforcement sizes added by the R and F keys.
const (
	drifterReinforcement = 1_000_000
	probeReinforcement   = 10_000_000
)

var (
	colLeft  = color.NRGBA{R: 90, G: 170, B: 255, A: 255}
	colRight = color.NRGBA{R: 235, G: 90, B: 70, A: 255}
	colGrid  = color.RGBA{R: 40, G: 50, B: 70, A: 90}
)

var simSpeeds = []float64{0, 0.5, 1, 2, 4}

// Options configure a viewer.
type Options struct {
	Settings config.Settings
	Logger   zerolog.Logger
	Metrics  *combat.Metrics
	Store    Saver // optional; saving is disabled when nil
}

// Game is the ebiten battle viewer. It owns the combat core and the slice
// of space state the core drains, and steps both from the frame loop.
type Game struct {
	width      int
	height     int
	gameWidth  int // arena width in pixels (event panel takes the rest)
	gameHeight int
	offX       int
	offY       int

	combat   *combat.Combat
	space    combat.Space
	upgrades combat.Upgrades
	console  *combat.Console
	events   *EventLog
	log      zerolog.Logger
	tick     int

	store     Saver
	slot      string
	persisted int // battles already written to the store

	wasActive bool
	fought    int

	showHUD  bool
	showGrid bool
	prevKeys map[ebiten.Key]bool

	// Offscreen buffer for HUD text, rendered at 1x then blitted at hudScale.
	// Created on first draw.
	hudBuf *ebiten.Image

	simSpeed  float64 // multiplier: 0=paused, 0.5, 1, 2, 4
	tickAccum float64

	banner       string
	bannerFrames int
	status       string
	statusFrames int
}

// New builds a viewer from loaded settings.
func New(opts Options) *Game {
	s := opts.Settings
	battleW := combat.ArenaWidth * pixelScale
	battleH := combat.ArenaHeight * pixelScale
	g := &Game{
		width:      borderWidth + battleW + borderWidth + logPanelWidth,
		height:     borderWidth + battleH + borderWidth,
		gameWidth:  battleW,
		gameHeight: battleH,
		offX:       borderWidth,
		offY:       borderWidth,
		space:      s.InitialSpace(),
		upgrades:   s.CombatUpgrades(),
		console:    combat.NewConsole(),
		events:     NewEventLog(),
		log:        opts.Logger,
		store:      opts.Store,
		showHUD:    true,
		prevKeys:   make(map[ebiten.Key]bool),
		simSpeed:   1,
	}
	g.combat = combat.New(
		combat.WithRNG(combat.NewRNG(s.RNGKind(), s.Seed)),
		combat.WithLogger(opts.Logger),
		combat.WithConsole(teeSink{g.console, g.events}),
		combat.WithMetrics(opts.Metrics),
		combat.WithStrict(s.Combat.Strict),
		combat.WithTimings(s.Timings()),
	)
	g.log.Info().
		Str("rng", s.RNGKind().String()).
		Int64("seed", s.Seed).
		Float64("probes", g.space.ProbeCount).
		Float64("drifters", g.space.DrifterCount).
		Msg("Viewer ready")
	return g
}

// teeSink forwards console lines to several sinks.
type teeSink []combat.EventSink

func (t teeSink) Push(msg string) {
	for _, s := range t {
		s.Push(msg)
	}
}

func (g *Game) Update() error {
	g.handleInput()

	if g.bannerFrames > 0 {
		g.bannerFrames--
	}
	if g.statusFrames > 0 {
		g.statusFrames--
	}

	if g.simSpeed <= 0 {
		return nil
	}

	g.tickAccum += g.simSpeed
	for g.tickAccum >= 1.0 {
		g.tickAccum -= 1.0
		g.simTick()
	}
	return nil
}

// simTick runs one combat step and turns lifecycle changes into panel lines.
func (g *Game) simTick() {
	g.tick++
	g.events.Stamp(g.tick, g.combat.BattleName())

	g.combat.Step(&g.space, g.upgrades)

	if g.combat.Active() && !g.wasActive {
		l, r := g.combat.Caps()
		g.events.Add(g.tick, g.combat.BattleName(), EventStart,
			fmt.Sprintf("%s: %d vs %d", battleTitle(g.combat.BattleName()), l, r))
	}
	g.wasActive = g.combat.Active()

	if fought := g.combat.BattlesFought(); fought > g.fought {
		for _, r := range newResults(g.combat.Results(), fought-g.fought) {
			g.events.Add(g.tick, r.Name, EventEnd,
				fmt.Sprintf("%s: %s", battleTitle(r.Name), r.Outcome))
		}
		g.fought = fought
	}

	if g.combat.TakeThrenody() {
		g.banner = g.combat.ThrenodyTitle()
		g.bannerFrames = bannerFrames
	}
}

// newResults returns the last n results, or all of them when the history
// was trimmed below n.
func newResults(results []combat.BattleResult, n int) []combat.BattleResult {
	if n > len(results) {
		n = len(results)
	}
	return results[len(results)-n:]
}

func battleTitle(name string) string {
	if name == "" {
		return "Battle"
	}
	return "Battle of " + name
}

// slowerSpeed returns the next lower entry in simSpeeds.
func slowerSpeed(cur float64) float64 {
	for i, s := range simSpeeds {
		if s >= cur && i > 0 {
			return simSpeeds[i-1]
		}
	}
	return cur
}

// fasterSpeed returns the next higher entry in simSpeeds.
func fasterSpeed(cur float64) float64 {
	for _, s := range simSpeeds {
		if s > cur {
			return s
		}
	}
	return cur
}

func speedLabel(speed float64) string {
	switch speed {
	case 0:
		return "PAUSED"
	case 1, 2, 4:
		return fmt.Sprintf("%.0fx", speed)
	default:
		return fmt.Sprintf("%.1fx", speed)
	}
}

func (g *Game) flash(msg string) {
	g.status = msg
	g.statusFrames = 180
}

// handleInput processes keypresses (edge-triggered).
func (g *Game) handleInput() {
	currentKeys := map[ebiten.Key]bool{}
	pressed := func(k ebiten.Key) bool {
		currentKeys[k] = ebiten.IsKeyPressed(k)
		return currentKeys[k] && !g.prevKeys[k]
	}

	// Sim speed controls: P=pause/resume, ,=slower, .=faster.
	if pressed(ebiten.KeyP) {
		if g.simSpeed > 0 {
			g.simSpeed = 0
		} else {
			g.simSpeed = 1
		}
	}
	if pressed(ebiten.KeyComma) {
		g.simSpeed = slowerSpeed(g.simSpeed)
	}
	if pressed(ebiten.KeyPeriod) {
		g.simSpeed = fasterSpeed(g.simSpeed)
	}

	if pressed(ebiten.KeyH) {
		g.showHUD = !g.showHUD
	}
	if pressed(ebiten.KeyG) {
		g.showGrid = !g.showGrid
	}

	// Projects.
	if pressed(ebiten.KeyN) {
		g.upgrades.NamedBattles = !g.upgrades.NamedBattles
		g.flash(fmt.Sprintf("Named battles: %s", onOff(g.upgrades.NamedBattles)))
	}
	if pressed(ebiten.KeyL) {
		g.upgrades.Glory = !g.upgrades.Glory
		g.flash(fmt.Sprintf("Glory: %s", onOff(g.upgrades.Glory)))
	}
	if pressed(ebiten.KeyB) {
		g.space.SpeedBonus = !g.space.SpeedBonus
		g.flash(fmt.Sprintf("Speed bonus: %s", onOff(g.space.SpeedBonus)))
	}

	// Reinforcements.
	if pressed(ebiten.KeyR) {
		g.space.DrifterCount += drifterReinforcement
		g.flash(fmt.Sprintf("+%s drifters", formatCount(drifterReinforcement)))
	}
	if pressed(ebiten.KeyF) {
		g.space.ProbeCount += probeReinforcement
		g.flash(fmt.Sprintf("+%s probes", formatCount(probeReinforcement)))
	}

	if pressed(ebiten.KeyC) {
		g.copyReport()
	}
	if pressed(ebiten.KeyF5) {
		g.save()
	}

	g.prevKeys = currentKeys
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// formatCount renders large populations with a metric suffix.
func formatCount(n float64) string {
	switch abs := math.Abs(n); {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", n/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", n/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", n/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", n/1e3)
	default:
		return fmt.Sprintf("%.0f", n)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 6, G: 8, B: 14, A: 255})

	ox := float32(g.offX)
	oy := float32(g.offY)
	gw := float32(g.gameWidth)
	gh := float32(g.gameHeight)
	vector.FillRect(screen, ox, oy, gw, gh, color.RGBA{R: 10, G: 12, B: 22, A: 255}, false)

	if g.showGrid {
		drawGridOffset(screen, g.offX, g.offY, g.gameWidth, g.gameHeight, combat.CellScale*pixelScale, colGrid)
		g.drawOccupancy(screen)
	}
	g.drawUnits(screen)

	borderCol := color.RGBA{R: 60, G: 75, B: 110, A: 255}
	vector.StrokeRect(screen, ox-1, oy-1, gw+2, gh+2, 2.0, borderCol, false)
	vector.StrokeRect(screen, ox-3, oy-3, gw+6, gh+6, 1.0, color.RGBA{R: 40, G: 50, B: 80, A: 100}, false)

	g.drawBattleBar(screen)

	logX := g.offX + g.gameWidth + g.offX
	g.events.Draw(screen, logX, g.height)

	if g.showHUD {
		g.drawHUD(screen)
	}
	if g.bannerFrames > 0 {
		g.drawBanner(screen)
	}
}

// unitColor is the team colour, faded out over the corpse lifetime.
func unitColor(u combat.Unit) color.NRGBA {
	c := colLeft
	if u.Team == combat.TeamRight {
		c = colRight
	}
	if !u.Alive {
		c = color.NRGBA{R: c.R / 2, G: c.G / 2, B: c.B / 2, A: fade(u.DeadFrames)}
	}
	return c
}

// fade maps corpse age onto alpha, reaching a floor before removal.
func fade(deadFrames int) uint8 {
	const start, floor, span = 200, 20, 10
	if deadFrames >= span {
		return floor
	}
	return uint8(start - (start-floor)*deadFrames/span)
}

// toScreen maps an arena position onto screen pixels.
func (g *Game) toScreen(x, y float64) (float32, float32) {
	return float32(g.offX) + float32(x*pixelScale), float32(g.offY) + float32(y*pixelScale)
}

func (g *Game) drawUnits(screen *ebiten.Image) {
	for _, u := range g.combat.Units() {
		sx, sy := g.toScreen(u.X, u.Y)
		c := unitColor(u)
		if !u.Alive {
			vector.StrokeCircle(screen, sx, sy, 3, 1, c, false)
			continue
		}
		vector.FillCircle(screen, sx, sy, 2.5, c, false)
		// Heading tick.
		vector.StrokeLine(screen, sx, sy,
			sx+float32(u.VX*2), sy+float32(u.VY*2), 1, c, false)
	}
}

// drawOccupancy shades cells where both teams are present, which is where
// the resolver can kill.
func (g *Game) drawOccupancy(screen *ebiten.Image) {
	grid := g.combat.Grid()
	cs := float32(combat.CellScale * pixelScale)
	for x := 0; x < combat.GridWidth; x++ {
		for y := 0; y < combat.GridHeight; y++ {
			left, right := grid.Cell(x, y).Tally()
			if left == 0 && right == 0 {
				continue
			}
			c := color.RGBA{R: 30, G: 36, B: 60, A: 70}
			if left > 0 && right > 0 {
				c = color.RGBA{R: 120, G: 60, B: 140, A: 90}
			}
			vector.FillRect(screen, float32(g.offX)+float32(x)*cs, float32(g.offY)+float32(y)*cs, cs, cs, c, false)
		}
	}
}

// drawBattleBar renders the live-count bar and battle title above the arena.
func (g *Game) drawBattleBar(screen *ebiten.Image) {
	if !g.combat.Active() {
		return
	}
	l, r := g.combat.Counts()
	lc, rc := g.combat.Caps()
	title := fmt.Sprintf("%s  [%s]  %d/%d vs %d/%d",
		battleTitle(g.combat.BattleName()), g.combat.Phase(), l, lc, r, rc)
	text.Draw(screen, title, basicfont.Face7x13, g.offX, g.offY-8, color.NRGBA{R: 220, G: 225, B: 240, A: 255})

	total := l + r
	if total == 0 {
		return
	}
	barW := float32(200)
	bx := float32(g.offX+g.gameWidth) - barW
	by := float32(g.offY - 16)
	split := barW * float32(l) / float32(total)
	vector.FillRect(screen, bx, by, split, 8, colLeft, false)
	vector.FillRect(screen, bx+split, by, barW-split, 8, colRight, false)
	vector.StrokeRect(screen, bx, by, barW, 8, 1, color.RGBA{R: 200, G: 200, B: 220, A: 160}, false)
}

// hudLines builds the HUD text.
func (g *Game) hudLines() []string {
	lines := []string{
		fmt.Sprintf("SIM: %s  P=pause  ,/. speed", speedLabel(g.simSpeed)),
		fmt.Sprintf("Probes:   %s  lost %s", formatCount(g.space.ProbeCount), formatCount(g.space.ProbesLostCombat)),
		fmt.Sprintf("Drifters: %s  killed %s", formatCount(g.space.DrifterCount), formatCount(g.space.DriftersKilled)),
		fmt.Sprintf("Honor: %d  bonus %d  battles %d", g.combat.Honor(), g.combat.BonusHonor(), g.combat.BattlesFought()),
		fmt.Sprintf("[N] named %s  [L] glory %s  [B] speed %s",
			onOff(g.upgrades.NamedBattles), onOff(g.upgrades.Glory), onOff(g.space.SpeedBonus)),
		"[R] +drifters  [F] +probes  [G] grid",
		"[C] copy report  [F5] save  [H] HUD",
	}
	if last := g.console.Last(); last != "" {
		lines = append(lines, "> "+last)
	}
	if g.statusFrames > 0 {
		lines = append(lines, "* "+g.status)
	}
	return lines
}

// drawHUD renders the status box in the bottom-left corner.
// Text is drawn into hudBuf at 1x then composited onto the screen at hudScale.
func (g *Game) drawHUD(screen *ebiten.Image) {
	lines := g.hudLines()

	const lineH = 12 // debug font line height at 1x
	const charW = 6  // debug font char width at 1x
	const padX = 5
	const padY = 4

	maxLen := 0
	for _, l := range lines {
		if len(l) > maxLen {
			maxLen = len(l)
		}
	}
	boxW := float32(maxLen*charW + padX*2)
	boxH := float32(len(lines)*lineH + padY*2)

	bufH := float32(g.height / hudScale)
	bx := float32(g.offX/hudScale + 2)
	by := bufH - boxH - float32(g.offY/hudScale) - 2

	if g.hudBuf == nil {
		g.hudBuf = ebiten.NewImage(g.width/hudScale, g.height/hudScale)
	}
	g.hudBuf.Clear()
	vector.FillRect(g.hudBuf, bx, by, boxW, boxH,
		color.RGBA{R: 6, G: 8, B: 16, A: 210}, false)
	vector.StrokeRect(g.hudBuf, bx, by, boxW, boxH,
		1.0, color.RGBA{R: 60, G: 80, B: 120, A: 180}, false)
	vector.StrokeLine(g.hudBuf, bx+1, by+1, bx+boxW-1, by+1,
		1.0, color.RGBA{R: 80, G: 110, B: 160, A: 80}, false)

	for i, line := range lines {
		tx := int(bx) + padX
		ty := int(by) + padY + i*lineH
		ebitenutil.DebugPrintAt(g.hudBuf, line, tx, ty)
	}

	opts := &ebiten.DrawImageOptions{}
	opts.GeoM.Scale(float64(hudScale), float64(hudScale))
	screen.DrawImage(g.hudBuf, opts)
}

// drawBanner shows the threnody title across the arena, fading out.
func (g *Game) drawBanner(screen *ebiten.Image) {
	alpha := uint8(255 * g.bannerFrames / bannerFrames)
	face := basicfont.Face7x13
	w := text.BoundString(face, g.banner).Dx()
	cx := g.offX + g.gameWidth/2
	cy := g.offY + g.gameHeight/2

	vector.FillRect(screen, float32(cx-w/2-12), float32(cy-18), float32(w+24), 28,
		color.NRGBA{R: 0, G: 0, B: 0, A: uint8(int(alpha) * 3 / 4)}, false)
	text.Draw(screen, g.banner, face, cx-w/2, cy, color.NRGBA{R: 230, G: 210, B: 160, A: alpha})
}

func drawGridOffset(screen *ebiten.Image, offX, offY, w, h, spacing int, c color.Color) {
	if spacing <= 0 {
		return
	}
	ox, oy := float32(offX), float32(offY)
	for x := 0; x <= w; x += spacing {
		xf := ox + float32(x)
		vector.StrokeLine(screen, xf, oy, xf, oy+float32(h), 1.0, c, false)
	}
	for y := 0; y <= h; y += spacing {
		yf := oy + float32(y)
		vector.StrokeLine(screen, ox, yf, ox+float32(w), yf, 1.0, c, false)
	}
}

func (g *Game) Layout(_, _ int) (int, int) {
	return g.width, g.height
}

// WindowSize returns the native window size.
func (g *Game) WindowSize() (int, int) {
	return g.width, g.height
}
