package game

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"
)

const (
	logPanelWidth = 320
	logMaxEntries = 60
	logLineHeight = 11
	logTitleH     = 18
)

// EventKind tags a panel line for its colour dot.
type EventKind int

const (
	EventNote EventKind = iota
	EventStart
	EventWin
	EventLoss
	EventEnd
)

// EventEntry is a single line in the event panel.
type EventEntry struct {
	Tick    int
	Battle  string
	Kind    EventKind
	Message string
}

// EventLog is a ring buffer of battle events rendered beside the arena.
// It also satisfies combat.EventSink so console lines land in the panel.
type EventLog struct {
	entries []EventEntry
	head    int
	count   int

	now    int    // tick stamped on pushed lines
	battle string // battle stamped on pushed lines
}

// NewEventLog creates an event log with a fixed capacity.
func NewEventLog() *EventLog {
	return &EventLog{
		entries: make([]EventEntry, logMaxEntries),
	}
}

// Add appends an entry to the log.
func (el *EventLog) Add(tick int, battle string, kind EventKind, msg string) {
	el.entries[el.head] = EventEntry{
		Tick:    tick,
		Battle:  battle,
		Kind:    kind,
		Message: msg,
	}
	el.head = (el.head + 1) % logMaxEntries
	if el.count < logMaxEntries {
		el.count++
	}
}

// Stamp sets the tick and battle used for lines arriving through Push.
func (el *EventLog) Stamp(tick int, battle string) {
	el.now = tick
	el.battle = battle
}

// Push records a console line. Honor lines are classified by their verb.
func (el *EventLog) Push(msg string) {
	el.Add(el.now, el.battle, classify(msg), msg)
}

func classify(msg string) EventKind {
	switch {
	case strings.HasSuffix(msg, "won.") || strings.Contains(msg, " won. "):
		return EventWin
	case strings.HasSuffix(msg, "lost."):
		return EventLoss
	default:
		return EventNote
	}
}

// Recent returns entries in chronological order (oldest first).
func (el *EventLog) Recent() []EventEntry {
	result := make([]EventEntry, el.count)
	for i := 0; i < el.count; i++ {
		idx := (el.head - el.count + i + logMaxEntries) % logMaxEntries
		result[i] = el.entries[idx]
	}
	return result
}

func kindColor(k EventKind) color.Color {
	switch k {
	case EventStart:
		return color.RGBA{R: 220, G: 200, B: 80, A: 255}
	case EventWin:
		return colLeft
	case EventLoss:
		return colRight
	case EventEnd:
		return color.RGBA{R: 150, G: 150, B: 150, A: 255}
	default:
		return color.RGBA{R: 90, G: 120, B: 90, A: 255}
	}
}

// Draw renders the event panel on the right side of the screen.
func (el *EventLog) Draw(screen *ebiten.Image, panelX int, panelH int) {
	vector.FillRect(screen, float32(panelX), 0, float32(logPanelWidth), float32(panelH), color.RGBA{R: 10, G: 12, B: 14, A: 248}, false)
	vector.StrokeLine(screen, float32(panelX), 0, float32(panelX), float32(panelH), 1.0, color.RGBA{R: 50, G: 60, B: 80, A: 255}, false)

	vector.FillRect(screen, float32(panelX), 0, float32(logPanelWidth), logTitleH, color.RGBA{R: 20, G: 24, B: 34, A: 255}, false)
	text.Draw(screen, "BATTLE LOG", basicfont.Face7x13, panelX+8, 13, color.NRGBA{R: 200, G: 210, B: 230, A: 255})
	vector.StrokeLine(screen, float32(panelX), logTitleH, float32(panelX+logPanelWidth), logTitleH, 1.0, color.RGBA{R: 50, G: 60, B: 90, A: 200}, false)

	entries := el.Recent()

	// Newest at the bottom.
	maxVisible := (panelH - logTitleH - 6) / logLineHeight
	startIdx := 0
	if len(entries) > maxVisible {
		startIdx = len(entries) - maxVisible
	}
	visible := entries[startIdx:]
	recent := 3

	y := logTitleH + 4
	for i, e := range visible {
		if i >= len(visible)-recent {
			vector.FillRect(screen, float32(panelX+2), float32(y), float32(logPanelWidth-4), float32(logLineHeight), color.RGBA{R: 28, G: 34, B: 48, A: 160}, false)
		}
		vector.FillRect(screen, float32(panelX+5), float32(y+3), 3, 5, kindColor(e.Kind), false)

		line := fmt.Sprintf("%5d %s", e.Tick, e.Message)
		ebitenutil.DebugPrintAt(screen, line, panelX+12, y)
		y += logLineHeight
	}
}
