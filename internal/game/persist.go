package game

import (
	"context"
	"fmt"
	"time"

	"github.com/Garsondee/Driftwar/internal/combat"
	"github.com/Garsondee/Driftwar/internal/store"
	"github.com/atotto/clipboard"
)

const saveTimeout = 5 * time.Second

// Saver is the slice of the save store the viewer writes to.
type Saver interface {
	Save(ctx context.Context, rec store.Record) (string, error)
	AppendBattles(ctx context.Context, slot string, results []combat.BattleResult) error
}

// record captures the viewer state as a save record for the current slot.
func (g *Game) record() store.Record {
	return store.Record{
		Slot:     g.slot,
		Label:    fmt.Sprintf("tick %d, honor %d", g.tick, g.combat.Honor()),
		Snapshot: g.combat.Snapshot(),
		Space:    g.space,
		Upgrades: g.upgrades,
	}
}

// unpersisted returns battles finished since the last save.
func (g *Game) unpersisted() []combat.BattleResult {
	return newResults(g.combat.Results(), g.combat.BattlesFought()-g.persisted)
}

// save writes the current state and any new battle records.
func (g *Game) save() {
	if g.store == nil {
		g.flash("No save store configured")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	slot, err := g.store.Save(ctx, g.record())
	if err != nil {
		g.log.Error().Err(err).Msg("Save failed")
		g.flash("Save failed")
		return
	}
	g.slot = slot

	if err := g.store.AppendBattles(ctx, slot, g.unpersisted()); err != nil {
		g.log.Error().Err(err).Str("slot", slot).Msg("Storing battles failed")
		g.flash("Saved, but battle history failed")
		return
	}
	g.persisted = g.combat.BattlesFought()
	g.log.Info().Str("slot", slot).Int("tick", g.tick).Msg("Game saved")
	g.flash("Saved " + shortSlot(slot))
}

// Restore resumes the viewer from a stored record.
func (g *Game) Restore(rec store.Record) {
	g.combat.Restore(rec.Snapshot)
	g.space = rec.Space
	g.upgrades = rec.Upgrades
	g.slot = rec.Slot
	g.fought = g.combat.BattlesFought()
	g.persisted = g.fought
	g.wasActive = g.combat.Active()
	g.events.Add(g.tick, g.combat.BattleName(), EventNote, "Resumed "+rec.Label)
}

// reportText is the text placed on the clipboard by the C key.
func (g *Game) reportText() string {
	results := g.combat.Results()
	return combat.BuildReport(results).String() + "\n" + combat.FormatResults(results)
}

func (g *Game) copyReport() {
	if err := clipboard.WriteAll(g.reportText()); err != nil {
		g.log.Warn().Err(err).Msg("Clipboard unavailable")
		g.flash("Clipboard unavailable")
		return
	}
	g.flash(fmt.Sprintf("Report of %d battles copied", len(g.combat.Results())))
}

func shortSlot(slot string) string {
	if len(slot) > 8 {
		return slot[:8]
	}
	return slot
}
