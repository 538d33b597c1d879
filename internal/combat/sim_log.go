package combat

import (
	"fmt"
	"strings"
)

// SimLogEntry is one recorded combat event.
type SimLogEntry struct {
	Tick     int
	Battle   string  // battle display name, "" before the first battle
	Category string  // battle, honor, death, tick
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the entry as a fixed-width log line.
//
//	[T=0042] Austerlitz 1     battle   start           Austerlitz 1
func (e SimLogEntry) String() string {
	return fmt.Sprintf("[T=%04d] %-16s %-8s %-15s %s",
		e.Tick, e.Battle, e.Category, e.Key, e.Value)
}

// SimLog collects structured combat events. It is unbounded and
// machine-readable, unlike the player console.
type SimLog struct {
	entries []SimLogEntry
	verbose bool
}

// NewSimLog creates a SimLog. If verbose is true, per-tick counts and
// individual deaths are also recorded.
func NewSimLog(verbose bool) *SimLog {
	return &SimLog{verbose: verbose}
}

// Add records a new entry.
func (sl *SimLog) Add(tick int, battle, category, key, value string, numVal float64) {
	sl.entries = append(sl.entries, SimLogEntry{
		Tick:     tick,
		Battle:   battle,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

// AddVerbose records an entry only when verbose mode is on.
func (sl *SimLog) AddVerbose(tick int, battle, category, key, value string, numVal float64) {
	if !sl.verbose {
		return
	}
	sl.Add(tick, battle, category, key, value, numVal)
}

// Entries returns all recorded entries.
func (sl *SimLog) Entries() []SimLogEntry {
	return sl.entries
}

// Filter returns entries matching the given category and/or key.
// Pass empty string to match any value for that field.
func (sl *SimLog) Filter(category, key string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		out = append(out, e)
	}
	return out
}

// FilterBattle returns entries for one battle name.
func (sl *SimLog) FilterBattle(name string) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Battle == name {
			out = append(out, e)
		}
	}
	return out
}

// FilterTickRange returns entries within [fromTick, toTick] inclusive.
func (sl *SimLog) FilterTickRange(fromTick, toTick int) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if e.Tick >= fromTick && e.Tick <= toTick {
			out = append(out, e)
		}
	}
	return out
}

// CountCategory returns how many entries match the given category and key.
func (sl *SimLog) CountCategory(category, key string) int {
	return len(sl.Filter(category, key))
}

// LastOf returns the most recent entry matching category+key, or false if none.
func (sl *SimLog) LastOf(category, key string) (SimLogEntry, bool) {
	entries := sl.Filter(category, key)
	if len(entries) == 0 {
		return SimLogEntry{}, false
	}
	return entries[len(entries)-1], true
}

// HasEntry returns true if at least one entry matches category, key, and value substring.
func (sl *SimLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range sl.entries {
		if category != "" && e.Category != category {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		if valueSubstr != "" && !strings.Contains(e.Value, valueSubstr) {
			continue
		}
		return true
	}
	return false
}

// Format returns the full log as a single string for t.Log output.
func (sl *SimLog) Format() string {
	var sb strings.Builder
	for _, e := range sl.entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatRange returns a log string filtered to a tick range.
func (sl *SimLog) FormatRange(fromTick, toTick int) string {
	var sb strings.Builder
	for _, e := range sl.FilterTickRange(fromTick, toTick) {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary returns a short human-readable summary of the combat state.
func (sl *SimLog) Summary(c *Combat) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Summary at T=%04d ---\n", c.Ticks())
	fmt.Fprintf(&sb, "Phase: %s  battle: %q\n", c.Phase(), c.BattleName())
	if b := c.Battle(); b != nil {
		fmt.Fprintf(&sb, "Alive: left=%d/%d  right=%d/%d  unit size %.1f\n",
			b.Left, b.LeftCap, b.Right, b.RightCap, b.UnitSize)
		fmt.Fprintf(&sb, "Clocks: stalemate=%d  end delay=%d  master=%d\n",
			b.StalemateClock, b.EndDelay, b.MasterClock)
	}
	fmt.Fprintf(&sb, "Honor: %d (bonus %d)  memorial: %s\n", c.Honor(), c.BonusHonor(), c.Memorial())
	fmt.Fprintf(&sb, "Battles: %d started, %d ended\n",
		sl.CountCategory("battle", "start"), sl.CountCategory("battle", "end"))
	return sb.String()
}
