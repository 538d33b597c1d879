package combat

// Space is the slice of exploration state the combat core reads and writes.
// The exploration subsystem owns it; combat only transfers population out of
// the two counts into the matching loss accumulators.
type Space struct {
	ProbeCount   float64 // friendly population
	DrifterCount float64 // hazard population

	ProbesLostCombat float64
	DriftersKilled   float64

	ProbeSpeed float64
	SpeedBonus bool // probes use their speed to outmanoeuvre (raises the Left death threshold)
}

// Upgrades are the purchased projects that gate honor and naming.
type Upgrades struct {
	NamedBattles bool
	Glory        bool
}

// drain moves up to amount from src into dst, never leaving src negative.
// It returns what was actually moved.
func drain(src, dst *float64, amount float64) float64 {
	avail := *src
	if avail < 0 {
		avail = 0
	}
	if amount > avail {
		amount = avail
	}
	if amount < 0 {
		amount = 0
	}
	*src -= amount
	*dst += amount
	return amount
}
