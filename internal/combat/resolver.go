package combat

import "fmt"

// --- Resolver constants ---

const (
	probeCombatBaseRate = 0.15 // share of probes fighting in a given cell
	probeSupportRate    = 0.1
	deathThreshold      = 0.5
	speedBonusRate      = 0.2 // threshold gained per point of probe speed
	ratioWeight         = 0.5
)

// resolve rolls a death check for every living unit in each mixed cell of
// the current grid. The two sides use different formulas: drifters are pure
// hazard population while probes carry a combat rate.
func (c *Combat) resolve(space *Space) {
	b := c.battle
	px := space.ProbeCount * probeCombatBaseRate
	dx := space.DrifterCount

	bonus := 0.0
	if b.SpeedBonus {
		bonus = space.ProbeSpeed * speedBonusRate
	}

	for x := 0; x < GridWidth; x++ {
		for y := 0; y < GridHeight; y++ {
			cell := &c.grid.cells[x][y]
			if len(cell.Units) < 2 {
				continue
			}
			left, right := cell.Tally()
			if left == 0 || right == 0 {
				continue
			}

			for i := range cell.Units {
				s := &cell.Units[i]
				if !s.Alive {
					continue
				}

				var roll, threshold float64
				if s.Team == TeamLeft {
					roll = c.rng.Float(false) * dx * ratio(right, left) * ratioWeight
					threshold = deathThreshold + bonus
				} else {
					roll = c.rng.Float(true)*px + space.ProbeCount*probeSupportRate*ratio(left, right)*ratioWeight
					threshold = deathThreshold
				}
				if roll <= threshold {
					continue
				}

				s.Alive = false
				if s.Team == TeamLeft {
					left--
				} else {
					right--
				}
				c.kill(s.ID, s.Team, space)
			}
		}
	}
}

// kill marks the unit dead, updates the battle count and moves one unit
// size of population into the matching loss accumulator.
func (c *Combat) kill(id int, team Team, space *Space) {
	b := c.battle
	c.assertf(id >= 0 && id < len(c.units), "kill of unknown unit %d", id)
	if id < 0 || id >= len(c.units) {
		return
	}
	u := &c.units[id]
	u.Alive = false
	u.DeadFrames = 0

	var moved float64
	switch team {
	case TeamLeft:
		c.assertf(b.Left > 0, "left count would go negative")
		if b.Left > 0 {
			b.Left--
		}
		b.LeftLost++
		b.UnitSize = minNonNeg(b.UnitSize, space.ProbeCount)
		moved = drain(&space.ProbeCount, &space.ProbesLostCombat, b.UnitSize)
		b.ProbesLost += moved
	case TeamRight:
		c.assertf(b.Right > 0, "right count would go negative")
		if b.Right > 0 {
			b.Right--
		}
		b.RightLost++
		b.UnitSize = minNonNeg(b.UnitSize, space.DrifterCount)
		moved = drain(&space.DrifterCount, &space.DriftersKilled, b.UnitSize)
		b.DriftersKilled += moved
	}

	c.recordVerbose("death", team.String(), fmt.Sprintf("unit %d at (%.1f,%.1f)", id, u.X, u.Y), moved)
	c.metrics.unitKilled(team)
}

// ratio is num/den with an empty denominator treated as no pressure.
func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func minNonNeg(a, b float64) float64 {
	if b < a {
		a = b
	}
	if a < 0 {
		return 0
	}
	return a
}
