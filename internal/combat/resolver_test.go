package combat

import "testing"

// placeBattle installs units and a matching active battle directly, without
// going through the trigger.
func placeBattle(c *Combat, units []Unit) *Battle {
	b := &Battle{Name: "test", Phase: PhaseActive, UnitSize: 1}
	for _, u := range units {
		if !u.Alive {
			continue
		}
		if u.Team == TeamLeft {
			b.Left++
		} else {
			b.Right++
		}
	}
	b.LeftCap, b.RightCap = b.Left, b.Right
	c.units = append([]Unit(nil), units...)
	c.battle = b
	c.grid.Rebuild(c.units)
	return b
}

// oneVsThree puts a single Left unit and three Right units in cell (10,7).
func oneVsThree() []Unit {
	return []Unit{
		{Team: TeamLeft, Alive: true, X: 105, Y: 75},
		{Team: TeamRight, Alive: true, X: 106, Y: 75},
		{Team: TeamRight, Alive: true, X: 107, Y: 75},
		{Team: TeamRight, Alive: true, X: 108, Y: 75},
	}
}

func TestResolve_AlwaysWorstKillsLoneLeftUnit(t *testing.T) {
	c := New(WithRNG(NewRNG(RNGWorst, 7)), WithStrict(true))
	b := placeBattle(c, oneVsThree())
	space := &Space{ProbeCount: 5, DrifterCount: 1000}

	c.resolve(space)

	if c.units[0].Alive {
		t.Fatal("expected the Left unit to die on the first eligible tick")
	}
	if b.Left != 0 || b.Right != 3 {
		t.Fatalf("expected counts L=0 R=3, got L=%d R=%d", b.Left, b.Right)
	}
	if space.ProbeCount != 4 || space.ProbesLostCombat != 1 {
		t.Fatalf("expected one unit size moved to losses, got probes=%f lost=%f",
			space.ProbeCount, space.ProbesLostCombat)
	}
	if b.ProbesLost != 1 || b.LeftLost != 1 {
		t.Fatalf("expected battle stats to record the death, got lost=%d probes=%f", b.LeftLost, b.ProbesLost)
	}
}

func TestResolve_AlwaysBestNeverKillsLeftUnit(t *testing.T) {
	c := New(WithRNG(NewRNG(RNGBest, 7)), WithStrict(true))
	b := placeBattle(c, oneVsThree())
	space := &Space{ProbeCount: 1, DrifterCount: 1e9}

	for i := 0; i < 500; i++ {
		c.resolve(space)
	}

	if !c.units[0].Alive || b.Left != 1 {
		t.Fatal("Left unit died under the always-best source")
	}
	if b.Right != 3 {
		t.Fatalf("expected the Right units to survive weak probes, got R=%d", b.Right)
	}
	if space.ProbeCount != 1 {
		t.Fatalf("expected no population moved, got probes=%f", space.ProbeCount)
	}
}

func TestResolve_AlwaysBestKillsRightUnitsWithStrongProbes(t *testing.T) {
	c := New(WithRNG(NewRNG(RNGBest, 7)), WithStrict(true))
	b := placeBattle(c, oneVsThree())
	space := &Space{ProbeCount: 1000, DrifterCount: 1000}

	c.resolve(space)

	if b.Right != 0 || b.Left != 1 {
		t.Fatalf("expected L=1 R=0, got L=%d R=%d", b.Left, b.Right)
	}
	if space.DriftersKilled != 3 || space.DrifterCount != 997 {
		t.Fatalf("expected 3 drifters killed, got killed=%f left=%f", space.DriftersKilled, space.DrifterCount)
	}
}

func TestResolve_SingleTeamCellsAreIgnored(t *testing.T) {
	c := New(WithRNG(NewRNG(RNGWorst, 7)), WithStrict(true))
	units := []Unit{
		{Team: TeamLeft, Alive: true, X: 105, Y: 75},
		{Team: TeamLeft, Alive: true, X: 106, Y: 75},
		{Team: TeamRight, Alive: true, X: 205, Y: 75},
		{Team: TeamRight, Alive: true, X: 206, Y: 75},
	}
	b := placeBattle(c, units)
	space := &Space{ProbeCount: 100, DrifterCount: 1e7}

	c.resolve(space)

	if b.Left != 2 || b.Right != 2 {
		t.Fatalf("expected no deaths in single-team cells, got L=%d R=%d", b.Left, b.Right)
	}
}

func TestResolve_DrainNeverGoesNegative(t *testing.T) {
	c := New(WithRNG(NewRNG(RNGWorst, 7)), WithStrict(true))
	b := placeBattle(c, oneVsThree())
	space := &Space{ProbeCount: 0.5, DrifterCount: 1000}

	c.resolve(space)

	if space.ProbeCount != 0 {
		t.Fatalf("expected probes drained to 0, got %f", space.ProbeCount)
	}
	if space.ProbesLostCombat != 0.5 {
		t.Fatalf("expected 0.5 moved to losses, got %f", space.ProbesLostCombat)
	}
	if b.UnitSize != 0.5 {
		t.Fatalf("expected unit size to shrink to the remaining population, got %f", b.UnitSize)
	}
}

func TestResolve_SpeedBonusRaisesLeftThreshold(t *testing.T) {
	// 1 Left vs 1 Right, roll = 1 * 2 * 1 * 0.5 = 1.0 for the Left unit.
	units := []Unit{
		{Team: TeamLeft, Alive: true, X: 105, Y: 75},
		{Team: TeamRight, Alive: true, X: 106, Y: 75},
	}

	c := New(WithRNG(NewRNG(RNGWorst, 7)), WithStrict(true))
	b := placeBattle(c, units)
	c.resolve(&Space{ProbeCount: 1, DrifterCount: 2})
	if b.Left != 0 {
		t.Fatal("expected the Left unit to die without the speed bonus")
	}

	c = New(WithRNG(NewRNG(RNGWorst, 7)), WithStrict(true))
	b = placeBattle(c, units)
	b.SpeedBonus = true
	c.resolve(&Space{ProbeCount: 1, DrifterCount: 2, ProbeSpeed: 5})
	if b.Left != 1 {
		t.Fatal("expected the speed bonus to save the Left unit")
	}
}

func TestRatio(t *testing.T) {
	if ratio(3, 0) != 0 {
		t.Fatal("empty denominator must be zero pressure")
	}
	if ratio(3, 1) != 3 {
		t.Fatalf("expected 3, got %f", ratio(3, 1))
	}
}
