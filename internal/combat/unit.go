package combat

// --- Movement constants ---

const (
	MaxSpeed        = 2.0
	corpseFadeTicks = 10 // ticks a dead unit stays in the list

	centroidAccel    = 0.001 // drift toward the fleet centroid
	centreBlend      = 0.2   // share of the arena centre mixed into the centroid
	teammateAlign    = 0.01  // velocity match with nearby teammates
	teammateSeparate = 0.1   // push away from nearby teammates
	teammatesPerCell = 3     // teammates considered per neighbouring cell
	enemyAlign       = 0.2   // velocity match with nearby enemies
	enemyAttract     = 0.2   // pull toward nearby enemies
	spawnBand        = 0.2   // share of the arena width each side spawns in
	spawnDriftY      = 0.5
)

// Team identifies a side of the battle.
type Team int

const (
	TeamLeft  Team = iota // probes
	TeamRight             // drifters
)

func (t Team) String() string {
	switch t {
	case TeamLeft:
		return "left"
	case TeamRight:
		return "right"
	default:
		return "unknown"
	}
}

// Unit is a single combat entity.
type Unit struct {
	ID         int // index in the unit list at the last grid rebuild
	Team       Team
	Alive      bool
	DeadFrames int // ticks since death, meaningful only when !Alive

	X, Y   float64
	VX, VY float64
	GX, GY int // cell at the last grid rebuild
}

// Pos is a point in arena space.
type Pos struct {
	X, Y float64
}

// newUnit spawns a unit on its team's side of the arena heading toward the
// other side. Spawn draws are never forced so fixed-outcome sources still
// spread the fleet.
func newUnit(team Team, src Source) Unit {
	offset, dir := 0.0, 1.0
	if team == TeamRight {
		offset, dir = 1-spawnBand, -1.0
	}
	return Unit{
		Team:  team,
		Alive: true,
		X:     (src.FloatNoBest()*spawnBand + offset) * ArenaWidth,
		Y:     src.FloatNoBest() * ArenaHeight,
		VX:    dir * src.FloatNoBest() * MaxSpeed,
		VY:    src.FloatNoBest() - spawnDriftY,
	}
}

// Centroid is the mean position of the living units blended toward the arena
// centre so fleets do not wander off over a long battle. With no living
// units it is the arena centre.
func Centroid(units []Unit) Pos {
	centre := Pos{X: ArenaWidth / 2.0, Y: ArenaHeight / 2.0}
	var sx, sy float64
	n := 0
	for i := range units {
		if !units[i].Alive {
			continue
		}
		sx += units[i].X
		sy += units[i].Y
		n++
	}
	if n == 0 {
		return centre
	}
	return Pos{
		X: sx/float64(n)*(1-centreBlend) + centre.X*centreBlend,
		Y: sy/float64(n)*(1-centreBlend) + centre.Y*centreBlend,
	}
}

// Step updates velocity from the centroid and the 3x3 cell neighbourhood,
// clamps speed, integrates position and reflects off the arena edges.
// Neighbours are read from the grid snapshot, so every unit in a tick sees
// the same positions regardless of update order.
func (u *Unit) Step(g *Grid, centroid Pos) {
	u.VX += (centroid.X - u.X) * centroidAccel
	u.VY += (centroid.Y - u.Y) * centroidAccel

	x0, x1, y0, y1 := neighbourhood(u.GX, u.GY)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			cell := &g.cells[x][y]
			teammates := 0
			for i := range cell.Units {
				o := &cell.Units[i]
				if !o.Alive || o.ID == u.ID {
					continue
				}
				if o.Team == u.Team {
					teammates++
					if teammates > teammatesPerCell {
						continue
					}
					u.VX += o.VX * teammateAlign
					u.VY += o.VY * teammateAlign
					u.VX -= (o.X - u.X) * teammateSeparate
					u.VY -= (o.Y - u.Y) * teammateSeparate
				} else {
					u.VX += o.VX * enemyAlign
					u.VY += o.VY * enemyAlign
					u.VX += (o.X - u.X) * enemyAttract
					u.VY += (o.Y - u.Y) * enemyAttract
				}
			}
		}
	}

	u.VX = clamp(u.VX, -MaxSpeed, MaxSpeed)
	u.VY = clamp(u.VY, -MaxSpeed, MaxSpeed)

	u.X += u.VX
	u.Y += u.VY

	u.reflect()
}

// reflect pins the unit to the arena edge it crossed and sends it back in at
// full speed.
func (u *Unit) reflect() {
	if u.X > ArenaWidth {
		u.X = ArenaWidth
		u.VX = -MaxSpeed
	} else if u.X < 0 {
		u.X = 0
		u.VX = MaxSpeed
	}
	if u.Y > ArenaHeight {
		u.Y = ArenaHeight
		u.VY = -MaxSpeed
	} else if u.Y < 0 {
		u.Y = 0
		u.VY = MaxSpeed
	}
}
