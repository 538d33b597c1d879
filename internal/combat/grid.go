package combat

import "math"

// --- Arena constants ---

const (
	ArenaWidth  = 310 // battle area, world units
	ArenaHeight = 150
	CellScale   = 10 // world units per grid cell side
	GridWidth   = ArenaWidth / CellScale
	GridHeight  = ArenaHeight / CellScale
)

// Cell is one bucket of the spatial grid. Units holds copies of the units
// that were inside the cell at the last rebuild; it is a read snapshot and
// is only valid for the current tick.
type Cell struct {
	Units []Unit
}

// Tally counts the living copies per team.
func (c *Cell) Tally() (left, right int) {
	for i := range c.Units {
		if !c.Units[i].Alive {
			continue
		}
		if c.Units[i].Team == TeamLeft {
			left++
		} else {
			right++
		}
	}
	return left, right
}

// Grid partitions the arena into fixed cells. It is a derived projection of
// the unit list and is rebuilt from scratch every tick.
type Grid struct {
	cells [GridWidth][GridHeight]Cell
}

// Rebuild clears every bucket and re-buckets each living unit, writing the
// computed cell and list index back onto the unit. Bucket slices are reused
// between ticks.
func (g *Grid) Rebuild(units []Unit) {
	for x := range g.cells {
		for y := range g.cells[x] {
			g.cells[x][y].Units = g.cells[x][y].Units[:0]
		}
	}
	for i := range units {
		u := &units[i]
		u.ID = i
		if !u.Alive {
			continue
		}
		u.GX, u.GY = CellOf(u.X, u.Y)
		g.cells[u.GX][u.GY].Units = append(g.cells[u.GX][u.GY].Units, *u)
	}
}

// CellOf maps a world position onto grid coordinates. Positions can sit
// outside the arena between integration and reflection, so the result is
// always clamped.
func CellOf(x, y float64) (gx, gy int) {
	gx = clampInt(int(math.Floor(x/CellScale)), 0, GridWidth-1)
	gy = clampInt(int(math.Floor(y/CellScale)), 0, GridHeight-1)
	return gx, gy
}

// Cell returns the bucket at (gx, gy). Coordinates are clamped.
func (g *Grid) Cell(gx, gy int) *Cell {
	return &g.cells[clampInt(gx, 0, GridWidth-1)][clampInt(gy, 0, GridHeight-1)]
}

// Population is the number of living copies across every cell.
func (g *Grid) Population() int {
	n := 0
	for x := range g.cells {
		for y := range g.cells[x] {
			l, r := g.cells[x][y].Tally()
			n += l + r
		}
	}
	return n
}

// Occupied returns the number of entries (living or not) across every cell.
func (g *Grid) Occupied() int {
	n := 0
	for x := range g.cells {
		for y := range g.cells[x] {
			n += len(g.cells[x][y].Units)
		}
	}
	return n
}

// neighbourhood returns the clamped 3x3 block bounds around (gx, gy),
// inclusive on both ends.
func neighbourhood(gx, gy int) (x0, x1, y0, y1 int) {
	x0 = clampInt(gx-1, 0, GridWidth-1)
	x1 = clampInt(gx+1, 0, GridWidth-1)
	y0 = clampInt(gy-1, 0, GridHeight-1)
	y1 = clampInt(gy+1, 0, GridHeight-1)
	return x0, x1, y0, y1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
