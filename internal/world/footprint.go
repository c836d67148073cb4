package world

// FootprintCache memoizes the cross-shaped AOI neighbourhood of every cell.
// The neighbourhood is the union of a wide-short band (rows ±near, cols ±far)
// and a tall-narrow band (rows ±far, cols ±near), clipped to the grid.
// Accessed only from the game loop goroutine; no locks.
type FootprintCache struct {
	grid  *Grid
	near  int
	far   int
	cells [][]int // cell index → footprint; nil until first requested
}

// NewFootprintCache builds a cache from the two cross sizes (band widths in
// cells). Each band extends size/2 cells either side of the centre.
func NewFootprintCache(grid *Grid, crossSize1, crossSize2 int) *FootprintCache {
	return &FootprintCache{
		grid:  grid,
		near:  crossSize1 / 2,
		far:   crossSize2 / 2,
		cells: make([][]int, grid.CellCount()),
	}
}

// Footprint returns the ascending, duplicate-free list of cells in the AOI of
// cell. The returned slice is shared; callers must not modify it.
func (c *FootprintCache) Footprint(cell int) []int {
	if fp := c.cells[cell]; fp != nil {
		return fp
	}
	fp := c.compute(cell)
	c.cells[cell] = fp
	return fp
}

// Halves returns the near and far half-widths in cells.
func (c *FootprintCache) Halves() (near, far int) {
	return c.near, c.far
}

func (c *FootprintCache) compute(cell int) []int {
	row := c.grid.RowOf(cell)
	col := c.grid.ColOf(cell)
	fp := make([]int, 0, (2*c.near+1)*(2*c.far+1)*2)
	// Row-major scan of the bounding square yields ascending indexes with no
	// duplicates, so no sort is needed.
	for dr := -c.far; dr <= c.far; dr++ {
		for dc := -c.far; dc <= c.far; dc++ {
			if !c.inCross(dr, dc) {
				continue
			}
			if idx := c.grid.Index(row+dr, col+dc); idx >= 0 {
				fp = append(fp, idx)
			}
		}
	}
	return fp
}

func (c *FootprintCache) inCross(dr, dc int) bool {
	dr, dc = abs(dr), abs(dc)
	return (dr <= c.near && dc <= c.far) || (dr <= c.far && dc <= c.near)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
