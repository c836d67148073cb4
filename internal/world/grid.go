package world

// Grid maps continuous world coordinates onto a fixed ROWS×COLS lattice.
// Pure arithmetic; safe to share.
type Grid struct {
	bounds Bounds
	rows   int
	cols   int
	cellW  float64
	cellH  float64
}

func NewGrid(b Bounds, rows, cols int) *Grid {
	return &Grid{
		bounds: b,
		rows:   rows,
		cols:   cols,
		cellW:  b.Width / float64(cols),
		cellH:  b.Height / float64(rows),
	}
}

// CellOf returns the cell index of (x, y). The far edges fold into the last
// row/col, points outside the rectangle clamp to the border cells and
// non-finite input maps to cell 0, so the result is always a valid index.
func (g *Grid) CellOf(x, y float64) int {
	if !Finite(x, y) {
		return 0
	}
	row := clampIndex(int(y/g.cellH), g.rows)
	col := clampIndex(int(x/g.cellW), g.cols)
	return row*g.cols + col
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (g *Grid) RowOf(cell int) int { return cell / g.cols }
func (g *Grid) ColOf(cell int) int { return cell % g.cols }

// Index returns the cell index for (row, col), or -1 when outside the lattice.
func (g *Grid) Index(row, col int) int {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return -1
	}
	return row*g.cols + col
}

func (g *Grid) Rows() int      { return g.rows }
func (g *Grid) Cols() int      { return g.cols }
func (g *Grid) CellCount() int { return g.rows * g.cols }
func (g *Grid) Bounds() Bounds { return g.bounds }
