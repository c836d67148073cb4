package world

import (
	"math"
	"testing"
)

func testGrid() *Grid {
	return NewGrid(Bounds{Width: 1000, Height: 700}, 35, 50)
}

func TestGridCellOf(t *testing.T) {
	g := testGrid()
	cases := []struct {
		x, y float64
		want int
	}{
		{0, 0, 0},
		{19.9, 19.9, 0},
		{20, 0, 1},
		{0, 20, 50},
		{410, 205, 10*50 + 20},
		{999.9, 699.9, 35*50 - 1},
		{1000, 700, 35*50 - 1}, // far edges fold into the last row/col
		{1000, 0, 49},
		{0, 700, 34 * 50},
	}
	for _, c := range cases {
		if got := g.CellOf(c.x, c.y); got != c.want {
			t.Errorf("CellOf(%v, %v) = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

func TestGridRowColRoundTrip(t *testing.T) {
	g := testGrid()
	for cell := 0; cell < g.CellCount(); cell++ {
		if got := g.Index(g.RowOf(cell), g.ColOf(cell)); got != cell {
			t.Fatalf("Index(RowOf(%d), ColOf(%d)) = %d", cell, cell, got)
		}
	}
	if g.Index(-1, 0) != -1 || g.Index(0, 50) != -1 || g.Index(35, 0) != -1 {
		t.Error("Index should reject coordinates outside the lattice")
	}
}

func TestBoundsWrap(t *testing.T) {
	b := Bounds{Width: 1000, Height: 700}
	cases := []struct{ x, y, wx, wy float64 }{
		{500, 350, 500, 350},
		{1000, 700, 0, 0},
		{-1, -1, 999, 699},
		{2001, 1401, 1, 1},
	}
	for _, c := range cases {
		x, y := b.Wrap(c.x, c.y)
		if x != c.wx || y != c.wy {
			t.Errorf("Wrap(%v, %v) = (%v, %v), want (%v, %v)", c.x, c.y, x, y, c.wx, c.wy)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"up", "down", "left", "right"} {
		if _, err := ParseDirection(s); err != nil {
			t.Errorf("ParseDirection(%q): %v", s, err)
		}
	}
	if _, err := ParseDirection("north"); err == nil {
		t.Error("ParseDirection(north) should fail")
	}
}

func TestMotionStep(t *testing.T) {
	m := Motion{X: 100, Y: 100, Dir: Up}
	m.Step(5)
	if m.X != 100 || m.Y != 95 {
		t.Errorf("up step: got (%v, %v)", m.X, m.Y)
	}
	m.Turn(Right)
	m.Step(5)
	if m.X != 105 || m.Y != 95 {
		t.Errorf("right step: got (%v, %v)", m.X, m.Y)
	}
}

func TestGridCellOfNeverLeavesTheLattice(t *testing.T) {
	g := testGrid()
	nan, inf := math.NaN(), math.Inf(1)
	cases := []struct {
		x, y float64
		want int
	}{
		{nan, 100, 0},
		{100, inf, 0},
		{-inf, -inf, 0},
		{-5, -5, 0},
		{1e300, 1e300, 35*50 - 1},
	}
	for _, c := range cases {
		if got := g.CellOf(c.x, c.y); got != c.want {
			t.Errorf("CellOf(%v, %v) = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

func TestBoundsWrapNonFinite(t *testing.T) {
	b := Bounds{Width: 1000, Height: 700}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		x, y := b.Wrap(v, v)
		if x != 0 || y != 0 {
			t.Errorf("Wrap(%v) = (%v, %v), want (0, 0)", v, x, y)
		}
	}
	if Finite(math.NaN(), 1) || Finite(1, math.Inf(-1)) || !Finite(1e308, -1e308) {
		t.Error("Finite misclassifies")
	}
}
