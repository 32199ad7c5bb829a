package regions

import (
	"testing"

	"tissueseg/pkg/raster"
)

// maskFromRows builds a mask from a string picture, '#' marking foreground.
func maskFromRows(rows []string) *raster.BinaryMask {
	m := raster.NewBinaryMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

func TestLabelTwoComponents(t *testing.T) {
	m := maskFromRows([]string{
		"##...",
		"##...",
		".....",
		"...##",
		"...##",
	})

	lm := Label(m)
	if lm.MaxLabel != 2 {
		t.Errorf("Expected 2 components, got %d", lm.MaxLabel)
	}
	if lm.Get(0, 0) == lm.Get(4, 4) {
		t.Error("Expected the two blocks to carry distinct labels")
	}
	if lm.Get(2, 2) != 0 {
		t.Errorf("Expected background at (2,2), got label %d", lm.Get(2, 2))
	}
}

// TestLabelDiagonal verifies 8-connectivity: diagonally touching pixels
// belong to one component.
func TestLabelDiagonal(t *testing.T) {
	m := maskFromRows([]string{
		"#..",
		".#.",
		"..#",
	})

	lm := Label(m)
	if lm.MaxLabel != 1 {
		t.Errorf("Expected one diagonal component, got %d", lm.MaxLabel)
	}
}

// TestLabelConservation checks that labeling neither drops nor invents
// foreground: every foreground pixel gets exactly one positive label and
// every background pixel stays zero.
func TestLabelConservation(t *testing.T) {
	m := maskFromRows([]string{
		"##..#",
		"#...#",
		"..#..",
		"#...#",
		"##..#",
	})

	lm := Label(m)
	labeled := 0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			label := lm.Get(x, y)
			if m.Get(x, y) {
				if label <= 0 {
					t.Fatalf("Expected a positive label at foreground (%d,%d), got %d", x, y, label)
				}
				labeled++
			} else if label != 0 {
				t.Fatalf("Expected background (%d,%d) to be unlabeled, got %d", x, y, label)
			}
		}
	}
	if labeled != m.Area() {
		t.Errorf("Expected %d labeled pixels, got %d", m.Area(), labeled)
	}
}

func TestLabelDeterministic(t *testing.T) {
	m := maskFromRows([]string{
		".#.#.",
		".#.#.",
	})

	a := Label(m)
	b := Label(m)
	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatal("Expected identical labelings across runs")
		}
	}
	// Row-major discovery order: the left column is found first.
	if a.Get(1, 0) != 1 || a.Get(3, 0) != 2 {
		t.Errorf("Expected row-major label order, got %d and %d", a.Get(1, 0), a.Get(3, 0))
	}
}

func TestLabelEmptyMask(t *testing.T) {
	lm := Label(raster.NewBinaryMask(6, 6))
	if lm.MaxLabel != 0 {
		t.Errorf("Expected no components in an empty mask, got %d", lm.MaxLabel)
	}
	if got := len(lm.DistinctLabels()); got != 0 {
		t.Errorf("Expected no distinct labels, got %d", got)
	}
}
