package game

import "github.com/okstone/gomoku/internal/models"

// DefaultBoardSize is the standard gomoku board.
const DefaultBoardSize = 15

// Placement is one stone of the deterministic opening.
type Placement struct {
	X     int          `json:"x"`
	Y     int          `json:"y"`
	Color models.Stone `json:"color"`
}

// OpeningProposal produces the deterministic three-stone opening used for
// public pairings: black at center, then the first empty cell found by an
// expanding ring scan for white, then the same search again for black.
// Rings are scanned row-major; if nothing is free within two rings the whole
// board is scanned row-major. Terminates for any board size >= 1.
func OpeningProposal(size int) []Placement {
	if size < 1 {
		return nil
	}
	occupied := make(map[[2]int]bool, 3)
	center := size / 2

	place := func(x, y int, c models.Stone) Placement {
		occupied[[2]int{x, y}] = true
		return Placement{X: x, Y: y, Color: c}
	}

	out := []Placement{place(center, center, models.StoneBlack)}
	for _, color := range []models.Stone{models.StoneWhite, models.StoneBlack} {
		x, y, ok := nextEmpty(size, center, occupied)
		if !ok {
			break
		}
		out = append(out, place(x, y, color))
	}
	return out
}

// nextEmpty finds the first free in-bounds cell on rings of radius 1 and 2
// around the center, falling back to a full row-major scan.
func nextEmpty(size, center int, occupied map[[2]int]bool) (int, int, bool) {
	for radius := 1; radius <= 2; radius++ {
		for y := center - radius; y <= center+radius; y++ {
			for x := center - radius; x <= center+radius; x++ {
				if x < 0 || y < 0 || x >= size || y >= size {
					continue
				}
				// Only the ring itself, not the interior.
				if x != center-radius && x != center+radius && y != center-radius && y != center+radius {
					continue
				}
				if !occupied[[2]int{x, y}] {
					return x, y, true
				}
			}
		}
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !occupied[[2]int{x, y}] {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}
