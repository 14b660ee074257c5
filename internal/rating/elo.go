// Package rating computes and persists ELO updates at game end.
package rating

import "math"

// KFactor is the fixed ELO K used for every settlement.
const KFactor = 32

// Expected returns side A's expected score against side B.
func Expected(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

// Apply returns the post-game ratings for the winner and loser. Ratings are
// rounded to the nearest integer and floored at zero.
func Apply(winner, loser int) (int, int) {
	expW := Expected(winner, loser)
	expL := Expected(loser, winner)
	newW := clamp(int(math.Round(float64(winner) + KFactor*(1-expW))))
	newL := clamp(int(math.Round(float64(loser) + KFactor*(0-expL))))
	return newW, newL
}

func clamp(r int) int {
	if r < 0 {
		return 0
	}
	return r
}
