package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okstone/gomoku/internal/models"
)

func TestOpeningStandardBoard(t *testing.T) {
	opening := OpeningProposal(DefaultBoardSize)
	require.Len(t, opening, 3)

	// Black center, white on the first ring cell, black on the next.
	assert.Equal(t, Placement{X: 7, Y: 7, Color: models.StoneBlack}, opening[0])
	assert.Equal(t, Placement{X: 6, Y: 6, Color: models.StoneWhite}, opening[1])
	assert.Equal(t, Placement{X: 7, Y: 6, Color: models.StoneBlack}, opening[2])
}

func TestOpeningIsDeterministic(t *testing.T) {
	first := OpeningProposal(DefaultBoardSize)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, OpeningProposal(DefaultBoardSize))
	}
}

func TestOpeningColorsAlternateBlackFirst(t *testing.T) {
	opening := OpeningProposal(9)
	require.Len(t, opening, 3)
	assert.Equal(t, models.StoneBlack, opening[0].Color)
	assert.Equal(t, models.StoneWhite, opening[1].Color)
	assert.Equal(t, models.StoneBlack, opening[2].Color)
}

func TestOpeningCellsDistinctAndInBounds(t *testing.T) {
	for _, size := range []int{3, 5, 9, 15, 19} {
		opening := OpeningProposal(size)
		require.Len(t, opening, 3, "size %d", size)
		seen := make(map[[2]int]bool)
		for _, p := range opening {
			assert.GreaterOrEqual(t, p.X, 0)
			assert.GreaterOrEqual(t, p.Y, 0)
			assert.Less(t, p.X, size)
			assert.Less(t, p.Y, size)
			key := [2]int{p.X, p.Y}
			assert.False(t, seen[key], "duplicate cell %v on size %d", key, size)
			seen[key] = true
		}
	}
}

func TestOpeningTinyBoards(t *testing.T) {
	assert.Nil(t, OpeningProposal(0))

	// A 1x1 board only has room for the center stone.
	one := OpeningProposal(1)
	require.Len(t, one, 1)
	assert.Equal(t, Placement{X: 0, Y: 0, Color: models.StoneBlack}, one[0])

	// 2x2: center (1,1), then the radius-1 ring clipped to the board.
	two := OpeningProposal(2)
	require.Len(t, two, 3)
	assert.Equal(t, Placement{X: 1, Y: 1, Color: models.StoneBlack}, two[0])
	assert.Equal(t, Placement{X: 0, Y: 0, Color: models.StoneWhite}, two[1])
	assert.Equal(t, Placement{X: 1, Y: 0, Color: models.StoneBlack}, two[2])
}
