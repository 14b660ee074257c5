package models

// Stone identifies a player's side. Black always moves first.
type Stone string

const (
	StoneBlack Stone = "black"
	StoneWhite Stone = "white"
)

// Opponent returns the other side.
func (s Stone) Opponent() Stone {
	if s == StoneBlack {
		return StoneWhite
	}
	return StoneBlack
}

// Move is a single stone placement as reported by a client. The server does
// not validate coordinates against the board; it only gates turn order.
type Move struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Color Stone `json:"color,omitempty"`
}
