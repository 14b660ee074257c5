package models

import (
	"regexp"

	"github.com/google/uuid"
)

// DefaultRating is assigned to guests and to registered users with no stored rating.
const DefaultRating = 1200

// ProfileSnapshot is the per-connection copy of a player's public profile,
// captured when the player queues or joins a room. The match server never
// reads it back from storage mid-game.
type ProfileSnapshot struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Rating    int    `json:"rating"`
	Supporter bool   `json:"supporter,omitempty"`

	// Cosmetic stone colors; purely presentational, relayed as-is.
	BlackColor string `json:"blackColor,omitempty"`
	WhiteColor string `json:"whiteColor,omitempty"`
}

// Normalize fills defaults for fields a client may omit.
func (p *ProfileSnapshot) Normalize() {
	if p.ID == "" {
		p.ID = NewGuestID()
	}
	if p.Username == "" {
		p.Username = "anonymous"
	}
	if p.Rating <= 0 {
		p.Rating = DefaultRating
	}
}

// guestIDPattern matches the fixed-format ids the client generates for
// unauthenticated visitors. Registered ids come from the auth system and do
// not carry the prefix.
var guestIDPattern = regexp.MustCompile(`^guest-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsGuestID reports whether id belongs to a guest. Guests are excluded from
// rating persistence and from the active-match registry.
func IsGuestID(id string) bool {
	return guestIDPattern.MatchString(id)
}

// NewGuestID mints a fresh guest identity.
func NewGuestID() string {
	return "guest-" + uuid.NewString()
}
