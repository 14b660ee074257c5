package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okstone/gomoku/internal/models"
)

// State is the lifecycle phase of a room.
type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StatePostGame State = "post-game"
)

// BaseTurnLimit is the starting per-turn budget. It is a variable so tests
// can run the clock fast.
var BaseTurnLimit = 5 * time.Second

// Fischer increment applied per move, and the hard cap on the budget.
const (
	TurnIncrement = 1 * time.Second
	MaxTurnLimit  = 30 * time.Second
)

// Game end reasons.
const (
	ReasonReport  = "report"
	ReasonTimeout = "timeout"
)

// Event is a single outbound protocol message. The "type" key is always set.
type Event map[string]interface{}

// Seat binds a connection identity to a side and the profile it presented.
type Seat struct {
	SessionID string
	Role      models.Stone
	Profile   models.ProfileSnapshot
}

// Result describes a finished game for rating settlement.
type Result struct {
	RoomID    string
	Reason    string
	Private   bool
	MoveCount int
	Winner    models.ProfileSnapshot
	Loser     models.ProfileSnapshot
}

// Room is the authoritative state machine for one match. All exported methods
// acquire the room mutex; no concurrent mutation of the same room is possible.
type Room struct {
	ID      string
	Private bool

	mu           sync.Mutex
	state        State
	seats        map[string]*Seat
	spectators   map[string]struct{}
	current      models.Stone
	turnEndsAt   time.Time
	turnLimit    time.Duration
	moveCount    int
	rematchVotes map[string]struct{}

	// turnSerial guards against a stale forfeiture firing after the timer
	// it belonged to was superseded or cancelled.
	turnSerial int
	turnTimer  *time.Timer

	// BroadcastFn fans an event out to every connection in the room's group.
	BroadcastFn func(ev Event)
	// BroadcastToFn sends an event to a single connection.
	BroadcastToFn func(sessionID string, ev Event)
	// OnGameEnd is invoked (on its own goroutine) at every terminal
	// transition so settlement I/O never blocks room processing.
	OnGameEnd func(res Result)
}

// NewRoom builds an empty room in the waiting state.
func NewRoom(private bool) *Room {
	return &Room{
		ID:           uuid.NewString()[:8],
		Private:      private,
		state:        StateWaiting,
		seats:        make(map[string]*Seat),
		spectators:   make(map[string]struct{}),
		current:      models.StoneBlack,
		turnLimit:    BaseTurnLimit,
		rematchVotes: make(map[string]struct{}),
	}
}

// SeatHost seats the first player as black. The room stays in waiting until
// Start is called (public pairing) or an opponent joins (private rooms).
func (r *Room) SeatHost(sessionID string, profile models.ProfileSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats[sessionID] = &Seat{SessionID: sessionID, Role: models.StoneBlack, Profile: profile}
}

// SeatOpponent seats the second player as white if the slot is free and the
// room is still waiting. It does not start the game.
func (r *Room) SeatOpponent(sessionID string, profile models.ProfileSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateWaiting || len(r.seats) >= 2 {
		return false
	}
	r.seats[sessionID] = &Seat{SessionID: sessionID, Role: models.StoneWhite, Profile: profile}
	return true
}

// JoinOrSpectate admits a connection to the room: as white if the seat is
// free and the game has not started, otherwise as a spectator.
func (r *Room) JoinOrSpectate(sessionID string, profile models.ProfileSnapshot) (models.Stone, bool) {
	r.mu.Lock()
	if r.state == StateWaiting && len(r.seats) < 2 {
		r.seats[sessionID] = &Seat{SessionID: sessionID, Role: models.StoneWhite, Profile: profile}
		r.startLocked(nil)
		r.mu.Unlock()
		return models.StoneWhite, true
	}
	r.spectators[sessionID] = struct{}{}
	r.broadcastStateLocked()
	r.mu.Unlock()
	return "", false
}

// Start transitions the room to playing, announces game-start (with the
// opening placement for public pairings) and arms the turn clock.
func (r *Room) Start(opening []Placement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked(opening)
}

func (r *Room) startLocked(opening []Placement) {
	if r.state == StatePlaying {
		return
	}
	r.state = StatePlaying
	r.current = models.StoneBlack
	r.turnLimit = BaseTurnLimit
	r.moveCount = 0
	r.rematchVotes = make(map[string]struct{})

	stones := make([]Event, 0, len(opening))
	for _, p := range opening {
		stones = append(stones, Event{"x": p.X, "y": p.Y, "color": p.Color})
	}
	r.fireLocked(Event{
		"type":    "game-start",
		"roomId":  r.ID,
		"players": r.playersPayloadLocked(),
		"opening": stones,
		"toMove":  r.current,
	})
	r.armClockLocked()
	r.broadcastStateLocked()
}

// AcceptMove applies a move if and only if the sender holds the seat whose
// turn it is and a game is in progress. Anything else is silently ignored:
// the server gates turn order, not board legality.
func (r *Room) AcceptMove(sessionID string, mv models.Move) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying {
		return false
	}
	seat, ok := r.seats[sessionID]
	if !ok || seat.Role != r.current {
		return false
	}

	r.turnLimit += TurnIncrement
	if r.turnLimit > MaxTurnLimit {
		r.turnLimit = MaxTurnLimit
	}
	r.moveCount++
	mv.Color = seat.Role
	r.current = r.current.Opponent()

	r.fireLocked(Event{
		"type":          "game-state-update",
		"roomId":        r.ID,
		"move":          Event{"x": mv.X, "y": mv.Y, "color": mv.Color},
		"currentPlayer": r.current,
		"moveCount":     r.moveCount,
	})
	r.armClockLocked()
	r.broadcastStateLocked()
	return true
}

// ReportGameOver accepts a player's trusted claim that the game ended.
func (r *Room) ReportGameOver(sessionID string, winner models.Stone) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying {
		return false
	}
	if _, ok := r.seats[sessionID]; !ok {
		return false
	}
	r.endGameLocked(winner, ReasonReport)
	return true
}

// VoteRematch records a post-game replay vote; a unanimous vote resets the
// room to a fresh game with black to move and the base turn budget.
func (r *Room) VoteRematch(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePostGame {
		return false
	}
	if _, ok := r.seats[sessionID]; !ok {
		return false
	}
	r.rematchVotes[sessionID] = struct{}{}
	if len(r.rematchVotes) < len(r.seats) || len(r.seats) < 2 {
		r.broadcastStateLocked()
		return true
	}

	r.state = StateWaiting // startLocked requires a non-playing state
	r.fireLocked(Event{"type": "new-game-starting", "roomId": r.ID})
	r.startLocked(nil)
	return true
}

// RelayEmoticon forwards an emoticon to the room group if the sender is a
// recognized participant or spectator. No state effect.
func (r *Room) RelayEmoticon(sessionID, emoticon string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from := sessionID
	if seat, ok := r.seats[sessionID]; ok {
		from = seat.Profile.ID
	} else if _, ok := r.spectators[sessionID]; !ok {
		return
	}
	r.fireLocked(Event{
		"type":     "new-emoticon",
		"roomId":   r.ID,
		"from":     from,
		"emoticon": emoticon,
	})
}

// RemoveSession detaches a connection from the room. A departing player
// cancels any pending clock and notifies the remaining occupant; the caller
// decides teardown based on the returned counts.
func (r *Room) RemoveSession(sessionID string) (wasPlayer bool, playersLeft int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.spectators[sessionID]; ok {
		delete(r.spectators, sessionID)
		r.broadcastStateLocked()
		return false, len(r.seats)
	}
	if _, ok := r.seats[sessionID]; !ok {
		return false, len(r.seats)
	}
	delete(r.seats, sessionID)
	delete(r.rematchVotes, sessionID)
	r.cancelClockLocked()
	if r.state == StatePlaying {
		r.state = StatePostGame
		r.turnEndsAt = time.Time{}
	}
	for sid := range r.seats {
		if r.BroadcastToFn != nil {
			r.BroadcastToFn(sid, Event{"type": "opponent-disconnected", "roomId": r.ID})
		}
	}
	r.broadcastStateLocked()
	return true, len(r.seats)
}

// IsMember reports whether the connection belongs to the room's group.
func (r *Room) IsMember(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seats[sessionID]; ok {
		return true
	}
	_, ok := r.spectators[sessionID]
	return ok
}

// MemberSessions returns every connection in the room's broadcast group.
func (r *Room) MemberSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.seats)+len(r.spectators))
	for sid := range r.seats {
		out = append(out, sid)
	}
	for sid := range r.spectators {
		out = append(out, sid)
	}
	return out
}

// Seats returns a snapshot of the seated players, black first.
func (r *Room) Seats() []Seat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seatsSnapshotLocked()
}

func (r *Room) seatsSnapshotLocked() []Seat {
	out := make([]Seat, 0, len(r.seats))
	for _, s := range r.seats {
		out = append(out, *s)
	}
	if len(out) == 2 && out[0].Role != models.StoneBlack {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// State returns the room's current lifecycle phase.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CurrentPlayer returns whose turn it is.
func (r *Room) CurrentPlayer() models.Stone {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// MoveCount returns the number of accepted moves this game.
func (r *Room) MoveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moveCount
}

// TurnLimit returns the current per-turn budget.
func (r *Room) TurnLimit() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnLimit
}

// RematchVotes returns the number of recorded replay votes.
func (r *Room) RematchVotes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rematchVotes)
}

// Snapshot builds the full room-state payload broadcast on every mutation.
func (r *Room) Snapshot() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Event {
	ev := Event{
		"type":          "room-state-update",
		"roomId":        r.ID,
		"state":         r.state,
		"players":       r.playersPayloadLocked(),
		"spectators":    len(r.spectators),
		"currentPlayer": r.current,
		"turnLimitMs":   r.turnLimit.Milliseconds(),
		"moveCount":     r.moveCount,
		"rematchVotes":  len(r.rematchVotes),
		"private":       r.Private,
	}
	if !r.turnEndsAt.IsZero() {
		ev["turnEndsAt"] = r.turnEndsAt.UnixMilli()
	} else {
		ev["turnEndsAt"] = nil
	}
	return ev
}

// PlayersPayload exposes the seated players for join/spectate responses.
func (r *Room) PlayersPayload() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playersPayloadLocked()
}

func (r *Room) playersPayloadLocked() []Event {
	seats := r.seatsSnapshotLocked()
	out := make([]Event, 0, len(seats))
	for _, s := range seats {
		out = append(out, Event{
			"id":        s.Profile.ID,
			"username":  s.Profile.Username,
			"rating":    s.Profile.Rating,
			"role":      s.Role,
			"supporter": s.Profile.Supporter,
		})
	}
	return out
}

// armClockLocked cancels any pending forfeiture and schedules a fresh one at
// the current turn budget. At most one timer is live per room.
func (r *Room) armClockLocked() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
	}
	r.turnSerial++
	serial := r.turnSerial
	r.turnEndsAt = time.Now().Add(r.turnLimit)
	r.turnTimer = time.AfterFunc(r.turnLimit, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		// A move or terminal transition may have superseded this timer
		// between expiry and lock acquisition.
		if r.state != StatePlaying || r.turnSerial != serial {
			return
		}
		r.endGameLocked(r.current.Opponent(), ReasonTimeout)
	})
}

func (r *Room) cancelClockLocked() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	r.turnSerial++
	r.turnEndsAt = time.Time{}
}

// endGameLocked performs the terminal transition to post-game and hands the
// result to the settlement hook.
func (r *Room) endGameLocked(winner models.Stone, reason string) {
	r.cancelClockLocked()
	r.state = StatePostGame

	var winnerSeat, loserSeat *Seat
	for _, s := range r.seats {
		if s.Role == winner {
			winnerSeat = s
		} else {
			loserSeat = s
		}
	}

	ev := Event{
		"type":   "game-over-update",
		"roomId": r.ID,
		"winner": winner,
		"reason": reason,
	}
	if winnerSeat != nil {
		ev["winnerId"] = winnerSeat.Profile.ID
	}
	r.fireLocked(ev)
	r.broadcastStateLocked()

	if r.OnGameEnd != nil && winnerSeat != nil && loserSeat != nil {
		res := Result{
			RoomID:    r.ID,
			Reason:    reason,
			Private:   r.Private,
			MoveCount: r.moveCount,
			Winner:    winnerSeat.Profile,
			Loser:     loserSeat.Profile,
		}
		go r.OnGameEnd(res)
	}
}

func (r *Room) broadcastStateLocked() {
	r.fireLocked(r.snapshotLocked())
}

func (r *Room) fireLocked(ev Event) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}
