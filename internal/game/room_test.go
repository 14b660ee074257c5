package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okstone/gomoku/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu            sync.Mutex
	allEvents     []Event
	sessionEvents map[string][]Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{sessionEvents: make(map[string][]Event)}
}

func (mb *mockBroadcaster) broadcastFn(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToFn(sessionID string, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.sessionEvents[sessionID] = append(mb.sessionEvents[sessionID], ev)
}

func (mb *mockBroadcaster) eventsOfType(typ string) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []Event
	for _, ev := range mb.allEvents {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) lastOfType(typ string) Event {
	evs := mb.eventsOfType(typ)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

func profile(id, name string) models.ProfileSnapshot {
	p := models.ProfileSnapshot{ID: id, Username: name}
	p.Normalize()
	return p
}

// setupPlayingRoom seats two players and starts the game.
func setupPlayingRoom(t *testing.T, private bool) (*Room, *mockBroadcaster) {
	t.Helper()
	r := NewRoom(private)
	mb := newMockBroadcaster()
	r.BroadcastFn = mb.broadcastFn
	r.BroadcastToFn = mb.broadcastToFn
	r.SeatHost("sess-black", profile("alice", "alice"))
	require.True(t, r.SeatOpponent("sess-white", profile("bob", "bob")))
	r.Start(nil)
	require.Equal(t, StatePlaying, r.State())
	return r, mb
}

func TestTurnAlternationStartsFromBlack(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	require.Equal(t, models.StoneBlack, r.CurrentPlayer())

	// White cannot move first.
	assert.False(t, r.AcceptMove("sess-white", models.Move{X: 0, Y: 0}))
	assert.Equal(t, 0, r.MoveCount())

	// A connection with no seat is ignored too.
	assert.False(t, r.AcceptMove("sess-nobody", models.Move{X: 0, Y: 0}))

	// Black, then white, then black.
	assert.True(t, r.AcceptMove("sess-black", models.Move{X: 7, Y: 7}))
	assert.Equal(t, models.StoneWhite, r.CurrentPlayer())
	assert.True(t, r.AcceptMove("sess-white", models.Move{X: 8, Y: 8}))
	assert.Equal(t, models.StoneBlack, r.CurrentPlayer())

	// Same sender twice in a row is rejected.
	assert.False(t, r.AcceptMove("sess-white", models.Move{X: 9, Y: 9}))
	assert.Equal(t, 2, r.MoveCount())
}

func TestMoveBroadcastCarriesColorAndNextPlayer(t *testing.T) {
	r, mb := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	require.True(t, r.AcceptMove("sess-black", models.Move{X: 3, Y: 4}))
	ev := mb.lastOfType("game-state-update")
	require.NotNil(t, ev)
	mv := ev["move"].(Event)
	assert.Equal(t, 3, mv["x"])
	assert.Equal(t, 4, mv["y"])
	assert.Equal(t, models.StoneBlack, mv["color"])
	assert.Equal(t, models.StoneWhite, ev["currentPlayer"])
}

func TestTurnBudgetGrowsAndCaps(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	require.Equal(t, BaseTurnLimit, r.TurnLimit())

	sessions := []string{"sess-black", "sess-white"}
	prev := r.TurnLimit()
	for i := 0; i < 40; i++ {
		require.True(t, r.AcceptMove(sessions[i%2], models.Move{X: i, Y: i}))
		cur := r.TurnLimit()
		assert.GreaterOrEqual(t, cur, prev, "turn budget must be non-decreasing")
		assert.LessOrEqual(t, cur, MaxTurnLimit)
		prev = cur
	}
	assert.Equal(t, MaxTurnLimit, r.TurnLimit())
}

func TestTimeoutForfeitsCurrentPlayer(t *testing.T) {
	r, mb := setupPlayingRoom(t, false)

	results := make(chan Result, 1)
	r.OnGameEnd = func(res Result) { results <- res }

	// Shrink the live clock so the test does not wait out the real budget.
	r.mu.Lock()
	r.turnLimit = 30 * time.Millisecond
	r.armClockLocked()
	r.mu.Unlock()

	select {
	case res := <-results:
		assert.Equal(t, ReasonTimeout, res.Reason)
		assert.Equal(t, "bob", res.Winner.ID, "non-current player wins on timeout")
		assert.Equal(t, "alice", res.Loser.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout forfeiture never fired")
	}

	assert.Equal(t, StatePostGame, r.State())
	over := mb.lastOfType("game-over-update")
	require.NotNil(t, over)
	assert.Equal(t, models.StoneWhite, over["winner"])
	assert.Equal(t, ReasonTimeout, over["reason"])
}

func TestMoveBeatsRacingTimer(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	ended := make(chan Result, 1)
	r.OnGameEnd = func(res Result) { ended <- res }

	r.mu.Lock()
	r.turnLimit = 40 * time.Millisecond
	r.armClockLocked()
	r.mu.Unlock()

	// A move before expiry reschedules the clock; the stale timer must not
	// forfeit anyone.
	require.True(t, r.AcceptMove("sess-black", models.Move{X: 1, Y: 1}))

	select {
	case res := <-ended:
		// Only the rescheduled timer may fire, and it forfeits white (the
		// new current player), never black.
		assert.Equal(t, "bob", res.Loser.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled timer never fired")
	}
}

func TestGameOverCancelsClock(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	fired := make(chan Result, 2)
	r.OnGameEnd = func(res Result) { fired <- res }

	r.mu.Lock()
	r.turnLimit = 50 * time.Millisecond
	r.armClockLocked()
	r.mu.Unlock()

	require.True(t, r.ReportGameOver("sess-white", models.StoneWhite))
	res := <-fired
	assert.Equal(t, ReasonReport, res.Reason)

	// The cancelled timer must not produce a second terminal transition.
	select {
	case extra := <-fired:
		t.Fatalf("dangling timer fired after game over: %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, StatePostGame, r.State())
}

func TestReportGameOverRequiresSeat(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	assert.False(t, r.ReportGameOver("sess-nobody", models.StoneBlack))
	assert.Equal(t, StatePlaying, r.State())
}

func TestRematchResetsGame(t *testing.T) {
	r, mb := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	require.True(t, r.AcceptMove("sess-black", models.Move{X: 0, Y: 0}))
	require.True(t, r.ReportGameOver("sess-black", models.StoneBlack))
	require.Equal(t, StatePostGame, r.State())

	// One vote is not enough.
	require.True(t, r.VoteRematch("sess-black"))
	assert.Equal(t, StatePostGame, r.State())
	assert.Equal(t, 1, r.RematchVotes())

	// Votes from non-players are ignored.
	assert.False(t, r.VoteRematch("sess-nobody"))

	// Unanimity restarts the game from scratch.
	require.True(t, r.VoteRematch("sess-white"))
	assert.Equal(t, StatePlaying, r.State())
	assert.Equal(t, models.StoneBlack, r.CurrentPlayer())
	assert.Equal(t, BaseTurnLimit, r.TurnLimit())
	assert.Equal(t, 0, r.MoveCount())
	assert.Equal(t, 0, r.RematchVotes())
	assert.NotEmpty(t, mb.eventsOfType("new-game-starting"))
}

func TestRematchVoteOutsidePostGame(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	assert.False(t, r.VoteRematch("sess-black"))
}

func TestJoinOrSpectateFillsSeatThenSpectates(t *testing.T) {
	r := NewRoom(true)
	mb := newMockBroadcaster()
	r.BroadcastFn = mb.broadcastFn
	r.BroadcastToFn = mb.broadcastToFn
	r.SeatHost("sess-host", profile("alice", "alice"))
	require.Equal(t, StateWaiting, r.State())

	role, seated := r.JoinOrSpectate("sess-guest", profile("bob", "bob"))
	require.True(t, seated)
	assert.Equal(t, models.StoneWhite, role)
	assert.Equal(t, StatePlaying, r.State())

	_, seated = r.JoinOrSpectate("sess-third", profile("carol", "carol"))
	assert.False(t, seated, "third connection becomes a spectator")
	assert.True(t, r.IsMember("sess-third"))

	snap := r.Snapshot()
	assert.Equal(t, 1, snap["spectators"])
	seats := r.Seats()
	require.Len(t, seats, 2)
	assert.Equal(t, models.StoneBlack, seats[0].Role)
	assert.Equal(t, models.StoneWhite, seats[1].Role)
}

func TestPlayerDisconnectNotifiesOpponent(t *testing.T) {
	r, mb := setupPlayingRoom(t, true)

	wasPlayer, left := r.RemoveSession("sess-black")
	assert.True(t, wasPlayer)
	assert.Equal(t, 1, left)

	evs := mb.sessionEvents["sess-white"]
	require.NotEmpty(t, evs)
	assert.Equal(t, "opponent-disconnected", evs[len(evs)-1]["type"])
	assert.Equal(t, StatePostGame, r.State())

	wasPlayer, left = r.RemoveSession("sess-white")
	assert.True(t, wasPlayer)
	assert.Equal(t, 0, left)
}

func TestSpectatorDisconnectKeepsGame(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	r.JoinOrSpectate("sess-watcher", profile("carol", "carol"))
	wasPlayer, left := r.RemoveSession("sess-watcher")
	assert.False(t, wasPlayer)
	assert.Equal(t, 2, left)
	assert.Equal(t, StatePlaying, r.State())
}

func TestSnapshotDeadlineTracksPlayingState(t *testing.T) {
	r, _ := setupPlayingRoom(t, false)

	snap := r.Snapshot()
	assert.NotNil(t, snap["turnEndsAt"], "deadline set while playing")

	require.True(t, r.ReportGameOver("sess-black", models.StoneBlack))
	snap = r.Snapshot()
	assert.Nil(t, snap["turnEndsAt"], "no deadline outside playing")
}

func TestEmoticonRelayScopedToMembers(t *testing.T) {
	r, mb := setupPlayingRoom(t, false)
	defer r.RemoveSession("sess-black")

	r.RelayEmoticon("sess-black", "wave")
	ev := mb.lastOfType("new-emoticon")
	require.NotNil(t, ev)
	assert.Equal(t, "alice", ev["from"])

	before := len(mb.eventsOfType("new-emoticon"))
	r.RelayEmoticon("sess-stranger", "wave")
	assert.Equal(t, before, len(mb.eventsOfType("new-emoticon")), "strangers are ignored")
}
