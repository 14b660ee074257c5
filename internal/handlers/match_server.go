package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/okstone/gomoku/internal/auth"
	"github.com/okstone/gomoku/internal/game"
	"github.com/okstone/gomoku/internal/matchmaking"
	"github.com/okstone/gomoku/internal/models"
	"github.com/okstone/gomoku/internal/rating"
)

// MatchRegistry is the durable index of in-progress public games used for
// spectator discovery.
type MatchRegistry interface {
	Insert(ctx context.Context, roomID, player1ID, player2ID string) error
	DeleteByRoom(ctx context.Context, roomID string) error
}

// NoopRegistry is used when no registry backend is configured.
type NoopRegistry struct{}

func (NoopRegistry) Insert(context.Context, string, string, string) error { return nil }
func (NoopRegistry) DeleteByRoom(context.Context, string) error           { return nil }

// Client is one live socket connection tracked by the gateway.
type Client struct {
	SessionID string
	// UserID is the durable identity bound to this connection. It starts as
	// a fresh guest id and may be replaced by an authenticate event.
	UserID string
	Out    chan game.Event

	// roomID is guarded by the MatchServer mutex.
	roomID string
}

// MatchServer owns every per-process registry: live connections, broadcast
// groups, the room store and the matchmaking queue. One instance per process,
// injected into the websocket gateway.
type MatchServer struct {
	logger   *logrus.Logger
	Rooms    *game.RoomStore
	Queue    *matchmaking.Queue
	Settler  *rating.Settler
	Registry MatchRegistry

	mu      sync.Mutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
}

func NewMatchServer(logger *logrus.Logger, settler *rating.Settler, registry MatchRegistry) *MatchServer {
	if registry == nil {
		registry = NoopRegistry{}
	}
	return &MatchServer{
		logger:   logger,
		Rooms:    game.NewRoomStore(),
		Queue:    matchmaking.NewQueue(),
		Settler:  settler,
		Registry: registry,
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]*Client),
	}
}

// Register tracks a newly accepted connection and announces updated counts.
func (ms *MatchServer) Register(c *Client) {
	ms.mu.Lock()
	ms.clients[c.SessionID] = c
	ms.mu.Unlock()
	ms.broadcastUserCounts()
}

// HandleAuthenticate binds the connection to the durable user id carried by
// a verified token. A bad token leaves the guest identity in place.
func (ms *MatchServer) HandleAuthenticate(c *Client, token string) {
	userID, err := auth.AuthenticateJWT(token)
	if err != nil {
		ms.logger.WithError(err).WithField("session", c.SessionID).Warn("authenticate failed")
		return
	}
	c.UserID = userID
	ms.logger.WithFields(logrus.Fields{"session": c.SessionID, "user": userID}).Info("connection authenticated")
}

// HandleJoinQueue enqueues the profile for public pairing. Re-queueing an
// already-waiting profile id is a no-op.
func (ms *MatchServer) HandleJoinQueue(c *Client, profile models.ProfileSnapshot) {
	if profile.ID == "" {
		profile.ID = c.UserID
	}
	profile.Normalize()
	if !ms.Queue.Enqueue(c.SessionID, profile) {
		return
	}
	ms.broadcastUserCounts()
	ms.tryPair()
}

// HandleLeaveQueue removes the connection's waiting entry, if any.
func (ms *MatchServer) HandleLeaveQueue(c *Client) {
	if ms.Queue.Remove(c.SessionID) {
		ms.broadcastUserCounts()
	}
}

// tryPair drains the queue two entries at a time, building a room per pair.
func (ms *MatchServer) tryPair() {
	for {
		first, second, ok := ms.Queue.DequeuePair()
		if !ok {
			return
		}
		ms.createPublicRoom(first, second)
		ms.broadcastUserCounts()
	}
}

// createPublicRoom seats the two oldest waiting players (first entrant gets
// black), computes the deterministic opening and starts the clock.
func (ms *MatchServer) createPublicRoom(first, second matchmaking.Entry) {
	room := game.NewRoom(false)
	ms.wireRoom(room)
	room.SeatHost(first.SessionID, first.Profile)
	room.SeatOpponent(second.SessionID, second.Profile)
	ms.Rooms.Add(room)
	ms.joinGroup(room.ID, first.SessionID)
	ms.joinGroup(room.ID, second.SessionID)

	ms.sendTo(first.SessionID, game.Event{"type": "assign-role", "roomId": room.ID, "role": models.StoneBlack})
	ms.sendTo(second.SessionID, game.Event{"type": "assign-role", "roomId": room.ID, "role": models.StoneWhite})

	room.Start(game.OpeningProposal(game.DefaultBoardSize))

	ms.logger.WithFields(logrus.Fields{
		"room":  room.ID,
		"black": first.Profile.ID,
		"white": second.Profile.ID,
	}).Info("public match paired")

	// Guests are never recorded for spectator discovery.
	if models.IsGuestID(first.Profile.ID) || models.IsGuestID(second.Profile.ID) {
		return
	}
	go func(roomID, p1, p2 string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ms.Registry.Insert(ctx, roomID, p1, p2); err != nil {
			ms.logger.WithError(err).WithField("room", roomID).Error("active-match insert failed")
		}
	}(room.ID, first.Profile.ID, second.Profile.ID)
}

// HandleCreatePrivateRoom builds a waiting room with the caller seated as
// black. Private rooms are never listed or recorded.
func (ms *MatchServer) HandleCreatePrivateRoom(c *Client, profile models.ProfileSnapshot) {
	if profile.ID == "" {
		profile.ID = c.UserID
	}
	profile.Normalize()

	room := game.NewRoom(true)
	ms.wireRoom(room)
	room.SeatHost(c.SessionID, profile)
	ms.Rooms.Add(room)
	ms.joinGroup(room.ID, c.SessionID)

	ms.sendTo(c.SessionID, game.Event{"type": "room-created", "roomId": room.ID})
	ms.sendTo(c.SessionID, game.Event{"type": "assign-role", "roomId": room.ID, "role": models.StoneBlack})
	ms.sendTo(c.SessionID, room.Snapshot())
}

// HandleJoinRoom admits the caller to an existing room: as white if the seat
// is free, as a spectator otherwise. An unknown room id gets an explicit
// room-full-or-invalid response; that is the only protocol error surfaced.
func (ms *MatchServer) HandleJoinRoom(c *Client, roomID string, profile models.ProfileSnapshot) {
	room, ok := ms.Rooms.Get(roomID)
	if !ok {
		ms.sendTo(c.SessionID, game.Event{"type": "room-full-or-invalid"})
		return
	}
	if profile.ID == "" {
		profile.ID = c.UserID
	}
	profile.Normalize()

	// Subscribe to the group first so the game-start broadcast reaches the
	// joiner too.
	ms.joinGroup(room.ID, c.SessionID)
	role, seated := room.JoinOrSpectate(c.SessionID, profile)
	if seated {
		ms.sendTo(c.SessionID, game.Event{"type": "assign-role", "roomId": room.ID, "role": role})
		return
	}
	ms.sendTo(c.SessionID, game.Event{
		"type":    "joined-as-spectator",
		"roomId":  room.ID,
		"players": room.PlayersPayload(),
	})
}

// HandlePlayerMove forwards a move to the sender's room. Out-of-turn moves
// and moves from non-players are silently ignored by the room.
func (ms *MatchServer) HandlePlayerMove(c *Client, roomID string, mv models.Move) {
	if room, ok := ms.Rooms.Get(roomID); ok {
		room.AcceptMove(c.SessionID, mv)
	}
}

// HandleGameOver applies a player's trusted end-of-game report.
func (ms *MatchServer) HandleGameOver(c *Client, roomID, winner string) {
	role := models.Stone(winner)
	if role != models.StoneBlack && role != models.StoneWhite {
		return
	}
	room, ok := ms.Rooms.Get(roomID)
	if !ok {
		return
	}
	room.ReportGameOver(c.SessionID, role)
}

// HandleRematchVote counts the caller toward a unanimous restart.
func (ms *MatchServer) HandleRematchVote(c *Client, roomID string) {
	if room, ok := ms.Rooms.Get(roomID); ok {
		room.VoteRematch(c.SessionID)
	}
}

// HandleEmoticon relays an emoticon within the sender's room.
func (ms *MatchServer) HandleEmoticon(c *Client, roomID, emoticon string) {
	if room, ok := ms.Rooms.Get(roomID); ok {
		room.RelayEmoticon(c.SessionID, emoticon)
	}
}

// HandleRequestToJoin is intentionally a no-op: the spectator-to-player
// upgrade is part of the protocol surface but has no defined behavior yet.
func (ms *MatchServer) HandleRequestToJoin(c *Client, roomID string) {
	ms.logger.WithFields(logrus.Fields{"session": c.SessionID, "room": roomID}).Debug("request-to-join ignored")
}

// HandleDisconnect tears down everything the connection touched: queue
// entry, room membership and, for public rooms, the room itself.
func (ms *MatchServer) HandleDisconnect(c *Client) {
	ms.mu.Lock()
	delete(ms.clients, c.SessionID)
	ms.mu.Unlock()

	ms.Queue.Remove(c.SessionID)
	ms.detachFromRoom(c)
	ms.broadcastUserCounts()
}

// detachFromRoom removes the connection from its current room, if any,
// applying the leave rules: public rooms do not survive a player leaving,
// empty rooms never survive.
func (ms *MatchServer) detachFromRoom(c *Client) {
	ms.mu.Lock()
	roomID := c.roomID
	c.roomID = ""
	if group, ok := ms.groups[roomID]; ok {
		delete(group, c.SessionID)
	}
	ms.mu.Unlock()
	if roomID == "" {
		return
	}

	room, ok := ms.Rooms.Get(roomID)
	if !ok {
		return
	}
	wasPlayer, playersLeft := room.RemoveSession(c.SessionID)
	if playersLeft == 0 || (wasPlayer && !room.Private) {
		ms.teardownRoom(room, wasPlayer)
	}
}

func (ms *MatchServer) teardownRoom(room *game.Room, hadPlayer bool) {
	ms.Rooms.Delete(room.ID)
	ms.mu.Lock()
	delete(ms.groups, room.ID)
	ms.mu.Unlock()
	ms.logger.WithField("room", room.ID).Info("room destroyed")

	if room.Private || !hadPlayer {
		return
	}
	go func(roomID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ms.Registry.DeleteByRoom(ctx, roomID); err != nil {
			ms.logger.WithError(err).WithField("room", roomID).Error("active-match delete failed")
		}
	}(room.ID)
}

// wireRoom attaches the gateway's broadcast plumbing and the settlement hook
// to a freshly built room.
func (ms *MatchServer) wireRoom(room *game.Room) {
	// Read room.ID at call time: the store may re-mint the id on collision
	// between wiring and registration.
	room.BroadcastFn = func(ev game.Event) {
		ms.broadcastRoom(room.ID, ev)
	}
	room.BroadcastToFn = func(sessionID string, ev game.Event) {
		ms.sendTo(sessionID, ev)
	}
	room.OnGameEnd = func(res game.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if !res.Private {
			if err := ms.Registry.DeleteByRoom(ctx, res.RoomID); err != nil {
				ms.logger.WithError(err).WithField("room", res.RoomID).Error("active-match delete failed")
			}
		}
		ms.Settler.Settle(ctx, res)
	}
}

// joinGroup subscribes a connection to a room's broadcast group. A
// connection belongs to at most one room: any previous membership is
// detached first so an abandoned room cannot outlive its players.
func (ms *MatchServer) joinGroup(roomID, sessionID string) {
	ms.mu.Lock()
	c, ok := ms.clients[sessionID]
	var prev string
	if ok {
		prev = c.roomID
	}
	ms.mu.Unlock()
	if !ok {
		return
	}
	if prev != "" && prev != roomID {
		ms.detachFromRoom(c)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	group, ok := ms.groups[roomID]
	if !ok {
		group = make(map[string]*Client)
		ms.groups[roomID] = group
	}
	group[sessionID] = c
	c.roomID = roomID
}

// broadcastRoom fans an event out to every connection in the room's group,
// sender included.
func (ms *MatchServer) broadcastRoom(roomID string, ev game.Event) {
	ms.mu.Lock()
	targets := make([]*Client, 0, len(ms.groups[roomID]))
	for _, c := range ms.groups[roomID] {
		targets = append(targets, c)
	}
	ms.mu.Unlock()
	for _, c := range targets {
		ms.push(c, ev)
	}
}

// broadcastUserCounts announces online/queued totals to every connection.
func (ms *MatchServer) broadcastUserCounts() {
	ms.mu.Lock()
	targets := make([]*Client, 0, len(ms.clients))
	for _, c := range ms.clients {
		targets = append(targets, c)
	}
	online := len(ms.clients)
	ms.mu.Unlock()

	ev := game.Event{
		"type":   "user-counts-update",
		"online": online,
		"queued": ms.Queue.Len(),
	}
	for _, c := range targets {
		ms.push(c, ev)
	}
}

func (ms *MatchServer) sendTo(sessionID string, ev game.Event) {
	ms.mu.Lock()
	c, ok := ms.clients[sessionID]
	ms.mu.Unlock()
	if ok {
		ms.push(c, ev)
	}
}

// push never blocks: a connection whose write pump has stalled loses
// messages rather than stalling room processing.
func (ms *MatchServer) push(c *Client, ev game.Event) {
	select {
	case c.Out <- ev:
	default:
		ms.logger.WithFields(logrus.Fields{
			"session": c.SessionID,
			"event":   ev["type"],
		}).Warn("dropping event for slow connection")
	}
}
