package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/okstone/gomoku/internal/game"
	"github.com/okstone/gomoku/internal/middleware"
	"github.com/okstone/gomoku/internal/models"
)

// ClientMessage is the envelope for every inbound socket message. Fields
// beyond Type are populated per event.
type ClientMessage struct {
	Type string `json:"type"`

	Token    string                  `json:"token,omitempty"`
	RoomID   string                  `json:"roomId,omitempty"`
	Profile  *models.ProfileSnapshot `json:"profile,omitempty"`
	Move     *models.Move            `json:"move,omitempty"`
	Winner   string                  `json:"winner,omitempty"`
	Emoticon string                  `json:"emoticon,omitempty"`
}

// WSHandler upgrades the HTTP connection to the match socket, registers a
// session with the gateway and runs the read loop until disconnect.
func WSHandler(logger *logrus.Logger, ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"match"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "match" {
			c.Close(BadSubprotocolError, "client must speak the match subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		client := &Client{
			SessionID: uuid.NewString(),
			UserID:    models.NewGuestID(),
			Out:       make(chan game.Event, 32),
		}
		ms.Register(client)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, client, logger)
		readErr := readLoop(ctx, c, ms, client, logger)

		ms.HandleDisconnect(client)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readLoop reads, decodes and routes inbound messages until the connection
// closes. Malformed or unrecognized messages are dropped without a response;
// clients are trusted and protocol violations are ignored by design.
func readLoop(ctx context.Context, c *websocket.Conn, ms *MatchServer, client *Client, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WithError(err).WithField("session", client.SessionID).Warn("invalid json message")
			continue
		}

		dispatch(ms, client, msg)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func dispatch(ms *MatchServer, client *Client, msg ClientMessage) {
	profile := models.ProfileSnapshot{}
	if msg.Profile != nil {
		profile = *msg.Profile
	}

	switch msg.Type {
	case "authenticate":
		ms.HandleAuthenticate(client, msg.Token)
	case "join-public-queue":
		ms.HandleJoinQueue(client, profile)
	case "leave-public-queue":
		ms.HandleLeaveQueue(client)
	case "create-private-room":
		ms.HandleCreatePrivateRoom(client, profile)
	case "join-private-room":
		ms.HandleJoinRoom(client, msg.RoomID, profile)
	case "player-move":
		if msg.Move != nil {
			ms.HandlePlayerMove(client, msg.RoomID, *msg.Move)
		}
	case "send-emoticon":
		ms.HandleEmoticon(client, msg.RoomID, msg.Emoticon)
	case "game-over":
		ms.HandleGameOver(client, msg.RoomID, msg.Winner)
	case "rematch-vote":
		ms.HandleRematchVote(client, msg.RoomID)
	case "request-to-join":
		ms.HandleRequestToJoin(client, msg.RoomID)
	default:
		// Unknown event types are ignored, matching the leniency applied to
		// out-of-turn moves.
	}
}

// writePump drains the session's outbound channel onto the socket, pinging
// periodically to detect dead peers.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-client.Out:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.WithError(err).WithField("session", client.SessionID).Warn("failed to marshal outgoing event")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithError(err).WithField("session", client.SessionID).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithError(err).WithField("session", client.SessionID).Warn("ping failed, assuming disconnect")
				return
			}
		}
	}
}
