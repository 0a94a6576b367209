package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/hub"
	"trivia-game/internal/models"
	"trivia-game/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// inboundMessage is a client frame; data is decoded per event.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomRequest struct {
	GameCode   string `json:"gameCode"`
	PlayerName string `json:"playerName"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), sendBuffer)
	s.hub.Register(client)
	log.Info().Str("conn", client.ID).Str("remote", c.Request.RemoteAddr).Msg("client connected")

	go s.handleClientWrites(conn, client)
	s.handleClientMessages(c.Request.Context(), conn, client)
}

func (s *Server) handleClientMessages(ctx context.Context, conn *websocket.Conn, client *hub.WebSocketClient) {
	defer func() {
		s.gameService.Disconnect(context.Background(), client.ID)
		s.hub.Unregister(client)
		conn.Close()
		log.Info().Str("conn", client.ID).Msg("client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				s.hub.EmitTo(client.ID, models.EventError, "malformed message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn", client.ID).Msg("websocket read error")
			}
			return
		}

		s.handleWebSocketMessage(ctx, client, &msg)
	}
}

func (s *Server) handleClientWrites(conn *websocket.Conn, client *hub.WebSocketClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("conn", client.ID).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, client *hub.WebSocketClient, msg *inboundMessage) {
	log.Debug().Str("conn", client.ID).Str("event", msg.Event).Msg("message received")

	switch msg.Event {
	case models.EventCreateGame:
		var req roomRequest
		if !s.decode(client, msg, &req) {
			return
		}
		s.gameService.CreateGame(ctx, client.ID, req.GameCode, strings.TrimSpace(req.PlayerName))
	case models.EventJoinGame:
		var req roomRequest
		if !s.decode(client, msg, &req) {
			return
		}
		s.gameService.JoinGame(ctx, client.ID, req.GameCode, strings.TrimSpace(req.PlayerName))
	case models.EventStartGame:
		s.gameService.StartGame(ctx, client.ID)
	case models.EventAnswer:
		s.gameService.Answer(ctx, client.ID, parseAnswer(msg.Data))
	case models.EventLeaveGame:
		s.gameService.LeaveGame(ctx, client.ID)
	default:
		s.hub.EmitTo(client.ID, models.EventError, "unknown event: "+msg.Event)
	}
}

func (s *Server) decode(client *hub.WebSocketClient, msg *inboundMessage, v interface{}) bool {
	if len(msg.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		s.hub.EmitTo(client.ID, models.EventError, "invalid payload for "+msg.Event)
		return false
	}
	return true
}

// parseAnswer accepts an answer id (JSON string) or an index (JSON
// number). Anything else yields a choice no question will match.
func parseAnswer(data json.RawMessage) services.AnswerChoice {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return services.AnswerChoice{ID: id}
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil && n == math.Trunc(n) {
		return services.AnswerChoice{Index: int(n), ByIndex: true}
	}
	return services.AnswerChoice{Index: -1, ByIndex: true}
}
