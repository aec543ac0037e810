// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/game"
	"github.com/jason-s-yu/quizlive/internal/middleware"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/realtime"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// Client-to-engine event types.
const (
	msgLobbyJoin    = "lobby_join"
	msgLobbyLeave   = "lobby_leave"
	msgLobbyReady   = "lobby_ready"
	msgLobbyStart   = "lobby_start"
	msgGameJoin     = "game_join"
	msgAnswerSubmit = "answer_submit"
	msgHostAdvance  = "host_advance"
	msgHostEnd      = "host_end"
	msgPing         = "ping"
)

// ClientMessage is one inbound websocket frame.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsClient is one accepted socket bound to a session and user.
type wsClient struct {
	conn      *realtime.Connection
	sessionID uuid.UUID
	id        models.Identity
	log       *logrus.Entry
}

// serveWS upgrades /ws/:code and streams the session's events. The client
// drives the engine with the same operations as the HTTP routes.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{realtime.Subprotocol},
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != realtime.Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the quiz subprotocol")
		return
	}

	id, err := s.ids.Identify(r)
	if err != nil {
		c.Close(InvalidAuthTokenError, "authentication failed")
		return
	}

	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			c.Close(InvalidSessionCodeError, "session does not exist")
		}
		return
	}
	if sess.Status.Terminal() {
		c.Close(SessionClosedError, "session is "+string(sess.Status))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	room := realtime.SessionRoom(sess.ID)
	client := &wsClient{
		conn:      realtime.NewConnection(room, id.UserID, cancel),
		sessionID: sess.ID,
		id:        id,
		log:       s.logger.WithFields(logrus.Fields{"session": sess.ID, "user": id.UserID}),
	}
	s.hub.Join(client.conn)
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path, logrus.Fields{"session": sess.ID, "user": id.UserID})

	go realtime.WritePump(ctx, c, client.conn, s.logger)

	err = s.readPump(ctx, c, client)

	s.hub.Leave(client.conn)
	if !s.hub.Connected(room, id.UserID) {
		if derr := s.engine.MarkDisconnected(context.WithoutCancel(ctx), sess.ID, id.UserID); derr != nil && !errors.Is(derr, apperr.NotFound) {
			client.log.Warnf("mark disconnected: %v", derr)
		}
	}
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
}

// readPump dispatches inbound frames until the socket closes.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, client *wsClient) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			client.log.Debugf("ignoring non-text frame %v", typ)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(client, apperr.New(apperr.CodeInvalidArgument, "invalid JSON"))
			continue
		}
		if err := s.dispatch(ctx, client, msg); err != nil {
			s.sendError(client, err)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, client *wsClient, msg ClientMessage) error {
	sid, uid := client.sessionID, client.id.UserID
	switch msg.Type {
	case msgLobbyJoin:
		_, err := s.engine.JoinLobby(ctx, sid, client.id)
		return err
	case msgLobbyLeave:
		return s.engine.LeaveLobby(ctx, sid, uid)
	case msgLobbyReady:
		var req readyRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return err
		}
		_, err := s.engine.SetReady(ctx, sid, uid, req.Ready == nil || *req.Ready)
		return err
	case msgLobbyStart:
		_, err := s.engine.StartSession(ctx, sid, uid)
		return err
	case msgGameJoin:
		_, err := s.engine.JoinGame(ctx, sid, client.id)
		return err
	case msgAnswerSubmit:
		var req answerRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return err
		}
		// the engine sends answer_result to this user
		_, err := s.engine.SubmitAnswer(ctx, sid, uid, req.QuestionID, req.Value)
		return err
	case msgHostAdvance:
		_, err := s.engine.AdvanceQuestion(ctx, sid, uid)
		return err
	case msgHostEnd:
		_, err := s.engine.EndSession(ctx, sid, uid)
		return err
	case msgPing:
		s.hub.Send(client.conn, realtime.Event{Type: game.EventPong})
		return nil
	default:
		return apperr.Newf(apperr.CodeInvalidArgument, "unknown message type %q", msg.Type)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, err, "malformed payload")
	}
	return nil
}

// sendError reports a failed client action on the socket only.
func (s *Server) sendError(client *wsClient, err error) {
	code := apperr.GetCode(err)
	if code == apperr.CodeInternal {
		client.log.Errorf("websocket action failed: %v", err)
	}
	s.hub.Send(client.conn, realtime.Event{
		Type:    game.EventError,
		Payload: game.ErrorPayload{Code: string(code), Message: apperr.Message(err)},
	})
}
