// Package ws serves the turn orchestrator over websockets. A session opens
// with a hello frame naming a story; each turn then streams progress frames
// followed by a result frame.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tatianab/text-engine/internal/turn"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 10 * time.Minute
	outQueue     = 32
)

// Game is the orchestrator surface the server exposes.
type Game interface {
	ProcessTurnStream(ctx context.Context, storyID, input string, progress turn.ProgressFunc) (*turn.Result, error)
	HandleDilemmaResponse(ctx context.Context, storyID, dilemmaID, choice, text string) (*turn.DilemmaOutcome, error)
	GetGameState(ctx context.Context, storyID string) (*turn.GameState, error)
}

type Server struct {
	game Game
	log  *slog.Logger

	upgrader websocket.Upgrader
}

func NewServer(game Game, logger *slog.Logger) *Server {
	return &Server{
		game: game,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local play client
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		storyID, ok := s.handshake(ctx, conn)
		if !ok {
			return
		}
		log := s.log.With("story", storyID, "remote", r.RemoteAddr)
		log.Info("session opened")

		out := make(chan any, outQueue)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case v := <-out:
					if err := writeJSON(conn, v); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			select {
			case out <- v:
			case <-ctx.Done():
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := DecodeBase(msg)
			if err != nil {
				send(ErrorMsg{Base: Base{Type: TypeError}, Error: "malformed frame"})
				continue
			}
			s.dispatch(ctx, storyID, base, msg, send)
		}
		cancel()
		<-done
		log.Info("session closed")
	}
}

func (s *Server) dispatch(ctx context.Context, storyID string, base Base, msg []byte, send func(any)) {
	fail := func(err error) {
		send(ErrorMsg{Base: Base{Type: TypeError, ID: base.ID}, Error: err.Error()})
	}

	switch base.Type {
	case TypeTurn:
		var req TurnMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			fail(err)
			return
		}
		res, err := s.game.ProcessTurnStream(ctx, storyID, req.Input, func(p turn.Progress) {
			send(ProgressMsg{Base: Base{Type: TypeProgress, ID: base.ID}, Progress: p})
		})
		if err != nil {
			s.log.Error("turn failed", "story", storyID, "err", err)
			fail(err)
			return
		}
		send(ResultMsg{Base: Base{Type: TypeResult, ID: base.ID}, Result: res})

	case TypeDilemma:
		var req DilemmaMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			fail(err)
			return
		}
		out, err := s.game.HandleDilemmaResponse(ctx, storyID, req.DilemmaID, req.Choice, req.Text)
		if err != nil {
			fail(err)
			return
		}
		send(DilemmaOutcomeMsg{Base: Base{Type: TypeDilemmaOutcome, ID: base.ID}, Outcome: out})

	case TypeState:
		st, err := s.game.GetGameState(ctx, storyID)
		if err != nil {
			fail(err)
			return
		}
		send(StateMsg{Base: Base{Type: TypeState, ID: base.ID}, State: st})

	default:
		send(ErrorMsg{Base: Base{Type: TypeError, ID: base.ID}, Error: "unknown frame type " + base.Type})
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := DecodeBase(msg)
	if err != nil || base.Type != TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected hello")
		return "", false
	}
	var hello HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "bad hello")
		return "", false
	}
	if hello.ProtocolVersion != ProtocolVersion {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", false
	}

	st, err := s.game.GetGameState(ctx, hello.StoryID)
	if err != nil {
		s.log.Warn("hello for unknown story", "story", hello.StoryID, "err", err)
		closeWith(conn, websocket.CloseUnsupportedData, "unknown story")
		return "", false
	}
	if err := writeJSON(conn, WelcomeMsg{Base: Base{Type: TypeWelcome, ID: hello.ID}, StoryID: hello.StoryID, State: st}); err != nil {
		return "", false
	}
	return hello.StoryID, true
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
