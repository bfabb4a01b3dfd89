package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tatianab/text-engine/internal/models"
	"github.com/tatianab/text-engine/internal/store/memstore"
	"github.com/tatianab/text-engine/internal/turn"
	"github.com/tatianab/text-engine/internal/world"
)

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	st := memstore.New()
	if err := world.Import(context.Background(), st, models.DefaultSeed()); err != nil {
		t.Fatalf("Import: %v", err)
	}
	srv := httptest.NewServer(NewServer(turn.New(st, nil), slog.Default()).Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (Base, []byte) {
	t.Helper()
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	base, err := DecodeBase(msg)
	if err != nil {
		t.Fatalf("DecodeBase(%s): %v", msg, err)
	}
	return base, msg
}

func TestTurnStreamsProgress(t *testing.T) {
	conn := dial(t)
	if err := conn.WriteJSON(HelloMsg{Base: Base{Type: TypeHello}, ProtocolVersion: ProtocolVersion, StoryID: "cell-escape"}); err != nil {
		t.Fatal(err)
	}
	base, msg := read(t, conn)
	if base.Type != TypeWelcome {
		t.Fatalf("Expected welcome, got %s", msg)
	}
	var welcome WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.State.Room.ID != "cell" {
		t.Fatalf("unexpected welcome %s (%v)", msg, err)
	}

	if err := conn.WriteJSON(TurnMsg{Base: Base{Type: TypeTurn, ID: "t1"}, Input: "east"}); err != nil {
		t.Fatal(err)
	}
	var stages []turn.Stage
	for {
		base, msg := read(t, conn)
		if base.ID != "t1" {
			t.Fatalf("Expected frames for t1, got %s", msg)
		}
		if base.Type == TypeProgress {
			var p ProgressMsg
			_ = json.Unmarshal(msg, &p)
			stages = append(stages, p.Stage)
			continue
		}
		if base.Type != TypeResult {
			t.Fatalf("Expected a result, got %s", msg)
		}
		var res ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			t.Fatal(err)
		}
		if res.Result.NewRoomID != "hall" || res.Result.Dilemma == nil {
			t.Errorf("unexpected result %+v", res.Result)
		}
		break
	}
	if len(stages) == 0 || stages[len(stages)-1] != turn.StageDone {
		t.Errorf("Expected progress ending in done, got %v", stages)
	}

	if err := conn.WriteJSON(DilemmaMsg{Base: Base{Type: TypeDilemma, ID: "d1"}, DilemmaID: "prisoner", Choice: "help"}); err != nil {
		t.Fatal(err)
	}
	base, msg = read(t, conn)
	if base.Type != TypeDilemmaOutcome || !strings.Contains(string(msg), "thanks you") {
		t.Errorf("unexpected dilemma outcome %s", msg)
	}

	if err := conn.WriteJSON(Base{Type: "dance", ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if base, msg = read(t, conn); base.Type != TypeError || base.ID != "x" {
		t.Errorf("Expected an error frame, got %s", msg)
	}
}

func TestHandshakeRejectsBadVersion(t *testing.T) {
	conn := dial(t)
	if err := conn.WriteJSON(HelloMsg{Base: Base{Type: TypeHello}, ProtocolVersion: "0", StoryID: "cell-escape"}); err != nil {
		t.Fatal(err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("Expected a policy violation close, got %v", err)
	}
}
