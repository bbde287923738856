package display

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"attendance-kiosk/internal/i18n"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/server/sse"
	"attendance-kiosk/internal/wire"
)

func newTestBoard(t *testing.T, hub *sse.Hub) *Board {
	t.Helper()
	tr, err := i18n.New("en")
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}
	return NewBoard(tr, hub)
}

func TestRenderLifecycle(t *testing.T) {
	b := newTestBoard(t, nil)

	r := b.Render("en")
	if !r.ShowStart || r.Status != "Press Start to begin" {
		t.Fatalf("idle render = %+v", r)
	}

	b.ModeChanged(wire.ModeHand)
	b.Status(kiosk.NoticeStartingHand)
	if r = b.Render("en"); r.ShowStart || r.Status != "Starting Hand Rec..." {
		t.Fatalf("starting render = %+v", r)
	}

	b.ModeChanged(wire.ModeFace)
	b.ShowResult(kiosk.Result{Name: "Alice", Known: true})
	if r = b.Render("en"); !r.ShowResult || r.Result != "Name: Alice" || r.ShowContinue {
		t.Fatalf("known render = %+v", r)
	}

	b.ShowResult(kiosk.Result{Name: wire.UnknownName})
	if r = b.Render("en"); r.Result != "Sorry, you were not recognised." || !r.ShowContinue {
		t.Fatalf("unknown render = %+v", r)
	}

	b.HideResult()
	if r = b.Render("en"); r.ShowResult || r.ShowContinue {
		t.Fatalf("hidden render = %+v", r)
	}

	b.Disconnected()
	if r = b.Render("xx"); r.Connected || r.Status != "Disconnected" || r.Lang != "en" {
		t.Fatalf("disconnected render = %+v", r)
	}
	if r = b.Render("de"); r.Status != "Verbindung getrennt" {
		t.Fatalf("german render = %+v", r)
	}
}

func TestBoardPublishesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := sse.NewHub()
	go hub.Run(ctx)

	client := make(sse.Client, 8)
	hub.Register(client)

	b := newTestBoard(t, hub)
	b.Status(kiosk.NoticeFacePrompt)

	select {
	case msg := <-client:
		var ev struct {
			Type string `json:"type"`
			Data View   `json:"data"`
		}
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != EventState || ev.Data.Status != kiosk.NoticeFacePrompt {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("board change was not published")
	}
}
