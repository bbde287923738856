// Package display keeps the kiosk's visible state and pushes changes to
// connected browsers.
package display

import (
	"sync"
	"time"

	"attendance-kiosk/internal/i18n"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/server/sse"
	"attendance-kiosk/internal/util/timezone"
	"attendance-kiosk/internal/wire"
)

// EventState is the SSE event type sent on every board change.
const EventState = "state"

// ResultView is the result box.
type ResultView struct {
	Name  string    `json:"name"`
	Known bool      `json:"known"`
	Token *int      `json:"token,omitempty"`
	At    time.Time `json:"at"`
}

// View is the raw board state.
type View struct {
	Mode      wire.Mode    `json:"mode"`
	Status    kiosk.Notice `json:"status_key"`
	Started   bool         `json:"started"`
	Connected bool         `json:"connected"`
	Result    *ResultView  `json:"result,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Rendered is a View with texts localised for one browser.
type Rendered struct {
	Lang         string    `json:"lang"`
	Mode         wire.Mode `json:"mode"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	ShowResult   bool      `json:"show_result"`
	ShowContinue bool      `json:"show_continue"`
	ShowStart    bool      `json:"show_start"`
	Connected    bool      `json:"connected"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Board implements kiosk.Display.
type Board struct {
	tr  *i18n.Translator
	hub *sse.Hub

	mu   sync.RWMutex
	view View
}

// NewBoard creates an idle board. hub may be nil.
func NewBoard(tr *i18n.Translator, hub *sse.Hub) *Board {
	return &Board{
		tr:  tr,
		hub: hub,
		view: View{
			Mode:      wire.ModeHand,
			Status:    kiosk.NoticeIdle,
			Connected: true,
			UpdatedAt: timezone.Now(),
		},
	}
}

func (b *Board) update(fn func(v *View)) {
	b.mu.Lock()
	fn(&b.view)
	b.view.UpdatedAt = timezone.Now()
	v := b.view
	b.mu.Unlock()

	if b.hub != nil {
		b.hub.Publish(EventState, v)
	}
}

func (b *Board) Status(n kiosk.Notice) {
	b.update(func(v *View) { v.Status = n })
}

func (b *Board) ModeChanged(m wire.Mode) {
	b.update(func(v *View) {
		v.Mode = m
		v.Started = true
	})
}

func (b *Board) ShowResult(r kiosk.Result) {
	b.update(func(v *View) {
		v.Result = &ResultView{Name: r.Name, Known: r.Known, Token: r.Token, At: r.At}
	})
}

func (b *Board) HideResult() {
	b.update(func(v *View) { v.Result = nil })
}

func (b *Board) Disconnected() {
	b.update(func(v *View) {
		v.Connected = false
		v.Status = kiosk.NoticeDisconnected
		v.Result = nil
	})
}

// View returns a copy of the current state.
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v := b.view
	if v.Result != nil {
		r := *v.Result
		v.Result = &r
	}
	return v
}

// Render localises the current state for lang.
func (b *Board) Render(lang string) Rendered {
	v := b.View()
	if !b.tr.Supported(lang) {
		lang = b.tr.Default()
	}
	out := Rendered{
		Lang:      lang,
		Mode:      v.Mode,
		Status:    b.tr.T(lang, string(v.Status), nil),
		ShowStart: !v.Started && v.Connected,
		Connected: v.Connected,
		UpdatedAt: v.UpdatedAt,
	}
	if v.Result != nil {
		out.ShowResult = true
		if v.Result.Known {
			out.Result = b.tr.T(lang, "result.name", map[string]any{"Name": v.Result.Name})
		} else {
			out.Result = b.tr.T(lang, "result.unknown", nil)
			out.ShowContinue = true
		}
	}
	return out
}
