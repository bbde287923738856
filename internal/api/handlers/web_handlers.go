package handlers

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"net/http"

	"attendance-kiosk/internal/api/middleware"
	"attendance-kiosk/internal/display"
	"attendance-kiosk/internal/i18n"
	"attendance-kiosk/internal/server/sse"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// WebHandler liefert die Kiosk-Seite und den Ereignisstrom
type WebHandler struct {
	board     *display.Board
	sseHub    *sse.Hub
	tr        *i18n.Translator
	templates *template.Template
}

// NewWebHandler erstellt einen neuen Web-Handler
func NewWebHandler(board *display.Board, sseHub *sse.Hub, tr *i18n.Translator) (*WebHandler, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &WebHandler{board: board, sseHub: sseHub, tr: tr, templates: tmpl}, nil
}

// RegisterRoutes registriert alle Web-Routen
func (h *WebHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.handleIndex)
	router.GET("/events", h.handleSSE)
}

type indexData struct {
	Lang      string
	Languages []string
	Title     string
	Start     string
	Continue  string
	ModeLabel string
	State     display.Rendered
}

func (h *WebHandler) handleIndex(c *gin.Context) {
	lang := languageOf(c)
	state := h.board.Render(lang)
	data := indexData{
		Lang:      state.Lang,
		Languages: h.tr.Languages(),
		Title:     h.tr.T(state.Lang, "ui.title", nil),
		Start:     h.tr.T(state.Lang, "ui.start", nil),
		Continue:  h.tr.T(state.Lang, "ui.continue", nil),
		ModeLabel: h.tr.T(state.Lang, "ui.mode", nil),
		State:     state,
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.templates.ExecuteTemplate(c.Writer, "index.html", data); err != nil {
		log.Errorf("Failed to render index: %v", err)
	}
}

// handleSSE sendet bei jeder Änderung den lokalisierten Zustand
func (h *WebHandler) handleSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	lang := languageOf(c)
	client := make(sse.Client, 10)
	if !h.sseHub.Register(client) {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer h.sseHub.Unregister(client)

	// Aktueller Zustand sofort, danach nur Änderungen
	h.writeState(c, lang)
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-client:
			if !ok {
				return false
			}
			h.writeState(c, lang)
			return true
		}
	})
}

func (h *WebHandler) writeState(c *gin.Context, lang string) {
	payload, err := json.Marshal(h.board.Render(lang))
	if err != nil {
		log.Errorf("Failed to marshal state for SSE: %v", err)
		return
	}
	c.SSEvent(display.EventState, string(payload))
	c.Writer.Flush()
}

func languageOf(c *gin.Context) string {
	return middleware.Language(c)
}
