package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"attendance-kiosk/internal/core/models"
	"attendance-kiosk/internal/database"
	"attendance-kiosk/internal/display"
	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/wire"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Controller is the kiosk session as seen by the API.
type Controller interface {
	Start() (bool, error)
	Continue() error
	SetMode(next wire.Mode) error
	Snapshot() kiosk.State
}

// Journal lists recorded attendance.
type Journal interface {
	List(ctx context.Context, opts database.ListOptions) ([]models.Attendance, error)
	Stats(ctx context.Context) (models.Statistics, error)
}

// APIHandler behandelt API-Anfragen des Kiosks
type APIHandler struct {
	session   Controller
	board     *display.Board
	journal   Journal
	startedAt time.Time
}

// NewAPIHandler erstellt einen neuen API-Handler. journal may be nil when
// the attendance journal is disabled.
func NewAPIHandler(session Controller, board *display.Board, journal Journal) *APIHandler {
	return &APIHandler{
		session:   session,
		board:     board,
		journal:   journal,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Steuerung
	router.POST("/start", h.Start)
	router.POST("/continue", h.Continue)
	router.POST("/mode", h.SetMode)

	// Zustand
	router.GET("/state", h.GetState)
	router.GET("/status", h.GetStatus)

	// Anwesenheiten
	router.GET("/attendance", h.ListAttendance)
	router.GET("/attendance/stats", h.AttendanceStats)
}

// Start begins hand recognition; repeated calls report started=false.
func (h *APIHandler) Start(c *gin.Context) {
	started, err := h.session.Start()
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": started, "state": h.session.Snapshot()})
}

// Continue dismisses the not-recognised prompt.
func (h *APIHandler) Continue(c *gin.Context) {
	if err := h.session.Continue(); err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.session.Snapshot()})
}

type modeRequest struct {
	Mode string `json:"mode" form:"mode" binding:"required"`
}

// SetMode switches to any mode, including the dummy and error test modes.
func (h *APIHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}
	mode, err := wire.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.session.SetMode(mode); err != nil {
		h.sessionError(c, err)
		return
	}
	log.Infof("Mode set to %s via API", mode)
	c.JSON(http.StatusOK, gin.H{"state": h.session.Snapshot()})
}

// GetState returns the session state and the localised board.
func (h *APIHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session": h.session.Snapshot(),
		"board":   h.board.Render(languageOf(c)),
	})
}

// ListAttendance returns the journal, newest first.
// Query: limit (default 50), name, known=true, since (RFC3339).
func (h *APIHandler) ListAttendance(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attendance journal is disabled"})
		return
	}

	opts := database.ListOptions{Limit: 50, Name: c.Query("name"), KnownOnly: c.Query("known") == "true"}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		opts.Limit = limit
	}
	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		opts.Since = since
	}

	rows, err := h.journal.List(c.Request.Context(), opts)
	if err != nil {
		log.Errorf("Failed to list attendance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attendance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rows, "count": len(rows)})
}

// AttendanceStats summarises the journal.
func (h *APIHandler) AttendanceStats(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attendance journal is disabled"})
		return
	}
	st, err := h.journal.Stats(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to compute attendance stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *APIHandler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, kiosk.ErrNotAwaitingContinue):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, kiosk.ErrDisconnected), errors.Is(err, kiosk.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, wire.ErrUnknownMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Errorf("Session request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
