// Package api serves the local kiosk page and its JSON API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"attendance-kiosk/config"
	"attendance-kiosk/internal/api/handlers"
	"attendance-kiosk/internal/api/middleware"
	"attendance-kiosk/internal/i18n"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const sessionName = "kiosk"

// NewRouter wires middleware and routes.
func NewRouter(cfg config.ServerConfig, tr *i18n.Translator, web *handlers.WebHandler, api *handlers.APIHandler) *gin.Engine {
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger())

	if len(cfg.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CORSOrigins
		router.Use(cors.New(corsCfg))
	}

	store := cookie.NewStore([]byte(cfg.SessionKey))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400 * 30, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	router.Use(sessions.Sessions(sessionName, store))
	router.Use(middleware.I18n(tr))

	web.RegisterRoutes(router)
	api.RegisterRoutes(router.Group("/api"))
	return router
}

// Server runs the HTTP listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds the configured address.
func Listen(cfg config.ServerConfig, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	return &Server{
		srv: &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		ln:  ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	log.Infof("Kiosk UI listening on http://%s", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones. Event streams
// end when the SSE hub stops.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
