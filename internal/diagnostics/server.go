// Package diagnostics exposes the browsing engine's tab control surface
// and live event streams over HTTP/WebSocket for a UI or developer
// console to consume (spec §6 "UI collaborator").
package diagnostics

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geeknik/citadel-browser/internal/logging"
	"github.com/geeknik/citadel-browser/internal/tabmanager"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the diagnostics HTTP/WebSocket surface over a tabmanager.Manager.
type Server struct {
	engine  *gin.Engine
	tabs    *tabmanager.Manager
	log     *logging.Logger
}

// CORSConfig mirrors the parent corpus's CORS configuration shape.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig returns a permissive default suitable for local
// development; production deployments should narrow AllowOrigins.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowOrigins: []string{"*"}, MaxAge: 12 * time.Hour}
}

// NewServer builds the gin engine with security headers, CORS, metrics,
// and tab-control routes wired in.
func NewServer(tabs *tabmanager.Manager, corsCfg CORSConfig, log *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), SecurityHeaders(), cors.New(cors.Config{
		AllowOrigins: corsCfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       corsCfg.MaxAge,
	}))

	s := &Server{engine: engine, tabs: tabs, log: log}
	s.routes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tabs := s.engine.Group("/tabs")
	tabs.POST("", s.handleOpen)
	tabs.GET("/:id", s.handleGet)
	tabs.POST("/:id/navigate", s.handleNavigate)
	tabs.DELETE("/:id", s.handleClose)
	tabs.GET("/:id/events", s.handleEvents)
}

type openRequest struct {
	URL     string `json:"url"`
	Private bool   `json:"private"`
}

func (s *Server) writeJSON(c *gin.Context, status int, v interface{}) {
	body, err := sonic.Marshal(v)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

func (s *Server) handleOpen(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeJSON(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := tabmanager.Normal
	if req.Private {
		kind = tabmanager.Private
	}
	id, err := s.tabs.Open(kind, "", req.URL)
	if err != nil {
		s.writeJSON(c, http.StatusOK, gin.H{"id": id.String(), "error": err.Error()})
		return
	}
	s.writeJSON(c, http.StatusOK, gin.H{"id": id.String()})
}

func (s *Server) parseID(c *gin.Context) (tabmanager.TabID, bool) {
	id, err := tabmanager.ParseTabID(c.Param("id"))
	if err != nil {
		s.writeJSON(c, http.StatusBadRequest, gin.H{"error": "invalid tab id"})
		return id, false
	}
	return id, true
}

func (s *Server) handleGet(c *gin.Context) {
	id, ok := s.parseID(c)
	if !ok {
		return
	}
	tab, ok := s.tabs.Tab(id)
	if !ok {
		s.writeJSON(c, http.StatusNotFound, gin.H{"error": "tab not found"})
		return
	}
	s.writeJSON(c, http.StatusOK, gin.H{
		"id":    id.String(),
		"state": tab.State().String(),
		"url":   tab.URL(),
		"title": tab.Title(),
	})
}

type navigateRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleNavigate(c *gin.Context) {
	id, ok := s.parseID(c)
	if !ok {
		return
	}
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeJSON(c, http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.tabs.Navigate(id, req.URL); err != nil {
		s.writeJSON(c, http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	s.writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleClose(c *gin.Context) {
	id, ok := s.parseID(c)
	if !ok {
		return
	}
	if err := s.tabs.Close(id); err != nil {
		s.writeJSON(c, http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

// handleEvents upgrades to a WebSocket and relays every Event published
// on the tab's stream until the client disconnects or the tab closes.
func (s *Server) handleEvents(c *gin.Context) {
	id, ok := s.parseID(c)
	if !ok {
		return
	}
	stream, err := s.tabs.Subscribe(id)
	if err != nil {
		s.writeJSON(c, http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if s.log != nil {
			s.log.Sugar().Warnw("websocket upgrade failed", "error", err)
		}
		return
	}
	defer conn.Close()

	for ev := range stream {
		payload, err := sonic.Marshal(eventPayload(ev))
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
		if ev.Kind == tabmanager.EventStateChanged && ev.State == tabmanager.Closed {
			return
		}
	}
}

func eventPayload(ev tabmanager.Event) map[string]interface{} {
	out := map[string]interface{}{"kind": ev.Kind}
	switch ev.Kind {
	case tabmanager.EventStateChanged:
		out["state"] = ev.State.String()
	case tabmanager.EventTitleChanged:
		out["title"] = ev.Title
	case tabmanager.EventProgressChanged:
		out["progress"] = ev.Progress
	case tabmanager.EventRenderTreeUpdated:
		out["renderTree"] = ev.RenderTree
	case tabmanager.EventViolationRecorded:
		out["violation"] = ev.Violation
	}
	return out
}
