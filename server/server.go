// Package server is the HTTP front door: a gin router exposing the chat
// endpoint and the out-of-band permission resolution, plus background
// maintenance jobs.
package server

import (
	"context"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	hearth "github.com/Desarso/hearth"
	"github.com/Desarso/hearth/hass"
	"github.com/Desarso/hearth/stores"
)

// Processor is the slice of the orchestrator the server needs.
type Processor interface {
	Process(ctx context.Context, req hearth.Request) hearth.Reply
	ResolvePermission(ctx context.Context, token string, approve bool) string
}

type chatRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	UserName string `json:"user_name"`
	Text     string `json:"text"`
}

type permissionRequest struct {
	Approve bool `json:"approve"`
}

// Server wires the HTTP handlers to a Processor. Requests arriving before
// SetReady(true) get a 503 so callers can tell startup from failure.
type Server struct {
	proc    Processor
	allowed map[string]bool
	ready   atomic.Bool

	store stores.Store
	home  *hass.Client
	cron  *cron.Cron
}

// New builds the server. allowedUserIDs empty means every caller is
// accepted. store and home are optional and only drive maintenance jobs.
func New(proc Processor, allowedUserIDs []string, store stores.Store, home *hass.Client) *Server {
	var allowed map[string]bool
	if len(allowedUserIDs) > 0 {
		allowed = make(map[string]bool, len(allowedUserIDs))
		for _, id := range allowedUserIDs {
			allowed[id] = true
		}
	}
	return &Server{proc: proc, allowed: allowed, store: store, home: home}
}

// SetReady flips the front door open once the orchestrator is in service.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()

	router.GET("/health", s.handleHealth)
	router.POST("/chat", s.handleChat)
	router.POST("/permission/:token", s.handlePermission)

	return router
}

// StartMaintenance launches the background jobs: an expired pending
// permission sweep every minute, and a Home Assistant availability ping
// every five when a client is configured.
func (s *Server) StartMaintenance() {
	s.cron = cron.New()

	if s.store != nil {
		s.cron.AddFunc("@every 1m", func() {
			n, err := s.store.SweepExpired(time.Now())
			if err != nil {
				log.Printf("Pending sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("Swept %d expired permission requests", n)
			}
		})
	}

	if s.home != nil {
		s.cron.AddFunc("@every 5m", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.home.Ping(ctx); err != nil {
				log.Printf("Home Assistant unreachable: %v", err)
			}
		})
	}

	s.cron.Start()
}

// Close stops the maintenance jobs.
func (s *Server) Close() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Run starts maintenance and serves on addr, blocking.
func (s *Server) Run(addr string) error {
	s.StartMaintenance()
	defer s.Close()
	return s.Router().Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": s.ready.Load()})
}

func (s *Server) handleChat(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Brain initializing..."})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.allowed != nil && !s.allowed[req.UserID] {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied."})
		return
	}

	reply := s.proc.Process(c.Request.Context(), hearth.Request{
		UserID:   req.UserID,
		UserName: req.UserName,
		Text:     req.Text,
	})

	if reply.Pending != nil {
		c.JSON(http.StatusOK, gin.H{
			"permission_request": gin.H{
				"token": reply.Pending.Token,
				"query": reply.Pending.Query,
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply.Text})
}

func (s *Server) handlePermission(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Brain initializing..."})
		return
	}

	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response := s.proc.ResolvePermission(c.Request.Context(), c.Param("token"), req.Approve)
	c.JSON(http.StatusOK, gin.H{"response": response})
}
