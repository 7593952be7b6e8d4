package events

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Server mirrors a Writer's event stream over HTTP: a liveness probe and a
// tail of recent events. It never accepts writes of its own; everything it
// serves comes from the Writer its owner already feeds.
type Server struct {
	w      *Writer
	router *gin.Engine
}

// NewServer builds the gin router for w. The handlers are *Server methods
// using the gin.Context/gin.H response shape.
func NewServer(w *Writer) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{w: w, router: router}
	router.GET("/healthz", s.handleHealthz)
	router.GET("/events/tail", s.handleEventsTail)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleEventsTail returns the most recently retained events, newest last.
// ?n= caps the count returned (default: everything retained).
func (s *Server) handleEventsTail(c *gin.Context) {
	evs := s.w.Tail()

	if raw := c.Query("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a non-negative integer"})
			return
		}
		if n < len(evs) {
			evs = evs[len(evs)-n:]
		}
	}

	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// ListenAndServe starts the tail server, blocking until it errors or the
// caller shuts it down via http.Server.Shutdown on a wrapping server.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.router)
}
