package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumberhq/lumberview/internal/session"
)

// Server exposes the browser session over a local HTTP API, for headless
// runs and scripting against an ingested dataset.
type Server struct {
	addr      string
	sess      *session.Session
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, sess *session.Session) *Server {
	if addr == "" {
		addr = "127.0.0.1:3400"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		sess:   sess,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/logs", s.handleLogs)
	r.GET("/api/facets", s.handleFacets)
	r.POST("/api/facets/:facet/:name", s.handleToggle)
	r.POST("/api/search", s.handleSearch)
	r.GET("/api/size", s.handleSize)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	dataset, file := s.sess.Dataset()
	_, total, err := s.sess.Records(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read store"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).String(),
		"dataset": dataset,
		"file":    file,
		"total":   total,
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		s.sess.SetPage(n)
	}
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
			return
		}
		s.sess.SetPageSize(n)
		if raw := c.Query("page"); raw != "" {
			n, _ := strconv.Atoi(raw)
			s.sess.SetPage(n)
		}
	}

	records, total, err := s.sess.Records(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	page := s.sess.Page()
	c.JSON(http.StatusOK, gin.H{
		"page":    page.Num,
		"size":    page.Size,
		"total":   total,
		"records": records,
	})
}

func (s *Server) handleFacets(c *gin.Context) {
	facets := s.sess.Facets()
	c.JSON(http.StatusOK, gin.H{
		"level":    facets.Level,
		"category": facets.Category,
		"env":      facets.Env,
	})
}

func (s *Server) handleToggle(c *gin.Context) {
	if err := s.sess.Toggle(c.Param("facet"), c.Param("name")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.handleFacets(c)
}

func (s *Server) handleSearch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := s.sess.SetSearch(c.Request.Context(), string(body)); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	state := s.sess.SearchState()
	c.JSON(http.StatusOK, gin.H{
		"active":  state.Active(),
		"matches": len(state.UIDs()),
	})
}

func (s *Server) handleSize(c *gin.Context) {
	size, err := s.sess.Size(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, size)
}
