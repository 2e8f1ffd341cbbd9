package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"capture-tool/src/ingest"
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"

	"github.com/gin-gonic/gin"
)

var (
	ErrControlExists     = errors.New("server: control already exists")
	ErrControlNotFound   = errors.New("server: control not found")
	ErrContainerExists   = errors.New("server: container already exists")
	ErrContainerNotFound = errors.New("server: container not found")
	ErrInstanceDestroyed = errors.New("server: chart instance destroyed")
)

var (
	_ interfaces.ISurface    = (*HTTPServer)(nil)
	_ interfaces.IRenderSink = (*HTTPServer)(nil)
)

// ChartStates is implemented by the chart controller.
type ChartStates interface {
	States() []models.MChartState
}

// DeliveryStats is implemented by the ingestion pipeline.
type DeliveryStats interface {
	Stats() []ingest.SubscriptionStats
}

// -----------------------------------------------------------------------------
// HTTPServer
// -----------------------------------------------------------------------------

// HTTPServer is the browser-facing surface. Controls, containers and charts
// live in the connected pages; every change is pushed over the websocket
// and replayed to pages that connect later.
type HTTPServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	// connected pages, owned by the hub loop
	pages      map[*page]struct{}
	broadcast  chan *models.MWireMessage
	register   chan *page
	unregister chan *page
	done       chan struct{}
	stopOnce   sync.Once
	conns      atomic.Int64

	// replay state, written by the hub loop
	scene      *scene
	stateMutex sync.RWMutex

	// surface bookkeeping, written by callers
	mu         sync.Mutex
	controls   map[string]func()
	containers map[string]interfaces.ContainerHandle
	charts     map[string]*RemoteChart

	chartView ChartStates
	delivery  DeliveryStats
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewHTTPServer(cfg *models.MConfig, log *logger.Logger) *HTTPServer {
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &HTTPServer{
		Config:     cfg,
		Logger:     log,
		engine:     gin.New(),
		pages:      make(map[*page]struct{}),
		broadcast:  make(chan *models.MWireMessage, 256),
		register:   make(chan *page),
		unregister: make(chan *page),
		done:       make(chan struct{}),
		scene:      newScene(),
		controls:   make(map[string]func()),
		containers: make(map[string]interfaces.ContainerHandle),
		charts:     make(map[string]*RemoteChart),
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	go s.handleWebsockets()
	return s
}

// Attach wires the status views served under /api/charts. Either may be nil.
func (s *HTTPServer) Attach(charts ChartStates, delivery DeliveryStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chartView = charts
	s.delivery = delivery
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *HTTPServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/charts", s.getCharts)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.POST("/api/controls/:id/activate", s.postActivate)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the routes, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.mu.Lock()
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	srv := s.http
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the listener down and disconnects every page.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *HTTPServer) getHealth(c *gin.Context) {
	s.mu.Lock()
	controls := len(s.controls)
	charts := len(s.charts)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.conns.Load(),
		"controls":    controls,
		"charts":      charts,
	})
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) getCharts(c *gin.Context) {
	s.mu.Lock()
	charts, delivery := s.chartView, s.delivery
	s.mu.Unlock()

	states := []models.MChartState{}
	if charts != nil {
		states = charts.States()
	}
	stats := []ingest.SubscriptionStats{}
	if delivery != nil {
		stats = delivery.Stats()
	}

	c.JSON(http.StatusOK, gin.H{
		"charts":        states,
		"subscriptions": stats,
	})
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    s.Config.Name,
		"parent":  s.Config.Render.ParentContainer,
		"chart":   s.Config.Chart,
		"session": s.Config.Session,
	})
}

// -----------------------------------------------------------------------------

func (s *HTTPServer) postActivate(c *gin.Context) {
	id := c.Param("id")
	if err := s.Activate(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"activated": id})
}
