package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/patch-stream/internal/logging"
	"github.com/annel0/patch-stream/internal/middleware"
	"github.com/annel0/patch-stream/internal/patch"
	"github.com/annel0/patch-stream/internal/vec"
)

// RestServer — презентационный слой стриминга: внешние инструменты управляют
// опорной точкой, локами и остановкой только через эти маршруты и читают
// busy/loaded состояние. В ядро стриминга он не лезет — только через Host.
type RestServer struct {
	router *gin.Engine
	host   *patch.Host
	port   string
	srv    *http.Server
}

// Config содержит конфигурацию REST сервера
type Config struct {
	Port string      // Порт вида ":8088"
	Host *patch.Host // Хост стриминга патчей
}

// positionRequest — мировая позиция в теле запроса
type positionRequest struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
	// Wait — дождаться завершения операции (для lock и stop)
	Wait bool `json:"wait,omitempty"`
}

// NewRestServer создаёт REST сервер управления стримингом
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("patch_stream_api"))

	promMw := middleware.NewPrometheusMiddleware("patch_stream_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router: router,
		host:   config.Host,
		port:   config.Port,
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты
func (s *RestServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/busy", s.handleBusy)
		apiGroup.POST("/observer", s.handleObserver)
		apiGroup.POST("/patches/lock", s.handleLock)
		apiGroup.POST("/patches/unlock", s.handleUnlock)
		apiGroup.POST("/stream/stop", s.handleStop)
	}
}

// Start запускает HTTP-сервер в отдельной горутине
func (s *RestServer) Start() {
	s.srv = &http.Server{
		Addr:    s.port,
		Handler: s.router,
	}

	go func() {
		logging.Info("REST API запущен на %s", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка REST сервера: %v", err)
		}
	}()
}

// Stop останавливает HTTP-сервер
func (s *RestServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *RestServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.host.Status())
}

func (s *RestServer) handleBusy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"busy": s.host.IsBusy()})
}

// handleObserver задаёт опорную точку для проходов видимости
func (s *RestServer) handleObserver(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.host.SetReference(vec.Vec2Float{X: req.X, Y: req.Z})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleLock закрепляет и загружает патч по мировой позиции
func (s *RestServer) handleLock(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resultCh, err := s.host.LoadAndLock(vec.Vec2Float{X: req.X, Y: req.Z})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !req.Wait {
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"patch": res.Patch, "error": res.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"patch": res.Patch, "loaded": true})
	case <-time.After(10 * time.Second):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "таймаут ожидания загрузки"})
	}
}

// handleUnlock снимает закрепление по мировой позиции
func (s *RestServer) handleUnlock(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.host.Unlock(vec.Vec2Float{X: req.X, Y: req.Z})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleStop запрашивает кооперативную остановку стриминга
func (s *RestServer) handleStop(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	done := s.host.StopAndUnload()
	if !req.Wait {
		c.JSON(http.StatusAccepted, gin.H{"stopping": true})
		return
	}

	select {
	case <-done:
		c.JSON(http.StatusOK, gin.H{"stopped": true})
	case <-time.After(30 * time.Second):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": fmt.Sprintf("слив не завершился за %s", 30*time.Second)})
	}
}
