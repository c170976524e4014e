package apiserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agencydesk/mdconsole/pkg/apiserver/handlers"
	"github.com/agencydesk/mdconsole/pkg/apiserver/middleware"
	"github.com/agencydesk/mdconsole/pkg/auth"
	"github.com/agencydesk/mdconsole/pkg/config"
	"github.com/agencydesk/mdconsole/pkg/console"
)

type Server struct {
	router  *gin.Engine
	manager *console.Manager
	tokens  *auth.TokenManager
	cfg     *config.Config
	logger  *zap.Logger
}

func NewServer(manager *console.Manager, tokens *auth.TokenManager, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		manager: manager,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

// StartSweeper cancels expired confirmations in the background until ctx is done.
func (s *Server) StartSweeper(ctx context.Context) {
	go s.manager.RunSweeper(ctx, s.cfg.Cascade.SweepInterval)
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.CORS(s.cfg.Server.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.tokens))

		domainHandler := handlers.NewDomainHandler(s.manager, s.logger)
		api.GET("/domains", domainHandler.ListDomains)
		api.GET("/domains/:domain", domainHandler.GetDomain)
		api.POST("/domains/:domain/load", domainHandler.Load)
		api.GET("/domains/:domain/:type", domainHandler.List)
		api.POST("/domains/:domain/:type", domainHandler.Create)
		api.POST("/domains/:domain/:type/reorder", domainHandler.Reorder)
		api.GET("/domains/:domain/:type/:id/dependents", domainHandler.Dependents)
		api.POST("/domains/:domain/:type/:id/toggle", domainHandler.Toggle)
		api.PUT("/domains/:domain/:type/:id", domainHandler.Update)
		api.DELETE("/domains/:domain/:type/:id", domainHandler.Delete)
		api.POST("/confirmations/:ticket", domainHandler.Confirm)
		api.DELETE("/confirmations/:ticket", domainHandler.Cancel)

		cascadeHandler := handlers.NewCascadeHandler(s.manager, s.logger)
		api.GET("/cascades", cascadeHandler.List)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
