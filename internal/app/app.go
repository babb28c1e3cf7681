// Package app wires the server together: configuration, database,
// module registry and HTTP routes.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/config"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/database"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/middleware"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/registry"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	conn   *database.Conn
	reg    *registry.Registry
	logger *zap.Logger
}

// New initializes the application: config → DB → registry → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	conn, err := database.Connect(cfg.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	modules, err := config.LoadModules(cfg.ModulesPath)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	reg, err := registry.New(conn, modules, cfg.ModulesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDKey},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDKey},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	app := &App{cfg: cfg, router: router, conn: conn, reg: reg, logger: logger}
	app.registerRoutes()
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Registry exposes the module registry.
func (a *App) Registry() *registry.Registry { return a.reg }

// Shutdown releases the database connection.
func (a *App) Shutdown() {
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
}
