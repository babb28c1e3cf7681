package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/admin"
)

func (a *App) registerRoutes() {
	a.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": 1})
	})

	api := a.router.Group("/api")

	adminSvc := admin.NewService(a.reg, a.logger)
	admin.NewHandler(adminSvc).RegisterRoutes(api)
}
