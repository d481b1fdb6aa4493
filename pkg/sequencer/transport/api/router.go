package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Permission module and actions checked on the sequencing routes.
const (
	PermissionModule = "production"

	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// NewRouter registers the sequencing routes. metricsHandler may be nil.
func NewRouter(h *Handler, metricsHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LogMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	view := RequirePermissions(ActionView, PermissionModule)
	create := RequirePermissions(ActionCreate, PermissionModule)
	update := RequirePermissions(ActionUpdate, PermissionModule)
	remove := RequirePermissions(ActionDelete, PermissionModule)

	v1 := router.Group("/api/v1")

	jobs := v1.Group("/jobs/:jobId")
	jobs.GET("/operations", view, h.ListOperations)
	jobs.POST("/operations/new", create, h.InsertOperation)
	jobs.POST("/operations/delete", remove, h.DeleteOperation)
	jobs.POST("/operations/order", update, h.ReorderOperations)
	jobs.POST("/recalculate", update, h.RecalculateJob)
	jobs.POST("/export", view, h.ExportSchedule)

	ops := v1.Group("/operations")
	ops.POST("/:operationId/update", update, h.UpdateOperation)
	ops.POST("/:operationId/steps/new", create, h.InsertStep)
	ops.POST("/:operationId/steps/order", update, h.ReorderSteps)
	ops.POST("/:operationId/parameters/new", create, h.InsertParameter)
	ops.POST("/parameters/delete/:id", remove, h.DeleteParameter)
	ops.POST("/:operationId/tools/new", create, h.InsertTool)
	ops.POST("/tools/delete/:id", remove, h.DeleteTool)

	v1.POST("/schedule/operations/update", update, h.MoveOnScheduleBoard)
	return router
}
