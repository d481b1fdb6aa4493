package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

// Headers set by the authenticating gateway.
const (
	HeaderCompanyID   = "X-Company-Id"
	HeaderUserID      = "X-User-Id"
	HeaderPermissions = "X-Permissions"
)

const actorKey = "sequencer.actor"

// LogMiddleware logs every request through the application logger.
func LogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		var stdErr error
		if last := c.Errors.Last(); last != nil {
			stdErr = last.Err
		}
		logger.Zap().Info("sequencer api request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("company", c.GetHeader(HeaderCompanyID)),
			zap.Error(stdErr),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// RequirePermissions admits requests whose gateway headers carry a company, a user
// and the permission "<action>:<module>". Other requests are rejected with 403.
func RequirePermissions(action, module string) gin.HandlerFunc {
	required := action + ":" + module
	return func(c *gin.Context) {
		actor := model.Actor{
			CompanyID: strings.TrimSpace(c.GetHeader(HeaderCompanyID)),
			UserID:    strings.TrimSpace(c.GetHeader(HeaderUserID)),
		}
		if actor.CompanyID == "" || actor.UserID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "missing company or user"})
			return
		}
		if !hasPermission(c.GetHeader(HeaderPermissions), required) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "permission " + required + " required"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func hasPermission(header, required string) bool {
	for _, p := range strings.Split(header, ",") {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

// actorFrom returns the actor stored by RequirePermissions.
func actorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{}
}
