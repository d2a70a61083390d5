package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stagebook/internal/middleware"
	"stagebook/internal/modules/booking"
	"stagebook/internal/notification"
	"stagebook/internal/pkg/response"
)

func (a *App) newRouter() *gin.Engine {
	if a.cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}

	origins := a.cfg.HTTP.CORSOrigins
	if len(origins) == 0 && !a.cfg.IsProdLike() {
		origins = middleware.DefaultOrigins
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(origins))

	r.GET("/health", a.health)

	ws := notification.NewWSHandler(a.hub, a.Tokens, origins)
	r.GET("/ws/bookings", ws.HandleWebSocket)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(a.Tokens))
	{
		booking.NewHandler(a.Bookings).RegisterRoutes(v1)

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminOnly())
		admin.POST("/sweep", a.runSweep)
	}

	return r
}

func (a *App) health(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "observers": a.hub.GetOnlineCount()})
}

// runSweep runs one completion pass and one refund pass on demand.
func (a *App) runSweep(c *gin.Context) {
	ctx := c.Request.Context()

	completion, err := a.Bookings.CompleteDue(ctx, a.cfg.Scheduler.BatchSize)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Completion sweep failed")
		return
	}
	refunds, err := a.Refunds.ProcessRefunds(ctx)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Refund sweep failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"completion": completion, "refunds": refunds})
}
