package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"organizerpro/backend/config"
	"organizerpro/backend/internal/api/handler"
	"organizerpro/backend/internal/api/middleware"
	"organizerpro/backend/pkg/jwt"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时批量接口不限流；metricsHandler 为 nil 时不暴露指标
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	limiter middleware.RateLimiter,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if metricsHandler != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(metricsHandler))
	}

	bulkLimit := middleware.RateLimit(limiter, cfg.Attendance.BulkRateLimit, cfg.Attendance.BulkRateWindow, logger)

	// ── API v1 ──
	// 子账号可以批量标记，过去日期在 Service 层逐日拒绝
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr), middleware.RoleAuth(jwt.RoleAdmin, jwt.RoleManager, jwt.RoleChild))
	{
		// 成员名册（只读）
		v1.GET("/members", h.Member.ListMembers)

		// 考勤模块
		attendance := v1.Group("/attendance")
		{
			attendance.PUT("/quick-mark", h.Attendance.QuickMark)
			attendance.POST("/bulk-mark", bulkLimit, h.Attendance.BulkMark)
			attendance.POST("/holidays/import", bulkLimit, h.Attendance.ImportHolidays)
			attendance.GET("/records", h.Attendance.ListRecords)
			attendance.DELETE("/records/:id", h.Attendance.DeleteRecord)
			attendance.GET("/stats", h.Attendance.Stats)
			attendance.GET("/summary", h.Attendance.Summary)
			attendance.GET("/daily-sheet", h.Attendance.DailySheet)
		}
	}

	return r
}
