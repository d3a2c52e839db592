package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter 注册全部路由；访问日志写入 logx。
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), accessLog())

	router.GET("/healthcheck", HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/crawl", h.StartCrawl)
		api.GET("/crawl/status", h.CrawlStatus)
		api.GET("/crawl/runs", h.ListRuns)

		api.POST("/opportunities/refresh", h.Refresh)
		api.GET("/opportunities", h.ListOpportunities)

		api.POST("/threads/:id/serp", h.CheckSerp)
		api.POST("/threads/:id/action", h.SetAction)

		api.GET("/feed", h.Feed)
	}
	return router
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
