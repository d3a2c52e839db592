// 包 httpapi 为抓取、重算、排名查询与清单导出提供 HTTP 接口（gin）。
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"go-thread-scout/internal/crawl"
	"go-thread-scout/internal/export"
	"go-thread-scout/internal/logx"
	"go-thread-scout/internal/model"
	"go-thread-scout/internal/serp"
	"go-thread-scout/internal/store"
)

var log = logx.For("http")

type Crawler interface {
	Start(ctx context.Context, communities []string) (model.CrawlRun, error)
	IsRunInProgress() bool
	IsRunning() bool
}

type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

type SerpChecker interface {
	CheckPosition(ctx context.Context, threadID, query string) (model.SerpCheck, error)
}

type Store interface {
	export.Source
	ListCrawlRuns(ctx context.Context, limit int) ([]model.CrawlRun, error)
	GetOpportunityByThreadID(ctx context.Context, threadID string) (model.Opportunity, error)
	UpdateOpportunity(ctx context.Context, o model.Opportunity) error
}

type Handler struct {
	crawler Crawler
	scoring Refresher
	serp    SerpChecker
	store   Store
}

func NewHandler(c Crawler, r Refresher, s SerpChecker, st Store) *Handler {
	return &Handler{crawler: c, scoring: r, serp: s, store: st}
}

type crawlRequest struct {
	Communities []string `json:"communities"`
}

// POST /api/crawl
func (h *Handler) StartCrawl(c *gin.Context) {
	var req crawlRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	run, err := h.crawler.Start(c.Request.Context(), req.Communities)
	if errors.Is(err, crawl.ErrRunInProgress) {
		RespondError(c, http.StatusConflict, "crawl_in_progress", err)
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "crawl_start_failed", err)
		return
	}
	if run.Status == model.CrawlFailed {
		RespondError(c, http.StatusInternalServerError, "crawl_start_failed", errors.New(run.Error))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /api/crawl/status
func (h *Handler) CrawlStatus(c *gin.Context) {
	RespondOK(c, gin.H{
		"in_progress": h.crawler.IsRunInProgress(),
		"scheduled":   h.crawler.IsRunning(),
	})
}

// GET /api/crawl/runs
func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := h.store.ListCrawlRuns(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_runs_failed", err)
		return
	}
	RespondOK(c, gin.H{"runs": runs})
}

// POST /api/opportunities/refresh
func (h *Handler) Refresh(c *gin.Context) {
	n, err := h.scoring.Refresh(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "refresh_failed", err)
		return
	}
	RespondOK(c, gin.H{"changed": n})
}

// GET /api/opportunities?action=pending&limit=50
func (h *Handler) ListOpportunities(c *gin.Context) {
	action := model.Action(c.Query("action"))
	if action != "" && !validAction(action) {
		RespondError(c, http.StatusBadRequest, "invalid_action", errors.New("action must be pending, done or rejected"))
		return
	}
	out, err := export.Worklist(c.Request.Context(), h.store, action, queryInt(c, "limit", 50))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_opportunities_failed", err)
		return
	}
	RespondOK(c, out)
}

type actionRequest struct {
	Action model.Action `json:"action" binding:"required"`
}

// POST /api/threads/:id/action
func (h *Handler) SetAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if !validAction(req.Action) {
		RespondError(c, http.StatusBadRequest, "invalid_action", errors.New("action must be pending, done or rejected"))
		return
	}
	ctx := c.Request.Context()
	o, err := h.store.GetOpportunityByThreadID(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "opportunity_not_found", err)
		return
	}
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "opportunity_lookup_failed", err)
		return
	}
	o.Action = req.Action
	o.UpdatedAt = time.Now()
	if err := h.store.UpdateOpportunity(ctx, o); err != nil {
		RespondError(c, http.StatusInternalServerError, "opportunity_update_failed", err)
		return
	}
	RespondOK(c, gin.H{"opportunity": o})
}

type serpRequest struct {
	Query string `json:"query"`
}

// POST /api/threads/:id/serp
func (h *Handler) CheckSerp(c *gin.Context) {
	var req serpRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	res, err := h.serp.CheckPosition(c.Request.Context(), c.Param("id"), req.Query)
	switch {
	case errors.Is(err, store.ErrNotFound):
		RespondError(c, http.StatusNotFound, "thread_not_found", err)
	case errors.Is(err, serp.ErrQuota):
		RespondError(c, http.StatusTooManyRequests, "serp_quota", err)
	case errors.Is(err, serp.ErrNotConfigured):
		RespondError(c, http.StatusServiceUnavailable, "serp_not_configured", err)
	case err != nil:
		log.Warnf("排名查询失败：thread=%s 错误=%v", c.Param("id"), err)
		RespondError(c, http.StatusBadGateway, "serp_failed", err)
	default:
		RespondOK(c, gin.H{"check": res})
	}
}

// GET /api/feed
func (h *Handler) Feed(c *gin.Context) {
	out, err := export.Worklist(c.Request.Context(), h.store, model.ActionPending, queryInt(c, "limit", 50))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "feed_failed", err)
		return
	}
	s, err := export.Feed(out.Items, time.Now())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "feed_failed", err)
		return
	}
	c.Data(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(s))
}

// GET /healthcheck
func HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

func validAction(a model.Action) bool {
	switch a {
	case model.ActionPending, model.ActionDone, model.ActionRejected:
		return true
	}
	return false
}

func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
