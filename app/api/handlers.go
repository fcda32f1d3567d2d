package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/collector"
	"github.com/lysyi3m/blog-comb/app/database"
	"github.com/lysyi3m/blog-comb/app/tasks"
)

const (
	defaultFeedLimit = 100
	defaultPageSize  = 50
	maxPageSize      = 500
)

func NewHandler(configCache *blog.ConfigCache, blogRepo database.BlogRepository,
	postRepo database.PostRepository, filterer *blog.Filterer,
	blogCollector tasks.BlogCollector, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		blogRepo:    blogRepo,
		postRepo:    postRepo,
		generator:   blog.NewGenerator(),
		configCache: configCache,
		filterer:    filterer,
		collector:   blogCollector,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetBlogFeed(c *gin.Context) {
	b, ok := h.loadBlog(c, false)
	if !ok {
		return
	}

	limit := defaultFeedLimit
	if blogConfig, found := h.configCache.GetConfigByURL(b.URL); found && blogConfig.Settings.MaxPosts > 0 {
		limit = blogConfig.Settings.MaxPosts
	}

	posts, err := h.postRepo.GetVisiblePosts(b.ID, limit, 0)
	if err != nil {
		slog.Error("Database error", "operation", "get_posts", "blog_id", b.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*b, posts)
	if err != nil {
		slog.Error("RSS generation error", "blog_id", b.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(posts)))
	c.Header("X-Blog-Name", b.Name)
	c.Header("X-Last-Updated", b.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if blogCount, err := h.blogRepo.GetBlogCount(); err == nil {
		health["blogs"] = blogCount
	} else {
		health["status"] = "degraded"
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	blogCount, err := h.blogRepo.GetBlogCount()
	if err != nil {
		slog.Error("Database error", "operation", "get_blog_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	postCount, err := h.postRepo.GetTotalPostCount()
	if err != nil {
		slog.Error("Database error", "operation", "get_post_count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blogs":                  blogCount,
		"posts":                  postCount,
		"loaded_configurations":  h.configCache.GetConfigCount(),
		"enabled_configurations": len(h.configCache.GetEnabledConfigs()),
	})
}

func (h *Handler) APIListBlogs(c *gin.Context) {
	blogs, err := h.blogRepo.ListBlogs()
	if err != nil {
		slog.Error("Database error", "operation", "list_blogs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]map[string]interface{}, 0, len(blogs))
	for _, b := range blogs {
		info := map[string]interface{}{
			"id":                b.ID,
			"name":              b.Name,
			"url":               b.URL,
			"feed_url":          b.FeedURL,
			"collection_method": b.CollectionMethod,
			"last_collected_at": b.LastCollectedAt,
		}

		if stats, err := h.postRepo.GetPostStats(b.ID); err == nil {
			info["post_count"] = stats.Total
		}

		_, configured := h.configCache.GetConfigByURL(b.URL)
		info["configured"] = configured

		result = append(result, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"blogs": result,
		"total": len(result),
	})
}

func (h *Handler) APICollectBlog(c *gin.Context) {
	var req CollectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	collectReq := collector.Request{
		URL:        req.URL,
		Method:     req.Method,
		AuthorHint: req.Author,
		NameHint:   req.Name,
	}

	name := req.Name
	if name == "" {
		name = collector.BlogNameFromURL(req.URL)
	}

	task := tasks.NewCollectBlogTask(name, collectReq, h.collector, h.blogRepo)
	h.enqueue(c, task, gin.H{"url": req.URL, "name": name})
}

func (h *Handler) APIGetBlogDetails(c *gin.Context) {
	b, ok := h.loadBlog(c, true)
	if !ok {
		return
	}

	details := map[string]interface{}{
		"blog": b,
	}

	if stats, err := h.postRepo.GetPostStats(b.ID); err == nil {
		details["posts"] = stats
	}

	if blogConfig, found := h.configCache.GetConfigByURL(b.URL); found {
		details["config"] = map[string]interface{}{
			"name":             blogConfig.Name,
			"enabled":          blogConfig.Settings.Enabled,
			"max_posts":        blogConfig.Settings.MaxPosts,
			"refresh_interval": (time.Duration(blogConfig.Settings.RefreshInterval) * time.Second).String(),
			"timeout":          (time.Duration(blogConfig.Settings.Timeout) * time.Second).String(),
			"extract_content":  blogConfig.Settings.ExtractContent,
			"filters":          blogConfig.Filters,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListPosts(c *gin.Context) {
	b, ok := h.loadBlog(c, true)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", defaultPageSize)
	limit = min(max(limit, 1), maxPageSize)
	offset := max(queryInt(c, "offset", 0), 0)

	posts, err := h.postRepo.GetVisiblePosts(b.ID, limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "get_posts", "blog_id", b.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if posts == nil {
		posts = []database.Post{}
	}

	c.JSON(http.StatusOK, gin.H{
		"blog_id": b.ID,
		"posts":   posts,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handler) APIUpdateBlog(c *gin.Context) {
	b, ok := h.loadBlog(c, true)
	if !ok {
		return
	}

	req := collector.Request{
		URL:        b.URL,
		Method:     b.CollectionMethod,
		AuthorHint: b.AuthorName,
		NameHint:   b.Name,
	}

	task := tasks.NewCollectBlogTask(b.Name, req, h.collector, h.blogRepo)
	h.enqueue(c, task, gin.H{"id": b.ID, "name": b.Name, "url": b.URL})
}

func (h *Handler) APIRefilterBlog(c *gin.Context) {
	b, ok := h.loadBlog(c, true)
	if !ok {
		return
	}

	var filters []blog.ConfigFilter
	if blogConfig, found := h.configCache.GetConfigByURL(b.URL); found {
		reloaded, err := h.configCache.LoadConfig(blogConfig.Name)
		if err != nil {
			slog.Error("Error reloading configuration", "blog", blogConfig.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to reload configuration",
				"details": err.Error(),
			})
			return
		}
		filters = reloaded.Filters
	}

	task := tasks.NewRefilterBlogTask(b.Name, b.ID, filters, h.filterer, h.postRepo)
	h.enqueue(c, task, gin.H{"id": b.ID, "name": b.Name, "filters": len(filters)})
}

// loadBlog resolves the :id parameter. On failure it writes the response and
// returns false; asJSON selects a JSON error body over a bare status.
func (h *Handler) loadBlog(c *gin.Context, asJSON bool) (*database.Blog, bool) {
	fail := func(status int, message string) {
		if asJSON {
			c.JSON(status, gin.H{"error": message})
			return
		}
		c.Status(status)
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(http.StatusBadRequest, "Invalid blog ID")
		return nil, false
	}

	b, err := h.blogRepo.GetBlog(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_blog", "blog_id", id, "error", err)
		fail(http.StatusInternalServerError, "Database error")
		return nil, false
	}

	if b == nil {
		fail(http.StatusNotFound, "Blog not found")
		return nil, false
	}

	return b, true
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface, subject gin.H) {
	err := h.scheduler.EnqueueTask(task)
	if errors.Is(err, tasks.ErrTaskPending) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Task already queued for this blog",
			"blog":  subject,
		})
		return
	}
	if err != nil {
		slog.Error("Error enqueueing task", "type", string(task.GetType()), "blog", task.GetBlogName(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"blog":    subject,
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return value
}
