package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/blog-comb/app/collector"
	"github.com/lysyi3m/blog-comb/app/database"
)

// CollectBlogTask collects a blog the first time it is seen and updates it
// afterwards.
type CollectBlogTask struct {
	Task
	Request   collector.Request
	collector BlogCollector
	blogRepo  database.BlogRepository
}

func NewCollectBlogTask(blogName string, req collector.Request, blogCollector BlogCollector, blogRepo database.BlogRepository) *CollectBlogTask {
	return &CollectBlogTask{
		Task:      NewTask(TaskTypeCollectBlog, blogName),
		Request:   req,
		collector: blogCollector,
		blogRepo:  blogRepo,
	}
}

func (t *CollectBlogTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	existing, err := t.blogRepo.GetBlogByURL(t.Request.URL)
	if err != nil {
		return fmt.Errorf("failed to look up blog: %w", err)
	}

	if existing != nil {
		added, err := t.collector.Update(ctx, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to update blog: %w", err)
		}

		slog.Info("Task completed",
			"type", t.GetType(),
			"blog", t.BlogName,
			"duration", t.GetDuration(),
			"new_posts", added)
		return nil
	}

	blogID, err := t.collector.Collect(ctx, t.Request)
	if errors.Is(err, collector.ErrNoPosts) {
		slog.Warn("Task found no posts", "type", t.GetType(), "blog", t.BlogName, "url", t.Request.URL)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to collect blog: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"blog", t.BlogName,
		"blog_id", blogID,
		"duration", t.GetDuration())

	return nil
}
