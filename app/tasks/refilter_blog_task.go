package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/database"
)

// RefilterBlogTask re-applies filters to every stored post of a blog.
type RefilterBlogTask struct {
	Task
	BlogID   int64
	Filters  []blog.ConfigFilter
	filterer *blog.Filterer
	postRepo database.PostRepository
}

func NewRefilterBlogTask(blogName string, blogID int64, filters []blog.ConfigFilter, filterer *blog.Filterer, postRepo database.PostRepository) *RefilterBlogTask {
	return &RefilterBlogTask{
		Task:     NewTask(TaskTypeRefilterBlog, blogName),
		BlogID:   blogID,
		Filters:  filters,
		filterer: filterer,
		postRepo: postRepo,
	}
}

func (t *RefilterBlogTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	posts, err := t.postRepo.GetPostsByBlog(t.BlogID)
	if err != nil {
		return fmt.Errorf("failed to get blog posts: %w", err)
	}

	updatedCount := 0
	errorCount := 0

	for _, p := range posts {
		isFiltered, reason := t.filterer.Run(p.Candidate(), t.Filters)
		if p.IsFiltered == isFiltered && p.FilterReason == reason {
			continue
		}

		if err := t.postRepo.UpdatePostFilterStatus(p.ID, isFiltered, reason); err != nil {
			slog.Error("Failed to update post filter status", "post_id", p.ID, "error", err)
			errorCount++
			continue
		}
		updatedCount++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"blog", t.BlogName,
		"duration", t.GetDuration(),
		"success", updatedCount,
		"errors", errorCount)

	return nil
}
