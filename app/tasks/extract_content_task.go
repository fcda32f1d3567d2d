package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/database"
)

// ExtractContentTask fetches full pages for posts that were stored without
// content, typically the ones found by crawling listing pages.
type ExtractContentTask struct {
	Task
	BlogURL   string
	Limit     int
	Timeout   time.Duration
	fetcher   PageFetcher
	extractor *content.Extractor
	blogRepo  database.BlogRepository
	postRepo  database.PostRepository
}

func NewExtractContentTask(blogName, blogURL string, limit int, timeout time.Duration, fetcher PageFetcher, extractor *content.Extractor, blogRepo database.BlogRepository, postRepo database.PostRepository) *ExtractContentTask {
	return &ExtractContentTask{
		Task:      NewTask(TaskTypeExtractContent, blogName),
		BlogURL:   blogURL,
		Limit:     limit,
		Timeout:   timeout,
		fetcher:   fetcher,
		extractor: extractor,
		blogRepo:  blogRepo,
		postRepo:  postRepo,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b, err := t.blogRepo.GetBlogByURL(t.BlogURL)
	if err != nil {
		return fmt.Errorf("failed to look up blog: %w", err)
	}
	if b == nil {
		slog.Debug("Blog not collected yet, skipping content extraction", "blog", t.BlogName)
		return nil
	}

	posts, err := t.postRepo.GetPostsForExtraction(b.ID, t.Limit)
	if err != nil {
		return fmt.Errorf("failed to get posts for content extraction: %w", err)
	}

	if len(posts) == 0 {
		slog.Debug("No posts need content extraction", "blog", t.BlogName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, p := range posts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := t.extractPost(ctx, p); err != nil {
			slog.Error("Failed to extract content for post", "post_id", p.ID, "url", p.URL, "error", err)
			errorCount++

			if err := t.postRepo.UpdateExtractionStatus(p.ID, database.ExtractionFailed, err.Error()); err != nil {
				slog.Error("Failed to update content extraction status", "post_id", p.ID, "error", err)
			}
			continue
		}
		successCount++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"blog", t.BlogName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractPost(ctx context.Context, p database.PostForExtraction) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	resp, err := t.fetcher.Get(ctx, p.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch post: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	article, err := t.extractor.Run(resp.Body, p.URL)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	stats := content.Analyze(article.Content)
	if stats.Text == "" {
		return fmt.Errorf("no readable content")
	}

	if err := t.postRepo.UpdateExtractedContent(p.ID, stats.Text, stats.WordCount, stats.ReadingTime); err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}

	slog.Debug("Content extracted successfully", "post_id", p.ID, "url", p.URL, "words", stats.WordCount)
	return nil
}
