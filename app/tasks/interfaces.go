package tasks

import (
	"context"

	"github.com/lysyi3m/blog-comb/app/collector"
	"github.com/lysyi3m/blog-comb/app/fetch"
)

// TaskSchedulerInterface is what the API and the main application use to
// queue background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// BlogCollector creates and refreshes blogs.
type BlogCollector interface {
	Collect(ctx context.Context, req collector.Request) (int64, error)
	Update(ctx context.Context, blogID int64) (int, error)
}

type PageFetcher interface {
	Get(ctx context.Context, url string) (*fetch.Response, error)
}

var (
	_ BlogCollector = (*collector.Collector)(nil)
	_ PageFetcher   = (*fetch.Client)(nil)
)
