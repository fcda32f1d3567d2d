package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/collector"
	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrTaskPending = errors.New("task already queued")

const (
	taskTimeout   = 10 * time.Minute
	maxRetryDelay = 30 * time.Second
)

type Scheduler struct {
	configCache *blog.ConfigCache
	blogRepo    database.BlogRepository
	postRepo    database.PostRepository
	collector   BlogCollector
	fetcher     PageFetcher
	extractor   *content.Extractor
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu       sync.Mutex
	pending  map[string]struct{}
	attempts map[string]time.Time
}

func NewScheduler(configCache *blog.ConfigCache, blogRepo database.BlogRepository, postRepo database.PostRepository,
	blogCollector BlogCollector, fetcher PageFetcher, extractor *content.Extractor,
	interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		blogRepo:    blogRepo,
		postRepo:    postRepo,
		collector:   blogCollector,
		fetcher:     fetcher,
		extractor:   extractor,
		interval:    interval,
		workerCount: max(1, workerCount),
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		pending:     make(map[string]struct{}),
		attempts:    make(map[string]time.Time),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues a task unless a task of the same type for the same blog
// is already queued or running.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	key := taskKey(task)

	s.mu.Lock()
	if _, ok := s.pending[key]; ok {
		s.mu.Unlock()
		return ErrTaskPending
	}
	s.pending[key] = struct{}{}
	s.mu.Unlock()

	if err := s.push(task); err != nil {
		s.release(task)
		return err
	}
	return nil
}

func (s *Scheduler) push(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) release(task TaskInterface) {
	s.mu.Lock()
	delete(s.pending, taskKey(task))
	s.mu.Unlock()
}

func (s *Scheduler) enqueueTasks() {
	blogConfigs := s.configCache.GetEnabledConfigs()
	if len(blogConfigs) == 0 {
		slog.Debug("No enabled blog configurations found")
		return
	}

	slog.Debug("Processing enabled blog configurations for task scheduling", "count", len(blogConfigs))

	now := time.Now().UTC()

	for _, blogConfig := range blogConfigs {
		existing, err := s.blogRepo.GetBlogByURL(blogConfig.URL)
		if err != nil {
			slog.Warn("Failed to get blog from database, skipping", "blog", blogConfig.Name, "error", err)
			continue
		}

		switch {
		case !isDue(existing, blogConfig, now):
			slog.Debug("Blog not due for refresh yet", "blog", blogConfig.Name, "last_collected_at", existing.LastCollectedAt)
		case s.attemptedRecently(blogConfig, now):
			slog.Debug("Blog collection attempted recently, skipping", "blog", blogConfig.Name)
		default:
			collectTask := NewCollectBlogTask(blogConfig.Name, collectRequest(blogConfig), s.collector, s.blogRepo)
			if s.tryEnqueue(collectTask) {
				s.mu.Lock()
				s.attempts[blogConfig.Name] = now
				s.mu.Unlock()
			}
		}

		if blogConfig.Settings.ExtractContent && existing != nil {
			extractTask := NewExtractContentTask(blogConfig.Name, blogConfig.URL, blogConfig.Settings.MaxPosts,
				time.Duration(blogConfig.Settings.Timeout)*time.Second, s.fetcher, s.extractor, s.blogRepo, s.postRepo)
			s.tryEnqueue(extractTask)
		}
	}
}

func (s *Scheduler) tryEnqueue(task TaskInterface) bool {
	err := s.EnqueueTask(task)
	switch {
	case errors.Is(err, ErrTaskPending):
		slog.Debug("Task already queued", "type", string(task.GetType()), "blog", task.GetBlogName())
	case err != nil:
		slog.Warn("Failed to enqueue task", "type", string(task.GetType()), "blog", task.GetBlogName(), "error", err)
	}
	return err == nil
}

// attemptedRecently reports whether a collection of the blog was scheduled
// within its refresh interval. Collections that store nothing leave no
// collection time behind, so this keeps them from repeating on every tick.
func (s *Scheduler) attemptedRecently(blogConfig *blog.Config, now time.Time) bool {
	s.mu.Lock()
	last, ok := s.attempts[blogConfig.Name]
	s.mu.Unlock()

	if !ok {
		return false
	}
	return now.Sub(last) < time.Duration(blogConfig.Settings.RefreshInterval)*time.Second
}

// isDue reports whether a blog was never collected or its refresh interval
// has elapsed.
func isDue(b *database.Blog, blogConfig *blog.Config, now time.Time) bool {
	if b == nil || b.LastCollectedAt == nil {
		return true
	}
	next := b.LastCollectedAt.Add(time.Duration(blogConfig.Settings.RefreshInterval) * time.Second)
	return !next.After(now)
}

func collectRequest(blogConfig *blog.Config) collector.Request {
	return collector.Request{
		URL:        blogConfig.URL,
		Method:     blogConfig.Method,
		AuthorHint: blogConfig.Author,
		NameHint:   blogConfig.Title,
		Filters:    blogConfig.Filters,
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.release(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.release(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "blog", task.GetBlogName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task)
		case <-timer.C:
			if retryErr := s.push(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.release(task)
			}
		}
	}()
}

// retryDelay doubles from one second per attempt, capped at maxRetryDelay.
func retryDelay(retryCount int) time.Duration {
	delay := time.Duration(1<<uint(max(0, retryCount-1))) * time.Second
	return min(delay, maxRetryDelay)
}
