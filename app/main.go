package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lysyi3m/blog-comb/app/api"
	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/cfg"
	"github.com/lysyi3m/blog-comb/app/collector"
	"github.com/lysyi3m/blog-comb/app/content"
	"github.com/lysyi3m/blog-comb/app/crawler"
	"github.com/lysyi3m/blog-comb/app/database"
	"github.com/lysyi3m/blog-comb/app/feed"
	"github.com/lysyi3m/blog-comb/app/fetch"
	"github.com/lysyi3m/blog-comb/app/tasks"
)

type app struct {
	cfg         *cfg.Cfg
	configCache *blog.ConfigCache
	blogRepo    *database.BlogRepo
	postRepo    *database.PostRepo
	client      *fetch.Client
	extractor   *content.Extractor
	collector   *collector.Collector
}

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Blog Comb failed", "command", string(appCfg.Command), "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Blog Comb", "version", appCfg.Version, "command", string(appCfg.Command))

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := blog.NewConfigCache(appCfg.BlogsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load blog configurations: %w", err)
	}
	slog.Debug("Blog configurations loaded", "dir", appCfg.BlogsDir, "count", configCache.GetConfigCount())

	a := &app{
		cfg:         appCfg,
		configCache: configCache,
		blogRepo:    database.NewBlogRepository(db),
		postRepo:    database.NewPostRepository(db),
		client:      fetch.NewClient(&http.Client{}, appCfg.UserAgent, appCfg.RequestTimeout),
		extractor:   content.NewExtractor(),
	}
	a.collector = a.newCollector()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch appCfg.Command {
	case cfg.CommandCollect:
		return a.collect(ctx)
	case cfg.CommandUpdate:
		return a.update(ctx)
	case cfg.CommandList:
		return a.list()
	default:
		return a.serve(ctx)
	}
}

func (a *app) newCollector() *collector.Collector {
	feedSource := feed.NewSource(a.client, feed.NewParser(), feed.Options{
		Retries:  a.cfg.RequestRetries,
		Delay:    a.cfg.RequestDelay,
		MaxPages: a.cfg.FeedMaxPages,
	})

	crawlerOpts := crawler.DefaultOptions()
	crawlerOpts.Delay = a.cfg.RequestDelay
	crawlerOpts.Sitemaps = a.configCache
	crawlerOpts.Browser = crawler.NewBrowser(a.cfg.BrowserCommand)
	if a.cfg.RespectRobots {
		crawlerOpts.Robots = fetch.NewRobots(a.client)
	}
	if crawlerOpts.Browser == nil {
		slog.Debug("Rendering tool not available, script-rendered blogs use page crawling", "command", a.cfg.BrowserCommand)
	}

	siteCrawler := crawler.New(a.client, crawler.NewExtractor(a.client), a.extractor, crawlerOpts)

	return collector.New(feedSource, siteCrawler, a.blogRepo, a.postRepo, a.configCache, collector.Options{
		QuickCheckPages: a.cfg.QuickCheckPages,
		CrawlMaxPosts:   a.cfg.CrawlMaxPosts,
	})
}

func (a *app) collect(ctx context.Context) error {
	args := a.cfg.Collect

	blogID, err := a.collector.Collect(ctx, collector.Request{
		URL:        args.URL,
		Method:     args.Method,
		AuthorHint: args.Author,
		NameHint:   args.Name,
	})
	if err != nil {
		return err
	}

	b, err := a.blogRepo.GetBlog(blogID)
	if err != nil {
		return err
	}
	stats, err := a.postRepo.GetPostStats(blogID)
	if err != nil {
		return err
	}

	fmt.Printf("Collected %s (id %d) via %s: %d posts, %d filtered\n", b.Name, b.ID, b.CollectionMethod, stats.Total, stats.Filtered)
	return nil
}

func (a *app) update(ctx context.Context) error {
	var ids []int64

	if a.cfg.Update.All {
		blogs, err := a.blogRepo.ListBlogs()
		if err != nil {
			return err
		}
		for _, b := range blogs {
			ids = append(ids, b.ID)
		}
	} else {
		ids = append(ids, a.cfg.Update.BlogID)
	}

	var failed int
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		added, err := a.collector.Update(ctx, id)
		if err != nil {
			if errors.Is(err, collector.ErrBlogNotFound) && !a.cfg.Update.All {
				return err
			}
			slog.Error("Failed to update blog", "blog_id", id, "error", err)
			failed++
			continue
		}
		fmt.Printf("Blog %d: %d new posts\n", id, added)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d blogs failed to update", failed, len(ids))
	}
	return nil
}

func (a *app) list() error {
	blogs, err := a.blogRepo.ListBlogs()
	if err != nil {
		return err
	}

	if len(blogs) == 0 {
		fmt.Println("No blogs collected yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMETHOD\tPOSTS\tVISIBLE\tLAST COLLECTED\tURL")

	for _, b := range blogs {
		stats, err := a.postRepo.GetPostStats(b.ID)
		if err != nil {
			return err
		}

		collected := "never"
		if b.LastCollectedAt != nil {
			collected = b.LastCollectedAt.In(time.Local).Format(time.DateTime)
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n", b.ID, b.Name, b.CollectionMethod, stats.Total, stats.Visible, collected, b.URL)
	}

	return w.Flush()
}

func (a *app) serve(ctx context.Context) error {
	scheduler := tasks.NewScheduler(a.configCache, a.blogRepo, a.postRepo, a.collector, a.client, a.extractor,
		a.cfg.SchedulerInterval, a.cfg.WorkerCount)

	slog.Info("Starting background scheduler", "workers", a.cfg.WorkerCount, "interval", a.cfg.SchedulerInterval.String())
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(a.configCache, a.blogRepo, a.postRepo, blog.NewFilterer(), a.collector, scheduler)
	router := api.NewServer(handler, a.cfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	slog.Info("Blog Comb stopped")
	return nil
}
