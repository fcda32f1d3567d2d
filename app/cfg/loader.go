package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/blogs.db" description:"Path to the SQLite database file"`
	BlogsDir string `long:"blogs-dir" env:"BLOGS_DIR" default:"./blogs" description:"Directory containing blog configuration files"`

	// HTTP API and scheduler
	Port              string        `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string        `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://blogs.example.com)"`
	WorkerCount       int           `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for blog collection"`
	SchedulerInterval time.Duration `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60s" description:"Scheduler tick interval"`
	APIAccessKey      string        `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Collection pipeline
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" default:"Blog Comb/1.0" description:"User agent string for HTTP requests"`
	RequestTimeout  time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30s" description:"Timeout for a single HTTP request"`
	RequestRetries  int           `long:"request-retries" env:"REQUEST_RETRIES" default:"3" description:"Attempts per feed page before giving up"`
	RequestDelay    time.Duration `long:"request-delay" env:"REQUEST_DELAY" default:"1s" description:"Delay between successive page fetches"`
	FeedMaxPages    int           `long:"feed-max-pages" env:"FEED_MAX_PAGES" default:"10" description:"Maximum number of feed pages to probe"`
	CrawlMaxPosts   int           `long:"crawl-max-posts" env:"CRAWL_MAX_POSTS" default:"200" description:"Maximum posts gathered by a full crawl"`
	QuickCheckPages int           `long:"quick-check-pages" env:"QUICK_CHECK_PAGES" default:"3" description:"Pages visited when checking whether a feed is truncated"`
	RespectRobots   bool          `long:"respect-robots" env:"RESPECT_ROBOTS" description:"Skip pages disallowed by robots.txt"`
	BrowserCommand  string        `long:"browser-command" env:"BROWSER_COMMAND" default:"agent-browser" description:"Rendering tool used for script-rendered blogs (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Serve   struct{}   `command:"serve" description:"Run the background scheduler and the HTTP API (default)"`
	Collect collectCmd `command:"collect" description:"Collect all posts of a blog"`
	Update  updateCmd  `command:"update" description:"Fetch new posts of already collected blogs"`
	List    struct{}   `command:"list" description:"List collected blogs"`
}

type collectCmd struct {
	Method string `long:"method" choice:"auto" choice:"rss" choice:"crawler" default:"auto" description:"Collection method"`
	Author string `long:"author" description:"Author name to use when posts carry none"`
	Name   string `long:"name" description:"Blog name (derived from the domain when empty)"`
	Args   struct {
		URL string `positional-arg-name:"url" required:"yes"`
	} `positional-args:"yes"`
}

type updateCmd struct {
	BlogID int64 `long:"blog-id" description:"Blog to update"`
	All    bool  `long:"all" description:"Update every collected blog"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment. It returns nil, nil when help
// was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		BlogsDir:          raw.BlogsDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		RequestTimeout:    raw.RequestTimeout,
		RequestRetries:    raw.RequestRetries,
		RequestDelay:      raw.RequestDelay,
		FeedMaxPages:      raw.FeedMaxPages,
		CrawlMaxPosts:     raw.CrawlMaxPosts,
		QuickCheckPages:   raw.QuickCheckPages,
		RespectRobots:     raw.RespectRobots,
		BrowserCommand:    raw.BrowserCommand,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
		Command:           CommandServe,
	}

	if parser.Active != nil {
		cfg.Command = Command(parser.Active.Name)
	}

	switch cfg.Command {
	case CommandCollect:
		cfg.Collect = CollectArgs{
			URL:    raw.Collect.Args.URL,
			Method: raw.Collect.Method,
			Author: raw.Collect.Author,
			Name:   raw.Collect.Name,
		}
	case CommandUpdate:
		if raw.Update.BlogID == 0 && !raw.Update.All {
			return nil, fmt.Errorf("update requires --blog-id or --all")
		}
		cfg.Update = UpdateArgs{BlogID: raw.Update.BlogID, All: raw.Update.All}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	nonNegative := map[string]int{
		"worker count":      cfg.WorkerCount,
		"request retries":   cfg.RequestRetries,
		"feed max pages":    cfg.FeedMaxPages,
		"crawl max posts":   cfg.CrawlMaxPosts,
		"quick check pages": cfg.QuickCheckPages,
	}

	for name, value := range nonNegative {
		if value < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
