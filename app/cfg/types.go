package cfg

import "time"

type Command string

const (
	CommandServe   Command = "serve"
	CommandCollect Command = "collect"
	CommandUpdate  Command = "update"
	CommandList    Command = "list"
)

type Cfg struct {
	// Storage
	DBPath   string
	BlogsDir string

	// HTTP API and scheduler
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval time.Duration
	APIAccessKey      string

	// Collection pipeline
	UserAgent       string
	RequestTimeout  time.Duration
	RequestRetries  int
	RequestDelay    time.Duration
	FeedMaxPages    int
	CrawlMaxPosts   int
	QuickCheckPages int
	RespectRobots   bool
	BrowserCommand  string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string

	// Invoked subcommand and its arguments
	Command Command
	Collect CollectArgs
	Update  UpdateArgs
}

type CollectArgs struct {
	URL    string
	Method string
	Author string
	Name   string
}

type UpdateArgs struct {
	BlogID int64
	All    bool
}
