package blog

const (
	MethodAuto    = "auto"
	MethodRSS     = "rss"
	MethodCrawler = "crawler"
)

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Method   string         `yaml:"method"`
	Author   string         `yaml:"author"`
	Title    string         `yaml:"name"` // display name, derived from the domain when empty
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxPosts        int  `yaml:"max_posts"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // fetch full pages for posts stored without content
	Sitemap         bool `yaml:"sitemap"`         // enumerate posts from sitemap.xml
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
