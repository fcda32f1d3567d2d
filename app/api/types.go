package api

import (
	"github.com/lysyi3m/blog-comb/app/blog"
	"github.com/lysyi3m/blog-comb/app/database"
	"github.com/lysyi3m/blog-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(blog database.Blog, posts []database.Post) (string, error)
}

var _ GeneratorInterface = (*blog.Generator)(nil)

type Handler struct {
	blogRepo    database.BlogRepository
	postRepo    database.PostRepository
	generator   GeneratorInterface
	configCache *blog.ConfigCache
	filterer    *blog.Filterer
	collector   tasks.BlogCollector
	scheduler   tasks.TaskSchedulerInterface
}

type CollectRequest struct {
	URL    string `json:"url" binding:"required,url"`
	Method string `json:"method" binding:"omitempty,oneof=auto rss crawler"`
	Author string `json:"author"`
	Name   string `json:"name"`
}
