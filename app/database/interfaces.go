package database

import (
	"time"
)

type BlogRepository interface {
	GetBlog(id int64) (*Blog, error)
	GetBlogByURL(url string) (*Blog, error)
	GetOrCreateBlog(blog Blog) (*Blog, error)
	UpdateBlogSource(id int64, feedURL string, method string) error
	UpdateCollectionTime(id int64, collectedAt time.Time) error
	ListBlogs() ([]Blog, error)
	GetBlogCount() (int, error)
}

type PostRepository interface {
	UpsertPost(post Post) (int64, error)
	GetPostsByBlog(blogID int64) ([]Post, error)
	GetPostURLs(blogID int64) ([]string, error)
	GetVisiblePosts(blogID int64, limit int, offset int) ([]Post, error)
	GetPostStats(blogID int64) (PostStats, error)
	GetTotalPostCount() (int, error)

	UpdatePostFilterStatus(postID int64, isFiltered bool, reason string) error

	GetPostsForExtraction(blogID int64, limit int) ([]PostForExtraction, error)
	UpdateExtractionStatus(postID int64, status string, errMsg string) error
	UpdateExtractedContent(postID int64, content string, wordCount int, readingTime int) error
}

var (
	_ BlogRepository = (*BlogRepo)(nil)
	_ PostRepository = (*PostRepo)(nil)
)
