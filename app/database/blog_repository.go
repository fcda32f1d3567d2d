package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const blogColumns = `id, name, url, feed_url, author_name, collection_method, last_collected_at, created_at, updated_at`

// BlogRepo handles database operations for blogs
type BlogRepo struct {
	db *DB
}

func NewBlogRepository(db *DB) *BlogRepo {
	return &BlogRepo{db: db}
}

// GetBlog returns nil, nil when no blog has the given id.
func (r *BlogRepo) GetBlog(id int64) (*Blog, error) {
	var blog Blog
	err := r.db.Get(&blog, `SELECT `+blogColumns+` FROM blogs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}
	return &blog, nil
}

// GetBlogByURL looks a blog up by exact URL equality.
func (r *BlogRepo) GetBlogByURL(url string) (*Blog, error) {
	var blog Blog
	err := r.db.Get(&blog, `SELECT `+blogColumns+` FROM blogs WHERE url = ?`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blog by URL: %w", err)
	}
	return &blog, nil
}

// GetOrCreateBlog returns the blog stored under blog.URL, inserting it first
// when absent. An existing blog is returned unchanged.
func (r *BlogRepo) GetOrCreateBlog(blog Blog) (*Blog, error) {
	now := time.Now().UTC()
	blog.CreatedAt = now
	blog.UpdatedAt = now

	_, err := r.db.NamedExec(`
		INSERT INTO blogs (name, url, feed_url, author_name, collection_method, created_at, updated_at)
		VALUES (:name, :url, :feed_url, :author_name, :collection_method, :created_at, :updated_at)
		ON CONFLICT(url) DO NOTHING
	`, blog)
	if err != nil {
		return nil, fmt.Errorf("failed to create blog: %w", err)
	}

	stored, err := r.GetBlogByURL(blog.URL)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("blog %s missing after insert", blog.URL)
	}
	return stored, nil
}

func (r *BlogRepo) UpdateBlogSource(id int64, feedURL string, method string) error {
	_, err := r.db.Exec(`
		UPDATE blogs
		SET feed_url = ?, collection_method = ?, updated_at = ?
		WHERE id = ?
	`, feedURL, method, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update blog source: %w", err)
	}
	return nil
}

func (r *BlogRepo) UpdateCollectionTime(id int64, collectedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE blogs
		SET last_collected_at = ?, updated_at = ?
		WHERE id = ?
	`, collectedAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update collection time: %w", err)
	}
	return nil
}

func (r *BlogRepo) ListBlogs() ([]Blog, error) {
	var blogs []Blog
	if err := r.db.Select(&blogs, `SELECT `+blogColumns+` FROM blogs ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	return blogs, nil
}

func (r *BlogRepo) GetBlogCount() (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM blogs`); err != nil {
		return 0, fmt.Errorf("failed to get blog count: %w", err)
	}
	return count, nil
}
