package database

import (
	"fmt"
	"time"
)

const postColumns = `id, blog_id, url, title, content, published_at, author, word_count, reading_time,
	tags, categories, metadata, is_filtered, filter_reason, content_extraction_status,
	content_extraction_error, extraction_attempts, content_extracted_at, created_at, updated_at`

const maxExtractionAttempts = 3

// PostRepo handles database operations for posts
type PostRepo struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepo {
	return &PostRepo{db: db}
}

// UpsertPost stores post keyed by URL; on conflict every mutable field is
// overwritten.
func (r *PostRepo) UpsertPost(post Post) (int64, error) {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.ContentExtractionStatus == "" {
		post.ContentExtractionStatus = ExtractionSkipped
	}

	stmt, err := r.db.PrepareNamed(`
		INSERT INTO posts (
			blog_id, url, title, content, published_at, author, word_count, reading_time,
			tags, categories, metadata, is_filtered, filter_reason, content_extraction_status,
			created_at, updated_at
		) VALUES (
			:blog_id, :url, :title, :content, :published_at, :author, :word_count, :reading_time,
			:tags, :categories, :metadata, :is_filtered, :filter_reason, :content_extraction_status,
			:created_at, :updated_at
		)
		ON CONFLICT(url) DO UPDATE SET
			blog_id = excluded.blog_id,
			title = excluded.title,
			content = excluded.content,
			published_at = excluded.published_at,
			author = excluded.author,
			word_count = excluded.word_count,
			reading_time = excluded.reading_time,
			tags = excluded.tags,
			categories = excluded.categories,
			metadata = excluded.metadata,
			is_filtered = excluded.is_filtered,
			filter_reason = excluded.filter_reason,
			content_extraction_status = excluded.content_extraction_status,
			updated_at = excluded.updated_at
		RETURNING id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare post upsert: %w", err)
	}
	defer stmt.Close()

	var id int64
	if err := stmt.Get(&id, post); err != nil {
		return 0, fmt.Errorf("failed to upsert post: %w", err)
	}

	return id, nil
}

// GetPostsByBlog returns every post of a blog, filtered ones included.
func (r *PostRepo) GetPostsByBlog(blogID int64) ([]Post, error) {
	var posts []Post
	err := r.db.Select(&posts, `
		SELECT `+postColumns+`
		FROM posts
		WHERE blog_id = ?
		ORDER BY COALESCE(published_at, created_at) DESC
	`, blogID)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepo) GetPostURLs(blogID int64) ([]string, error) {
	var urls []string
	if err := r.db.Select(&urls, `SELECT url FROM posts WHERE blog_id = ?`, blogID); err != nil {
		return nil, fmt.Errorf("failed to get post URLs: %w", err)
	}
	return urls, nil
}

// GetVisiblePosts returns non-filtered posts, newest first. A limit of zero
// or less means no limit.
func (r *PostRepo) GetVisiblePosts(blogID int64, limit int, offset int) ([]Post, error) {
	if limit <= 0 {
		limit = -1
	}

	var posts []Post
	err := r.db.Select(&posts, `
		SELECT `+postColumns+`
		FROM posts
		WHERE blog_id = ?
		  AND is_filtered = 0
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT ? OFFSET ?
	`, blogID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get visible posts: %w", err)
	}
	return posts, nil
}

func (r *PostRepo) GetPostStats(blogID int64) (PostStats, error) {
	var stats PostStats
	err := r.db.Get(&stats, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_filtered = 0 THEN 1 ELSE 0 END), 0) AS visible,
			COALESCE(SUM(CASE WHEN is_filtered = 1 THEN 1 ELSE 0 END), 0) AS filtered,
			COALESCE(SUM(word_count), 0) AS words
		FROM posts
		WHERE blog_id = ?
	`, blogID)
	if err != nil {
		return PostStats{}, fmt.Errorf("failed to get post stats: %w", err)
	}
	return stats, nil
}

func (r *PostRepo) GetTotalPostCount() (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

func (r *PostRepo) UpdatePostFilterStatus(postID int64, isFiltered bool, reason string) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET is_filtered = ?, filter_reason = ?
		WHERE id = ?
	`, isFiltered, reason, postID)
	if err != nil {
		return fmt.Errorf("failed to update post filter status: %w", err)
	}
	return nil
}

// GetPostsForExtraction returns posts still waiting for their content that
// have not exhausted their attempts.
func (r *PostRepo) GetPostsForExtraction(blogID int64, limit int) ([]PostForExtraction, error) {
	if limit <= 0 {
		limit = -1
	}

	var posts []PostForExtraction
	err := r.db.Select(&posts, `
		SELECT id, url
		FROM posts
		WHERE blog_id = ?
		  AND content_extraction_status IN (?, ?)
		  AND extraction_attempts < ?
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT ?
	`, blogID, ExtractionPending, ExtractionFailed, maxExtractionAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts for extraction: %w", err)
	}
	return posts, nil
}

func (r *PostRepo) UpdateExtractionStatus(postID int64, status string, errMsg string) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET content_extraction_status = ?,
		    content_extraction_error = ?,
		    extraction_attempts = extraction_attempts + 1,
		    content_extracted_at = ?
		WHERE id = ?
	`, status, errMsg, time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("failed to update extraction status: %w", err)
	}
	return nil
}

func (r *PostRepo) UpdateExtractedContent(postID int64, content string, wordCount int, readingTime int) error {
	_, err := r.db.Exec(`
		UPDATE posts
		SET content = ?,
		    word_count = ?,
		    reading_time = ?,
		    content_extraction_status = ?,
		    content_extraction_error = '',
		    extraction_attempts = extraction_attempts + 1,
		    content_extracted_at = ?,
		    updated_at = ?
		WHERE id = ?
	`, content, wordCount, readingTime, ExtractionSuccess, time.Now().UTC(), time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}
	return nil
}
