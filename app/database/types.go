package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lysyi3m/blog-comb/app/post"
)

const (
	MethodRSS     = "rss"
	MethodCrawler = "crawler"
)

const (
	ExtractionPending = "pending"
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
	ExtractionSkipped = "skipped"
)

type Blog struct {
	ID               int64      `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	URL              string     `db:"url" json:"url"`
	FeedURL          string     `db:"feed_url" json:"feed_url,omitempty"`
	AuthorName       string     `db:"author_name" json:"author_name,omitempty"`
	CollectionMethod string     `db:"collection_method" json:"collection_method"`
	LastCollectedAt  *time.Time `db:"last_collected_at" json:"last_collected_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type Post struct {
	ID                      int64      `db:"id" json:"id"`
	BlogID                  int64      `db:"blog_id" json:"blog_id"`
	URL                     string     `db:"url" json:"url"`
	Title                   string     `db:"title" json:"title"`
	Content                 string     `db:"content" json:"content,omitempty"`
	PublishedAt             *time.Time `db:"published_at" json:"published_at,omitempty"`
	Author                  string     `db:"author" json:"author,omitempty"`
	WordCount               int        `db:"word_count" json:"word_count"`
	ReadingTime             int        `db:"reading_time" json:"reading_time"`
	Tags                    StringList `db:"tags" json:"tags"`
	Categories              StringList `db:"categories" json:"categories"`
	Metadata                Metadata   `db:"metadata" json:"metadata,omitempty"`
	IsFiltered              bool       `db:"is_filtered" json:"is_filtered"`
	FilterReason            string     `db:"filter_reason" json:"filter_reason,omitempty"`
	ContentExtractionStatus string     `db:"content_extraction_status" json:"content_extraction_status"`
	ContentExtractionError  string     `db:"content_extraction_error" json:"-"`
	ExtractionAttempts      int        `db:"extraction_attempts" json:"-"`
	ContentExtractedAt      *time.Time `db:"content_extracted_at" json:"-"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// Candidate converts a stored post back into the form filters operate on.
func (p Post) Candidate() post.Candidate {
	return post.Candidate{
		Title:       p.Title,
		URL:         p.URL,
		Content:     p.Content,
		PublishedAt: p.PublishedAt,
		Author:      p.Author,
		Tags:        p.Tags,
		Categories:  p.Categories,
		Metadata:    p.Metadata,
	}
}

type PostForExtraction struct {
	ID  int64  `db:"id"`
	URL string `db:"url"`
}

type PostStats struct {
	Total    int `db:"total" json:"total"`
	Visible  int `db:"visible" json:"visible"`
	Filtered int `db:"filtered" json:"filtered"`
	Words    int `db:"words" json:"words"`
}

// StringList is stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil || data == nil {
		*l = nil
		return err
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// Metadata is stored as a JSON object.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *Metadata) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil || data == nil {
		*m = nil
		return err
	}
	return json.Unmarshal(data, (*map[string]string)(m))
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", src)
	}
}
