package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeCollectBlog    TaskType = "collect_blog"
	TaskTypeExtractContent TaskType = "extract_content"
	TaskTypeRefilterBlog   TaskType = "refilter_blog"
)

const (
	DefaultMaxRetries = 3
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetBlogName() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID         string
	Type       TaskType
	BlogName   string
	RetryCount int
	MaxRetries int
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetBlogName() string {
	return t.BlogName
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, blogName string) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		BlogName:   blogName,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// taskKey identifies a unit of work so the same blog is never queued twice
// for the same task type.
func taskKey(task TaskInterface) string {
	return string(task.GetType()) + ":" + task.GetBlogName()
}
