package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"akun/internal/cache"
)

// TaskStatus is the lifecycle state of a delivery task.
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusStarted TaskStatus = "STARTED"
	StatusRetry   TaskStatus = "RETRY"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
)

// TaskResult is the outcome recorded once a task finishes. Status follows
// SMTP-ish numbers: 200 sent, 550 recipient does not exist, 500 anything else.
type TaskResult struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// TaskInfo is the retrievable status record of one delivery task.
type TaskInfo struct {
	TaskID    string      `json:"task_id"`
	Status    TaskStatus  `json:"task_status"`
	Result    *TaskResult `json:"task_result"`
	Attempts  int         `json:"attempts"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ErrTaskNotFound is returned by Fetch for unknown or expired task ids.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore persists task status records.
type TaskStore interface {
	Save(ctx context.Context, info *TaskInfo) error
	Load(ctx context.Context, taskID string) (*TaskInfo, error)
}

// CacheTaskStore keeps task records in the shared cache with a fixed TTL.
type CacheTaskStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCacheTaskStore creates a CacheTaskStore.
func NewCacheTaskStore(c cache.Cache, ttl time.Duration) *CacheTaskStore {
	return &CacheTaskStore{cache: c, ttl: ttl}
}

func taskKey(taskID string) string {
	return "task:" + taskID
}

// Save writes info, replacing any previous record for the same task.
func (s *CacheTaskStore) Save(ctx context.Context, info *TaskInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", info.TaskID, err)
	}
	if _, err := s.cache.Set(ctx, taskKey(info.TaskID), string(raw), s.ttl, cache.SetOptions{}); err != nil {
		return fmt.Errorf("save task %s: %w", info.TaskID, err)
	}
	return nil
}

// Load returns the record for taskID, or ErrTaskNotFound.
func (s *CacheTaskStore) Load(ctx context.Context, taskID string) (*TaskInfo, error) {
	raw, err := s.cache.Get(ctx, taskKey(taskID))
	if cache.IsMiss(err) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	var info TaskInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	return &info, nil
}
