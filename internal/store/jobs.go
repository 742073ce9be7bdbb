package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shapekiln/kiln/internal/core"
)

const queueKey = "queue"

func jobKey(id string) string {
	return "job:" + id
}

// JobStore exposes the document store through the typed interface the
// lifecycle consumes. Job documents get the configured retention TTL on
// every write; the queue document never expires.
type JobStore struct {
	kv        *Store
	retention time.Duration
}

func NewJobStore(kv *Store, retention time.Duration) *JobStore {
	return &JobStore{
		kv:        kv,
		retention: retention,
	}
}

func (js *JobStore) GetJob(ctx context.Context, id string) (*core.Job, error) {
	value, found, err := js.kv.Get(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, core.ErrNotFound
	}

	var job core.Job
	if err := json.Unmarshal([]byte(value), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (js *JobStore) PutJob(ctx context.Context, job *core.Job) error {
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	return js.kv.Put(ctx, jobKey(job.ID), string(value), js.retention)
}

func (js *JobStore) GetQueue(ctx context.Context) ([]string, error) {
	value, found, err := js.kv.Get(ctx, queueKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode queue: %w", err)
	}
	return ids, nil
}

func (js *JobStore) PutQueue(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	value, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	return js.kv.Put(ctx, queueKey, string(value), 0)
}

// ListJobs returns every retained job, newest first.
func (js *JobStore) ListJobs(ctx context.Context) ([]*core.Job, error) {
	docs, err := js.kv.ListPrefix(ctx, "job:")
	if err != nil {
		return nil, err
	}

	jobs := make([]*core.Job, 0, len(docs))
	for key, value := range docs {
		var job core.Job
		if err := json.Unmarshal([]byte(value), &job); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", key, err)
		}
		jobs = append(jobs, &job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}
