package cache

import (
	"context"
	"sync"
	"time"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
)

var _ Cache = (*Memory)(nil)

// Memory is a single-process Cache.
type Memory struct {
	mu     sync.Mutex
	queue  chan export.Task
	jobs   map[string]export.JobMetadata
	cancel map[string]bool
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 64
	}
	return &Memory{
		queue:  make(chan export.Task, capacity),
		jobs:   make(map[string]export.JobMetadata),
		cancel: make(map[string]bool),
	}
}

func (m *Memory) PushExportTask(ctx context.Context, task export.Task) error {
	select {
	case m.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) PopExportTask(ctx context.Context, timeout time.Duration) (export.Task, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case task := <-m.queue:
		return task, nil
	case <-t.C:
		return export.Task{}, ErrQueueEmpty
	case <-ctx.Done():
		return export.Task{}, ctx.Err()
	}
}

func (m *Memory) SetJob(_ context.Context, meta export.JobMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta.Files = append([]export.File(nil), meta.Files...)
	m.jobs[meta.JobID] = meta
	return nil
}

func (m *Memory) GetJob(_ context.Context, jobID string) (*export.JobMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &meta, nil
}

func (m *Memory) SetProgress(_ context.Context, jobID string, p export.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	meta.Progress = p
	m.jobs[jobID] = meta
	return nil
}

func (m *Memory) RequestCancel(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel[jobID] = true
	return nil
}

func (m *Memory) CancelRequested(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel[jobID], nil
}

func (m *Memory) ClearExportTask(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancel, jobID)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]export.JobMetadata)
	m.cancel = make(map[string]bool)
	for {
		select {
		case <-m.queue:
		default:
			return nil
		}
	}
}
