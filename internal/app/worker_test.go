package app

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/internal/cache"
	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/options/util"
)

type recordingProcessor struct {
	mu     sync.Mutex
	jobs   []string
	users  []int64
	failed []string
	done   chan struct{}
}

func (p *recordingProcessor) Fail(_ context.Context, task export.Task, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cause != nil {
		p.failed = append(p.failed, task.JobID)
	}
}

func (p *recordingProcessor) Process(ctx context.Context, task export.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, task.JobID)
	if s := util.GetAutherOutOfContext(ctx); s != nil {
		p.users = append(p.users, s.GetUserId())
	}
	p.done <- struct{}{}
	return nil
}

func TestRunWorker(t *testing.T) {
	queue := cache.NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, queue.PushExportTask(ctx, export.Task{JobID: "bad", UserID: 0, Role: "admin"}))
	require.NoError(t, queue.PushExportTask(ctx, export.Task{JobID: "a", UserID: 3, Role: "supervisor", Kind: export.KindBatch}))
	require.NoError(t, queue.RequestCancel(ctx, "bad"))

	p := &recordingProcessor{done: make(chan struct{}, 4)}
	stopped := make(chan struct{})
	go func() {
		runWorker(ctx, 1, queue, p)
		close(stopped)
	}()

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not processed")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Equal(t, []string{"a"}, p.jobs)
	assert.Equal(t, []int64{3}, p.users)
	assert.Equal(t, []string{"bad"}, p.failed)
	requested, _ := queue.CancelRequested(context.Background(), "bad")
	assert.False(t, requested)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, min(defaultWorkers, runtime.NumCPU()*2), workerCount(0))
	assert.Equal(t, 1, workerCount(1))
	assert.Equal(t, runtime.NumCPU()*2, workerCount(1000))
}
