package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
)

func TestMemoryQueue(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	_, err := m.PopExportTask(ctx, time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	require.NoError(t, m.PushExportTask(ctx, export.Task{JobID: "a"}))
	require.NoError(t, m.PushExportTask(ctx, export.Task{JobID: "b"}))
	task, err := m.PopExportTask(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", task.JobID)

	require.NoError(t, m.Clear(ctx))
	_, err = m.PopExportTask(ctx, time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestMemoryJobs(t *testing.T) {
	m := NewMemory(1)
	ctx := context.Background()

	assert.ErrorIs(t, m.SetProgress(ctx, "x", export.Progress{}), ErrJobNotFound)
	require.NoError(t, m.SetJob(ctx, export.JobMetadata{JobID: "x", Status: export.StatusPending}))
	require.NoError(t, m.SetProgress(ctx, "x", export.Progress{Current: 1, Total: 3}))

	meta, err := m.GetJob(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Progress.Current)

	require.NoError(t, m.RequestCancel(ctx, "x"))
	ok, _ := m.CancelRequested(ctx, "x")
	assert.True(t, ok)
}
