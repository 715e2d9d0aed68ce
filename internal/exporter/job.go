package exporter

import (
	"context"
	"fmt"
	"sync"

	"github.com/webitel/inspection-exporter/internal/domain/model/export"
	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
)

type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateRendering  State = "rendering"
	StateCollected  State = "collected"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Output is one produced file. Data is dropped once the job hands it off.
type Output struct {
	Name     string
	RecordID int64
	Data     []byte
}

type Skipped struct {
	RecordID int64  `json:"record_id"`
	Reason   string `json:"reason"`
}

// Job is one bulk export run. The exporter goroutine driving it is the only
// writer; other goroutines may read progress and request cancellation
// through the same handle.
type Job struct {
	id string

	mu         sync.Mutex
	state      State
	queue      []*inspection.Record
	current    *inspection.Record
	outputs    []Output
	names      map[string]struct{}
	progress   export.Progress
	skipped    []Skipped
	cancel     bool
	err        error
	onProgress func(export.Progress)
}

// NewJob queues records in the given order.
func NewJob(id string, records []*inspection.Record) *Job {
	return &Job{
		id:    id,
		state: StateIdle,
		queue: append([]*inspection.Record(nil), records...),
		names: make(map[string]struct{}),
	}
}

func (j *Job) ID() string { return j.id }

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) Progress() export.Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *Job) Skipped() []Skipped {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Skipped(nil), j.skipped...)
}

// Err is the reason a failed or cancelled job stopped.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// OnProgress registers fn to run after every progress step. Set it before
// the job starts.
func (j *Job) OnProgress(fn func(export.Progress)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onProgress = fn
}

// Cancel asks the job to stop before its next record. It is refused once the
// last record is rendering or the output is being finalized.
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.state.Terminal():
		return nil
	case j.state == StateFinalizing:
		return ErrCancelNotAllowed
	case j.state == StateRendering && len(j.queue) == 0:
		return ErrCancelNotAllowed
	case j.state == StateIdle:
		j.state = StateCancelled
		j.err = ErrCancelled
		return nil
	}
	j.cancel = true
	return nil
}

func (j *Job) pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.queue)
}

func (j *Job) start() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateIdle:
	case StateCancelled:
		return 0, ErrCancelled
	default:
		return 0, fmt.Errorf("export job %s already started", j.id)
	}
	j.state = StateCollecting
	j.progress = export.Progress{Total: len(j.queue)}
	return j.progress.Total, nil
}

// next dequeues the next record and marks it as rendering. It reports false
// once the queue is empty. A pending cancel request, or a done ctx, stops the
// job here, between records.
func (j *Job) next(ctx context.Context) (*inspection.Record, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateCancelled {
		return nil, false, ErrCancelled
	}
	if j.cancel || ctx.Err() != nil {
		j.state = StateCancelled
		j.err = ErrCancelled
		j.queue = nil
		for i := range j.outputs {
			j.outputs[i].Data = nil
		}
		return nil, false, ErrCancelled
	}
	if len(j.queue) == 0 {
		return nil, false, nil
	}
	rec := j.queue[0]
	j.queue = j.queue[1:]
	j.current = rec
	j.state = StateRendering
	return rec, true, nil
}

// reserve claims a name unique within the job for the current record and
// returns it. Reserve before delivering anything under the name.
func (j *Job) reserve(name string) string {
	j.mu.Lock()
	defer j.mu.Unlock()
	name = disambiguate(name, j.current.ID, func(n string) bool {
		_, ok := j.names[n]
		return ok
	})
	j.names[name] = struct{}{}
	return name
}

// collected stores the current record's output under a name returned by
// reserve.
func (j *Job) collected(name string, data []byte) {
	j.mu.Lock()
	j.outputs = append(j.outputs, Output{Name: name, RecordID: j.current.ID, Data: data})
	p := j.advance()
	fn := j.onProgress
	j.mu.Unlock()

	if fn != nil {
		fn(p)
	}
}

// skip drops the current record; progress still advances.
func (j *Job) skip(reason error) {
	j.mu.Lock()
	j.skipped = append(j.skipped, Skipped{RecordID: j.current.ID, Reason: reason.Error()})
	p := j.advance()
	fn := j.onProgress
	j.mu.Unlock()

	if fn != nil {
		fn(p)
	}
}

func (j *Job) advance() export.Progress {
	j.current = nil
	j.state = StateCollected
	if j.progress.Current < j.progress.Total {
		j.progress.Current++
	}
	return j.progress
}

func (j *Job) finalize() []Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateFinalizing
	return append([]Output(nil), j.outputs...)
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current = nil
	j.queue = nil
	for i := range j.outputs {
		j.outputs[i].Data = nil
	}
	if err != nil {
		j.state = StateFailed
		j.err = err
		return
	}
	j.state = StateDone
}

func (j *Job) summary() *Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := &Summary{
		Total:   j.progress.Total,
		Skipped: append([]Skipped(nil), j.skipped...),
	}
	for _, o := range j.outputs {
		s.Files = append(s.Files, o.Name)
	}
	s.Exported = len(s.Files)
	return s
}

// Summary is the end-of-run account of a job.
type Summary struct {
	Total    int       `json:"total"`
	Exported int       `json:"exported"`
	Skipped  []Skipped `json:"skipped,omitempty"`
	Files    []string  `json:"files,omitempty"`
}
