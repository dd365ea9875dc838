package jobs

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	job   Job
	seq   int64
	index int
}

type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].job.NotBefore.Equal(h[j].job.NotBefore) {
		return h[i].seq < h[j].seq
	}
	return h[i].job.NotBefore.Before(h[j].job.NotBefore)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	e := old[len(old)-1]
	old[len(old)-1] = nil
	e.index = -1
	*h = old[:len(old)-1]
	return e
}

// MemoryQueue keeps jobs in a timer heap inside the process. Jobs are lost on
// restart; the expiry sweep covers that gap for payment expiry.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[string]*entry
	keys    map[string]string
	pending timerHeap
	seq     int64
	now     func() time.Time
	// retention bounds how long finished jobs stay readable through Get.
	retention time.Duration
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		entries:   make(map[string]*entry),
		keys:      make(map[string]string),
		now:       time.Now,
		retention: 24 * time.Hour,
	}
}

// WithClock replaces the time source used for NotBefore.
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.now = now
	return q
}

func (q *MemoryQueue) Enqueue(_ context.Context, req EnqueueRequest) (*Job, error) {
	req = normalize(req)

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if req.Key != "" {
		q.cancelLocked(req.Key, now)
	}

	q.seq++
	if q.seq%256 == 0 {
		q.pruneLocked(now)
	}
	e := &entry{
		seq: q.seq,
		job: Job{
			ID:          uuid.NewString(),
			Kind:        req.Kind,
			Key:         req.Key,
			Payload:     req.Payload,
			NotBefore:   now.Add(req.Delay),
			MaxAttempts: req.MaxAttempts,
			Status:      StatusScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	q.entries[e.job.ID] = e
	heap.Push(&q.pending, e)
	if req.Key != "" {
		q.keys[req.Key] = e.job.ID
	}

	job := e.job
	return &job, nil
}

func (q *MemoryQueue) Cancel(_ context.Context, key string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelLocked(key, q.now()), nil
}

func (q *MemoryQueue) cancelLocked(key string, now time.Time) bool {
	id, ok := q.keys[key]
	if !ok {
		return false
	}
	e := q.entries[id]
	if e == nil || e.job.Status != StatusScheduled {
		return false
	}

	heap.Remove(&q.pending, e.index)
	e.job.Status = StatusCancelled
	e.job.UpdatedAt = now
	delete(q.keys, key)
	return true
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Len() == 0 || q.pending[0].job.NotBefore.After(now) {
		return nil, nil
	}

	e := heap.Pop(&q.pending).(*entry)
	e.job.Status = StatusRunning
	e.job.Attempt++
	e.job.UpdatedAt = now

	job := e.job
	return &job, nil
}

func (q *MemoryQueue) Done(_ context.Context, job *Job) error {
	return q.finish(job, StatusDone, nil)
}

func (q *MemoryQueue) Fail(_ context.Context, job *Job, cause error) error {
	return q.finish(job, StatusFailed, cause)
}

func (q *MemoryQueue) finish(job *Job, status Status, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	e.job.Status = status
	e.job.LastError = errString(cause)
	e.job.UpdatedAt = q.now()
	if e.job.Key != "" && q.keys[e.job.Key] == e.job.ID {
		delete(q.keys, e.job.Key)
	}
	*job = e.job
	return nil
}

func (q *MemoryQueue) Retry(_ context.Context, job *Job, notBefore time.Time, cause error) error {
	return q.reschedule(job, notBefore, cause, false)
}

func (q *MemoryQueue) Release(_ context.Context, job *Job) error {
	return q.reschedule(job, job.NotBefore, nil, true)
}

func (q *MemoryQueue) reschedule(job *Job, notBefore time.Time, cause error, undoClaim bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	if e.job.Status != StatusRunning {
		return nil
	}

	if undoClaim && e.job.Attempt > 0 {
		e.job.Attempt--
	} else {
		e.job.LastError = errString(cause)
	}
	e.job.Status = StatusScheduled
	e.job.NotBefore = notBefore
	e.job.UpdatedAt = q.now()
	heap.Push(&q.pending, e)
	*job = e.job
	return nil
}

func (q *MemoryQueue) pruneLocked(now time.Time) {
	for id, e := range q.entries {
		switch e.job.Status {
		case StatusDone, StatusFailed, StatusCancelled:
			if now.Sub(e.job.UpdatedAt) > q.retention {
				delete(q.entries, id)
			}
		}
	}
}

func (q *MemoryQueue) Get(_ context.Context, id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	job := e.job
	return &job, nil
}
