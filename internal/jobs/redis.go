package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisQueue stores jobs in Redis so they survive restarts.
//
//	<prefix>:schedule    ZSET of job ids scored by not_before in ms
//	<prefix>:job:<id>    JSON job record
//	<prefix>:key:<key>   id of the outstanding job for a cancellation key
//
// Enqueue, Cancel and Claim run as optimistic transactions watching the
// schedule, so a job leaves the schedule in the same MULTI that records its
// new status. A worker that dies while running a job leaves it running until
// the record expires; the expiry sweep recovers payment expiries, emails are
// lost.
type RedisQueue struct {
	c         redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

func NewRedisQueue(c redis.UniversalClient, prefix string, retention time.Duration) *RedisQueue {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisQueue{
		c:         c,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (q *RedisQueue) WithClock(now func() time.Time) *RedisQueue {
	q.now = now
	return q
}

func (q *RedisQueue) scheduleKey() string     { return q.prefix + ":schedule" }
func (q *RedisQueue) jobKey(id string) string { return q.prefix + ":job:" + id }
func (q *RedisQueue) idxKey(key string) string {
	return q.prefix + ":key:" + key
}

func (q *RedisQueue) ttlFor(j *Job) time.Duration {
	if j.Status == StatusScheduled {
		if wait := j.NotBefore.Sub(q.now()); wait > 0 {
			return wait + q.retention
		}
	}
	return q.retention
}

// txRetries bounds how often a transaction is retried after a watched key
// changed underneath it.
const txRetries = 32

func (q *RedisQueue) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < txRetries; i++ {
		err := q.c.Watch(ctx, fn, keys...)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return redis.TxFailedErr
}

func (q *RedisQueue) save(ctx context.Context, p redis.Pipeliner, j *Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}
	p.Set(ctx, q.jobKey(j.ID), b, q.ttlFor(j))
	return nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	req = normalize(req)
	now := q.now()

	job := &Job{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Key:         req.Key,
		Payload:     req.Payload,
		NotBefore:   now.Add(req.Delay),
		MaxAttempts: req.MaxAttempts,
		Status:      StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	keys := []string{q.scheduleKey()}
	if job.Key != "" {
		keys = append(keys, q.idxKey(job.Key))
	}

	err := q.watch(ctx, func(tx *redis.Tx) error {
		var prev *Job
		if job.Key != "" {
			var err error
			if prev, err = q.scheduledFor(ctx, tx, job.Key); err != nil {
				return err
			}
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if prev != nil {
				if err := q.cancelIn(ctx, p, prev); err != nil {
					return err
				}
			}
			if err := q.save(ctx, p, job); err != nil {
				return err
			}
			p.ZAdd(ctx, q.scheduleKey(), redis.Z{Score: score(job.NotBefore), Member: job.ID})
			if job.Key != "" {
				p.Set(ctx, q.idxKey(job.Key), job.ID, q.ttlFor(job))
			}
			return nil
		})
		return err
	}, keys...)
	if err != nil {
		return nil, errors.Wrap(err, "redis enqueue")
	}
	return job, nil
}

func (q *RedisQueue) Cancel(ctx context.Context, key string) (bool, error) {
	idx := q.idxKey(key)

	var cancelled bool
	err := q.watch(ctx, func(tx *redis.Tx) error {
		cancelled = false
		job, err := q.scheduledFor(ctx, tx, key)
		if err != nil || job == nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if err := q.cancelIn(ctx, p, job); err != nil {
				return err
			}
			p.Del(ctx, idx)
			return nil
		})
		cancelled = err == nil
		return err
	}, q.scheduleKey(), idx)
	if err != nil {
		return false, errors.Wrap(err, "redis cancel")
	}
	return cancelled, nil
}

// scheduledFor returns the job key points at while it is still in the
// schedule. A claimed, finished or unknown job yields nil.
func (q *RedisQueue) scheduledFor(ctx context.Context, tx *redis.Tx, key string) (*Job, error) {
	id, err := tx.Get(ctx, q.idxKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get key index")
	}

	err = tx.ZScore(ctx, q.scheduleKey(), id).Err()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis zscore")
	}

	job, err := q.get(ctx, tx, id)
	if errors.Is(err, ErrJobNotFound) {
		return &Job{ID: id, Key: key}, nil
	}
	return job, err
}

func (q *RedisQueue) cancelIn(ctx context.Context, p redis.Pipeliner, job *Job) error {
	job.Status = StatusCancelled
	job.UpdatedAt = q.now()
	p.ZRem(ctx, q.scheduleKey(), job.ID)
	return q.save(ctx, p, job)
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time) (*Job, error) {
	for {
		var (
			claimed  *Job
			dangling bool
		)
		err := q.watch(ctx, func(tx *redis.Tx) error {
			claimed, dangling = nil, false

			ids, err := tx.ZRangeByScore(ctx, q.scheduleKey(), &redis.ZRangeBy{
				Min:   "-inf",
				Max:   strconv.FormatInt(now.UnixMilli(), 10),
				Count: 1,
			}).Result()
			if err != nil || len(ids) == 0 {
				return err
			}

			job, err := q.get(ctx, tx, ids[0])
			if errors.Is(err, ErrJobNotFound) {
				// the record expired; drop the id and look again
				dangling = true
				_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
					p.ZRem(ctx, q.scheduleKey(), ids[0])
					return nil
				})
				return err
			}
			if err != nil {
				return err
			}

			job.Status = StatusRunning
			job.Attempt++
			job.UpdatedAt = now
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.ZRem(ctx, q.scheduleKey(), job.ID)
				return q.save(ctx, p, job)
			})
			if err == nil {
				claimed = job
			}
			return err
		}, q.scheduleKey())
		if err != nil {
			return nil, errors.Wrap(err, "redis claim")
		}
		if !dangling {
			return claimed, nil
		}
	}
}

func (q *RedisQueue) Done(ctx context.Context, job *Job) error {
	return q.finish(ctx, job, StatusDone, nil)
}

func (q *RedisQueue) Fail(ctx context.Context, job *Job, cause error) error {
	return q.finish(ctx, job, StatusFailed, cause)
}

func (q *RedisQueue) finish(ctx context.Context, job *Job, status Status, cause error) error {
	job.Status = status
	job.LastError = errString(cause)
	job.UpdatedAt = q.now()
	if err := q.write(ctx, job); err != nil {
		return err
	}
	if job.Key == "" {
		return nil
	}

	// Drop the key index only while it still points at this job; a newer
	// Enqueue for the same key may already own it.
	idx := q.idxKey(job.Key)
	err := q.c.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, idx).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if current != job.ID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, idx)
			return nil
		})
		return err
	}, idx)
	if err != nil && err != redis.TxFailedErr {
		return errors.Wrap(err, "redis clear key index")
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, job *Job, notBefore time.Time, cause error) error {
	job.LastError = errString(cause)
	return q.reschedule(ctx, job, notBefore)
}

func (q *RedisQueue) Release(ctx context.Context, job *Job) error {
	if job.Attempt > 0 {
		job.Attempt--
	}
	return q.reschedule(ctx, job, job.NotBefore)
}

func (q *RedisQueue) reschedule(ctx context.Context, job *Job, notBefore time.Time) error {
	job.Status = StatusScheduled
	job.NotBefore = notBefore
	job.UpdatedAt = q.now()

	_, err := q.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := q.save(ctx, p, job); err != nil {
			return err
		}
		p.ZAdd(ctx, q.scheduleKey(), redis.Z{Score: score(notBefore), Member: job.ID})
		return nil
	})
	return errors.Wrap(err, "redis reschedule")
}

func (q *RedisQueue) write(ctx context.Context, job *Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job")
	}
	if err := q.c.Set(ctx, q.jobKey(job.ID), b, q.ttlFor(job)).Err(); err != nil {
		return errors.Wrap(err, "redis set job")
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	return q.get(ctx, q.c, id)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (q *RedisQueue) get(ctx context.Context, c stringGetter, id string) (*Job, error) {
	b, err := c.Get(ctx, q.jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get job")
	}

	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, errors.Wrap(err, "unmarshal job")
	}
	return &job, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
