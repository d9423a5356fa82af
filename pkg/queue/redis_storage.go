package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript pops the earliest due task id from the first non-empty pending set
// and moves it to the processing set scored by its lock expiry.
// KEYS[1] processing set, KEYS[2..] pending sets in queue order.
// ARGV[1] now (ms), ARGV[2] lock expiry (ms).
var claimScript = redis.NewScript(`
for i = 2, #KEYS do
	local ids = redis.call('ZRANGEBYSCORE', KEYS[i], '-inf', ARGV[1], 'LIMIT', 0, 1)
	if #ids > 0 then
		redis.call('ZREM', KEYS[i], ids[1])
		redis.call('ZADD', KEYS[1], ARGV[2], ids[1])
		return ids[1]
	end
end
return false
`)

// RedisStorage implements all queue repository interfaces on top of Redis.
//
// Layout, relative to the key prefix:
//
//	task:{id}        task JSON
//	pending:{queue}  sorted set of task ids scored by ScheduledAt (ms)
//	processing       sorted set of task ids scored by LockedUntil (ms)
//	dlq              hash of dead-lettered tasks
//	schedules        hash of schedule entries keyed by logical id
type RedisStorage struct {
	client    redis.UniversalClient
	prefix    string
	resultTTL time.Duration
	now       func() time.Time
}

// RedisStorageOption configures a RedisStorage
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix sets the namespace for every key the storage touches
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(rs *RedisStorage) {
		if prefix != "" {
			rs.prefix = prefix
		}
	}
}

// WithResultTTL sets how long completed and failed tasks are kept
func WithResultTTL(ttl time.Duration) RedisStorageOption {
	return func(rs *RedisStorage) {
		if ttl > 0 {
			rs.resultTTL = ttl
		}
	}
}

// WithRedisClock overrides the time source used for scheduling and locks
func WithRedisClock(now func() time.Time) RedisStorageOption {
	return func(rs *RedisStorage) {
		if now != nil {
			rs.now = now
		}
	}
}

// NewRedisStorage creates a Redis-backed queue storage
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}

	rs := &RedisStorage{
		client:    client,
		prefix:    "queue",
		resultTTL: 24 * time.Hour,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs, nil
}

func (rs *RedisStorage) taskKey(id uuid.UUID) string { return rs.prefix + ":task:" + id.String() }
func (rs *RedisStorage) pendingKey(queue string) string {
	return rs.prefix + ":pending:" + queue
}
func (rs *RedisStorage) processingKey() string { return rs.prefix + ":processing" }
func (rs *RedisStorage) dlqKey() string        { return rs.prefix + ":dlq" }
func (rs *RedisStorage) schedulesKey() string  { return rs.prefix + ":schedules" }

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// CreateTask implements EnqueuerRepository
func (rs *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rs.queueTask(ctx, pipe, task, data)
		return nil
	})
	return err
}

func (rs *RedisStorage) queueTask(ctx context.Context, pipe redis.Pipeliner, task *Task, data []byte) {
	pipe.Set(ctx, rs.taskKey(task.ID), data, 0)
	pipe.ZAdd(ctx, rs.pendingKey(task.Queue), redis.Z{
		Score:  score(task.ScheduledAt),
		Member: task.ID.String(),
	})
}

// ClaimTask implements WorkerRepository
func (rs *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	if len(queues) == 0 {
		return nil, ErrNoTaskToClaim
	}

	now := rs.now()
	lockUntil := now.Add(lockDuration)

	keys := make([]string, 0, len(queues)+1)
	keys = append(keys, rs.processingKey())
	for _, q := range queues {
		keys = append(keys, rs.pendingKey(q))
	}

	id, err := claimScript.Run(ctx, rs.client, keys,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(lockUntil.UnixMilli(), 10),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	taskID, err := uuid.Parse(id)
	if err != nil {
		rs.client.ZRem(ctx, rs.processingKey(), id)
		return nil, fmt.Errorf("claim task: malformed id %q: %w", id, err)
	}

	task, err := rs.GetTask(ctx, taskID)
	if err != nil {
		rs.client.ZRem(ctx, rs.processingKey(), id)
		return nil, err
	}

	task.Status = TaskStatusProcessing
	task.LockedUntil = &lockUntil
	task.LockedBy = &workerID

	if err := rs.saveTask(ctx, task, 0); err != nil {
		return nil, err
	}

	return task, nil
}

// CompleteTask implements WorkerRepository
func (rs *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	task, err := rs.processingTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := rs.now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.taskKey(taskID), data, rs.resultTTL)
		pipe.ZRem(ctx, rs.processingKey(), taskID.String())
		return nil
	})
	return err
}

// FailTask implements WorkerRepository
func (rs *RedisStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	task, err := rs.processingTask(ctx, taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount > task.MaxRetries {
		task.Status = TaskStatusFailed
	} else {
		task.Status = TaskStatusPending
		task.ScheduledAt = rs.now().Add(task.RetryDelay(task.RetryCount))
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, rs.processingKey(), taskID.String())
		if task.Status == TaskStatusFailed {
			pipe.Set(ctx, rs.taskKey(taskID), data, rs.resultTTL)
			return nil
		}
		rs.queueTask(ctx, pipe, task, data)
		return nil
	})
	return err
}

// MoveToDLQ implements WorkerRepository
func (rs *RedisStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	task, err := rs.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	entry := newDLQEntry(task, rs.now())
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode dlq entry for task %s: %w", taskID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, rs.dlqKey(), entry.ID.String(), data)
		pipe.Del(ctx, rs.taskKey(taskID))
		pipe.ZRem(ctx, rs.processingKey(), taskID.String())
		pipe.ZRem(ctx, rs.pendingKey(task.Queue), taskID.String())
		return nil
	})
	return err
}

// ExtendLock implements WorkerRepository
func (rs *RedisStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	task, err := rs.processingTask(ctx, taskID)
	if err != nil {
		return err
	}

	lockUntil := rs.now().Add(duration)
	task.LockedUntil = &lockUntil

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.taskKey(taskID), data, 0)
		pipe.ZAddXX(ctx, rs.processingKey(), redis.Z{Score: score(lockUntil), Member: taskID.String()})
		return nil
	})
	return err
}

// ReapExpiredLocks implements LockReaper
func (rs *RedisStorage) ReapExpiredLocks(ctx context.Context) (int, error) {
	ids, err := rs.client.ZRangeByScore(ctx, rs.processingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(rs.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired locks: %w", err)
	}

	reaped := 0
	for _, id := range ids {
		// Only the caller that removes the id requeues it.
		removed, err := rs.client.ZRem(ctx, rs.processingKey(), id).Result()
		if err != nil {
			return reaped, fmt.Errorf("release lock %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}

		taskID, err := uuid.Parse(id)
		if err != nil {
			continue
		}

		task, err := rs.GetTask(ctx, taskID)
		if errors.Is(err, ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return reaped, err
		}

		task.Status = TaskStatusPending
		task.LockedUntil = nil
		task.LockedBy = nil

		data, err := json.Marshal(task)
		if err != nil {
			return reaped, fmt.Errorf("encode task %s: %w", task.ID, err)
		}

		if _, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			rs.queueTask(ctx, pipe, task, data)
			return nil
		}); err != nil {
			return reaped, err
		}
		reaped++
	}

	return reaped, nil
}

// GetTask loads a task by id
func (rs *RedisStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	data, err := rs.client.Get(ctx, rs.taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}

	return &task, nil
}

// ListDLQ returns all dead-lettered tasks, oldest failure first
func (rs *RedisStorage) ListDLQ(ctx context.Context) ([]*TasksDlq, error) {
	raw, err := rs.client.HGetAll(ctx, rs.dlqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list dlq: %w", err)
	}

	items := make([]*TasksDlq, 0, len(raw))
	for id, data := range raw {
		var item TasksDlq
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("decode dlq entry %s: %w", id, err)
		}
		items = append(items, &item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].FailedAt.Before(items[j].FailedAt)
	})

	return items, nil
}

// CreateEntry implements SchedulerRepository using HSETNX
func (rs *RedisStorage) CreateEntry(ctx context.Context, entry *ScheduleEntry) (bool, error) {
	if entry == nil || entry.ID == "" {
		return false, ErrInvalidEntryID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode schedule entry %q: %w", entry.ID, err)
	}

	return rs.client.HSetNX(ctx, rs.schedulesKey(), entry.ID, data).Result()
}

// GetEntry implements SchedulerRepository
func (rs *RedisStorage) GetEntry(ctx context.Context, id string) (*ScheduleEntry, error) {
	data, err := rs.client.HGet(ctx, rs.schedulesKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule entry %q: %w", id, err)
	}

	return decodeEntry(id, data)
}

// ListEntries implements SchedulerRepository
func (rs *RedisStorage) ListEntries(ctx context.Context) ([]*ScheduleEntry, error) {
	raw, err := rs.client.HGetAll(ctx, rs.schedulesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}

	entries := make([]*ScheduleEntry, 0, len(raw))
	for id, data := range raw {
		entry, err := decodeEntry(id, []byte(data))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})

	return entries, nil
}

// AdvanceEntry implements SchedulerRepository as a WATCH/MULTI compare-and-set
// on the schedules hash.
func (rs *RedisStorage) AdvanceEntry(ctx context.Context, entry *ScheduleEntry, next time.Time, task *Task) (bool, error) {
	taskData, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	advanced := false
	err = rs.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, rs.schedulesKey(), entry.ID).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, entry.ID)
		}
		if err != nil {
			return err
		}

		stored, err := decodeEntry(entry.ID, data)
		if err != nil {
			return err
		}

		if !stored.NextRunAt.Equal(entry.NextRunAt) {
			return nil
		}

		lastRun := stored.NextRunAt
		stored.LastRunAt = &lastRun
		stored.NextRunAt = next

		entryData, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode schedule entry %q: %w", entry.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, rs.schedulesKey(), entry.ID, entryData)
			rs.queueTask(ctx, pipe, task, taskData)
			return nil
		})
		if err != nil {
			return err
		}

		advanced = true
		return nil
	}, rs.schedulesKey())

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return advanced, nil
}

// RemoveEntry implements SchedulerRepository
func (rs *RedisStorage) RemoveEntry(ctx context.Context, id string) error {
	removed, err := rs.client.HDel(ctx, rs.schedulesKey(), id).Result()
	if err != nil {
		return fmt.Errorf("remove schedule entry %q: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return nil
}

func (rs *RedisStorage) processingTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	task, err := rs.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}

	return task, nil
}

func (rs *RedisStorage) saveTask(ctx context.Context, task *Task, ttl time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	if err := rs.client.Set(ctx, rs.taskKey(task.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}

	return nil
}

func decodeEntry(id string, data []byte) (*ScheduleEntry, error) {
	var entry ScheduleEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode schedule entry %q: %w", id, err)
	}
	return &entry, nil
}
