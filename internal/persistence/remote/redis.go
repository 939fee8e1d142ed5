// Package remote provides a persistence.Backend over a remote key/value +
// list store (Redis), matching the keyspace spec.md §4.E mandates:
//
//	orchestrator:dag:{dag_id}    -> serialized DAG
//	orchestrator:tasks           -> queue (LPUSH / BRPOP)
//	orchestrator:status:{key}    -> JSON status record
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowforge/orchestrator/internal/backoff"
	"github.com/flowforge/orchestrator/internal/logger"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/status"
)

const (
	dagPrefix    = "orchestrator:dag:"
	statusPrefix = "orchestrator:status:"
	queueKey     = "orchestrator:tasks"

	connectAttempts  = 3
	connectBaseDelay = 2 * time.Second
	connectMaxDelay  = 10 * time.Second
	scanBatchSize    = 200
)

// Backend is a Redis-backed persistence.Backend.
type Backend struct {
	client *goredis.Client
	opts   *goredis.Options
}

var _ persistence.Backend = (*Backend)(nil)

// New connects to redisURL, retrying the connection per spec.md §4.E: up to
// 3 attempts, 2·2^attempt seconds apart capped at 10s. Returns
// BackendUnavailable if every attempt fails.
func New(ctx context.Context, redisURL string) (*Backend, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, persistence.NewBackendUnavailableError("parse redis url", err)
	}

	policy := &backoff.ExponentialBackoffPolicy{
		InitialInterval: connectBaseDelay,
		BackoffFactor:   2.0,
		MaxInterval:     connectMaxDelay,
		MaxRetries:      connectAttempts,
	}
	retrier := backoff.NewRetrier(policy)

	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		client := goredis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return &Backend{client: client, opts: opts}, nil
		}
		lastErr = err
		_ = client.Close()
		logger.Warn(ctx, "redis connection attempt failed", "attempt", attempt, "error", err)

		if attempt < connectAttempts-1 {
			if waitErr := retrier.Next(ctx); waitErr != nil {
				lastErr = waitErr
				break
			}
		}
	}
	return nil, persistence.NewBackendUnavailableError("connect", fmt.Errorf("after %d attempts: %w", connectAttempts, lastErr))
}

// ensureLive pings the server and transparently reconnects once if the
// check fails, per spec.md §4.E.
func (b *Backend) ensureLive(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err == nil {
		return nil
	}
	newClient := goredis.NewClient(b.opts)
	if err := newClient.Ping(ctx).Err(); err != nil {
		_ = newClient.Close()
		return persistence.NewBackendUnavailableError("reconnect", err)
	}
	old := b.client
	b.client = newClient
	_ = old.Close()
	return nil
}

func (b *Backend) SaveDAG(ctx context.Context, dagID string, blob []byte) error {
	if err := b.ensureLive(ctx); err != nil {
		return err
	}
	if err := b.client.Set(ctx, dagPrefix+dagID, blob, 0).Err(); err != nil {
		return persistence.NewBackendUnavailableError("SaveDAG", err)
	}
	return nil
}

func (b *Backend) LoadDAG(ctx context.Context, dagID string) ([]byte, bool, error) {
	if err := b.ensureLive(ctx); err != nil {
		return nil, false, err
	}
	val, err := b.client.Get(ctx, dagPrefix+dagID).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistence.NewBackendUnavailableError("LoadDAG", err)
	}
	return val, true, nil
}

func (b *Backend) ListDAGs(ctx context.Context) ([]string, error) {
	if err := b.ensureLive(ctx); err != nil {
		return nil, err
	}
	keys, err := b.scanKeys(ctx, dagPrefix+"*")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k[len(dagPrefix):]
	}
	return ids, nil
}

func (b *Backend) PushTask(ctx context.Context, payload *runplan.TaskPayload) error {
	if err := b.ensureLive(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return persistence.NewSerializationError("PushTask", err)
	}
	if err := b.client.LPush(ctx, queueKey, data).Err(); err != nil {
		return persistence.NewBackendUnavailableError("PushTask", err)
	}
	return nil
}

func (b *Backend) PopTask(ctx context.Context, timeout time.Duration) (*runplan.TaskPayload, bool, error) {
	if err := b.ensureLive(ctx); err != nil {
		return nil, false, err
	}
	result, err := b.client.BRPop(ctx, timeout, queueKey).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistence.NewBackendUnavailableError("PopTask", err)
	}
	// BRPop returns [key, value].
	if len(result) != 2 {
		return nil, false, persistence.NewSerializationError("PopTask", fmt.Errorf("unexpected BRPOP reply shape: %v", result))
	}
	var payload runplan.TaskPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		return nil, false, persistence.NewSerializationError("PopTask", err)
	}
	return &payload, true, nil
}

func (b *Backend) SaveStatus(ctx context.Context, key string, s status.Status, meta map[string]any) error {
	if err := b.ensureLive(ctx); err != nil {
		return err
	}
	rec := persistence.StatusRecord{Status: s, Meta: meta}
	data, err := json.Marshal(rec)
	if err != nil {
		return persistence.NewSerializationError("SaveStatus", err)
	}
	if err := b.client.Set(ctx, statusPrefix+key, data, 0).Err(); err != nil {
		return persistence.NewBackendUnavailableError("SaveStatus", err)
	}
	return nil
}

func (b *Backend) GetStatus(ctx context.Context, key string) (persistence.StatusRecord, error) {
	if err := b.ensureLive(ctx); err != nil {
		return persistence.StatusRecord{}, err
	}
	val, err := b.client.Get(ctx, statusPrefix+key).Bytes()
	if err == goredis.Nil {
		return persistence.StatusRecord{}, nil
	}
	if err != nil {
		return persistence.StatusRecord{}, persistence.NewBackendUnavailableError("GetStatus", err)
	}
	var rec persistence.StatusRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return persistence.StatusRecord{}, persistence.NewSerializationError("GetStatus", err)
	}
	return rec, nil
}

func (b *Backend) ListRuns(ctx context.Context) ([]string, error) {
	if err := b.ensureLive(ctx); err != nil {
		return nil, err
	}
	keys, err := b.scanKeys(ctx, statusPrefix+"run:*")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k[len(statusPrefix+"run:"):]
	}
	return ids, nil
}

func (b *Backend) ListAttempts(ctx context.Context, runID, taskID string) ([]persistence.StatusRecord, error) {
	if err := b.ensureLive(ctx); err != nil {
		return nil, err
	}
	keyPrefix := fmt.Sprintf("%s:%s:", runID, taskID)
	pattern := statusPrefix + keyPrefix + "*"
	keys, err := b.scanKeys(ctx, pattern)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		attempt int
		rec     persistence.StatusRecord
	}
	found := make([]keyed, 0, len(keys))
	for _, k := range keys {
		suffix := k[len(statusPrefix+keyPrefix):]
		attempt, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		val, err := b.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var rec persistence.StatusRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			continue
		}
		found = append(found, keyed{attempt: attempt, rec: rec})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].attempt < found[j].attempt })

	records := make([]persistence.StatusRecord, len(found))
	for i, f := range found {
		records[i] = f.rec
	}
	return records, nil
}

// scanKeys walks the keyspace with SCAN rather than KEYS, which would block
// the server on a large keyspace.
func (b *Backend) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := b.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, persistence.NewBackendUnavailableError("SCAN", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}
