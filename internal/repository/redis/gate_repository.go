package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// GateRepository is the admission queue store. Every mutating operation is a
// single Lua script so no caller can observe an intermediate state.
type GateRepository interface {
	Enqueue(ctx context.Context, eventID, userID string) (enqueued bool, rank int64, err error)
	GetRank(ctx context.Context, eventID, userID string) (int64, error)
	IsProcessing(ctx context.Context, eventID, userID string) (bool, error)
	PopToProcessing(ctx context.Context, eventID string, batchSize int) ([]models.DispatchEntry, error)
	RemoveFromProcessing(ctx context.Context, eventID string, userIDs []string) error
	RequeueStale(ctx context.Context, eventID string, timeout time.Duration, maxRequeue int) (int, error)
}

type redisGateRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisGateRepository(cli *redis.Client, l logger.Logger) GateRepository {
	return &redisGateRepository{
		cli: cli,
		l:   l,
	}
}

// enqueueScript checks for an existing entry, assigns the next ticket number
// and inserts, as one unit. Returns {isNew, rank}.
var enqueueScript = redis.NewScript(`
	local qKey = KEYS[1]
	local rKey = KEYS[2]
	local val = ARGV[1]

	if redis.call('ZSCORE', qKey, val) then
		return {0, redis.call('ZRANK', qKey, val)}
	end

	local ticket = redis.call('INCR', rKey)
	redis.call('ZADD', qKey, ticket, val)

	return {1, redis.call('ZRANK', qKey, val)}
`)

// popToProcessingScript moves up to count lowest-ranked members into the
// processing zset (score = now, for staleness detection) and records each
// member's original ticket in the preservation hash. Queue removal, processing
// insertion and ticket preservation commit together or not at all.
var popToProcessingScript = redis.NewScript(`
	local qKey = KEYS[1]
	local pKey = KEYS[2]
	local tKey = KEYS[3]
	local count = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])

	local members = redis.call('ZRANGE', qKey, 0, count - 1, 'WITHSCORES')
	if #members == 0 then
		return {}
	end

	for i = 1, #members, 2 do
		local user = members[i]
		local ticket = members[i+1]

		redis.call('ZREM', qKey, user)
		redis.call('ZADD', pKey, now, user)
		redis.call('HSET', tKey, user, ticket)
	end

	return members
`)

// removeFromProcessingScript drops confirmed members and their preserved
// tickets together.
var removeFromProcessingScript = redis.NewScript(`
	local pKey = KEYS[1]
	local tKey = KEYS[2]

	local removed = 0
	for i = 1, #ARGV do
		removed = removed + redis.call('ZREM', pKey, ARGV[i])
		redis.call('HDEL', tKey, ARGV[i])
	end

	return removed
`)

// requeueStaleScript sweeps processing members older than the cutoff back into
// the queue, restoring each member's original ticket as its score so the FIFO
// order over tickets is kept. Members whose ticket is missing from the
// preservation hash are dropped rather than re-admitted with a made-up ticket.
var requeueStaleScript = redis.NewScript(`
	local qKey = KEYS[1]
	local pKey = KEYS[2]
	local tKey = KEYS[3]
	local cutoff = ARGV[1]
	local limit = tonumber(ARGV[2])

	local stale = redis.call('ZRANGEBYSCORE', pKey, '-inf', cutoff, 'LIMIT', 0, limit)
	if #stale == 0 then
		return 0
	end

	local requeued = 0
	for i = 1, #stale do
		local user = stale[i]
		local ticket = redis.call('HGET', tKey, user)

		redis.call('ZREM', pKey, user)
		redis.call('HDEL', tKey, user)

		if ticket then
			redis.call('ZADD', qKey, ticket, user)
			requeued = requeued + 1
		end
	end

	return requeued
`)

func (r *redisGateRepository) Enqueue(ctx context.Context, eventID, userID string) (bool, int64, error) {
	res, err := enqueueScript.Run(ctx, r.cli,
		[]string{r.queueKey(eventID), r.ticketCounterKey(eventID)},
		userID,
	).Slice()
	if err != nil {
		r.l.Errorf(ctx, "repository.redis.gate_repository.Enqueue: %v", err)
		return false, 0, err
	}

	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected enqueue script result length: %d", len(res))
	}

	isNew, _ := res[0].(int64)
	rank, _ := res[1].(int64)

	return isNew == 1, rank, nil
}

func (r *redisGateRepository) GetRank(ctx context.Context, eventID, userID string) (int64, error) {
	rank, err := r.cli.ZRank(ctx, r.queueKey(eventID), userID).Result()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // Not in queue
		}

		r.l.Errorf(ctx, "repository.redis.gate_repository.GetRank: %v", err)
		return 0, err
	}

	return rank, nil
}

func (r *redisGateRepository) IsProcessing(ctx context.Context, eventID, userID string) (bool, error) {
	// Score presence is the membership test; the score itself is the
	// admission timestamp used by RequeueStale.
	_, err := r.cli.ZScore(ctx, r.processingKey(eventID), userID).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}

		r.l.Errorf(ctx, "repository.redis.gate_repository.IsProcessing: %v", err)
		return false, err
	}

	return true, nil
}

func (r *redisGateRepository) PopToProcessing(ctx context.Context, eventID string, batchSize int) ([]models.DispatchEntry, error) {
	res, err := popToProcessingScript.Run(ctx, r.cli,
		[]string{r.queueKey(eventID), r.processingKey(eventID), r.ticketHashKey(eventID)},
		batchSize,
		time.Now().UnixMilli(),
	).Slice()
	if err != nil {
		r.l.Errorf(ctx, "repository.redis.gate_repository.PopToProcessing: %v", err)
		return nil, err
	}

	// Script returns a flat {user, ticket, user, ticket, ...} list.
	entries := make([]models.DispatchEntry, 0, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		userID, ok := res[i].(string)
		if !ok {
			continue
		}

		ticketStr, _ := res[i+1].(string)
		ticket, err := strconv.ParseFloat(ticketStr, 64)
		if err != nil {
			r.l.Warnf(ctx, "repository.redis.gate_repository.PopToProcessing: bad ticket %q for user %s", ticketStr, userID)
			continue
		}

		entries = append(entries, models.DispatchEntry{
			UserID: userID,
			Ticket: int64(ticket),
		})
	}

	return entries, nil
}

func (r *redisGateRepository) RemoveFromProcessing(ctx context.Context, eventID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(userIDs))
	for _, id := range userIDs {
		args = append(args, id)
	}

	if err := removeFromProcessingScript.Run(ctx, r.cli,
		[]string{r.processingKey(eventID), r.ticketHashKey(eventID)},
		args...,
	).Err(); err != nil {
		r.l.Errorf(ctx, "repository.redis.gate_repository.RemoveFromProcessing: %v", err)
		return err
	}

	return nil
}

func (r *redisGateRepository) RequeueStale(ctx context.Context, eventID string, timeout time.Duration, maxRequeue int) (int, error) {
	if maxRequeue <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-timeout).UnixMilli()

	requeued, err := requeueStaleScript.Run(ctx, r.cli,
		[]string{r.queueKey(eventID), r.processingKey(eventID), r.ticketHashKey(eventID)},
		cutoff,
		maxRequeue,
	).Int()
	if err != nil {
		r.l.Errorf(ctx, "repository.redis.gate_repository.RequeueStale: %v", err)
		return 0, err
	}

	if requeued > 0 {
		r.l.Infof(ctx, "Requeued %d stale processing entries for event %s", requeued, eventID)
	}

	return requeued, nil
}

func (r *redisGateRepository) queueKey(eventID string) string {
	return fmt.Sprintf("gate:queue:%s", eventID)
}

func (r *redisGateRepository) ticketCounterKey(eventID string) string {
	return fmt.Sprintf("gate:queue:rank:%s", eventID)
}

func (r *redisGateRepository) processingKey(eventID string) string {
	return fmt.Sprintf("gate:processing:%s", eventID)
}

func (r *redisGateRepository) ticketHashKey(eventID string) string {
	return fmt.Sprintf("gate:processing:rank:%s", eventID)
}
