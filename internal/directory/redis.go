package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xiaot623/agentkit/internal/domain"
)

const (
	agentKeyPrefix = "agent:"
	nameKeyPrefix  = "agent-name:"
)

// RedisDirectory stores agents in Redis so several service replicas share
// one directory.
type RedisDirectory struct {
	client *redis.Client
}

// NewRedisDirectory connects to the Redis server at addr.
func NewRedisDirectory(addr string) *RedisDirectory {
	return &RedisDirectory{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Ping checks the connection.
func (r *RedisDirectory) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisDirectory) Close() error {
	return r.client.Close()
}

func (r *RedisDirectory) Register(ctx context.Context, rec *domain.AgentRecord) (string, error) {
	stored := prepare(rec)
	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode agent: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, nameKeyPrefix+stored.Name, stored.ID, 0).Result()
	if err != nil {
		return "", fmt.Errorf("failed to claim agent name: %w", err)
	}
	if !claimed {
		return "", domain.ErrDuplicateAgent
	}
	if err := r.client.Set(ctx, agentKeyPrefix+stored.ID, data, 0).Err(); err != nil {
		_ = r.client.Del(ctx, nameKeyPrefix+stored.Name).Err()
		return "", fmt.Errorf("failed to store agent: %w", err)
	}
	return stored.ID, nil
}

func (r *RedisDirectory) Lookup(ctx context.Context, id string) (*domain.AgentRecord, error) {
	data, err := r.client.Get(ctx, agentKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	var rec domain.AgentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode agent %s: %w", id, err)
	}
	return &rec, nil
}

func (r *RedisDirectory) List(ctx context.Context) ([]*domain.AgentRecord, error) {
	var out []*domain.AgentRecord
	iter := r.client.Scan(ctx, 0, agentKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()[len(agentKeyPrefix):]
		rec, err := r.Lookup(ctx, id)
		if errors.Is(err, domain.ErrAgentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	sortRecords(out)
	return out, nil
}

func (r *RedisDirectory) Deregister(ctx context.Context, id string) (*domain.AgentRecord, error) {
	rec, err := r.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.client.Del(ctx, agentKeyPrefix+id, nameKeyPrefix+rec.Name).Err(); err != nil {
		return nil, fmt.Errorf("failed to delete agent: %w", err)
	}
	return rec, nil
}
