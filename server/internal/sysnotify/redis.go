package sysnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher keeps pending notifications in redis so that several
// instances share one publish-if-first state.
//
// Keys:
//
//	{prefix}:{type}  notification JSON, created with SETNX
//	{prefix}:types   set of pending types
type RedisPublisher struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisPublisher returns a RedisPublisher using rdb.
func NewRedisPublisher(rdb redis.Cmdable, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

// ConnectRedis creates a client and checks it with PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("sysnotify: connect redis at %s: %w", addr, err)
	}
	return client, nil
}

func (p *RedisPublisher) key(typ string) string { return p.prefix + ":" + typ }
func (p *RedisPublisher) typesKey() string      { return p.prefix + ":types" }

// PublishIfFirst implements Publisher.
func (p *RedisPublisher) PublishIfFirst(ctx context.Context, n Notification) (bool, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return false, fmt.Errorf("encode notification: %w", err)
	}
	ok, err := p.rdb.SetNX(ctx, p.key(n.Type), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := p.rdb.SAdd(ctx, p.typesKey(), n.Type).Err(); err != nil {
		return true, fmt.Errorf("redis sadd: %w", err)
	}
	return true, nil
}

// SystemNotifications returns the pending notifications, oldest first.
func (p *RedisPublisher) SystemNotifications(ctx context.Context) ([]Notification, error) {
	types, err := p.rdb.SMembers(ctx, p.typesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	out := make([]Notification, 0, len(types))
	for _, typ := range types {
		raw, err := p.rdb.Get(ctx, p.key(typ)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", typ, err)
		}
		var n Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", typ, err)
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DismissSystemNotification removes the pending notification of typ.
func (p *RedisPublisher) DismissSystemNotification(ctx context.Context, typ string) (bool, error) {
	var del *redis.IntCmd
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, p.key(typ))
		pipe.SRem(ctx, p.typesKey(), typ)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis dismiss %s: %w", typ, err)
	}
	return del.Val() > 0, nil
}
