package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

// RedisRepo stores records as BSON under "<prefix><collection>:<id>" and
// keeps the ids of each collection in the set "<prefix><collection>:ids".
// Queries load the whole collection and filter it in process, so it suits
// small collections.
type RedisRepo struct {
	scanRepo
	client *redis.Client
}

// NewRedisRepo creates a Redis backed repository. Prefix may be empty.
func NewRedisRepo(client *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "docmodel:"
	}
	return &RedisRepo{
		scanRepo: scanRepo{backend: "redis", store: &redisStore{client: client, prefix: prefix}},
		client:   client,
	}
}

// Ping checks the Redis connection.
func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type redisStore struct {
	client *redis.Client
	prefix string
}

func (r *redisStore) key(collection, id string) string {
	return r.prefix + collection + ":" + id
}

func (r *redisStore) idsKey(collection string) string {
	return r.prefix + collection + ":ids"
}

func (r *redisStore) all(ctx context.Context, collection string) ([]bson.D, error) {
	ids, err := r.client.SMembers(ctx, r.idsKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(collection, id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]bson.D, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// id listed but record gone
			continue
		}
		var rec bson.D
		if err := bson.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	// SMEMBERS has no order; sort by id for stable results.
	sortRecords(out, bson.D{{Key: "_id", Value: 1}})
	return out, nil
}

func (r *redisStore) put(ctx context.Context, collection, id string, rec bson.D, create bool) error {
	b, err := bson.Marshal(rec)
	if err != nil {
		return err
	}
	key := r.key(collection, id)
	if create {
		ok, err := r.client.SetNX(ctx, key, b, 0).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrDuplicate
		}
	} else if err := r.client.Set(ctx, key, b, 0).Err(); err != nil {
		return err
	}
	return r.client.SAdd(ctx, r.idsKey(collection), id).Err()
}

func (r *redisStore) del(ctx context.Context, collection, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(collection, id))
	pipe.SRem(ctx, r.idsKey(collection), id)
	_, err := pipe.Exec(ctx)
	return err
}
