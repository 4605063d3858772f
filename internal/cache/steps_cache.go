package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pffigueiredo/daily-step-tracker/internal/model"
)

const keyPrefix = "daily_steps"

// ErrStale 回填期间该键已被失效，放弃写入
var ErrStale = errors.New("steps cache entry is stale")

// StepsCache 按 (user, date) 缓存单日记录，只缓存命中的记录。
// 每个键带一个失效代数：Invalidate 递增代数，Set 只在代数未变时写入，
// 避免并发修改后旧记录被回填。
type StepsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStepsCache(rdb *redis.Client, ttl time.Duration) *StepsCache {
	return &StepsCache{rdb: rdb, ttl: ttl}
}

func Key(userID, date string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, userID, date)
}

// date 已校验为 YYYY-MM-DD，加后缀后不会与 Key 冲突
func genKey(userID, date string) string {
	return Key(userID, date) + "#gen"
}

// Get 未命中时返回 nil；gen 为读取时的失效代数，回填时传给 Set
func (c *StepsCache) Get(ctx context.Context, userID, date string) (*model.DailyStepRecord, int64, error) {
	vals, err := c.rdb.MGet(ctx, Key(userID, date), genKey(userID, date)).Result()
	if err != nil {
		return nil, 0, err
	}

	gen, err := parseGen(vals[1])
	if err != nil {
		return nil, 0, err
	}
	if vals[0] == nil {
		return nil, gen, nil
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, gen, fmt.Errorf("unexpected cache value type %T", vals[0])
	}

	var record model.DailyStepRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, gen, err
	}
	return &record, gen, nil
}

// Set 代数与 gen 不一致时返回 ErrStale
func (c *StepsCache) Set(ctx context.Context, record *model.DailyStepRecord, gen int64) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	key := Key(record.UserID, record.Date)
	gk := genKey(record.UserID, record.Date)

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, gk)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrStale
	}
	return err
}

// Invalidate 删除记录并递增代数
func (c *StepsCache) Invalidate(ctx context.Context, userID, date string) error {
	gk := genKey(userID, date)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, Key(userID, date))
		pipe.Incr(ctx, gk)
		// 代数比记录多保留一个 TTL
		if c.ttl > 0 {
			pipe.Expire(ctx, gk, 2*c.ttl)
		}
		return nil
	})
	return err
}

func parseGen(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}
