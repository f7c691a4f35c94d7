package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ClipForge/logger"
	"ClipForge/model"
	"ClipForge/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.AssetRepository = (*AssetCache)(nil)

const (
	fieldSourceName = "source_name"
	fieldData       = "data"
	fieldUpdatedAt  = "updated_at"
)

// AssetCache Redis 版结构化缓存层，每条资源是一个 hash
type AssetCache struct {
	client *redis.Client
	// ttl 为 0 时不过期
	ttl        time.Duration
	maxRetries int
	retryDelay time.Duration
}

// NewAssetCache 创建资源缓存
func NewAssetCache(client *redis.Client, ttl time.Duration) *AssetCache {
	return &AssetCache{
		client:     client,
		ttl:        ttl,
		maxRetries: 2,
		retryDelay: 100 * time.Millisecond,
	}
}

// GetAssetKey 生成资源的 Redis 键
func GetAssetKey(store model.AssetKind, identity string) string {
	return fmt.Sprintf("clipforge:asset:%s:%s", store, identity)
}

// Get 读取缓存，键不存在返回 nil, nil
func (c *AssetCache) Get(ctx context.Context, store model.AssetKind, identity string) (*model.CachedAsset, error) {
	key := GetAssetKey(store, identity)
	retryDelay := c.retryDelay

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil {
			if len(fields) == 0 {
				logger.Debug("资源缓存不存在", logger.String("key", key))
				return nil, nil
			}
			return decodeAsset(store, identity, fields)
		}
		if err == redis.Nil {
			return nil, nil
		}

		lastErr = err
		if attempt < c.maxRetries-1 {
			logger.Warn("获取资源缓存失败，准备重试",
				logger.String("key", key),
				logger.Int("attempt", attempt+1),
				logger.ErrorField(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2 // 指数退避
		}
	}
	return nil, fmt.Errorf("get asset %s: %w", key, lastErr)
}

// Put 覆盖写入
func (c *AssetCache) Put(ctx context.Context, asset *model.CachedAsset) error {
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = time.Now()
	}
	key := GetAssetKey(model.AssetKind(asset.Store), asset.Identity)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeAsset(asset))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("设置资源缓存失败",
			logger.String("key", key),
			logger.Int("dataSize", len(asset.Data)),
			logger.ErrorField(err))
		return err
	}

	logger.Debug("资源缓存设置成功",
		logger.String("key", key),
		logger.Int("dataSize", len(asset.Data)))
	return nil
}

func encodeAsset(asset *model.CachedAsset) map[string]interface{} {
	return map[string]interface{}{
		fieldSourceName: asset.SourceName,
		fieldData:       asset.Data,
		fieldUpdatedAt:  strconv.FormatInt(asset.UpdatedAt.UnixMilli(), 10),
	}
}

func decodeAsset(store model.AssetKind, identity string, fields map[string]string) (*model.CachedAsset, error) {
	source, ok := fields[fieldSourceName]
	if !ok {
		return nil, fmt.Errorf("asset %s/%s: missing %s", store, identity, fieldSourceName)
	}
	asset := &model.CachedAsset{
		Store:      string(store),
		Identity:   identity,
		SourceName: source,
		Data:       []byte(fields[fieldData]),
	}
	if ms, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		asset.UpdatedAt = time.UnixMilli(ms)
	}
	return asset, nil
}
