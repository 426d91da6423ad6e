package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publish 向指定频道发布一条消息
func Publish(ctx context.Context, channel string, payload interface{}) error {
	return Rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe 订阅一个或多个频道，调用方负责 Close
func Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return Rdb.Subscribe(ctx, channels...)
}
