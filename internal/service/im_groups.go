package service

import (
	"Bazaar/internal/pkg/consts"
	"Bazaar/internal/pkg/redis"
	"context"
	"strconv"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
)

// GroupLayer 群组广播端口：群组名即用户 ID 的字符串形式，
// 同一用户的每条活跃连接各自加入一次
type GroupLayer interface {
	Join(ctx context.Context, group string) (GroupSub, error)
	Publish(ctx context.Context, group string, event interface{}) error
}

// GroupSub 单条连接在某个群组上的订阅句柄
type GroupSub interface {
	Events() <-chan []byte
	Close() error
}

// UserGroup 用户身份群组名
func UserGroup(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}

type redisGroupLayer struct{}

// NewRedisGroupLayer Redis 频道实现，频道名为 im:user:<group>
func NewRedisGroupLayer() GroupLayer {
	return &redisGroupLayer{}
}

func (l *redisGroupLayer) Join(ctx context.Context, group string) (GroupSub, error) {
	pubsub := redis.Subscribe(ctx, consts.IMUserKey+group)
	// 确认订阅生效后再返回，避免漏掉进场前后的广播
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisGroupSub{
		pubsub: pubsub,
		events: make(chan []byte, 64),
	}
	go sub.pump()
	return sub, nil
}

func (l *redisGroupLayer) Publish(ctx context.Context, group string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return redis.Publish(ctx, consts.IMUserKey+group, data)
}

type redisGroupSub struct {
	pubsub *goredis.PubSub
	events chan []byte
}

func (s *redisGroupSub) pump() {
	defer close(s.events)
	for msg := range s.pubsub.Channel() {
		s.events <- []byte(msg.Payload)
	}
}

func (s *redisGroupSub) Events() <-chan []byte {
	return s.events
}

func (s *redisGroupSub) Close() error {
	return s.pubsub.Close()
}
