package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PubSub Redis 发布/订阅客户端
type PubSub struct {
	client *redis.Client
}

// NewPubSub 创建 PubSub 实例
func NewPubSub(addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &PubSub{
		client: client,
	}, nil
}

// BoardEvent 看板事件：某个看板实例成功流转了一个订单
type BoardEvent struct {
	Source    string `json:"source"` // 发布者实例 ID
	OrderID   string `json:"order_id"`
	Action    string `json:"action"`
	Status    string `json:"status"` // 流转后的状态
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// PublishBoardEvent 发布看板事件
func (p *PubSub) PublishBoardEvent(ctx context.Context, channel string, event *BoardEvent) error {
	msgJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal board event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish board event: %w", err)
	}

	return nil
}

// Listen 订阅频道并把每条消息交给 handler，阻塞直到 ctx 取消
func (p *PubSub) Listen(ctx context.Context, channel string, handler func(ctx context.Context, payload string)) error {
	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()

	// 等待订阅确认，连接问题在这里暴露
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(ctx, msg.Payload)
		}
	}
}

// Close 关闭 Redis 连接
func (p *PubSub) Close() error {
	return p.client.Close()
}
