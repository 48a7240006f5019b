package board

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/infra/redis"
	"kds/board/pkg/logger"
)

// EventSink 看板事件发布接口（redis.PubSub 实现）
type EventSink interface {
	PublishBoardEvent(ctx context.Context, channel string, event *redis.BoardEvent) error
}

// EventSource 看板事件订阅接口（redis.PubSub 实现）
type EventSource interface {
	Listen(ctx context.Context, channel string, handler func(ctx context.Context, payload string)) error
}

// EventPublisher 成功流转后广播看板事件，其它看板实例据此立即刷新
type EventPublisher struct {
	sink       EventSink
	channel    string
	instanceID string
	logger     logger.Logger
}

// NewEventPublisher 创建事件发布者
func NewEventPublisher(sink EventSink, channel, instanceID string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		sink:       sink,
		channel:    channel,
		instanceID: instanceID,
		logger:     log,
	}
}

// OnActionSettled 只广播成功的流转
func (p *EventPublisher) OnActionSettled(ctx context.Context, r ActionResult) {
	if !r.Succeeded() {
		return
	}

	event := &redis.BoardEvent{
		Source:    p.instanceID,
		OrderID:   r.OrderID,
		Action:    string(r.Action),
		Status:    string(r.Action.To()),
		RequestID: r.RequestID,
		Timestamp: r.StartedAt.Add(r.Duration).Unix(),
	}
	if err := p.sink.PublishBoardEvent(ctx, p.channel, event); err != nil {
		p.logger.Warnf(ctx, "[EventPublisher] Publish failed: %v", err)
	}
}

// EventListener 订阅其它看板实例的事件并触发刷新
type EventListener struct {
	source     EventSource
	channel    string
	instanceID string
	syncer     Synchronizer
	logger     logger.Logger
	backoff    time.Duration

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewEventListener 创建事件监听者
func NewEventListener(source EventSource, channel, instanceID string, syncer Synchronizer, log logger.Logger) *EventListener {
	return &EventListener{
		source:     source,
		channel:    channel,
		instanceID: instanceID,
		syncer:     syncer,
		logger:     log,
		backoff:    time.Second,
	}
}

// Start 启动订阅循环；订阅断开后按退避时间重连
func (l *EventListener) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)
	l.cancelFunc = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.logger.Infof(ctx, "[EventListener] Listening on channel: %s", l.channel)

		for {
			if err := l.source.Listen(ctx, l.channel, l.handle); err != nil {
				l.logger.Warnf(ctx, "[EventListener] Listen error: %v, retrying...", err)
			}

			select {
			case <-ctx.Done():
				l.logger.Infof(context.Background(), "[EventListener] Context cancelled, exiting")
				return
			case <-time.After(l.backoff):
			}
		}
	}()
}

// Stop 停止订阅并等待退出
func (l *EventListener) Stop() {
	if l.cancelFunc != nil {
		l.cancelFunc()
	}
	l.wg.Wait()
}

// handle 处理一条事件；自己发布的事件忽略（发布前已刷新过）
func (l *EventListener) handle(ctx context.Context, payload string) {
	var event redis.BoardEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		l.logger.Warnf(ctx, "[EventListener] Invalid event payload: %v", err)
		return
	}
	if event.Source == l.instanceID {
		return
	}

	ctx = logger.WithOrderID(ctx, event.OrderID)
	if event.RequestID != "" {
		ctx = logger.WithTraceID(ctx, event.RequestID)
	}
	l.logger.Debugf(ctx, "[EventListener] Remote %s from %s, refreshing", etorder.Action(event.Action), event.Source)

	if err := l.syncer.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResult) && !errors.Is(err, ErrEngineStopped) {
		l.logger.Warnf(ctx, "[EventListener] Refresh failed: %v", err)
	}
}
