package board

import (
	"context"
	"encoding/json"
	"time"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/logger"
)

// pickup 任务存活时间（秒）
const pickupJobTTL = 3600

// JobPublisher 队列发布接口（lmstfy.Client 实现）
type JobPublisher interface {
	Publish(queue string, data []byte, ttl, delay uint32) error
}

// PickupJob 取餐通知任务
type PickupJob struct {
	OrderID      string    `json:"order_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	ReadyAt      time.Time `json:"ready_at"`
	RequestID    string    `json:"request_id"`
}

// PickupPublisher 订单出餐后投递取餐任务（叫号屏、短信等下游消费）
type PickupPublisher struct {
	queue     JobPublisher
	queueName string
	logger    logger.Logger
}

// NewPickupPublisher 创建取餐任务发布者
func NewPickupPublisher(queue JobPublisher, queueName string, log logger.Logger) *PickupPublisher {
	return &PickupPublisher{queue: queue, queueName: queueName, logger: log}
}

// OnActionSettled 只处理成功的 MARK_READY
func (p *PickupPublisher) OnActionSettled(ctx context.Context, r ActionResult) {
	if !r.Succeeded() || r.Action != etorder.ActionMarkReady {
		return
	}

	job := PickupJob{
		OrderID:      r.OrderID,
		CustomerName: r.Order.CustomerName,
		ReadyAt:      r.StartedAt.Add(r.Duration),
		RequestID:    r.RequestID,
	}
	if r.Updated != nil {
		if r.Updated.ReadyAt != nil {
			job.ReadyAt = *r.Updated.ReadyAt
		}
		if r.Updated.CustomerName != "" {
			job.CustomerName = r.Updated.CustomerName
		}
	}

	data, err := json.Marshal(job)
	if err != nil {
		p.logger.Errorf(ctx, "[PickupPublisher] Marshal failed: %v", err)
		return
	}
	if err := p.queue.Publish(p.queueName, data, pickupJobTTL, 0); err != nil {
		p.logger.Warnf(ctx, "[PickupPublisher] Publish failed: %v", err)
		return
	}
	p.logger.Infof(ctx, "[PickupPublisher] Pickup job published to %s", p.queueName)
}
