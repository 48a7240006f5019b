package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/errorutil"
)

// DefaultNoticeCapacity 默认保留条数
const DefaultNoticeCapacity = 50

// Notice 面向操作员的一次性提示（动作失败）
// 不并入同步引擎的持久错误状态
type Notice struct {
	ID        string
	OrderID   string
	ShortID   string
	Action    etorder.Action
	Kind      errorutil.Kind
	Message   string
	Retryable bool // 重试是否可能成功（网络故障、5xx）
	CreatedAt time.Time
}

// NoticeBoard 固定容量的提示环形缓冲
type NoticeBoard struct {
	mu       sync.RWMutex
	items    []Notice
	next     int
	full     bool
	capacity int
	now      func() time.Time
}

// NewNoticeBoard 创建提示板
func NewNoticeBoard(capacity int) *NoticeBoard {
	if capacity <= 0 {
		capacity = DefaultNoticeCapacity
	}
	return &NoticeBoard{
		items:    make([]Notice, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Post 追加一条提示，满了覆盖最旧的
func (b *NoticeBoard) Post(n Notice) Notice {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.now()
	}
	b.items[b.next] = n
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
	return n
}

// List 最新的在前；limit <= 0 返回全部
func (b *NoticeBoard) List(limit int) []Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.next
	if b.full {
		size = b.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Notice, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (b.next - i + b.capacity) % b.capacity
		out = append(out, b.items[idx])
	}
	return out
}

// OnActionSettled 失败的动作转成提示
func (b *NoticeBoard) OnActionSettled(ctx context.Context, r ActionResult) {
	if r.Succeeded() {
		return
	}
	b.Post(Notice{
		OrderID:   r.OrderID,
		ShortID:   r.Order.ShortID(),
		Action:    r.Action,
		Kind:      r.Err.Kind,
		Message:   fmt.Sprintf("Could not %s order %s. %s", actionLabel(r.Action), r.Order.ShortID(), r.Err.OperatorMessage()),
		Retryable: r.Err.Retryable,
	})
}

func actionLabel(a etorder.Action) string {
	switch a {
	case etorder.ActionStartPreparing:
		return "start preparing"
	case etorder.ActionMarkReady:
		return "mark ready"
	}
	return string(a)
}
