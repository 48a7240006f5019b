package board

import (
	"context"
	"time"

	"kds/board/internal/board"
	"kds/board/internal/common/entity"
	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/logger"
)

// StateSource 看板状态来源（board.Engine 实现）
type StateSource interface {
	Snapshot() board.State
	SetFilter(ctx context.Context, filter etorder.Status) error
}

// ActionDispatcher 流转分发（board.Dispatcher 实现）
type ActionDispatcher interface {
	StartPreparing(ctx context.Context, orderID string) (bool, error)
	MarkReady(ctx context.Context, orderID string) (bool, error)
	InFlight() []string
}

// NoticeLister 提示列表（board.NoticeBoard 实现）
type NoticeLister interface {
	List(limit int) []board.Notice
}

// ActionHistory 操作审计查询（mysql.ActionDAO 实现）
type ActionHistory interface {
	ListByOrder(ctx context.Context, orderID string, limit int) ([]*entity.ActionLog, error)
}

// BoardHandler 看板 HTTP 处理器
type BoardHandler struct {
	state      StateSource
	dispatcher ActionDispatcher
	notices    NoticeLister
	history    ActionHistory // 未配置 MySQL 时为 nil
	logger     logger.Logger
	now        func() time.Time
}

// NewBoardHandler 创建看板处理器实例
func NewBoardHandler(state StateSource, dispatcher ActionDispatcher, notices NoticeLister, log logger.Logger) *BoardHandler {
	return &BoardHandler{
		state:      state,
		dispatcher: dispatcher,
		notices:    notices,
		logger:     log,
		now:        time.Now,
	}
}

// WithHistory 开启操作记录查询
func (h *BoardHandler) WithHistory(history ActionHistory) *BoardHandler {
	h.history = history
	return h
}
