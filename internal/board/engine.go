package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/internal/framework"
	"kds/board/pkg/errorutil"
	"kds/board/pkg/logger"
)

// 错误定义
var (
	ErrEngineStopped = errors.New("sync engine stopped")
	ErrEngineStarted = errors.New("sync engine already started")
	ErrStaleResult   = errors.New("refresh result superseded by a newer refresh")
)

// DefaultInterval 默认刷新周期
const DefaultInterval = 10 * time.Second

// OrderFetcher 订单拉取接口（orderapi.Client 实现）
type OrderFetcher interface {
	ListOrders(ctx context.Context, filter etorder.Status) ([]etorder.Order, error)
}

// EngineConfig 同步引擎配置
type EngineConfig struct {
	Interval time.Duration
}

// State 看板状态快照
type State struct {
	Orders    []etorder.Order
	Loading   bool
	Err       *errorutil.Error
	Filter    etorder.Status
	UpdatedAt time.Time // 最近一次成功刷新的时间
	Seq       uint64    // 最近一次生效的刷新序号
}

// Engine 同步引擎：订单列表的唯一数据源
//
// 每次 Refresh 分配递增序号；只有序号大于已生效序号、且过滤条件仍与当前一致的
// 结果才会写入状态，较早发出但较晚返回的响应不会覆盖较新的结果。
// Stop 之后返回的结果一律丢弃。
type Engine struct {
	fetcher OrderFetcher
	poller  *framework.Poller
	logger  logger.Logger
	now     func() time.Time

	mu        sync.RWMutex
	orders    []etorder.Order
	index     map[string]int
	err       *errorutil.Error
	filter    etorder.Status
	updatedAt time.Time
	pending   int
	issued    uint64
	applied   uint64
	started   bool
	stopped   bool
}

// NewEngine 创建同步引擎
func NewEngine(fetcher OrderFetcher, cfg EngineConfig, log logger.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	e := &Engine{
		fetcher: fetcher,
		logger:  log,
		now:     time.Now,
		orders:  make([]etorder.Order, 0),
		index:   make(map[string]int),
	}
	e.poller = framework.NewPoller(framework.PollerConfig{
		Name:     "sync",
		Interval: cfg.Interval,
	}, e.tick, log)
	return e
}

// Start 立即刷新一次，然后按周期刷新，直到 Stop 或 ctx 取消
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if e.started {
		e.mu.Unlock()
		return ErrEngineStarted
	}
	e.started = true
	e.mu.Unlock()

	e.logger.Infof(ctx, "[Engine] Starting")
	return e.poller.Start(ctx)
}

// Stop 停止定时刷新并等待循环退出；之后到达的任何结果都不会修改状态
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	// 先置位再取消定时器，保证 Stop 返回前后都不会有状态写入
	e.stopped = true
	e.mu.Unlock()

	e.poller.Stop()
	e.poller.Wait()
	e.logger.Infof(context.Background(), "[Engine] Stopped")
}

// tick 定时刷新任务；错误只记录，下一个周期继续尝试
func (e *Engine) tick(ctx context.Context) {
	if err := e.Refresh(ctx); err != nil {
		switch {
		case errors.Is(err, ErrStaleResult), errors.Is(err, ErrEngineStopped):
			e.logger.Debugf(ctx, "[Engine] Periodic refresh skipped: %v", err)
		default:
			e.logger.Warnf(ctx, "[Engine] Periodic refresh failed: %v", err)
		}
	}
}

// SetFilter 更新过滤条件并立即刷新；刷新完成前保留当前列表
func (e *Engine) SetFilter(ctx context.Context, filter etorder.Status) error {
	if filter != "" && !filter.Known() {
		return fmt.Errorf("%w: %q", etorder.ErrUnknownStatus, filter)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.filter = filter
	e.mu.Unlock()

	e.logger.Infof(ctx, "[Engine] Filter changed to %q", filter)
	return e.Refresh(ctx)
}

// Refresh 按当前过滤条件拉取订单
// 成功时整体替换订单列表；失败时保留列表并记录分类后的错误
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.issued++
	seq := e.issued
	filter := e.filter
	e.pending++
	e.err = nil
	e.mu.Unlock()

	ctx = logger.WithRefreshSeq(ctx, seq)
	e.logger.Debugf(ctx, "[Engine] Refresh started, filter: %q", filter)

	orders, fetchErr := e.fetcher.ListOrders(ctx, filter)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending--

	if e.stopped {
		e.logger.Debugf(ctx, "[Engine] Dropping refresh result after stop")
		return ErrEngineStopped
	}
	if seq <= e.applied || filter != e.filter {
		e.logger.Debugf(ctx, "[Engine] Dropping stale refresh result, applied seq: %d, filter now: %q", e.applied, e.filter)
		return ErrStaleResult
	}
	e.applied = seq

	if fetchErr != nil {
		e.err = errorutil.Classify(fetchErr)
		e.logger.Warnf(ctx, "[Engine] Refresh failed, kind: %s, error: %v", e.err.Kind, fetchErr)
		return fetchErr
	}

	next := make([]etorder.Order, len(orders))
	copy(next, orders)
	index := make(map[string]int, len(next))
	for i, o := range next {
		index[o.OrderID] = i
	}
	// 较早的失败结果可能已先行生效，成功时一并清除
	e.err = nil
	e.orders = next
	e.index = index
	e.updatedAt = e.now()

	e.logger.Debugf(ctx, "[Engine] Refresh applied, orders: %d", len(next))
	return nil
}

// Snapshot 返回状态副本
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]etorder.Order, len(e.orders))
	copy(orders, e.orders)
	return State{
		Orders:    orders,
		Loading:   e.pending > 0,
		Err:       e.err,
		Filter:    e.filter,
		UpdatedAt: e.updatedAt,
		Seq:       e.applied,
	}
}

// Lookup 按 ID 查找当前展示的订单
func (e *Engine) Lookup(orderID string) (etorder.Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	i, ok := e.index[orderID]
	if !ok {
		return etorder.Order{}, false
	}
	return e.orders[i], true
}
