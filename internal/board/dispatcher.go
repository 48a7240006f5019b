package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/errorutil"
	"kds/board/pkg/logger"
)

// 错误定义
var (
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrOrderNotDisplayed = errors.New("order is not on the board")
	ErrActionNotOffered  = errors.New("action not offered for current order status")
)

// 流转成功后刷新的超时时间
const followUpRefreshTimeout = 15 * time.Second

// OrderMutator 状态流转接口（orderapi.Client 实现）
type OrderMutator interface {
	StartPreparing(ctx context.Context, orderID string) (*etorder.Order, error)
	MarkReady(ctx context.Context, orderID string) (*etorder.Order, error)
}

// Synchronizer 分发器依赖的同步引擎能力
type Synchronizer interface {
	Lookup(orderID string) (etorder.Order, bool)
	Refresh(ctx context.Context) error
}

// ActionResult 一次已结束的流转请求
type ActionResult struct {
	RequestID string
	OrderID   string
	Action    etorder.Action
	Order     etorder.Order  // 发起时展示的订单
	Updated   *etorder.Order // 订单服务返回的订单，可能为 nil
	Err       *errorutil.Error
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded 是否成功
func (r ActionResult) Succeeded() bool {
	return r.Err == nil
}

// ActionObserver 流转结果观察者（提示、事件广播、审计、取餐队列）
type ActionObserver interface {
	OnActionSettled(ctx context.Context, result ActionResult)
}

// ObserverFunc 函数适配器
type ObserverFunc func(ctx context.Context, result ActionResult)

// OnActionSettled 实现 ActionObserver
func (f ObserverFunc) OnActionSettled(ctx context.Context, result ActionResult) {
	f(ctx, result)
}

// Dispatcher 动作分发器：同一订单同一时刻最多一个流转请求
type Dispatcher struct {
	mutator   OrderMutator
	syncer    Synchronizer
	observers []ActionObserver
	logger    logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]etorder.Action
}

// NewDispatcher 创建动作分发器
func NewDispatcher(mutator OrderMutator, syncer Synchronizer, log logger.Logger, observers ...ActionObserver) *Dispatcher {
	return &Dispatcher{
		mutator:   mutator,
		syncer:    syncer,
		observers: observers,
		logger:    log,
		now:       time.Now,
		inFlight:  make(map[string]etorder.Action),
	}
}

// StartPreparing RECEIVED → PREPARING
func (d *Dispatcher) StartPreparing(ctx context.Context, orderID string) (bool, error) {
	return d.Dispatch(ctx, orderID, etorder.ActionStartPreparing)
}

// MarkReady PREPARING → READY
func (d *Dispatcher) MarkReady(ctx context.Context, orderID string) (bool, error) {
	return d.Dispatch(ctx, orderID, etorder.ActionMarkReady)
}

// Dispatch 发起流转
//
// 返回值 dispatched 表示是否真正发出了远程请求：
//   - 订单已在途：(false, nil)，不做任何事
//   - 订单不在看板上或状态不符：(false, err)，不发请求
//   - 请求失败：(true, *errorutil.Error)，列表不变，可立即重试
//   - 请求成功：(true, nil)，并触发一次刷新
//
// 在途标记在刷新结束后无条件释放（包括 panic），观察者在释放之后才被通知。
func (d *Dispatcher) Dispatch(ctx context.Context, orderID string, action etorder.Action) (bool, error) {
	if action.From() == "" {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}

	if logger.TraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, uuid.New().String())
	}
	ctx = logger.WithOrderID(ctx, orderID)
	ctx = logger.WithAction(ctx, string(action))

	if !d.acquire(orderID, action) {
		d.logger.Debugf(ctx, "[Dispatcher] Order already in flight, ignoring")
		return false, nil
	}

	result, err := d.send(ctx, orderID, action)
	if err != nil {
		return false, err
	}

	// 远程请求已结束，调用方断开不影响审计与广播
	d.notify(context.WithoutCancel(ctx), result)
	if !result.Succeeded() {
		return true, result.Err
	}
	return true, nil
}

// send 持有在途标记完成预检、远程请求与后续刷新
// 预检失败返回 error；远程请求的结果（包括失败）记录在 ActionResult 中
func (d *Dispatcher) send(ctx context.Context, orderID string, action etorder.Action) (ActionResult, error) {
	defer d.release(orderID)

	order, ok := d.syncer.Lookup(orderID)
	if !ok {
		return ActionResult{}, ErrOrderNotDisplayed
	}
	if order.Status != action.From() {
		return ActionResult{}, fmt.Errorf("%w: %s requires %s, order is %s",
			ErrActionNotOffered, action, action.From(), order.Status)
	}

	result := ActionResult{
		RequestID: logger.TraceID(ctx),
		OrderID:   orderID,
		Action:    action,
		Order:     order,
		StartedAt: d.now(),
	}

	d.logger.Infof(ctx, "[Dispatcher] Sending %s", action)
	updated, err := d.mutate(ctx, orderID, action)
	result.Duration = d.now().Sub(result.StartedAt)

	if err != nil {
		result.Err = errorutil.Classify(err)
		d.logger.Warnf(ctx, "[Dispatcher] %s failed, kind: %s, error: %v", action, result.Err.Kind, err)
		return result, nil
	}

	result.Updated = updated
	d.logger.Infof(ctx, "[Dispatcher] %s succeeded, duration: %v", action, result.Duration)

	// 以服务端为准：不在本地改状态，重新拉取
	// 流转已被订单服务接受，刷新不随调用方取消
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpRefreshTimeout)
	defer cancel()
	if rerr := d.syncer.Refresh(refreshCtx); rerr != nil && !errors.Is(rerr, ErrStaleResult) {
		d.logger.Warnf(ctx, "[Dispatcher] Follow-up refresh failed: %v", rerr)
	}
	return result, nil
}

// InFlight 当前在途的订单 ID（有序）
func (d *Dispatcher) InFlight() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]string, 0, len(d.inFlight))
	for id := range d.inFlight {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsInFlight 订单是否在途
func (d *Dispatcher) IsInFlight(orderID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[orderID]
	return ok
}

func (d *Dispatcher) acquire(orderID string, action etorder.Action) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.inFlight[orderID]; busy {
		return false
	}
	d.inFlight[orderID] = action
	return true
}

func (d *Dispatcher) release(orderID string) {
	d.mu.Lock()
	delete(d.inFlight, orderID)
	d.mu.Unlock()
}

func (d *Dispatcher) mutate(ctx context.Context, orderID string, action etorder.Action) (*etorder.Order, error) {
	switch action {
	case etorder.ActionStartPreparing:
		return d.mutator.StartPreparing(ctx, orderID)
	case etorder.ActionMarkReady:
		return d.mutator.MarkReady(ctx, orderID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
}

// notify 通知观察者；单个观察者 panic 不影响其它观察者与在途标记释放
func (d *Dispatcher) notify(ctx context.Context, result ActionResult) {
	for _, o := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Errorf(ctx, "[Dispatcher] Observer panic: %v", r)
				}
			}()
			o.OnActionSettled(ctx, result)
		}()
	}
}
