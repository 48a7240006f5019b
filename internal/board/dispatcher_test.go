package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/errorutil"
	"kds/board/pkg/logger"
)

type mutation struct {
	orderID string
	action  etorder.Action
}

// fakeMutator 记录调用；对 gateFor 订单的请求阻塞到 gate 关闭
type fakeMutator struct {
	mu      sync.Mutex
	calls   []mutation
	err     error
	updated *etorder.Order
	gateFor string
	gate    chan struct{}
	entered chan struct{}
	onCall  func()
}

func newFakeMutator() *fakeMutator {
	return &fakeMutator{entered: make(chan struct{}, 8)}
}

func (m *fakeMutator) StartPreparing(ctx context.Context, orderID string) (*etorder.Order, error) {
	return m.record(orderID, etorder.ActionStartPreparing)
}

func (m *fakeMutator) MarkReady(ctx context.Context, orderID string) (*etorder.Order, error) {
	return m.record(orderID, etorder.ActionMarkReady)
}

func (m *fakeMutator) record(orderID string, action etorder.Action) (*etorder.Order, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mutation{orderID: orderID, action: action})
	gate, err, updated, onCall := m.gate, m.err, m.updated, m.onCall
	if orderID != m.gateFor {
		gate = nil
	}
	m.mu.Unlock()

	m.entered <- struct{}{}
	if onCall != nil {
		onCall()
	}
	if gate != nil {
		<-gate
	}
	return updated, err
}

func (m *fakeMutator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type dispatcherFixture struct {
	fetcher *fakeFetcher
	mutator *fakeMutator
	engine  *Engine
	notices *NoticeBoard
	d       *Dispatcher
}

func newDispatcherFixture(t *testing.T, observers ...ActionObserver) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		fetcher: newFakeFetcher(testOrders()...),
		mutator: newFakeMutator(),
		notices: NewNoticeBoard(DefaultNoticeCapacity),
	}
	f.engine = newTestEngine(f.fetcher, time.Hour)
	require.NoError(t, f.engine.Refresh(context.Background()))

	observers = append([]ActionObserver{f.notices}, observers...)
	f.d = NewDispatcher(f.mutator, f.engine, logger.NewNop(), observers...)
	return f
}

func statusOf(t *testing.T, e *Engine, orderID string) etorder.Status {
	t.Helper()
	o, ok := e.Lookup(orderID)
	require.True(t, ok)
	return o.Status
}

func TestDispatchSuccessRefreshesOnce(t *testing.T) {
	f := newDispatcherFixture(t)
	fetches := f.fetcher.callCount()

	next := testOrders()
	next[0].Status = etorder.StatusPreparing
	f.fetcher.setOrders(next...)

	dispatched, err := f.d.StartPreparing(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, dispatched)

	assert.Equal(t, 1, f.mutator.callCount())
	assert.Equal(t, fetches+1, f.fetcher.callCount())
	assert.Equal(t, etorder.StatusPreparing, statusOf(t, f.engine, "order-1"))
	assert.Empty(t, f.d.InFlight())
	assert.Empty(t, f.notices.List(0))
}

func TestDispatchIgnoresRepeatWhileInFlight(t *testing.T) {
	f := newDispatcherFixture(t)
	f.mutator.gateFor = "order-1"
	f.mutator.gate = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := f.d.StartPreparing(context.Background(), "order-1")
		first <- err
	}()

	select {
	case <-f.mutator.entered:
	case <-time.After(time.Second):
		t.Fatal("mutation was not sent")
	}
	assert.True(t, f.d.IsInFlight("order-1"))
	assert.Equal(t, []string{"order-1"}, f.d.InFlight())

	dispatched, err := f.d.StartPreparing(context.Background(), "order-1")
	require.NoError(t, err)
	assert.False(t, dispatched)

	// 其它订单不受影响
	dispatched, err = f.d.MarkReady(context.Background(), "order-2")
	require.NoError(t, err)
	assert.True(t, dispatched)

	close(f.mutator.gate)
	require.NoError(t, <-first)

	assert.Equal(t, 2, f.mutator.callCount())
	assert.Equal(t, []mutation{
		{orderID: "order-1", action: etorder.ActionStartPreparing},
		{orderID: "order-2", action: etorder.ActionMarkReady},
	}, f.mutator.calls)
	assert.Empty(t, f.d.InFlight())
}

func TestDispatchFailureLeavesBoardUnchanged(t *testing.T) {
	f := newDispatcherFixture(t)
	fetches := f.fetcher.callCount()
	f.mutator.err = errorutil.ServerError("mark_ready", "http://orders/orders/order-2/mark-ready", 500, "oops")

	dispatched, err := f.d.MarkReady(context.Background(), "order-2")
	assert.True(t, dispatched)
	require.Error(t, err)

	var e *errorutil.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errorutil.KindServerError, e.Kind)

	assert.Equal(t, fetches, f.fetcher.callCount())
	assert.Equal(t, etorder.StatusPreparing, statusOf(t, f.engine, "order-2"))
	assert.Empty(t, f.d.InFlight())

	notices := f.notices.List(0)
	require.Len(t, notices, 1)
	assert.Equal(t, "order-2", notices[0].OrderID)
	assert.Equal(t, etorder.ActionMarkReady, notices[0].Action)
	assert.Contains(t, notices[0].Message, "HTTP 500")

	// 失败后可立即重试
	f.mutator.err = nil
	dispatched, err = f.d.MarkReady(context.Background(), "order-2")
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Equal(t, 2, f.mutator.callCount())
}

func TestDispatchTransportFailureClassified(t *testing.T) {
	f := newDispatcherFixture(t)
	f.mutator.err = context.DeadlineExceeded

	_, err := f.d.StartPreparing(context.Background(), "order-1")
	require.Error(t, err)
	assert.Equal(t, errorutil.KindUnreachable, errorutil.KindOf(err))
	assert.Len(t, f.notices.List(0), 1)
}

func TestDispatchRejectsWrongStatus(t *testing.T) {
	f := newDispatcherFixture(t)

	dispatched, err := f.d.MarkReady(context.Background(), "order-1")
	assert.False(t, dispatched)
	assert.ErrorIs(t, err, ErrActionNotOffered)

	dispatched, err = f.d.StartPreparing(context.Background(), "order-3")
	assert.False(t, dispatched)
	assert.ErrorIs(t, err, ErrActionNotOffered)

	assert.Equal(t, 0, f.mutator.callCount())
	assert.Empty(t, f.d.InFlight())
	assert.Empty(t, f.notices.List(0))
}

func TestDispatchRejectsUnknownOrder(t *testing.T) {
	f := newDispatcherFixture(t)

	dispatched, err := f.d.StartPreparing(context.Background(), "nope")
	assert.False(t, dispatched)
	assert.ErrorIs(t, err, ErrOrderNotDisplayed)
	assert.Equal(t, 0, f.mutator.callCount())
	assert.Empty(t, f.d.InFlight())
}

func TestDispatchRejectsUnsupportedAction(t *testing.T) {
	f := newDispatcherFixture(t)

	_, err := f.d.Dispatch(context.Background(), "order-3", etorder.ActionNone)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	assert.Equal(t, 0, f.mutator.callCount())
}

func TestDispatchObserverPanicRecovered(t *testing.T) {
	var (
		mu      sync.Mutex
		results []ActionResult
	)
	panicky := ObserverFunc(func(ctx context.Context, r ActionResult) {
		panic("observer bug")
	})
	recorder := ObserverFunc(func(ctx context.Context, r ActionResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	f := newDispatcherFixture(t, panicky, recorder)

	dispatched, err := f.d.StartPreparing(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, dispatched)
	assert.Empty(t, f.d.InFlight())

	require.Len(t, results, 1)
	r := results[0]
	assert.True(t, r.Succeeded())
	assert.Equal(t, "order-1", r.OrderID)
	assert.Equal(t, etorder.StatusReceived, r.Order.Status)
	assert.NotEmpty(t, r.RequestID)
}

func TestDispatchKeepsCallerTraceID(t *testing.T) {
	var got string
	f := newDispatcherFixture(t, ObserverFunc(func(ctx context.Context, r ActionResult) {
		got = r.RequestID
	}))

	ctx := logger.WithTraceID(context.Background(), "req-42")
	_, err := f.d.StartPreparing(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "req-42", got)
}

// ctxFetcher 与真实客户端一样，ctx 取消后请求失败
type ctxFetcher struct {
	*fakeFetcher
}

func (f ctxFetcher) ListOrders(ctx context.Context, filter etorder.Status) ([]etorder.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fakeFetcher.ListOrders(ctx, filter)
}

// 流转被接受后调用方断开：刷新照常完成，引擎不记录错误，观察者拿到未取消的 ctx
func TestDispatchRefreshSurvivesCallerCancel(t *testing.T) {
	fetcher := newFakeFetcher(testOrders()...)
	engine := newTestEngine(ctxFetcher{fetcher}, time.Hour)
	require.NoError(t, engine.Refresh(context.Background()))

	var observed error
	observer := ObserverFunc(func(ctx context.Context, r ActionResult) {
		observed = ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mutator := newFakeMutator()
	mutator.onCall = func() {
		next := testOrders()
		next[0].Status = etorder.StatusPreparing
		fetcher.setOrders(next...)
		cancel()
	}
	d := NewDispatcher(mutator, engine, logger.NewNop(), observer)

	dispatched, err := d.StartPreparing(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, dispatched)

	st := engine.Snapshot()
	assert.Nil(t, st.Err)
	assert.Equal(t, etorder.StatusPreparing, statusOf(t, engine, "order-1"))
	assert.NoError(t, observed)
}

func TestDispatchReleasesGuardBeforeObservers(t *testing.T) {
	var (
		busy    []bool
		settled []ActionResult
	)
	var f *dispatcherFixture
	f = newDispatcherFixture(t, ObserverFunc(func(ctx context.Context, r ActionResult) {
		busy = append(busy, f.d.IsInFlight(r.OrderID))
		settled = append(settled, r)
	}))

	_, err := f.d.StartPreparing(context.Background(), "order-1")
	require.NoError(t, err)

	f.mutator.err = errorutil.ServerError("mark_ready", "http://orders/orders/order-2/mark-ready", 503, "")
	_, err = f.d.MarkReady(context.Background(), "order-2")
	require.Error(t, err)

	require.Len(t, settled, 2)
	assert.Equal(t, []bool{false, false}, busy)
	assert.True(t, settled[0].Succeeded())
	assert.False(t, settled[1].Succeeded())
}
