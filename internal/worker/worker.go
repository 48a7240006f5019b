package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kds/board/internal/board"
	"kds/board/pkg/logger"
)

// HTTP 服务优雅关闭超时
const httpShutdownTimeout = 10 * time.Second

// Worker 接口：Start 阻塞直到 Shutdown
type Worker interface {
	Start() error
	Shutdown()
	GetName() string
}

// SyncWorker 同步引擎 Worker
type SyncWorker struct {
	ctx        context.Context
	engine     *board.Engine
	shutdownCh chan struct{}
	logger     logger.Logger
}

// NewSyncWorker 创建同步引擎 Worker
func NewSyncWorker(ctx context.Context, engine *board.Engine, log logger.Logger) *SyncWorker {
	return &SyncWorker{
		ctx:        ctx,
		engine:     engine,
		shutdownCh: make(chan struct{}),
		logger:     log,
	}
}

// Start 启动定时刷新
func (w *SyncWorker) Start() error {
	if err := w.engine.Start(w.ctx); err != nil {
		return err
	}
	<-w.shutdownCh
	return nil
}

// Shutdown 停止引擎；返回后不再有刷新写入状态
func (w *SyncWorker) Shutdown() {
	w.engine.Stop()
	close(w.shutdownCh)
}

// GetName 获取 Worker 名称
func (w *SyncWorker) GetName() string {
	return "sync"
}

// ListenerWorker 看板事件订阅 Worker
type ListenerWorker struct {
	ctx        context.Context
	listener   *board.EventListener
	shutdownCh chan struct{}
}

// NewListenerWorker 创建事件订阅 Worker
func NewListenerWorker(ctx context.Context, listener *board.EventListener) *ListenerWorker {
	return &ListenerWorker{
		ctx:        ctx,
		listener:   listener,
		shutdownCh: make(chan struct{}),
	}
}

// Start 启动订阅
func (w *ListenerWorker) Start() error {
	w.listener.Start(w.ctx)
	<-w.shutdownCh
	return nil
}

// Shutdown 停止订阅
func (w *ListenerWorker) Shutdown() {
	w.listener.Stop()
	close(w.shutdownCh)
}

// GetName 获取 Worker 名称
func (w *ListenerWorker) GetName() string {
	return "event-listener"
}

// HTTPWorker 看板 HTTP 服务 Worker
type HTTPWorker struct {
	ctx    context.Context
	server *http.Server
	logger logger.Logger
}

// NewHTTPWorker 创建 HTTP 服务 Worker
func NewHTTPWorker(ctx context.Context, addr string, handler http.Handler, log logger.Logger) *HTTPWorker {
	return &HTTPWorker{
		ctx: ctx,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Start 监听端口，直到 Shutdown
func (w *HTTPWorker) Start() error {
	w.logger.Infof(w.ctx, "[HTTPWorker] Listening on %s", w.server.Addr)
	if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接收新请求并等待处理中的请求结束
func (w *HTTPWorker) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Warnf(w.ctx, "[HTTPWorker] Shutdown error: %v", err)
	}
}

// GetName 获取 Worker 名称
func (w *HTTPWorker) GetName() string {
	return "http"
}
