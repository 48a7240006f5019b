package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"kds/board/internal/board"
	boardhandler "kds/board/internal/server/handlers/board"
	"kds/board/internal/server/routers"
	"kds/board/pkg/config"
	"kds/board/pkg/infra/mysql"
	"kds/board/pkg/infra/redis"
	"kds/board/pkg/lmstfy"
	"kds/board/pkg/logger"
	"kds/board/pkg/orderapi"
)

// Manager 接口
type Manager interface {
	Start() error
	Shutdown()
}

// ManagerInstance Manager 实例
type ManagerInstance struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cfg        *config.Config
	instanceID string

	orderClient  *orderapi.Client
	engine       *board.Engine
	dispatcher   *board.Dispatcher
	notices      *board.NoticeBoard
	pubsub       *redis.PubSub
	actionDAO    *mysql.ActionDAO
	lmstfyClient *lmstfy.Client
	handler      http.Handler

	workers    []Worker
	errCh      chan error
	closing    *atomic.Bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     logger.Logger
}

// NewManagerInstance 创建 Manager
// Redis、MySQL、Lmstfy 均为可选，未配置时对应功能关闭
func NewManagerInstance(cfg *config.Config, log logger.Logger) (Manager, error) {
	return newManagerInstance(cfg, log)
}

func newManagerInstance(cfg *config.Config, log logger.Logger) (*ManagerInstance, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := &ManagerInstance{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		instanceID: uuid.New().String(),
		errCh:      make(chan error, 3),
		closing:    atomic.NewBool(false),
		shutdownCh: make(chan struct{}),
		logger:     log,
	}

	if err := m.initInfra(); err != nil {
		m.closeInfra()
		cancel()
		return nil, err
	}
	m.initBoard()
	m.loadWorkers()

	log.Infof(ctx, "[Manager] Initialized, instance: %s, backend: %s", m.instanceID, m.orderClient.BaseURL())
	return m, nil
}

// initInfra 初始化外部依赖
func (m *ManagerInstance) initInfra() error {
	m.orderClient = orderapi.NewClient(orderapi.Config{
		BaseURL:            m.cfg.Backend.BaseURL,
		Timeout:            m.cfg.Backend.Timeout,
		OrdersPath:         m.cfg.Backend.OrdersPath,
		StartPreparingPath: m.cfg.Backend.StartPreparingPath,
		MarkReadyPath:      m.cfg.Backend.MarkReadyPath,
	})

	if m.cfg.Redis.Addr != "" {
		pubsub, err := redis.NewPubSub(m.cfg.Redis.Addr, m.cfg.Redis.Password, m.cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		m.pubsub = pubsub
	}

	if m.cfg.MySQL.DSN != "" {
		dao, err := mysql.NewActionDAO(m.cfg.MySQL.DSN)
		if err != nil {
			return fmt.Errorf("failed to create action dao: %w", err)
		}
		m.actionDAO = dao
	}

	if m.cfg.Lmstfy.Host != "" {
		cli, err := lmstfy.NewClient(m.cfg.Lmstfy.Host, m.cfg.Lmstfy.Port, m.cfg.Lmstfy.Namespace, m.cfg.Lmstfy.Token)
		if err != nil {
			return fmt.Errorf("failed to create lmstfy client: %w", err)
		}
		m.lmstfyClient = cli
	}
	return nil
}

// initBoard 组装同步引擎、分发器与观察者
func (m *ManagerInstance) initBoard() {
	m.engine = board.NewEngine(m.orderClient, board.EngineConfig{Interval: m.cfg.Sync.Interval}, m.logger)
	m.notices = board.NewNoticeBoard(m.cfg.Sync.NoticeCapacity)

	observers := []board.ActionObserver{m.notices}
	if m.pubsub != nil {
		observers = append(observers, board.NewEventPublisher(m.pubsub, m.cfg.Redis.Channel, m.instanceID, m.logger))
	}
	if m.actionDAO != nil {
		observers = append(observers, board.NewAuditRecorder(m.actionDAO, m.logger))
	}
	if m.lmstfyClient != nil {
		observers = append(observers, board.NewPickupPublisher(m.lmstfyClient, m.cfg.Lmstfy.PickupQueue, m.logger))
	}
	m.dispatcher = board.NewDispatcher(m.orderClient, m.engine, m.logger, observers...)

	h := boardhandler.NewBoardHandler(m.engine, m.dispatcher, m.notices, m.logger)
	if m.actionDAO != nil {
		h.WithHistory(m.actionDAO)
	}
	m.handler = routers.SetupRoutes(h, m.logger)
}

// loadWorkers 按启动顺序登记 Worker，关闭时逆序
func (m *ManagerInstance) loadWorkers() {
	m.workers = append(m.workers, NewSyncWorker(m.ctx, m.engine, m.logger))
	if m.pubsub != nil {
		listener := board.NewEventListener(m.pubsub, m.cfg.Redis.Channel, m.instanceID, m.engine, m.logger)
		m.workers = append(m.workers, NewListenerWorker(m.ctx, listener))
	}
	m.workers = append(m.workers, NewHTTPWorker(m.ctx, ":"+m.cfg.Server.Port, m.handler, m.logger))
}

// Start 启动 Manager，阻塞直到 Shutdown 或某个 Worker 异常退出
func (m *ManagerInstance) Start() error {
	m.logger.Infof(m.ctx, "[Manager] Starting...")

	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := w.Start(); err != nil {
				m.logger.Errorf(m.ctx, "[Manager] Worker %s exited: %v", w.GetName(), err)
				m.errCh <- fmt.Errorf("worker %s: %w", w.GetName(), err)
			}
		}()
		m.logger.Infof(m.ctx, "[Manager] Worker started: %s", w.GetName())
	}

	m.logger.Infof(m.ctx, "[Manager] Start success")

	select {
	case <-m.shutdownCh:
		return nil
	case err := <-m.errCh:
		return err
	}
}

// Shutdown 优雅退出：先停 HTTP 服务，再停订阅，最后停同步引擎并关闭客户端
func (m *ManagerInstance) Shutdown() {
	m.logger.Infof(m.ctx, "[Manager] Began to close")

	// 原子操作，保证并发安全
	if !m.closing.CAS(false, true) {
		return
	}

	for i := len(m.workers) - 1; i >= 0; i-- {
		m.logger.Infof(m.ctx, "[Manager] Shutting down worker: %s", m.workers[i].GetName())
		m.workers[i].Shutdown()
	}
	m.wg.Wait()

	m.cancel()
	m.closeInfra()
	close(m.shutdownCh)

	m.logger.Infof(context.Background(), "[Manager] Shutdown complete")
}

// Handler 看板 HTTP 处理器
func (m *ManagerInstance) Handler() http.Handler {
	return m.handler
}

func (m *ManagerInstance) closeInfra() {
	if m.pubsub != nil {
		if err := m.pubsub.Close(); err != nil {
			m.logger.Warnf(m.ctx, "[Manager] Close redis failed: %v", err)
		}
	}
	if m.actionDAO != nil {
		if err := m.actionDAO.Close(); err != nil {
			m.logger.Warnf(m.ctx, "[Manager] Close mysql failed: %v", err)
		}
	}
}
