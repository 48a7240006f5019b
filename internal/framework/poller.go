package framework

import (
	"context"
	"errors"
	"sync"
	"time"

	"kds/board/pkg/logger"
)

// ErrPollerStarted 重复启动
var ErrPollerStarted = errors.New("poller already started")

// TaskFunc 周期任务
type TaskFunc func(ctx context.Context)

// PollerConfig Poller 配置
type PollerConfig struct {
	Name     string        // 日志中的名称
	Interval time.Duration // 执行周期
}

// Poller 周期执行器：启动后立即执行一次，之后按固定周期执行
// Stop + Wait 返回后不会再有任何 tick 触发
type Poller struct {
	cfg        PollerConfig
	task       TaskFunc
	logger     logger.Logger
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	started    bool
	wg         sync.WaitGroup
}

// NewPoller 创建周期执行器
func NewPoller(cfg PollerConfig, task TaskFunc, log logger.Logger) *Poller {
	return &Poller{
		cfg:    cfg,
		task:   task,
		logger: log,
	}
}

// Start 启动循环；Poller 只能启动一次
func (p *Poller) Start(parentCtx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrPollerStarted
	}
	p.started = true

	// 从父 Context 派生子 Context，Stop 时取消
	ctx, cancel := context.WithCancel(parentCtx)
	p.cancelFunc = cancel

	p.logger.Infof(ctx, "[Poller-%s] Starting, interval: %v", p.cfg.Name, p.cfg.Interval)

	p.wg.Add(1)
	go p.loop(ctx)
	return nil
}

// Stop 停止循环（不等待）
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancelFunc
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait 等待循环协程退出
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.task(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Infof(context.Background(), "[Poller-%s] Context cancelled, exiting", p.cfg.Name)
			return

		case <-ticker.C:
			// ticker 与 Done 同时就绪时 select 随机选择，这里再检查一次
			if ctx.Err() != nil {
				p.logger.Infof(context.Background(), "[Poller-%s] Context cancelled, exiting", p.cfg.Name)
				return
			}
			p.task(ctx)
		}
	}
}
