package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kds/board/internal/worker"
	"kds/board/pkg/config"
	"kds/board/pkg/logger"
)

var (
	configPath = flag.String("config", "./config/board.yaml", "配置文件路径")
)

func main() {
	flag.Parse()

	log.Println("========================================")
	log.Println("  Kitchen Board Starting...")
	log.Println("========================================")

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	log.Printf("Config loaded: %s, env: %s, log_level: %s, backend: %s\n",
		cfg.App.Name, cfg.App.Env, cfg.App.LogLevel, cfg.Backend.BaseURL)

	// 2. 初始化 Logger
	zapLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	// 3. 创建 Manager
	mgr, err := worker.NewManagerInstance(cfg, zapLogger)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}

	// 4. 启动 Manager（goroutine）
	errCh := make(chan error, 1)
	go func() {
		errCh <- mgr.Start()
	}()

	log.Printf("Board listening on :%s. Press Ctrl+C to shutdown.\n", cfg.Server.Port)

	// 5. 等待退出信号或启动失败
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Println("========================================")
		log.Printf("  Received signal: %v\n", sig)
		log.Println("  Shutting down Board...")
		log.Println("========================================")
	case err := <-errCh:
		if err != nil {
			log.Printf("Manager stopped with error: %v", err)
		}
	}

	// 6. 优雅关闭 Manager
	mgr.Shutdown()

	log.Println("Board exited gracefully")
}
