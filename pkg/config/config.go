package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Lmstfy  LmstfyConfig  `mapstructure:"lmstfy"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig 看板 HTTP 服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// BackendConfig 订单服务配置
type BackendConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	OrdersPath         string        `mapstructure:"orders_path"`
	StartPreparingPath string        `mapstructure:"start_preparing_path"` // 含一个 %s 占位符（订单 ID）
	MarkReadyPath      string        `mapstructure:"mark_ready_path"`      // 含一个 %s 占位符（订单 ID）
}

// SyncConfig 同步引擎配置
type SyncConfig struct {
	Interval       time.Duration `mapstructure:"interval"`        // 定时刷新周期
	NoticeCapacity int           `mapstructure:"notice_capacity"` // 保留的操作提示条数
}

// RedisConfig Redis 配置（addr 为空时禁用看板事件广播）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// MySQLConfig MySQL 配置（dsn 为空时禁用操作审计）
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LmstfyConfig Lmstfy 配置（host 为空时禁用取餐队列）
type LmstfyConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Namespace   string `mapstructure:"namespace"`
	Token       string `mapstructure:"token"`
	PickupQueue string `mapstructure:"pickup_queue"`
}

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "kitchen-board")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.port", "8080")
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.timeout", 5*time.Second)
	v.SetDefault("backend.orders_path", "/orders")
	v.SetDefault("backend.start_preparing_path", "/orders/%s/start-preparing")
	v.SetDefault("backend.mark_ready_path", "/orders/%s/mark-ready")
	v.SetDefault("sync.interval", 10*time.Second)
	v.SetDefault("sync.notice_capacity", 50)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "kitchen:board:events")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("lmstfy.host", "")
	v.SetDefault("lmstfy.port", 7777)
	v.SetDefault("lmstfy.namespace", "kitchen")
	v.SetDefault("lmstfy.token", "")
	v.SetDefault("lmstfy.pickup_queue", "order_pickup")
}

// Load 加载配置文件，环境变量 BOARD_* 可覆盖文件中的值
// 例如 BOARD_BACKEND_BASE_URL 覆盖 backend.base_url
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url is not an absolute url: %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if strings.Count(c.Backend.StartPreparingPath, "%s") != 1 {
		return fmt.Errorf("backend.start_preparing_path must contain exactly one %%s")
	}
	if strings.Count(c.Backend.MarkReadyPath, "%s") != 1 {
		return fmt.Errorf("backend.mark_ready_path must contain exactly one %%s")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis.channel is required when redis.addr is set")
	}
	if c.Lmstfy.Host != "" && c.Lmstfy.PickupQueue == "" {
		return fmt.Errorf("lmstfy.pickup_queue is required when lmstfy.host is set")
	}
	return nil
}
