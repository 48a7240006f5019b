package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 日志接口，字段从 Context 中提取
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
	Sync() error
}

type ctxKey string

const (
	keyTraceID    ctxKey = "trace_id"
	keyOrderID    ctxKey = "order_id"
	keyAction     ctxKey = "action"
	keyRefreshSeq ctxKey = "refresh_seq"
)

// 字符串字段按输出顺序排列
var stringKeys = []ctxKey{keyTraceID, keyOrderID, keyAction}

// WithTraceID 注入 trace_id（HTTP 请求 ID 或流转请求 ID）
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID 读取 trace_id，不存在返回空串
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(keyTraceID).(string)
	return v
}

// WithOrderID 注入 order_id
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, keyOrderID, orderID)
}

// WithAction 注入流转动作
func WithAction(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, keyAction, action)
}

// WithRefreshSeq 注入刷新序号
func WithRefreshSeq(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, keyRefreshSeq, seq)
}

// ZapLogger zap 实现
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger 按级别创建 JSON 输出的 Logger；无法识别的级别按 info 处理
func NewZapLogger(level string) (Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &ZapLogger{logger: z}, nil
}

// NewNop 测试用
func NewNop() Logger {
	return &ZapLogger{logger: zap.NewNop()}
}

func (l *ZapLogger) extractFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, len(stringKeys)+1)
	if ctx == nil {
		return fields
	}

	for _, key := range stringKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if seq, ok := ctx.Value(keyRefreshSeq).(uint64); ok {
		fields = append(fields, zap.Uint64(string(keyRefreshSeq), seq))
	}
	return fields
}

// write 级别未开启时不做格式化
func (l *ZapLogger) write(ctx context.Context, lvl zapcore.Level, format string, args []interface{}) {
	ce := l.logger.Check(lvl, "")
	if ce == nil {
		return
	}
	ce.Message = fmt.Sprintf(format, args...)
	ce.Write(l.extractFields(ctx)...)
}

func (l *ZapLogger) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.write(ctx, zapcore.DebugLevel, format, args)
}

func (l *ZapLogger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.write(ctx, zapcore.InfoLevel, format, args)
}

func (l *ZapLogger) Warnf(ctx context.Context, format string, args ...interface{}) {
	l.write(ctx, zapcore.WarnLevel, format, args)
}

func (l *ZapLogger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.write(ctx, zapcore.ErrorLevel, format, args)
}

// Sync 刷新缓冲区
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
