package board

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"kds/board/internal/common/entity"
	"kds/board/pkg/logger"
)

// 错误信息最大长度（与表结构一致）
const maxAuditErrorLen = 512

// ActionStore 审计存储接口（mysql.ActionDAO 实现）
type ActionStore interface {
	SaveAction(ctx context.Context, record *entity.ActionLog) error
}

// AuditRecorder 把每次结束的流转写入审计表
type AuditRecorder struct {
	store  ActionStore
	logger logger.Logger
}

// NewAuditRecorder 创建审计记录器
func NewAuditRecorder(store ActionStore, log logger.Logger) *AuditRecorder {
	return &AuditRecorder{store: store, logger: log}
}

// OnActionSettled 实现 ActionObserver；写入失败只记日志
func (a *AuditRecorder) OnActionSettled(ctx context.Context, r ActionResult) {
	record := toActionLog(r)
	if err := a.store.SaveAction(ctx, record); err != nil {
		a.logger.Warnf(ctx, "[AuditRecorder] Save failed: %v", err)
	}
}

func toActionLog(r ActionResult) *entity.ActionLog {
	record := &entity.ActionLog{
		RequestID:  r.RequestID,
		OrderID:    r.OrderID,
		Action:     string(r.Action),
		FromStatus: string(r.Order.Status),
		Outcome:    entity.ActionOutcomeSucceeded,
		DurationMs: r.Duration.Milliseconds(),
		CreatedAt:  r.StartedAt,
	}

	if snapshot, err := json.Marshal(r.Order); err == nil {
		record.OrderSnapshot = datatypes.JSON(snapshot)
	}

	if r.Err != nil {
		record.Outcome = entity.ActionOutcomeFailed
		record.ErrorKind = string(r.Err.Kind)
		record.HTTPStatus = r.Err.StatusCode
		record.ErrorMsg = r.Err.Error()
		if len(record.ErrorMsg) > maxAuditErrorLen {
			record.ErrorMsg = record.ErrorMsg[:maxAuditErrorLen]
		}
	}
	return record
}
