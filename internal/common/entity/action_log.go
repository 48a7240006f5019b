package entity

import (
	"time"

	"gorm.io/datatypes"
)

// ActionLog 看板操作审计记录
type ActionLog struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	RequestID  string `gorm:"column:request_id;type:varchar(64);not null;index:idx_request_id"`
	OrderID    string `gorm:"column:order_id;type:varchar(64);not null;index:idx_order_created"`
	Action     string `gorm:"column:action;type:varchar(32);not null"`
	FromStatus string `gorm:"column:from_status;type:varchar(16);not null"`
	Outcome    string `gorm:"column:outcome;type:varchar(16);not null"`

	// 失败信息
	ErrorKind  string `gorm:"column:error_kind;type:varchar(16)"`
	HTTPStatus int    `gorm:"column:http_status"`
	ErrorMsg   string `gorm:"column:error_message;type:varchar(512)"`

	// 发起时看板上的订单快照
	OrderSnapshot datatypes.JSON `gorm:"column:order_snapshot;type:json"`

	DurationMs int64     `gorm:"column:duration_ms;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index:idx_order_created"`
}

// TableName 指定表名
func (ActionLog) TableName() string {
	return "board_action_logs"
}

// 审计结果常量
const (
	ActionOutcomeSucceeded = "SUCCEEDED"
	ActionOutcomeFailed    = "FAILED"
)
