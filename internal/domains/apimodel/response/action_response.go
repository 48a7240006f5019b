package response

import (
	"time"

	"kds/board/internal/common/entity"
)

// ActionLogResponse 一条操作记录
type ActionLogResponse struct {
	RequestID  string    `json:"request_id"`
	OrderID    string    `json:"order_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status"`
	Outcome    string    `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromActionLogs 转换操作记录，不输出订单快照
func FromActionLogs(records []*entity.ActionLog) []ActionLogResponse {
	resp := make([]ActionLogResponse, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		resp = append(resp, ActionLogResponse{
			RequestID:  r.RequestID,
			OrderID:    r.OrderID,
			Action:     r.Action,
			FromStatus: r.FromStatus,
			Outcome:    r.Outcome,
			ErrorKind:  r.ErrorKind,
			HTTPStatus: r.HTTPStatus,
			Error:      r.ErrorMsg,
			DurationMs: r.DurationMs,
			CreatedAt:  r.CreatedAt,
		})
	}
	return resp
}
