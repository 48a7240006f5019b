package request

import "kds/board/internal/domains/entity/etorder"

// SetFilterRequest 设置看板过滤条件，空字符串表示不过滤
type SetFilterRequest struct {
	Status string `json:"status" binding:"omitempty,oneof=RECEIVED PREPARING READY"`
}

// ToStatus 转换为领域状态
func (r *SetFilterRequest) ToStatus() etorder.Status {
	return etorder.Status(r.Status)
}
