package board

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kds/board/internal/domains/apimodel/response"
	"kds/board/pkg/ginx"
)

// 操作记录默认条数
const defaultHistoryLimit = 20

// Actions 某个订单的操作记录（最新的在前）
// GET /api/v1/board/orders/:id/actions?limit=20
func (h *BoardHandler) Actions(c *gin.Context) {
	if h.history == nil {
		ginx.Error(c, http.StatusServiceUnavailable, "action history is not enabled")
		return
	}

	orderID := c.Param("id")
	limit, ok := queryLimit(c, defaultHistoryLimit)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	records, err := h.history.ListByOrder(ctx, orderID, limit)
	if err != nil {
		h.logger.Errorf(ctx, "[BoardHandler] List actions of %s failed: %v", orderID, err)
		ginx.InternalError(c, "failed to load action history")
		return
	}
	ginx.Success(c, response.FromActionLogs(records))
}
