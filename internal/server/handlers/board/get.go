package board

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"kds/board/internal/domains/apimodel/response"
	"kds/board/pkg/ginx"
)

// 提示列表默认条数
const defaultNoticeLimit = 20

// Get 看板视图
// GET /api/v1/board
func (h *BoardHandler) Get(c *gin.Context) {
	st := h.state.Snapshot()
	ginx.Success(c, response.FromBoardState(st, h.dispatcher.InFlight(), h.now()))
}

// Notices 最近的操作失败提示（最新的在前）
// GET /api/v1/board/notices?limit=20
func (h *BoardHandler) Notices(c *gin.Context) {
	limit, ok := queryLimit(c, defaultNoticeLimit)
	if !ok {
		return
	}
	ginx.Success(c, response.FromNotices(h.notices.List(limit)))
}

// queryLimit 解析 ?limit，非法时已写入 400
func queryLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		ginx.BadRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}
