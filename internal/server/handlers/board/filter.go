package board

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kds/board/internal/board"
	"kds/board/internal/domains/apimodel/request"
	"kds/board/internal/domains/apimodel/response"
	"kds/board/pkg/errorutil"
	"kds/board/pkg/ginx"
)

// SetFilter 设置过滤条件并等待本次刷新结束
// PUT /api/v1/board/filter
//
// 刷新失败时仍返回 200，错误体现在视图的 error 字段中
func (h *BoardHandler) SetFilter(c *gin.Context) {
	var req request.SetFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	ctx := c.Request.Context()
	err := h.state.SetFilter(ctx, req.ToStatus())
	switch {
	case err == nil, errors.Is(err, board.ErrStaleResult):
	case errors.Is(err, board.ErrEngineStopped):
		ginx.Error(c, http.StatusServiceUnavailable, "board is shutting down")
		return
	default:
		var remote *errorutil.Error
		if !errors.As(err, &remote) {
			h.logger.Errorf(ctx, "[BoardHandler] Set filter failed: %v", err)
			ginx.BadRequest(c, err.Error())
			return
		}
	}

	ginx.Success(c, response.FromBoardState(h.state.Snapshot(), h.dispatcher.InFlight(), h.now()))
}
