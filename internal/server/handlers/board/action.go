package board

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"kds/board/internal/board"
	"kds/board/internal/domains/apimodel/response"
	"kds/board/pkg/errorutil"
	"kds/board/pkg/ginx"
)

type dispatchFunc func(ctx context.Context, orderID string) (bool, error)

// StartPreparing 开始制作
// POST /api/v1/board/orders/:id/start-preparing
func (h *BoardHandler) StartPreparing(c *gin.Context) {
	h.dispatch(c, h.dispatcher.StartPreparing)
}

// MarkReady 出餐
// POST /api/v1/board/orders/:id/mark-ready
func (h *BoardHandler) MarkReady(c *gin.Context) {
	h.dispatch(c, h.dispatcher.MarkReady)
}

// dispatch 202 表示已受理（dispatched=false 表示该订单已有请求在途）
func (h *BoardHandler) dispatch(c *gin.Context, fn dispatchFunc) {
	orderID := c.Param("id")
	if orderID == "" {
		ginx.BadRequest(c, "order id required")
		return
	}

	ctx := c.Request.Context()
	dispatched, err := fn(ctx, orderID)
	if err == nil {
		ginx.Accepted(c, response.DispatchResponse{Dispatched: dispatched})
		return
	}

	var remote *errorutil.Error
	switch {
	case errors.Is(err, board.ErrOrderNotDisplayed):
		ginx.NotFound(c, err.Error())
	case errors.Is(err, board.ErrActionNotOffered):
		ginx.Conflict(c, err.Error())
	case errors.Is(err, board.ErrUnsupportedAction):
		ginx.BadRequest(c, err.Error())
	case errors.As(err, &remote):
		ginx.BadGateway(c, remote.OperatorMessage())
	default:
		h.logger.Errorf(ctx, "[BoardHandler] Dispatch failed: %v", err)
		ginx.InternalError(c, err.Error())
	}
}
