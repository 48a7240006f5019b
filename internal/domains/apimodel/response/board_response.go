package response

import (
	"time"

	"kds/board/internal/board"
	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/errorutil"
)

// ColumnOther 未知状态订单所在列
const ColumnOther = "OTHER"

// BoardResponse 看板视图
type BoardResponse struct {
	Filter    string           `json:"filter"`
	Loading   bool             `json:"loading"`
	Error     *BoardError      `json:"error,omitempty"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	Columns   []ColumnResponse `json:"columns"`
	Total     int              `json:"total"`
}

// BoardError 最近一次刷新失败的信息
type BoardError struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

// ColumnResponse 看板列（按状态）
type ColumnResponse struct {
	Status string          `json:"status"`
	Orders []OrderResponse `json:"orders"`
}

// OrderResponse 订单卡片
type OrderResponse struct {
	ID           string         `json:"id"`
	ShortID      string         `json:"short_id"`
	CustomerName string         `json:"customer_name,omitempty"`
	Status       string         `json:"status"`
	Age          string         `json:"age,omitempty"`
	Items        []ItemResponse `json:"items"`
	Total        string         `json:"total"`
	Action       string         `json:"action,omitempty"`
	InFlight     bool           `json:"in_flight"`
}

// ItemResponse 订单明细
type ItemResponse struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total,omitempty"`
}

// NoticeResponse 操作失败提示
type NoticeResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ShortID   string    `json:"short_id"`
	Action    string    `json:"action"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	CreatedAt time.Time `json:"created_at"`
}

// DispatchResponse 流转请求受理结果
type DispatchResponse struct {
	Dispatched bool `json:"dispatched"`
}

// FromBoardState 从引擎快照生成看板视图
// inFlight 为当前在途的订单 ID；now 用于计算等待时长
func FromBoardState(st board.State, inFlight []string, now time.Time) *BoardResponse {
	busy := make(map[string]struct{}, len(inFlight))
	for _, id := range inFlight {
		busy[id] = struct{}{}
	}

	resp := &BoardResponse{
		Filter:  string(st.Filter),
		Loading: st.Loading,
		Error:   fromError(st.Err),
		Total:   len(st.Orders),
	}
	if !st.UpdatedAt.IsZero() {
		updatedAt := st.UpdatedAt
		resp.UpdatedAt = &updatedAt
	}

	columns := make(map[string][]OrderResponse, len(etorder.Statuses)+1)
	for _, o := range st.Orders {
		col := string(o.Status)
		if !o.Status.Known() {
			col = ColumnOther
		}
		_, isBusy := busy[o.OrderID]
		columns[col] = append(columns[col], fromOrder(o, isBusy, now))
	}

	for _, s := range etorder.Statuses {
		if st.Filter != "" && st.Filter != s {
			continue
		}
		resp.Columns = append(resp.Columns, ColumnResponse{
			Status: string(s),
			Orders: nonNil(columns[string(s)]),
		})
	}
	if others := columns[ColumnOther]; len(others) > 0 {
		resp.Columns = append(resp.Columns, ColumnResponse{Status: ColumnOther, Orders: others})
	}
	return resp
}

// FromNotices 转换提示列表
func FromNotices(notices []board.Notice) []NoticeResponse {
	resp := make([]NoticeResponse, 0, len(notices))
	for _, n := range notices {
		resp = append(resp, NoticeResponse{
			ID:        n.ID,
			OrderID:   n.OrderID,
			ShortID:   n.ShortID,
			Action:    string(n.Action),
			Kind:      string(n.Kind),
			Message:   n.Message,
			Retryable: n.Retryable,
			CreatedAt: n.CreatedAt,
		})
	}
	return resp
}

func fromOrder(o etorder.Order, inFlight bool, now time.Time) OrderResponse {
	resp := OrderResponse{
		ID:           o.OrderID,
		ShortID:      o.ShortID(),
		CustomerName: o.CustomerName,
		Status:       string(o.Status),
		Items:        make([]ItemResponse, 0, len(o.Items)),
		Total:        etorder.FormatMoney(o.Total()),
		Action:       string(o.NextAction()),
		InFlight:     inFlight,
	}
	if ts, ok := etorder.ReferenceTime(o); ok {
		resp.Age = etorder.AgeLabel(ts, now)
	}

	for _, item := range o.Items {
		ir := ItemResponse{Name: item.Name, Quantity: item.Quantity}
		if total, ok := item.LineTotal(); ok {
			ir.LineTotal = etorder.FormatMoney(total)
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

func fromError(err *errorutil.Error) *BoardError {
	if err == nil {
		return nil
	}
	return &BoardError{
		Kind:       string(err.Kind),
		StatusCode: err.StatusCode,
		Message:    err.OperatorMessage(),
		Retryable:  err.Retryable,
	}
}

func nonNil(orders []OrderResponse) []OrderResponse {
	if orders == nil {
		return []OrderResponse{}
	}
	return orders
}
