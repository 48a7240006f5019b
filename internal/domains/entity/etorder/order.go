package etorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// 错误定义
var (
	ErrUnknownStatus = errors.New("unknown order status")
)

// Status 订单状态
type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
)

// Statuses 看板列顺序
var Statuses = []Status{StatusReceived, StatusPreparing, StatusReady}

// Known 是否为已知状态（未知状态按原值展示，不提供操作）
func (s Status) Known() bool {
	switch s {
	case StatusReceived, StatusPreparing, StatusReady:
		return true
	}
	return false
}

// ParseFilter 解析过滤条件，空串表示不过滤
func ParseFilter(raw string) (Status, error) {
	s := Status(raw)
	if s == "" || s.Known() {
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Action 状态流转动作
type Action string

const (
	ActionNone           Action = ""
	ActionStartPreparing Action = "START_PREPARING"
	ActionMarkReady      Action = "MARK_READY"
)

// From 动作要求的源状态
func (a Action) From() Status {
	switch a {
	case ActionStartPreparing:
		return StatusReceived
	case ActionMarkReady:
		return StatusPreparing
	}
	return ""
}

// To 动作成功后的目标状态
func (a Action) To() Status {
	switch a {
	case ActionStartPreparing:
		return StatusPreparing
	case ActionMarkReady:
		return StatusReady
	}
	return ""
}

// Item 订单商品
type Item struct {
	Name     string           `json:"name"`
	Quantity int              `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"` // nil 表示价格未知，不等于 0
}

// LineTotal 单行金额，价格未知时返回 false
func (i Item) LineTotal() (decimal.Decimal, bool) {
	if i.Price == nil {
		return decimal.Zero, false
	}
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))), true
}

// Order 订单快照（只读，由订单服务创建和流转）
type Order struct {
	OrderID      string     `json:"orderId"`
	CustomerName string     `json:"customerName,omitempty"`
	Status       Status     `json:"status"`
	Items        []Item     `json:"items"`
	ReceivedAt   time.Time  `json:"receivedAt"`
	PreparingAt  *time.Time `json:"preparingAt,omitempty"`
	ReadyAt      *time.Time `json:"readyAt,omitempty"`
}

// ShortID 展示用的截断 ID
func (o Order) ShortID() string {
	const n = 8
	if len(o.OrderID) <= n {
		return o.OrderID
	}
	return o.OrderID[:n]
}

// Total 订单总额：只累加已知价格的商品
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		if line, ok := it.LineTotal(); ok {
			total = total.Add(line)
		}
	}
	return total
}

// NextAction 当前状态下可提供的动作；READY 与未知状态为终态
func (o Order) NextAction() Action {
	switch o.Status {
	case StatusReceived:
		return ActionStartPreparing
	case StatusPreparing:
		return ActionMarkReady
	}
	return ActionNone
}

// ReferenceTime 最近一次状态变化的时间：readyAt > preparingAt > receivedAt
func ReferenceTime(o Order) (time.Time, bool) {
	if o.ReadyAt != nil && !o.ReadyAt.IsZero() {
		return *o.ReadyAt, true
	}
	if o.PreparingAt != nil && !o.PreparingAt.IsZero() {
		return *o.PreparingAt, true
	}
	if !o.ReceivedAt.IsZero() {
		return o.ReceivedAt, true
	}
	return time.Time{}, false
}

// AgeLabel 相对时间文案；时钟偏差导致的负值按 0 处理
func AgeLabel(ts, now time.Time) string {
	d := now.Sub(ts)
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	if minutes >= 1 {
		return fmt.Sprintf("%d min ago", minutes)
	}
	return fmt.Sprintf("%d sec ago", int64(d/time.Second))
}

// FormatMoney 两位小数
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
