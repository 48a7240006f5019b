package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/errorutil"
)

// 操作名（写入 errorutil.Error.Op）
const (
	OpListOrders     = "list_orders"
	OpStartPreparing = "start_preparing"
	OpMarkReady      = "mark_ready"
)

// 错误响应体最多读取的字节数
const maxErrorBody = 512

// Config 客户端配置
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	OrdersPath         string
	StartPreparingPath string // 含一个 %s
	MarkReadyPath      string // 含一个 %s
}

// Client 订单服务 HTTP 客户端
// 不做任何重试，重试节奏由同步引擎的定时刷新决定
type Client struct {
	baseURL            string
	ordersPath         string
	startPreparingPath string
	markReadyPath      string
	httpClient         *http.Client
}

// NewClient 创建订单服务客户端
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL:            strings.TrimSuffix(cfg.BaseURL, "/"),
		ordersPath:         cfg.OrdersPath,
		startPreparingPath: cfg.StartPreparingPath,
		markReadyPath:      cfg.MarkReadyPath,
		httpClient:         &http.Client{Timeout: timeout},
	}
	if c.ordersPath == "" {
		c.ordersPath = "/orders"
	}
	if c.startPreparingPath == "" {
		c.startPreparingPath = "/orders/%s/start-preparing"
	}
	if c.markReadyPath == "" {
		c.markReadyPath = "/orders/%s/mark-ready"
	}
	return c
}

// BaseURL 订单服务地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope 兼容 {"data": [...]} 包装格式
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// ListOrders 拉取订单列表；filter 为空时返回全部状态
// 空响应、null、缺失 data 都归一为空切片
func (c *Client) ListOrders(ctx context.Context, filter etorder.Status) ([]etorder.Order, error) {
	endpoint := c.baseURL + c.ordersPath
	if filter != "" {
		q := url.Values{}
		q.Set("status", string(filter))
		endpoint += "?" + q.Encode()
	}

	body, err := c.do(ctx, OpListOrders, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	orders, err := decodeOrders(body)
	if err != nil {
		return nil, errorutil.Unknown(OpListOrders, fmt.Errorf("decode orders failed: %w", err))
	}
	return orders, nil
}

// StartPreparing RECEIVED → PREPARING
func (c *Client) StartPreparing(ctx context.Context, orderID string) (*etorder.Order, error) {
	return c.transition(ctx, OpStartPreparing, c.startPreparingPath, orderID)
}

// MarkReady PREPARING → READY
func (c *Client) MarkReady(ctx context.Context, orderID string) (*etorder.Order, error) {
	return c.transition(ctx, OpMarkReady, c.markReadyPath, orderID)
}

// transition 发送状态流转请求；响应体为空时返回 nil 订单
func (c *Client) transition(ctx context.Context, op, pathTpl, orderID string) (*etorder.Order, error) {
	endpoint := c.baseURL + fmt.Sprintf(pathTpl, url.PathEscape(orderID))

	body, err := c.do(ctx, op, http.MethodPost, endpoint)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) || body[0] != '{' {
		return nil, nil
	}

	// 兼容 {"data": {...}} 包装
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		body = env.Data
	}

	var order etorder.Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, errorutil.Unknown(op, fmt.Errorf("decode order failed: %w", err))
	}
	if order.OrderID == "" {
		return nil, nil
	}
	return &order, nil
}

// do 执行请求并按 HTTP 状态分类错误
func (c *Client) do(ctx context.Context, op, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, errorutil.Unknown(op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errorutil.IsTransport(err) {
			return nil, errorutil.Unreachable(op, endpoint, err)
		}
		return nil, errorutil.Unknown(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errorutil.NotFound(op, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errorutil.ServerError(op, endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errorutil.Unreachable(op, endpoint, err)
	}
	return body, nil
}

// decodeOrders 支持裸数组和 {"data": [...]} 两种格式
func decodeOrders(body []byte) ([]etorder.Order, error) {
	body = bytes.TrimSpace(body)
	orders := make([]etorder.Order, 0)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return orders, nil
	}

	if body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, err
		}
		body = bytes.TrimSpace(env.Data)
		if len(body) == 0 || bytes.Equal(body, []byte("null")) {
			return orders, nil
		}
	}

	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = make([]etorder.Order, 0)
	}
	return orders, nil
}
