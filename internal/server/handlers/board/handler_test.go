package board

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kds/board/internal/board"
	"kds/board/internal/common/entity"
	"kds/board/internal/domains/entity/etorder"
	"kds/board/pkg/errorutil"
	"kds/board/pkg/logger"
)

type fakeState struct {
	st        board.State
	filterErr error
	filters   []etorder.Status
}

func (s *fakeState) Snapshot() board.State { return s.st }

func (s *fakeState) SetFilter(ctx context.Context, filter etorder.Status) error {
	s.filters = append(s.filters, filter)
	s.st.Filter = filter
	return s.filterErr
}

type fakeDispatcher struct {
	dispatched bool
	err        error
	calls      []string
	inFlight   []string
}

func (d *fakeDispatcher) StartPreparing(ctx context.Context, orderID string) (bool, error) {
	d.calls = append(d.calls, "start:"+orderID)
	return d.dispatched, d.err
}

func (d *fakeDispatcher) MarkReady(ctx context.Context, orderID string) (bool, error) {
	d.calls = append(d.calls, "ready:"+orderID)
	return d.dispatched, d.err
}

func (d *fakeDispatcher) InFlight() []string { return d.inFlight }

type fakeNotices struct {
	notices []board.Notice
	limit   int
}

func (n *fakeNotices) List(limit int) []board.Notice {
	n.limit = limit
	return n.notices
}

type fakeHistory struct {
	records []*entity.ActionLog
	err     error
	orderID string
	limit   int
}

func (h *fakeHistory) ListByOrder(ctx context.Context, orderID string, limit int) ([]*entity.ActionLog, error) {
	h.orderID = orderID
	h.limit = limit
	return h.records, h.err
}

type envelope struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Path string `json:"path"`
			Info string `json:"info"`
		} `json:"details"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type fixture struct {
	state      *fakeState
	dispatcher *fakeDispatcher
	notices    *fakeNotices
	history    *fakeHistory
	router     *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 10, 16, 10, 2, 5, 0, time.UTC)
	received := now.Add(-125 * time.Second)
	f := &fixture{
		state: &fakeState{st: board.State{
			Orders: []etorder.Order{
				{OrderID: "0123456789", CustomerName: "Ann", Status: etorder.StatusReceived, ReceivedAt: received},
				{OrderID: "abc", Status: etorder.Status("CANCELLED"), ReceivedAt: received},
			},
			UpdatedAt: now,
		}},
		dispatcher: &fakeDispatcher{dispatched: true, inFlight: []string{"0123456789"}},
		notices:    &fakeNotices{},
		history:    &fakeHistory{},
	}

	h := NewBoardHandler(f.state, f.dispatcher, f.notices, logger.NewNop()).WithHistory(f.history)
	h.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/board", h.Get)
	r.PUT("/board/filter", h.SetFilter)
	r.GET("/board/notices", h.Notices)
	r.POST("/board/orders/:id/start-preparing", h.StartPreparing)
	r.POST("/board/orders/:id/mark-ready", h.MarkReady)
	r.GET("/board/orders/:id/actions", h.Actions)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestGetBoard(t *testing.T) {
	f := newFixture()
	w, env := f.do(t, http.MethodGet, "/board", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		Columns []struct {
			Status string `json:"status"`
			Orders []struct {
				ShortID  string `json:"short_id"`
				Age      string `json:"age"`
				Action   string `json:"action"`
				InFlight bool   `json:"in_flight"`
			} `json:"orders"`
		} `json:"columns"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Columns, 4)
	assert.Equal(t, "RECEIVED", view.Columns[0].Status)
	require.Len(t, view.Columns[0].Orders, 1)

	card := view.Columns[0].Orders[0]
	assert.Equal(t, "01234567", card.ShortID)
	assert.Equal(t, "2 min ago", card.Age)
	assert.Equal(t, "START_PREPARING", card.Action)
	assert.True(t, card.InFlight)

	assert.Equal(t, "OTHER", view.Columns[3].Status)
	assert.Empty(t, view.Columns[3].Orders[0].Action)
}

func TestSetFilter(t *testing.T) {
	f := newFixture()

	w, env := f.do(t, http.MethodPut, "/board/filter", `{"status":"READY"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []etorder.Status{etorder.StatusReady}, f.state.filters)

	var view struct {
		Filter string `json:"filter"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "READY", view.Filter)

	w, _ = f.do(t, http.MethodPut, "/board/filter", `{"status":""}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, etorder.Status(""), f.state.filters[1])
}

func TestSetFilterValidation(t *testing.T) {
	f := newFixture()

	w, env := f.do(t, http.MethodPut, "/board/filter", `{"status":"COOKING"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", env.Meta.Message)
	require.Len(t, env.Meta.Details, 1)
	assert.Equal(t, "Status", env.Meta.Details[0].Path)
	assert.Contains(t, env.Meta.Details[0].Info, "one of")
	assert.Empty(t, f.state.filters)
}

func TestSetFilterRemoteFailureStillRendersBoard(t *testing.T) {
	f := newFixture()
	f.state.filterErr = errorutil.Unreachable("list_orders", "http://orders:3000/orders", errors.New("refused"))

	w, _ := f.do(t, http.MethodPut, "/board/filter", `{"status":"PREPARING"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	f.state.filterErr = board.ErrEngineStopped
	w, _ = f.do(t, http.MethodPut, "/board/filter", `{"status":"PREPARING"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDispatchResponses(t *testing.T) {
	cases := []struct {
		name       string
		path       string
		dispatched bool
		err        error
		code       int
		message    string
	}{
		{name: "accepted", path: "/board/orders/a/start-preparing", dispatched: true, code: http.StatusAccepted},
		{name: "already in flight", path: "/board/orders/a/mark-ready", dispatched: false, code: http.StatusAccepted},
		{name: "not displayed", path: "/board/orders/a/mark-ready", err: board.ErrOrderNotDisplayed, code: http.StatusNotFound},
		{name: "wrong status", path: "/board/orders/a/mark-ready", err: board.ErrActionNotOffered, code: http.StatusConflict},
		{
			name:       "remote failure",
			path:       "/board/orders/a/mark-ready",
			dispatched: true,
			err:        errorutil.ServerError("mark_ready", "http://orders/orders/a/mark-ready", 500, ""),
			code:       http.StatusBadGateway,
			message:    "HTTP 500",
		},
		{name: "unexpected", path: "/board/orders/a/start-preparing", err: errors.New("boom"), code: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.dispatcher.dispatched = tc.dispatched
			f.dispatcher.err = tc.err

			w, env := f.do(t, http.MethodPost, tc.path, "")
			assert.Equal(t, tc.code, w.Code)
			require.Len(t, f.dispatcher.calls, 1)
			if tc.message != "" {
				assert.Contains(t, env.Meta.Message, tc.message)
			}
			if tc.code == http.StatusAccepted {
				var resp struct {
					Dispatched bool `json:"dispatched"`
				}
				require.NoError(t, json.Unmarshal(env.Data, &resp))
				assert.Equal(t, tc.dispatched, resp.Dispatched)
			}
		})
	}
}

func TestDispatchRoutesToAction(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/board/orders/x1/start-preparing", "")
	f.do(t, http.MethodPost, "/board/orders/x2/mark-ready", "")
	assert.Equal(t, []string{"start:x1", "ready:x2"}, f.dispatcher.calls)
}

func TestNotices(t *testing.T) {
	f := newFixture()
	f.notices.notices = []board.Notice{{ID: "n1", OrderID: "o1", Message: "Could not mark ready order o1."}}

	w, env := f.do(t, http.MethodGet, "/board/notices?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, f.notices.limit)

	var got []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "n1", got[0].ID)

	w, _ = f.do(t, http.MethodGet, "/board/notices?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.do(t, http.MethodGet, "/board/notices", "")
	assert.Equal(t, defaultNoticeLimit, f.notices.limit)
}

func TestActions(t *testing.T) {
	f := newFixture()
	createdAt := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	f.history.records = []*entity.ActionLog{
		{
			RequestID:  "req-2",
			OrderID:    "o1",
			Action:     "MARK_READY",
			FromStatus: "PREPARING",
			Outcome:    entity.ActionOutcomeFailed,
			ErrorKind:  "ServerError",
			HTTPStatus: 500,
			ErrorMsg:   "unexpected status 500",
			DurationMs: 12,
			CreatedAt:  createdAt,
		},
		{RequestID: "req-1", OrderID: "o1", Action: "START_PREPARING", FromStatus: "RECEIVED", Outcome: entity.ActionOutcomeSucceeded},
	}

	w, env := f.do(t, http.MethodGet, "/board/orders/o1/actions?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "o1", f.history.orderID)
	assert.Equal(t, 5, f.history.limit)

	var got []struct {
		RequestID  string `json:"request_id"`
		Outcome    string `json:"outcome"`
		ErrorKind  string `json:"error_kind"`
		HTTPStatus int    `json:"http_status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "req-2", got[0].RequestID)
	assert.Equal(t, "FAILED", got[0].Outcome)
	assert.Equal(t, 500, got[0].HTTPStatus)
	assert.Empty(t, got[1].ErrorKind)

	f.do(t, http.MethodGet, "/board/orders/o1/actions", "")
	assert.Equal(t, defaultHistoryLimit, f.history.limit)

	w, _ = f.do(t, http.MethodGet, "/board/orders/o1/actions?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.history.err = errors.New("db down")
	w, _ = f.do(t, http.MethodGet, "/board/orders/o1/actions", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestActionsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBoardHandler(&fakeState{}, &fakeDispatcher{}, &fakeNotices{}, logger.NewNop())

	r := gin.New()
	r.GET("/board/orders/:id/actions", h.Actions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/board/orders/o1/actions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
