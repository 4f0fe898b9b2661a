package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/orders"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/payment"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/redisx"
)

func newTestRouter(t *testing.T) *chi.Mux {
	return newTestRouterWithRedis(t, nil)
}

func newTestRouterWithRedis(t *testing.T, rdb *redis.Client) *chi.Mux {
	t.Helper()

	inv := orders.NewMemInventory(
		orders.Product{ID: "p-kopi", SellerID: "s-aceh", Name: "Kopi Gayo 250g", Price: 85000, Stock: 10},
		orders.Product{ID: "p-batik", SellerID: "s-solo", Name: "Batik Tulis", Price: 450000, Stock: 1},
	)
	sim := payment.NewSimulator(payment.NewMemoryStore(), zap.NewNop())
	svc := orders.NewService(orders.NewMemStore(), inv, inv, sim, nil, nil, zap.NewNop())
	sim.Bind(func(ctx context.Context, orderID string, success bool) (bool, error) {
		_, applied, err := svc.ApplyGatewayEvent(ctx, orderID, success)
		return applied, err
	})

	r := NewRouter()
	h := &OrdersHandler{Svc: svc, Catalog: inv, Sim: sim, Redis: rdb, Log: zap.NewNop()}
	h.Register(r)
	return r
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, r http.Handler, method, path, user string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func createReq() CreateOrderReq {
	return CreateOrderReq{
		IdempotencyKey: "key-1",
		Items:          []orders.ItemQty{{ProductID: "p-kopi", Qty: 2}},
		Address: orders.Address{
			Recipient: "Siti Rahma",
			Phone:     "+628123456789",
			Street:    "Jl. Braga 12",
			City:      "Bandung",
			Province:  "Jawa Barat",
		},
		Courier: "jne",
		Bank:    "bca",
	}
}

type createResp struct {
	Order      orderVO `json:"order"`
	Idempotent bool    `json:"idempotent"`
}

func TestCreateOrder(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, env.Success)

	var resp createResp
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.Idempotent)
	assert.Equal(t, "buyer-1", resp.Order.BuyerID)
	assert.Equal(t, "pending", resp.Order.OrderStatus)
	assert.Equal(t, "unpaid", resp.Order.PaymentStatus)
	assert.NotEmpty(t, resp.Order.VANumber)
	assert.NotNil(t, resp.Order.ExpiresAt)

	// replay dengan key sama: 200 + idempotent=true + order identik
	w, env = doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	require.Equal(t, http.StatusOK, w.Code)

	var replay createResp
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.True(t, replay.Idempotent)
	assert.Equal(t, resp.Order.ID, replay.Order.ID)
}

func TestCreateOrder_MissingUser(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/orders", "", createReq())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, env.Success)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	r := newTestRouter(t)

	req := createReq()
	req.Items = []orders.ItemQty{{ProductID: "p-batik", Qty: 5}}

	w, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", req)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.False(t, env.Success)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	var details []orders.StockShortage
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	require.Len(t, details, 1)
	assert.Equal(t, "p-batik", details[0].ProductID)
}

func TestGetOrder_NotFound(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/orders/tidak-ada", "buyer-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestSimulatePayment(t *testing.T) {
	r := newTestRouter(t)

	_, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	var resp createResp
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	orderID := resp.Order.ID

	w, env := doJSON(t, r, http.MethodPost, "/payments/"+orderID+"/simulate", "buyer-1",
		SimulateReq{Outcome: "success"})
	require.Equal(t, http.StatusOK, w.Code)

	var sr struct {
		Applied bool    `json:"applied"`
		Order   orderVO `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sr))
	assert.True(t, sr.Applied)
	assert.Equal(t, "processing", sr.Order.OrderStatus)
	assert.Equal(t, "paid", sr.Order.PaymentStatus)

	// session sudah ditutup: replay ditolak di gerbang simulator
	w, env = doJSON(t, r, http.MethodPost, "/payments/"+orderID+"/simulate", "buyer-1",
		SimulateReq{Outcome: "success"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_CLOSED", env.Error.Code)
}

func TestSimulatePayment_BadOutcome(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/payments/abc/simulate", "buyer-1",
		SimulateReq{Outcome: "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCancelOrder(t *testing.T) {
	r := newTestRouter(t)

	_, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	var resp createResp
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	orderID := resp.Order.ID

	// alasan di luar daftar ditolak
	w, env := doJSON(t, r, http.MethodPost, "/orders/"+orderID+"/cancel", "buyer-1",
		CancelOrderReq{Reason: "Lagi bokek"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = doJSON(t, r, http.MethodPost, "/orders/"+orderID+"/cancel", "buyer-1",
		CancelOrderReq{Reason: "Berubah pikiran"})
	require.Equal(t, http.StatusOK, w.Code)

	var vo orderVO
	require.NoError(t, json.Unmarshal(env.Data, &vo))
	assert.Equal(t, "cancelled", vo.OrderStatus)
	assert.Equal(t, "buyer", vo.CancelledBy)
}

func TestFulfillment_WrongSeller(t *testing.T) {
	r := newTestRouter(t)

	_, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	var resp createResp
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	orderID := resp.Order.ID

	_, _ = doJSON(t, r, http.MethodPost, "/payments/"+orderID+"/simulate", "buyer-1",
		SimulateReq{Outcome: "success"})

	w, env := doJSON(t, r, http.MethodPost, "/orders/"+orderID+"/fulfillment", "s-solo",
		FulfillmentReq{Next: "shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	w, env = doJSON(t, r, http.MethodPost, "/orders/"+orderID+"/fulfillment", "s-aceh",
		FulfillmentReq{Next: "shipped"})
	require.Equal(t, http.StatusOK, w.Code)

	var vo orderVO
	require.NoError(t, json.Unmarshal(env.Data, &vo))
	assert.Equal(t, "shipped", vo.OrderStatus)
}

func TestListOrders_NegativeOffset(t *testing.T) {
	r := newTestRouter(t)

	_, _ = doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())

	// offset negatif di-clamp ke 0, bukan 500
	w, env := doJSON(t, r, http.MethodGet, "/orders?offset=-1&limit=5", "buyer-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, env.Success)

	var resp struct {
		Orders []orderVO `json:"orders"`
		Total  int64     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp.Orders, 1)
	assert.Equal(t, int64(1), resp.Total)
}

func TestCheckPayment(t *testing.T) {
	r := newTestRouter(t)

	_, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	var resp createResp
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	orderID := resp.Order.ID

	w, env := doJSON(t, r, http.MethodGet, "/payments/"+orderID, "buyer-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sess payment.Session
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	assert.Equal(t, resp.Order.VANumber, sess.VANumber)

	// order tanpa session
	w, env = doJSON(t, r, http.MethodGet, "/payments/tidak-ada", "buyer-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_CLOSED", env.Error.Code)
}

func TestCreateOrder_RedisFastPath(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	r := newTestRouterWithRedis(t, rdb)

	w, env := doJSON(t, r, http.MethodPost, "/orders", "buyer-1", createReq())
	require.Equal(t, http.StatusCreated, w.Code)
	var resp createResp
	require.NoError(t, json.Unmarshal(env.Data, &resp))

	// create menulis mapping key -> order id
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, "key-1")
	cached, err := mr.Get(idemKey)
	require.NoError(t, err)
	assert.Equal(t, resp.Order.ID, cached)

	// tanam mapping key lain ke order yang sudah ada: replay harus dilayani
	// dari cache (order lama kembali, tidak ada order baru / potongan stok)
	require.NoError(t, mr.Set(fmt.Sprintf(redisx.KeyIdemOrderCreate, "key-99"), resp.Order.ID))
	req := createReq()
	req.IdempotencyKey = "key-99"

	w, env = doJSON(t, r, http.MethodPost, "/orders", "buyer-1", req)
	require.Equal(t, http.StatusOK, w.Code)

	var replay createResp
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.True(t, replay.Idempotent)
	assert.Equal(t, resp.Order.ID, replay.Order.ID)
}

func TestListProducts(t *testing.T) {
	r := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var ps []orders.Product
	require.NoError(t, json.Unmarshal(env.Data, &ps))
	assert.Len(t, ps, 2)
}
