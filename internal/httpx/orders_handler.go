package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/orders"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/payment"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/redisx"
)

type OrdersHandler struct {
	Svc     *orders.Service
	Catalog orders.Catalog
	Sim     *payment.Simulator
	Redis   *redis.Client // optional; nil = tanpa cache/fast-path
	Log     *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/fulfillment", h.updateFulfillment)
	r.Get("/payments/{orderID}", h.checkPayment)
	r.Post("/payments/{orderID}/simulate", h.simulateGatewayEvent)
	r.Get("/products", h.listProducts)
}

type CreateOrderReq struct {
	IdempotencyKey string           `json:"idempotency_key"`
	Items          []orders.ItemQty `json:"items"`
	Address        orders.Address   `json:"address"`
	Courier        string           `json:"courier"`
	Bank           string           `json:"bank"`
	VoucherCode    string           `json:"voucher_code,omitempty"`
}

type orderVO struct {
	ID            string             `json:"id"`
	BuyerID       string             `json:"buyer_id"`
	Items         []orders.OrderItem `json:"items"`
	Address       orders.Address     `json:"address"`
	Courier       string             `json:"courier"`
	Bank          string             `json:"bank"`
	VANumber      string             `json:"va_number,omitempty"`
	Subtotal      int64              `json:"subtotal"`
	ShippingCost  int64              `json:"shipping_cost"`
	Discount      int64              `json:"discount"`
	Total         int64              `json:"total"`
	OrderStatus   string             `json:"order_status"`
	PaymentStatus string             `json:"payment_status"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	CancelledBy   string             `json:"cancelled_by,omitempty"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	CancelNote    string             `json:"cancel_note,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
}

func toOrderVO(o orders.Order) orderVO {
	return orderVO{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		Items:         o.Items,
		Address:       o.Address,
		Courier:       o.Courier,
		Bank:          o.Bank,
		VANumber:      o.VANumber,
		Subtotal:      o.Subtotal,
		ShippingCost:  o.ShippingCost,
		Discount:      o.Discount,
		Total:         o.Total,
		OrderStatus:   string(o.OrderStatus),
		PaymentStatus: string(o.PaymentStatus),
		ExpiresAt:     o.ExpiresAt,
		CancelledBy:   string(o.CancelledBy),
		CancelReason:  o.CancelReason,
		CancelNote:    o.CancelNote,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CancelledAt:   o.CancelledAt,
		FinishedAt:    o.FinishedAt,
	}
}

type statusCacheVO struct {
	OrderStatus   string `json:"order_status"`
	PaymentStatus string `json:"payment_status"`
}

func userID(r *http.Request) string { return r.Header.Get("X-User-Id") }

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json", nil)
		return
	}
	buyerID := userID(r)
	if buyerID == "" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing X-User-Id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis: replay yang sudah di-cache dilayani
	// tanpa menyentuh jalur create. DB tetap jadi kebenaran — cache miss atau
	// basi jatuh ke Create, yang menjamin replay mengembalikan order asli.
	if h.Redis != nil && req.IdempotencyKey != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.IdempotencyKey)
		if id, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
			if o, err := h.Svc.GetOrder(ctx, id); err == nil {
				h.Log.Debug("idempotency fast-path hit", zap.String("key", req.IdempotencyKey))
				writeOK(w, http.StatusOK, map[string]any{
					"order":      toOrderVO(o),
					"idempotent": true,
				})
				return
			}
		}
	}

	o, created, err := h.Svc.Create(ctx, orders.CreateInput{
		BuyerID:        buyerID,
		IdempotencyKey: req.IdempotencyKey,
		Items:          req.Items,
		Address:        req.Address,
		Courier:        req.Courier,
		Bank:           req.Bank,
		VoucherCode:    req.VoucherCode,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.cacheIdempotency(ctx, req.IdempotencyKey, o.ID)
	h.cacheStatus(ctx, o)

	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeOK(w, code, map[string]any{
		"order":      toOrderVO(o),
		"idempotent": !created,
	})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeOK(w, http.StatusOK, toOrderVO(o))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := userID(r)
	if buyerID == "" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing X-User-Id", nil)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	os, total, err := h.Svc.ListByBuyer(ctx, buyerID, offset, limit)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	vos := make([]orderVO, 0, len(os))
	for _, o := range os {
		vos = append(vos, toOrderVO(o))
	}
	writeOK(w, http.StatusOK, map[string]any{"orders": vos, "total": total})
}

type CancelOrderReq struct {
	By     string `json:"by,omitempty"` // buyer|seller|system, default buyer
	Reason string `json:"reason"`
	Note   string `json:"note,omitempty"`
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req CancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json", nil)
		return
	}
	actor := orders.Actor(req.By)
	if req.By == "" {
		actor = orders.ActorBuyer
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Cancel(ctx, orderID, actor, req.Reason, req.Note)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeOK(w, http.StatusOK, toOrderVO(o))
}

type FulfillmentReq struct {
	Next string `json:"next"` // processing|shipped|delivered
}

func (h *OrdersHandler) updateFulfillment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	sellerID := userID(r)
	if sellerID == "" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "missing X-User-Id", nil)
		return
	}
	var req FulfillmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.TransitionFulfillment(ctx, orderID, sellerID, orders.OrderStatus(req.Next))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeOK(w, http.StatusOK, toOrderVO(o))
}

func (h *OrdersHandler) checkPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sess, ok, err := h.Sim.CheckStatus(ctx, orderID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "SESSION_CLOSED", "no live payment session for this order", nil)
		return
	}
	writeOK(w, http.StatusOK, sess)
}

type SimulateReq struct {
	Outcome string `json:"outcome"` // success|failure
}

// simulateGatewayEvent: hook test saja, setara webhook bank pada sistem asli.
func (h *OrdersHandler) simulateGatewayEvent(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req SimulateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json", nil)
		return
	}
	if req.Outcome != "success" && req.Outcome != "failure" {
		writeErr(w, http.StatusBadRequest, "VALIDATION_ERROR", `outcome must be "success" or "failure"`, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	applied, err := h.Sim.InjectEvent(ctx, orderID, req.Outcome == "success")
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	o, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeOK(w, http.StatusOK, map[string]any{
		"applied": applied,
		"order":   toOrderVO(o),
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	writeOK(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cacheIdempotency(ctx context.Context, key, orderID string) {
	if h.Redis == nil || key == "" {
		return
	}
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, key)
	_ = h.Redis.Set(ctx, idemKey, orderID, redisx.TTLIdempotency).Err()
}

// cacheStatus menulis status terakhir ke redis supaya dashboard murahan bisa
// baca tanpa ke DB. Jalur GET tetap lewat store: lazy expiry butuh kebenaran.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(statusCacheVO{
		OrderStatus:   string(o.OrderStatus),
		PaymentStatus: string(o.PaymentStatus),
	})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
