package orders

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/notify"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/payment"
)

// casAttempts: batas retry internal saat kalah race versi, sebelum
// dipermukaan sebagai ErrTransient.
const casAttempts = 3

var postalRe = regexp.MustCompile(`^[0-9]{5}$`)

// CancelReasons: set tertutup alasan pembatalan; "other" wajib disertai note.
var CancelReasons = map[string]bool{
	"Stok produk kosong":     true,
	"Berubah pikiran":        true,
	"Ingin mengubah pesanan": true,
	"other":                  true,
}

// errAlreadyCancelled: guard internal untuk re-cancel idempoten.
var errAlreadyCancelled = errors.New("already cancelled")

// Service adalah order lifecycle manager: satu-satunya pihak yang memutasi
// order. Dipanggil bersamaan dari polling buyer, event gateway, dan sweeper;
// seluruh mutasi lewat CAS versi pada record tersimpan.
type Service struct {
	store   Store
	catalog Catalog
	resv    ReservationStore
	gw      PaymentGateway
	sink    notify.Sink
	events  *Emitter
	log     *zap.Logger

	paymentTTL time.Duration
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPaymentTTL(d time.Duration) Option {
	return func(s *Service) { s.paymentTTL = d }
}

func NewService(store Store, catalog Catalog, resv ReservationStore, gw PaymentGateway,
	sink notify.Sink, events *Emitter, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		catalog:    catalog,
		resv:       resv,
		gw:         gw,
		sink:       sink,
		events:     events,
		log:        log.Named("order-lifecycle"),
		paymentTTL: 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	BuyerID        string
	IdempotencyKey string
	Items          []ItemQty
	Address        Address
	Courier        string
	Bank           string
	VoucherCode    string
}

// Create membuat order pending/unpaid: harga katalog dibekukan ke item,
// stok direservasi all-or-nothing, lalu session VA dibuka dengan deadline
// tetap. Replay dengan idempotency key yang sama mengembalikan order asli
// (created=false).
func (s *Service) Create(ctx context.Context, in CreateInput) (o Order, created bool, err error) {
	if err := validateCreate(in); err != nil {
		return Order{}, false, err
	}

	if existing, err := s.store.OrderByIdempotencyKey(ctx, in.IdempotencyKey); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Order{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	items, err := s.freezeItems(ctx, in.Items)
	if err != nil {
		return Order{}, false, err
	}

	subtotal, shipping, discount, total, err := ComputeTotals(items, in.Address.City, in.Courier, in.VoucherCode)
	if err != nil {
		return Order{}, false, err
	}

	now := s.now()
	expiresAt := now.Add(s.paymentTTL)
	o = Order{
		ID:             uuid.NewString(),
		IdempotencyKey: in.IdempotencyKey,
		BuyerID:        in.BuyerID,
		Items:          items,
		Address:        in.Address,
		Courier:        strings.ToLower(in.Courier),
		Bank:           strings.ToLower(in.Bank),
		Subtotal:       subtotal,
		ShippingCost:   shipping,
		Discount:       discount,
		Total:          total,
		OrderStatus:    StatusPending,
		PaymentStatus:  PaymentUnpaid,
		ExpiresAt:      &expiresAt,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ok, details, err := s.resv.ReserveAll(ctx, o.ID, in.Items)
	if err != nil {
		return Order{}, false, fmt.Errorf("reserve stock: %w", err)
	}
	if !ok {
		return Order{}, false, &ShortageError{Details: details}
	}

	va, err := s.gw.OpenSession(ctx, o.ID, o.Bank, expiresAt)
	if err != nil {
		s.releaseBestEffort(ctx, o.ID)
		return Order{}, false, fmt.Errorf("open payment session: %w", err)
	}
	o.VANumber = va

	if err := s.store.CreateOrder(ctx, o); err != nil {
		// bereskan jejak kita dulu; order pemenang punya reservasi sendiri
		s.releaseBestEffort(ctx, o.ID)
		if cerr := s.gw.CloseSession(ctx, o.ID); cerr != nil {
			s.log.Warn("close orphaned session", zap.String("order_id", o.ID), zap.Error(cerr))
		}
		if errors.Is(err, ErrIdempotencyConflict) {
			// kalah race dengan submit kembar; kembalikan order pemenang
			existing, ferr := s.store.OrderByIdempotencyKey(ctx, in.IdempotencyKey)
			if ferr != nil {
				return Order{}, false, ferr
			}
			return existing, false, nil
		}
		return Order{}, false, fmt.Errorf("persist order: %w", err)
	}

	s.events.Emit(EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:        o.ID,
		IdempotencyKey: o.IdempotencyKey,
		BuyerID:        o.BuyerID,
		Items:          o.Items,
		Total:          o.Total,
		Bank:           o.Bank,
		VANumber:       o.VANumber,
		ExpiresAt:      expiresAt,
	})
	return o, true, nil
}

func validateCreate(in CreateInput) error {
	switch {
	case in.BuyerID == "":
		return fmt.Errorf("%w: buyer id is required", ErrValidation)
	case in.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key is required", ErrValidation)
	case len(in.Items) == 0:
		return fmt.Errorf("%w: order needs at least one item", ErrValidation)
	}
	seen := make(map[string]bool, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: item without product id", ErrValidation)
		}
		if it.Qty <= 0 {
			return fmt.Errorf("%w: qty must be positive for product %s", ErrValidation, it.ProductID)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("%w: duplicate product %s in cart", ErrValidation, it.ProductID)
		}
		seen[it.ProductID] = true
	}
	a := in.Address
	if a.Recipient == "" || a.Phone == "" || a.Street == "" || a.City == "" || a.Province == "" {
		return fmt.Errorf("%w: incomplete shipping address", ErrValidation)
	}
	if a.PostalCode != "" && !postalRe.MatchString(a.PostalCode) {
		return fmt.Errorf("%w: postal code must be 5 digits", ErrValidation)
	}
	if !KnownCourier(in.Courier) {
		return fmt.Errorf("%w: unknown courier %q", ErrValidation, in.Courier)
	}
	if !payment.KnownBank(in.Bank) {
		return fmt.Errorf("%w: unknown bank %q", ErrValidation, in.Bank)
	}
	return nil
}

// freezeItems membaca harga + seller + stok katalog saat ini dan
// membekukannya ke order item; setelah ini katalog tidak dibaca lagi.
func (s *Service) freezeItems(ctx context.Context, items []ItemQty) ([]OrderItem, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.ProductsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	frozen := make([]OrderItem, 0, len(items))
	var shortages []StockShortage
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: unknown product %s", ErrValidation, it.ProductID)
		}
		if it.Qty > p.Stock {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Required: it.Qty, Available: p.Stock})
			continue
		}
		frozen = append(frozen, OrderItem{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Qty:       it.Qty,
		})
	}
	if len(shortages) > 0 {
		return nil, &ShortageError{Details: shortages}
	}
	return frozen, nil
}

// GetOrder adalah jalur polling buyer. Pembacaan melakukan lazy expiry:
// order yang lewat deadline dan masih unpaid ditransisikan lewat jalur yang
// sama dengan sweeper, jadi status tidak pernah basi melebihi satu read.
func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.AwaitingPayment() && o.ExpiresAt != nil && s.now().After(*o.ExpiresAt) {
		expired, _, err := s.expire(ctx, o.ID)
		if err != nil {
			return Order{}, fmt.Errorf("lazy expire: %w", err)
		}
		return expired, nil
	}
	return o, nil
}

func (s *Service) ListByBuyer(ctx context.Context, buyerID string, offset, limit int) ([]Order, int64, error) {
	var (
		eg    errgroup.Group
		os    []Order
		total int64
	)
	eg.Go(func() error {
		var err error
		os, err = s.store.ListByBuyer(ctx, buyerID, offset, limit)
		return err
	})
	eg.Go(func() error {
		var err error
		total, err = s.store.CountByBuyer(ctx, buyerID)
		return err
	})
	return os, total, eg.Wait()
}

// ApplyGatewayEvent menerapkan event bank (sukses/gagal) selama order masih
// menunggu pembayaran. Event yang datang setelah order keluar dari pending
// (expired, cancelled, sudah dibayar) adalah no-op: applied=false, bukan error.
func (s *Service) ApplyGatewayEvent(ctx context.Context, orderID string, success bool) (Order, bool, error) {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return Order{}, false, err
	}
	if !o.AwaitingPayment() {
		return o, false, nil
	}
	if o.ExpiresAt != nil && s.now().After(*o.ExpiresAt) {
		// deadline lewat duluan; jalankan transisi expiry, event ini basi
		expired, _, err := s.expire(ctx, orderID)
		if err != nil {
			return Order{}, false, err
		}
		return expired, false, nil
	}
	live, err := s.gw.SessionLive(ctx, orderID)
	if err != nil {
		return Order{}, false, fmt.Errorf("check payment session: %w", err)
	}
	if !live {
		return o, false, nil
	}

	var dispatchConfirm bool
	updated, err := s.updateWithRetry(ctx, orderID, func(o *Order) error {
		if !o.AwaitingPayment() {
			return ErrStaleEvent
		}
		dispatchConfirm = false
		now := s.now()
		if success {
			o.OrderStatus = StatusProcessing
			o.PaymentStatus = PaymentPaid
			o.ExpiresAt = nil
			if !o.ConfirmationSent {
				o.ConfirmationSent = true
				dispatchConfirm = true
			}
		} else {
			// order tetap pending; retry pembayaran = order baru, bukan mutasi
			o.PaymentStatus = PaymentFailed
			o.ExpiresAt = nil
		}
		o.UpdatedAt = now
		return nil
	})
	if errors.Is(err, ErrStaleEvent) {
		// transisi lain commit duluan (expiry/cancel); no-op
		cur, ferr := s.store.OrderByID(ctx, orderID)
		if ferr != nil {
			return Order{}, false, ferr
		}
		return cur, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}

	if cerr := s.gw.CloseSession(ctx, orderID); cerr != nil {
		s.log.Warn("close payment session", zap.String("order_id", orderID), zap.Error(cerr))
	}

	if success {
		s.events.Emit(EventOrderPaid, updated.ID, OrderPaidPayload{
			OrderID: updated.ID, BuyerID: updated.BuyerID, Total: updated.Total,
		})
		if dispatchConfirm {
			ev := notify.NewEvent(notify.KindOrderConfirmation, updated.ID, updated.BuyerID, updated.Total)
			s.dispatch(ctx, ev)
		}
	} else {
		s.releaseBestEffort(ctx, orderID)
		s.events.Emit(EventPaymentFailed, updated.ID, PaymentFailedPayload{
			OrderID: updated.ID, Reason: "PAYMENT_FAILED",
		})
	}
	return updated, true, nil
}

// Cancel membatalkan order dari pending/processing. Stok selalu dikembalikan;
// jika sudah terbayar, refund-intent diemit ke notification sink (eksekusi
// refund di luar subsistem ini). Re-cancel oleh actor yang sama mengembalikan
// record yang ada tanpa error.
func (s *Service) Cancel(ctx context.Context, orderID string, actor Actor, reason, note string) (Order, error) {
	switch actor {
	case ActorBuyer, ActorSeller, ActorSystem:
	default:
		return Order{}, fmt.Errorf("%w: unknown actor %q", ErrValidation, actor)
	}
	if !CancelReasons[reason] {
		return Order{}, fmt.Errorf("%w: unknown cancellation reason %q", ErrValidation, reason)
	}
	if reason == "other" && strings.TrimSpace(note) == "" {
		return Order{}, fmt.Errorf("%w: reason \"other\" requires a note", ErrValidation)
	}

	var dispatchClosure, refundIntent bool
	updated, err := s.updateWithRetry(ctx, orderID, func(o *Order) error {
		if o.OrderStatus == StatusCancelled {
			if o.CancelledBy == actor {
				return errAlreadyCancelled
			}
			return fmt.Errorf("%w: already cancelled by %s", ErrCannotCancel, o.CancelledBy)
		}
		if !Cancellable(o.OrderStatus) {
			return fmt.Errorf("%w: order is %s", ErrCannotCancel, o.OrderStatus)
		}
		dispatchClosure, refundIntent = false, false
		wasPaid := o.PaymentStatus == PaymentPaid
		now := s.now()
		o.OrderStatus = StatusCancelled
		o.CancelledBy = actor
		o.CancelReason = reason
		o.CancelNote = note
		o.CancelledAt = &now
		o.ExpiresAt = nil
		if !o.ClosureSent {
			o.ClosureSent = true
			dispatchClosure = true
			refundIntent = wasPaid
		}
		o.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errAlreadyCancelled) {
		cur, ferr := s.store.OrderByID(ctx, orderID)
		if ferr != nil {
			return Order{}, ferr
		}
		return cur, nil
	}
	if err != nil {
		return Order{}, err
	}

	if cerr := s.gw.CloseSession(ctx, orderID); cerr != nil {
		s.log.Warn("close payment session", zap.String("order_id", orderID), zap.Error(cerr))
	}
	s.releaseBestEffort(ctx, orderID)

	s.events.Emit(EventOrderCancelled, updated.ID, OrderCancelledPayload{
		OrderID:      updated.ID,
		CancelledBy:  string(updated.CancelledBy),
		Reason:       updated.CancelReason,
		RefundIntent: refundIntent,
	})
	if dispatchClosure {
		ev := notify.NewEvent(notify.KindOrderCancellation, updated.ID, updated.BuyerID, updated.Total)
		ev.Reason = updated.CancelReason
		s.dispatch(ctx, ev)
		if refundIntent {
			s.dispatch(ctx, notify.NewEvent(notify.KindRefundIntent, updated.ID, updated.BuyerID, updated.Total))
		}
	}
	return updated, nil
}

// TransitionFulfillment: jalur seller, maju satu tahap
// (processing -> shipped -> delivered); loncat tahap ditolak.
func (s *Service) TransitionFulfillment(ctx context.Context, orderID, sellerID string, next OrderStatus) (Order, error) {
	switch next {
	case StatusProcessing, StatusShipped, StatusDelivered:
	default:
		return Order{}, fmt.Errorf("%w: %q is not a fulfillment status", ErrValidation, next)
	}
	updated, err := s.updateWithRetry(ctx, orderID, func(o *Order) error {
		if !o.HasSeller(sellerID) {
			return fmt.Errorf("%w: seller %s is not part of this order", ErrForbidden, sellerID)
		}
		want, ok := NextFulfillment(o.OrderStatus)
		if !ok || want != next {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.OrderStatus, next)
		}
		now := s.now()
		o.OrderStatus = next
		if next == StatusDelivered {
			o.FinishedAt = &now
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	eventType := EventOrderShipped
	if next == StatusDelivered {
		eventType = EventOrderDelivered
	}
	s.events.Emit(eventType, updated.ID, FulfillmentPayload{
		OrderID: updated.ID, SellerID: sellerID, Status: string(updated.OrderStatus),
	})
	return updated, nil
}

// ExpireDue: dipakai sweeper. Mengambil order yang lewat deadline lalu
// menjalankan transisi expiry satu-satu; konflik CAS berarti pihak lain
// (gateway sukses / cancel) menang dan itu bukan error.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.store.ListDue(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list due orders: %w", err)
	}
	for _, o := range due {
		if _, won, err := s.expire(ctx, o.ID); err != nil {
			s.log.Warn("expire order", zap.String("order_id", o.ID), zap.Error(err))
		} else if won {
			s.log.Info("order expired", zap.String("order_id", o.ID))
		}
	}
	return len(due), nil
}

// expire memaksa transisi expired bila order masih menunggu pembayaran dan
// deadline sudah lewat. won=false berarti transisi lain commit duluan.
func (s *Service) expire(ctx context.Context, orderID string) (Order, bool, error) {
	var dispatch bool
	updated, err := s.updateWithRetry(ctx, orderID, func(o *Order) error {
		if !o.AwaitingPayment() {
			return ErrStaleEvent
		}
		if o.ExpiresAt == nil || s.now().Before(*o.ExpiresAt) {
			return ErrStaleEvent
		}
		dispatch = false
		now := s.now()
		o.OrderStatus = StatusExpired
		o.PaymentStatus = PaymentExpired
		o.ExpiresAt = nil
		if !o.ClosureSent {
			o.ClosureSent = true
			dispatch = true
		}
		o.UpdatedAt = now
		return nil
	})
	if errors.Is(err, ErrStaleEvent) {
		cur, ferr := s.store.OrderByID(ctx, orderID)
		if ferr != nil {
			return Order{}, false, ferr
		}
		return cur, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}

	if cerr := s.gw.CloseSession(ctx, orderID); cerr != nil {
		s.log.Warn("close payment session", zap.String("order_id", orderID), zap.Error(cerr))
	}
	s.releaseBestEffort(ctx, orderID)

	s.events.Emit(EventOrderExpired, updated.ID, OrderExpiredPayload{
		OrderID: updated.ID, ExpiredAt: updated.UpdatedAt,
	})
	if dispatch {
		s.dispatch(ctx, notify.NewEvent(notify.KindOrderExpired, updated.ID, updated.BuyerID, updated.Total))
	}
	return updated, true, nil
}

// updateWithRetry: loop read-modify-write dengan CAS versi. mutate boleh
// mengembalikan error guard untuk membatalkan tanpa menulis.
func (s *Service) updateWithRetry(ctx context.Context, id string, mutate func(o *Order) error) (Order, error) {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		o, err := s.store.OrderByID(ctx, id)
		if err != nil {
			return Order{}, err
		}
		if err := mutate(&o); err != nil {
			return Order{}, err
		}
		updated, err := s.store.UpdateOrder(ctx, o)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Order{}, err
		}
		lastErr = err
	}
	return Order{}, fmt.Errorf("%w after %d attempts: %v", ErrTransient, casAttempts, lastErr)
}

func (s *Service) releaseBestEffort(ctx context.Context, orderID string) {
	if err := s.resv.ReleaseAll(ctx, orderID); err != nil {
		s.log.Error("release reservation", zap.String("order_id", orderID), zap.Error(err))
	}
}

// dispatch: fire-and-forget; kegagalan sink dicatat dan ditelan, tidak pernah
// membatalkan transisi yang memicunya.
func (s *Service) dispatch(ctx context.Context, ev notify.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Send(ctx, ev); err != nil {
		s.log.Warn("notification dispatch",
			zap.String("kind", string(ev.Kind)),
			zap.String("order_id", ev.OrderID),
			zap.Error(err))
	}
}
