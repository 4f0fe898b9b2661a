package orders

import "time"

type Product struct {
	ID        string
	SellerID  string
	Name      string
	Price     int64 // rupiah
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Address adalah snapshot alamat kirim saat order dibuat; tidak pernah
// membaca ulang profil buyer setelahnya.
type Address struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code,omitempty"`
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // harga dibekukan saat order dibuat
	Qty       int    `json:"qty"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type Actor string

const (
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
	ActorSystem Actor = "system"
)

type Order struct {
	ID             string
	IdempotencyKey string
	BuyerID        string
	Items          []OrderItem
	Address        Address
	Courier        string
	Bank           string
	VANumber       string

	Subtotal     int64
	ShippingCost int64
	Discount     int64
	Total        int64

	OrderStatus   OrderStatus
	PaymentStatus PaymentStatus
	ExpiresAt     *time.Time // terisi hanya selama menunggu pembayaran

	CancelledBy  Actor
	CancelReason string
	CancelNote   string

	// flag dispatch notifikasi yang dipersist: at-most-once walau event di-replay
	ConfirmationSent bool
	ClosureSent      bool

	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
	FinishedAt  *time.Time
}

// Terminal reports whether the order can never transition again.
func (o Order) Terminal() bool {
	switch o.OrderStatus {
	case StatusDelivered, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// AwaitingPayment is the window in which gateway events and expiry compete.
func (o Order) AwaitingPayment() bool {
	return o.OrderStatus == StatusPending && o.PaymentStatus == PaymentUnpaid
}

func (o Order) SellerIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.SellerID] {
			seen[it.SellerID] = true
			out = append(out, it.SellerID)
		}
	}
	return out
}

func (o Order) HasSeller(sellerID string) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}
