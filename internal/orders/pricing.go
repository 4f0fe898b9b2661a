package orders

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Satu-satunya kode promo yang dikenal server, flat, case-insensitive.
// Tidak ada tabel voucher.
const (
	VoucherCode     = "BANGGAUMKM"
	VoucherDiscount = int64(25000)
)

// LookupVoucher returns the flat discount for a code. Empty code means no voucher.
func LookupVoucher(code string) (int64, error) {
	if code == "" {
		return 0, nil
	}
	if strings.EqualFold(code, VoucherCode) {
		return VoucherDiscount, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidVoucher, code)
}

var courierBaseRate = map[string]int64{
	"jne":     12000,
	"tiki":    16000,
	"sicepat": 10000,
}

func KnownCourier(courier string) bool {
	_, ok := courierBaseRate[strings.ToLower(courier)]
	return ok
}

// cityFactor: komponen jarak sintetis yang deterministik per kota tujuan.
func cityFactor(city string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(city))))
	return int64(h.Sum32()%4) * 2500
}

// GroupShippingCost menghitung ongkir satu grup seller: base rate kurir + faktor kota.
func GroupShippingCost(city, courier string) int64 {
	return courierBaseRate[strings.ToLower(courier)] + cityFactor(city)
}

// ShippingCost: tiap seller mengirim terpisah, jadi ongkir dihitung per grup
// seller lalu dijumlah.
func ShippingCost(items []OrderItem, city, courier string) int64 {
	seen := make(map[string]bool, len(items))
	var total int64
	for _, it := range items {
		if seen[it.SellerID] {
			continue
		}
		seen[it.SellerID] = true
		total += GroupShippingCost(city, courier)
	}
	return total
}

func Subtotal(items []OrderItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPrice * int64(it.Qty)
	}
	return sum
}

// ComputeTotals menegakkan invariat total = subtotal + ongkir - diskon, total >= 0.
// Diskon flat yang melebihi nilai order dipangkas supaya total tidak negatif.
func ComputeTotals(items []OrderItem, city, courier, voucherCode string) (subtotal, shipping, discount, total int64, err error) {
	subtotal = Subtotal(items)
	shipping = ShippingCost(items, city, courier)
	discount, err = LookupVoucher(voucherCode)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if discount > subtotal+shipping {
		discount = subtotal + shipping
	}
	total = subtotal + shipping - discount
	return subtotal, shipping, discount, total, nil
}
