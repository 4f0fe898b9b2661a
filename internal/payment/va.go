package payment

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Prefix VA per bank, meniru format virtual account umum di Indonesia.
var bankPrefix = map[string]string{
	"bca":     "3901",
	"bni":     "8810",
	"bri":     "2623",
	"mandiri": "8900",
}

func KnownBank(bank string) bool {
	_, ok := bankPrefix[strings.ToLower(bank)]
	return ok
}

func Banks() []string {
	out := make([]string, 0, len(bankPrefix))
	for b := range bankPrefix {
		out = append(out, b)
	}
	return out
}

// VirtualAccountNumber: sintetis tapi deterministik per (bank, order),
// supaya polling berulang melihat nomor yang sama.
func VirtualAccountNumber(bank, orderID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(orderID))
	return fmt.Sprintf("%s%012d", bankPrefix[strings.ToLower(bank)], h.Sum64()%1_000_000_000_000)
}
