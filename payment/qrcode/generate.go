package qrcode

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PayInstruction encodes paybill, reference and amount so the customer
// can scan-to-pay from the printed voucher slip.
func PayInstruction(paybill, reference string, amount int, currency string) ([]byte, error) {
	uri := fmt.Sprintf("pay:%s?ref=%s&amount=%d&currency=%s", paybill, reference, amount, currency)
	return qrcode.Encode(uri, qrcode.Medium, 256)
}
