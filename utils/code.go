package utils

import (
	"crypto/rand"
	"math/big"
)

// No 0/O/1/I: codes get typed on phone keyboards from printed slips.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	voucherCodeLength      = 8
	paymentReferenceLength = 6
)

func randomCode(length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = codeCharset[n.Int64()]
	}
	return string(out)
}

// NewVoucherCode returns a private login code.
func NewVoucherCode() string {
	return randomCode(voucherCodeLength)
}

// NewPaymentReference returns a public payment memo. Shorter than a
// voucher code, so the two can never collide.
func NewPaymentReference() string {
	return randomCode(paymentReferenceLength)
}
