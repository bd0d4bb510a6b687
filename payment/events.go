// Inbound payment-provider events, decoupled from HTTP transport.

package payment

import "time"

// Event is one provider notification. TransactionID is the idempotency
// key: the same id must never be processed twice with differing effects.
type Event interface {
	TransactionID() string
}

// Confirmation reports a completed customer payment.
type Confirmation struct {
	TxID       string
	Amount     int
	Currency   string
	PayerPhone string
	Reference  string // the memo the customer cited, links to a voucher
	Method     string
	Timestamp  time.Time
}

func (e Confirmation) TransactionID() string { return e.TxID }

// Failure reports a payment the provider rejected or reversed before
// completion.
type Failure struct {
	TxID      string
	Reason    string
	Timestamp time.Time
}

func (e Failure) TransactionID() string { return e.TxID }
