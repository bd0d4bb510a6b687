package db

import (
	"time"

	"gorm.io/gorm"
)

// VoucherState only moves forward: active -> paid -> used -> expired,
// with cancelled reachable from active or paid.
type VoucherState string

const (
	VoucherActive    VoucherState = "active"
	VoucherPaid      VoucherState = "paid"
	VoucherUsed      VoucherState = "used"
	VoucherExpired   VoucherState = "expired"
	VoucherCancelled VoucherState = "cancelled"
)

func (s VoucherState) Terminal() bool {
	return s == VoucherExpired || s == VoucherCancelled
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Customer struct {
	gorm.Model
	Name    string
	Email   string `gorm:"unique"`
	Paybill string // the till/paybill number customers pay to
}

type Device struct {
	gorm.Model
	CustomerID uint `gorm:"index"`
	Name       string
	Address    string // base URL of the router REST API, e.g. https://10.0.0.1
	Username   string
	Password   string
	Secret     string // shared secret for the heartbeat endpoint
	Online     bool
	LastSeen   time.Time
}

type VoucherBatch struct {
	gorm.Model
	BatchID     string `gorm:"uniqueIndex"`
	CustomerID  uint
	DeviceID    uint
	PackageType string
	Count       int
}

type Voucher struct {
	gorm.Model
	CustomerID uint   `gorm:"index"`
	DeviceID   uint   `gorm:"index;uniqueIndex:idx_device_code,priority:1"`
	BatchID    string `gorm:"index"`

	// Code is the private login credential, never exposed before a
	// successful verification; unique per device. PaymentReference is
	// the public memo the customer cites when paying; globally unique,
	// so a webhook reference resolves to exactly one voucher.
	Code             string `gorm:"uniqueIndex:idx_device_code,priority:2"`
	PaymentReference string `gorm:"uniqueIndex"`

	PackageType          string
	DurationMinutes      int
	UploadKbps           int
	DownloadKbps         int
	DataCapMB            int // 0 = unlimited
	Price                int // minor currency units
	Currency             string
	ExpiryDays           int  // shelf life while unsold
	DurationFromPurchase bool // package counts duration from payment, not activation
	AutoDelete           bool

	State     VoucherState `gorm:"index"`
	ExpiresAt time.Time    `gorm:"index"` // always set, governed by the current life stage

	// usage
	Used            bool
	UsageStart      *time.Time
	ExpectedEnd     *time.Time
	DeviceMac       string
	DeviceIP        string
	DataUsedMB      int64
	TimeUsedMinutes int

	// payment snapshot, filled on reconciliation
	PaymentMethod string
	TransactionID string
	PayerPhone    string
	AmountPaid    int
	Commission    int
	PaidAt        *time.Time
}

// ActivationDeadline is the expiry while the voucher sits unsold.
func (v *Voucher) ActivationDeadline() time.Time {
	return v.CreatedAt.AddDate(0, 0, v.ExpiryDays)
}

// PurchaseDeadline applies to purchase-bound packages: the session window
// runs from the payment no matter when the customer logs in.
func (v *Voucher) PurchaseDeadline(paidAt time.Time) time.Time {
	return paidAt.Add(time.Duration(v.DurationMinutes) * time.Minute)
}

// UsageDeadline is the session end once usage starts. For purchase-bound
// packages the earlier purchase deadline still governs.
func (v *Voucher) UsageDeadline(start time.Time) time.Time {
	end := start.Add(time.Duration(v.DurationMinutes) * time.Minute)
	if v.DurationFromPurchase && v.PaidAt != nil {
		if purchase := v.PurchaseDeadline(*v.PaidAt); purchase.Before(end) {
			return purchase
		}
	}
	return end
}

// ExpiryOnPayment picks the governing deadline when the voucher turns
// paid: purchase-bound packages switch to the purchase deadline, others
// keep the activation deadline so ExpiresAt is never unset.
func (v *Voucher) ExpiryOnPayment(paidAt time.Time) time.Time {
	if v.DurationFromPurchase {
		return v.PurchaseDeadline(paidAt)
	}
	return v.ExpiresAt
}

type Payment struct {
	gorm.Model
	TransactionID    string `gorm:"uniqueIndex"` // provider id, idempotency key
	CustomerID       uint   `gorm:"index"`
	Method           string
	PayerPhone       string
	Amount           int
	Currency         string
	Commission       int
	Status           PaymentStatus `gorm:"index"`
	Reconciled       bool
	PaymentReference string // memo cited by the payer, links to a voucher
	VoucherID        *uint  `gorm:"index"`
	PaidAt           time.Time
}

// VerificationAttempt is append-only: one row per verification call,
// successful or not, written before the response goes out.
type VerificationAttempt struct {
	ID              uint      `gorm:"primarykey"`
	CreatedAt       time.Time `gorm:"index"`
	DeviceMac       string    `gorm:"index"`
	DeviceID        uint
	TransactionCode string
	Success         bool
	ErrorCode       string
}
