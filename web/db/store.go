package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrConflict means a conditional update matched zero rows: the voucher
// was not in the expected state, or another caller won the race.
var ErrConflict = errors.New("voucher not in expected state")

var ErrNotFound = errors.New("voucher not found")

// VoucherStore owns every voucher mutation. The write contract is a
// single conditional UPDATE per transition, guarded by the current
// state; that guard is the only concurrency control the platform uses,
// so it works unchanged across replicas.
type VoucherStore struct {
	db *gorm.DB
}

func NewVoucherStore(gdb *gorm.DB) *VoucherStore {
	return &VoucherStore{db: gdb}
}

func (s *VoucherStore) CreateBatch(batch *VoucherBatch, vouchers []*Voucher) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		for _, v := range vouchers {
			if err := tx.Create(v).Error; err != nil {
				return fmt.Errorf("create voucher: %w", err)
			}
		}
		return nil
	})
}

func (s *VoucherStore) FindByID(id uint) (*Voucher, error) {
	var v Voucher
	if err := s.db.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *VoucherStore) FindByCode(deviceID uint, code string) (*Voucher, error) {
	var v Voucher
	err := s.db.Where("device_id = ? AND code = ?", deviceID, code).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *VoucherStore) FindByReference(reference string) (*Voucher, error) {
	var v Voucher
	err := s.db.Where("payment_reference = ?", reference).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// FindSellable returns the vouchers that should exist on the device:
// generated, unsold, unexpired.
func (s *VoucherStore) FindSellable(deviceID uint) ([]Voucher, error) {
	var vouchers []Voucher
	err := s.db.
		Where("device_id = ? AND state = ? AND used = ? AND expires_at > ?",
			deviceID, VoucherActive, false, time.Now()).
		Find(&vouchers).Error
	return vouchers, err
}

// Transition moves a voucher from one state to another, applying extra
// column updates in the same statement. Zero matched rows means the
// voucher was no longer in the from state.
func (s *VoucherStore) Transition(id uint, from, to VoucherState, set map[string]interface{}) error {
	if set == nil {
		set = map[string]interface{}{}
	}
	set["state"] = to
	res := s.db.Model(&Voucher{}).
		Where("id = ? AND state = ?", id, from).
		Updates(set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkPaid links the reconciled payment onto the voucher and recomputes
// the governing expiry. Only an active voucher can turn paid. A
// confirmation delivered after a purchase-bound window already lapsed
// keeps the payment snapshot but moves the voucher straight to expired,
// so a live voucher never gets a deadline in the past.
func (s *VoucherStore) MarkPaid(v *Voucher, p *Payment) error {
	expires := v.ExpiryOnPayment(p.PaidAt)
	set := map[string]interface{}{
		"payment_method": p.Method,
		"transaction_id": p.TransactionID,
		"payer_phone":    p.PayerPhone,
		"amount_paid":    p.Amount,
		"commission":     p.Commission,
		"paid_at":        p.PaidAt,
		"expires_at":     expires,
	}
	if !expires.After(time.Now()) {
		return s.Transition(v.ID, VoucherActive, VoucherExpired, set)
	}
	return s.Transition(v.ID, VoucherActive, VoucherPaid, set)
}

// BeginUsage sets the usage start exactly once. The guard covers both
// the state and the unset start time, so concurrent activation calls
// race on a single UPDATE and exactly one wins.
func (s *VoucherStore) BeginUsage(id uint, start, expectedEnd time.Time, mac, ip string) error {
	res := s.db.Model(&Voucher{}).
		Where("id = ? AND state = ? AND usage_start IS NULL", id, VoucherPaid).
		Updates(map[string]interface{}{
			"state":        VoucherUsed,
			"used":         true,
			"usage_start":  start,
			"expected_end": expectedEnd,
			"device_mac":   mac,
			"device_ip":    ip,
			"expires_at":   expectedEnd,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Cancel side-exits an active or paid voucher. Administrative only.
func (s *VoucherStore) Cancel(id uint) error {
	if err := s.Transition(id, VoucherActive, VoucherCancelled, nil); err == nil {
		return nil
	} else if !errors.Is(err, ErrConflict) {
		return err
	}
	return s.Transition(id, VoucherPaid, VoucherCancelled, nil)
}

// FindExpiryCandidates returns non-terminal vouchers whose deadline has
// passed. Callers expire each one via Transition, so overlapping runs
// stay safe.
func (s *VoucherStore) FindExpiryCandidates(now time.Time, limit int) ([]Voucher, error) {
	var vouchers []Voucher
	err := s.db.
		Where("expires_at <= ? AND state IN ?", now,
			[]VoucherState{VoucherActive, VoucherPaid, VoucherUsed}).
		Limit(limit).
		Find(&vouchers).Error
	return vouchers, err
}

// RecordAttempt appends to the verification audit log.
func (s *VoucherStore) RecordAttempt(a *VerificationAttempt) error {
	return s.db.Create(a).Error
}

// CountRecentAttempts counts verification attempts for a MAC inside the
// trailing window. Rate-limited rejections are excluded so a client that
// backs off for the window regains access.
func (s *VoucherStore) CountRecentAttempts(mac string, since time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&VerificationAttempt{}).
		Where("device_mac = ? AND created_at >= ? AND error_code <> ?",
			mac, since, "rate_limit_exceeded").
		Count(&n).Error
	return n, err
}
