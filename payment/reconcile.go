package payment

import (
	"errors"
	"fmt"
	"log"

	"go-hotspot/web/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dispatch routes one provider event. Safe to call for duplicate or
// out-of-order deliveries: the payment row is keyed by the provider
// transaction id and every voucher mutation is state-guarded.
func Dispatch(gdb *gorm.DB, evt Event) error {
	switch e := evt.(type) {
	case Confirmation:
		return applyConfirmation(gdb, e)
	case Failure:
		return applyFailure(gdb, e)
	default:
		return fmt.Errorf("unknown payment event %T for transaction %s", evt, evt.TransactionID())
	}
}

func applyConfirmation(gdb *gorm.DB, e Confirmation) error {
	record := db.Payment{
		TransactionID:    e.TxID,
		Method:           e.Method,
		PayerPhone:       e.PayerPhone,
		Amount:           e.Amount,
		Currency:         e.Currency,
		Commission:       Commission(e.Amount),
		Status:           db.PaymentCompleted,
		PaymentReference: e.Reference,
		PaidAt:           e.Timestamp,
	}

	// First delivery inserts, duplicates are no-ops.
	err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("upsert payment %s: %w", e.TxID, err)
	}

	// Reload the canonical row; an earlier delivery may already own it.
	var p db.Payment
	if err := gdb.Where("transaction_id = ?", e.TxID).First(&p).Error; err != nil {
		return err
	}
	if p.Reconciled {
		return nil
	}

	linked, err := linkAndReconcile(gdb, &p)
	if err != nil {
		return err
	}
	if !linked {
		// No voucher with that reference yet (the batch may still be
		// generating). The event is stored; the poller links it later.
		log.Printf("payment %s: no voucher for reference %q yet, will retry", p.TransactionID, p.PaymentReference)
	}
	return nil
}

// linkAndReconcile matches a completed payment to its voucher, marks it
// reconciled when the amount covers the price, and moves the voucher to
// paid. Returns false when no voucher carries the cited reference yet.
func linkAndReconcile(gdb *gorm.DB, p *db.Payment) (bool, error) {
	store := db.NewVoucherStore(gdb)

	v, err := store.FindByReference(p.PaymentReference)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if p.Amount < v.Price {
		// Underpayment never reconciles; surfaced via payment status.
		res := gdb.Model(&db.Payment{}).
			Where("id = ? AND reconciled = ?", p.ID, false).
			Updates(map[string]interface{}{
				"customer_id": v.CustomerID,
				"voucher_id":  v.ID,
				"status":      db.PaymentFailed,
			})
		if res.Error != nil {
			return false, res.Error
		}
		log.Printf("payment %s: amount %d below voucher price %d", p.TransactionID, p.Amount, v.Price)
		return true, nil
	}

	res := gdb.Model(&db.Payment{}).
		Where("id = ? AND reconciled = ?", p.ID, false).
		Updates(map[string]interface{}{
			"customer_id": v.CustomerID,
			"voucher_id":  v.ID,
			"reconciled":  true,
			"status":      db.PaymentCompleted,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return true, nil // concurrent delivery reconciled it already
	}
	p.CustomerID = v.CustomerID

	err = store.MarkPaid(v, p)
	if errors.Is(err, db.ErrConflict) {
		// Voucher left active state through another path; payment stays
		// reconciled, nothing to undo.
		log.Printf("payment %s: voucher %d no longer active", p.TransactionID, v.ID)
		return true, nil
	}
	return true, err
}

func applyFailure(gdb *gorm.DB, e Failure) error {
	res := gdb.Model(&db.Payment{}).
		Where("transaction_id = ? AND reconciled = ?", e.TxID, false).
		Update("status", db.PaymentFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Unknown or already reconciled transaction; keep a trace row
		// for the unknown case so support can diagnose it.
		return gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).Create(&db.Payment{
			TransactionID: e.TxID,
			Status:        db.PaymentFailed,
			PaidAt:        e.Timestamp,
		}).Error
	}
	return nil
}
