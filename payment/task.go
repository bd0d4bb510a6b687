// Retry loop for payments that arrived before their voucher existed.

package payment

import (
	"log"
	"time"

	"go-hotspot/web/db"

	"gorm.io/gorm"
)

const relinkBatchSize = 200

// RelinkPending retries completed-but-unreconciled payments whose
// voucher link was missing at delivery time. Returns how many payments
// were linked this pass.
func RelinkPending(gdb *gorm.DB) (int, error) {
	var pending []db.Payment
	err := gdb.
		Where("status = ? AND reconciled = ? AND voucher_id IS NULL",
			db.PaymentCompleted, false).
		Limit(relinkBatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	linked := 0
	for i := range pending {
		p := pending[i]
		ok, err := linkAndReconcile(gdb, &p)
		if err != nil {
			log.Printf("relink payment %s: %v", p.TransactionID, err)
			continue
		}
		if ok {
			linked++
		}
	}
	return linked, nil
}

// StartReconcilePoller runs RelinkPending on a fixed interval.
func StartReconcilePoller(gdb *gorm.DB, interval time.Duration) {
	go func() {
		log.Println("Starting payment reconcile poller...")
		for {
			time.Sleep(interval)
			n, err := RelinkPending(gdb)
			if err != nil {
				log.Printf("reconcile poller: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("reconcile poller: linked %d payments", n)
			}
		}
	}()
}
