// Batch expiry of vouchers whose governing deadline has passed.
//
// Three rules feed ExpiresAt, one per life stage: shelf life while
// active, purchase window once paid (purchase-bound packages), session
// end once used. The store recomputes ExpiresAt at each transition, so
// this job only has to sweep rows where expires_at <= now.

package expiry

import (
	"errors"
	"time"

	"go-hotspot/web/db"

	"gorm.io/gorm"
)

const DefaultBatchSize = 500

// Run transitions every due, non-terminal voucher to expired and returns
// how many this invocation actually transitioned. Each transition is a
// conditional update guarded by the voucher's observed state, so any
// number of overlapping runs expire a voucher exactly once.
func Run(gdb *gorm.DB, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	store := db.NewVoucherStore(gdb)

	candidates, err := store.FindExpiryCandidates(now, batchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, v := range candidates {
		err := store.Transition(v.ID, v.State, db.VoucherExpired, nil)
		if errors.Is(err, db.ErrConflict) {
			continue // another run got there first
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
