package expiry

import (
	"path/filepath"
	"testing"
	"time"

	"go-hotspot/web/db"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&db.Voucher{}))
	return gdb
}

func seed(t *testing.T, gdb *gorm.DB, code string, state db.VoucherState, expiresAt time.Time) *db.Voucher {
	t.Helper()
	v := &db.Voucher{
		DeviceID: 1, Code: code, PaymentReference: "R" + code,
		DurationMinutes: 60, State: state, ExpiresAt: expiresAt,
	}
	require.NoError(t, gdb.Create(v).Error)
	return v
}

func TestRunExpiresDueVouchers(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now()

	due := seed(t, gdb, "DUEACTIVE", db.VoucherActive, now.Add(-time.Minute))
	duePaid := seed(t, gdb, "DUEPAID", db.VoucherPaid, now.Add(-time.Minute))
	dueUsed := seed(t, gdb, "DUEUSED", db.VoucherUsed, now.Add(-time.Minute))
	fresh := seed(t, gdb, "FRESH", db.VoucherActive, now.Add(time.Hour))
	cancelled := seed(t, gdb, "GONE", db.VoucherCancelled, now.Add(-time.Hour))

	n, err := Run(gdb, now, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, id := range []uint{due.ID, duePaid.ID, dueUsed.ID} {
		var v db.Voucher
		require.NoError(t, gdb.First(&v, id).Error)
		require.Equal(t, db.VoucherExpired, v.State)
	}

	var freshGot db.Voucher
	require.NoError(t, gdb.First(&freshGot, fresh.ID).Error)
	require.Equal(t, db.VoucherActive, freshGot.State)
	var cancelledGot db.Voucher
	require.NoError(t, gdb.First(&cancelledGot, cancelled.ID).Error)
	require.Equal(t, db.VoucherCancelled, cancelledGot.State)
}

func TestOverlappingRunsExpireExactlyOnce(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now()
	seed(t, gdb, "DUEONCE", db.VoucherActive, now.Add(-time.Minute))

	first, err := Run(gdb, now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, first)

	// A second run observing the same candidate finds nothing left.
	second, err := Run(gdb, now, 0)
	require.NoError(t, err)
	require.Equal(t, 0, second)
}

func TestRunHonorsBatchSize(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now()
	for _, code := range []string{"BATCH1", "BATCH2", "BATCH3"} {
		seed(t, gdb, code, db.VoucherActive, now.Add(-time.Minute))
	}

	n, err := Run(gdb, now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = Run(gdb, now, 2)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
