package db

import (
	"path/filepath"
	"testing"
	"time"

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
	require.NoError(t, gdb.AutoMigrate(
		&Customer{}, &Device{}, &VoucherBatch{}, &Voucher{}, &Payment{}, &VerificationAttempt{},
	))
	return gdb
}

func seedVoucher(t *testing.T, gdb *gorm.DB, state VoucherState) *Voucher {
	t.Helper()
	v := &Voucher{
		CustomerID:       1,
		DeviceID:         1,
		Code:             "CODE" + string(state)[:2] + "AB",
		PaymentReference: "REF" + string(state)[:2],
		PackageType:      "1hr",
		DurationMinutes:  60,
		Price:            1000,
		Currency:         "KES",
		ExpiryDays:       30,
		State:            state,
		ExpiresAt:        time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, gdb.Create(v).Error)
	return v
}

func TestTransitionGuardedByState(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)
	v := seedVoucher(t, gdb, VoucherActive)

	require.NoError(t, store.Transition(v.ID, VoucherActive, VoucherPaid, nil))

	// Repeating the same transition must conflict: state moved on.
	err := store.Transition(v.ID, VoucherActive, VoucherPaid, nil)
	require.ErrorIs(t, err, ErrConflict)

	got, err := store.FindByID(v.ID)
	require.NoError(t, err)
	require.Equal(t, VoucherPaid, got.State)
}

func TestStateNeverReverses(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)
	v := seedVoucher(t, gdb, VoucherUsed)

	require.ErrorIs(t, store.Transition(v.ID, VoucherPaid, VoucherActive, nil), ErrConflict)
	require.ErrorIs(t, store.Transition(v.ID, VoucherActive, VoucherPaid, nil), ErrConflict)
}

func TestBeginUsageExactlyOnce(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)
	v := seedVoucher(t, gdb, VoucherPaid)

	start := time.Now()
	end := start.Add(time.Hour)
	require.NoError(t, store.BeginUsage(v.ID, start, end, "AA:BB:CC:DD:EE:FF", "10.0.0.2"))

	// The losing caller's update matches zero rows.
	err := store.BeginUsage(v.ID, start.Add(time.Minute), end.Add(time.Minute), "AA:BB:CC:DD:EE:00", "10.0.0.3")
	require.ErrorIs(t, err, ErrConflict)

	got, err := store.FindByID(v.ID)
	require.NoError(t, err)
	require.Equal(t, VoucherUsed, got.State)
	require.True(t, got.Used)
	require.NotNil(t, got.UsageStart)
	require.WithinDuration(t, end, *got.ExpectedEnd, time.Second)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", got.DeviceMac)
}

func TestBeginUsageRequiresPaid(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)
	v := seedVoucher(t, gdb, VoucherActive)

	err := store.BeginUsage(v.ID, time.Now(), time.Now().Add(time.Hour), "", "")
	require.ErrorIs(t, err, ErrConflict)
}

func TestCancelFromActiveAndPaidOnly(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)

	active := seedVoucher(t, gdb, VoucherActive)
	require.NoError(t, store.Cancel(active.ID))

	paid := seedVoucher(t, gdb, VoucherPaid)
	require.NoError(t, store.Cancel(paid.ID))

	used := seedVoucher(t, gdb, VoucherUsed)
	require.ErrorIs(t, store.Cancel(used.ID), ErrConflict)
}

func TestMarkPaidRecomputesExpiry(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)

	v := seedVoucher(t, gdb, VoucherActive)
	v.DurationFromPurchase = true
	require.NoError(t, gdb.Save(v).Error)

	paidAt := time.Now()
	p := &Payment{TransactionID: "TX123456", Amount: 1000, PaidAt: paidAt}
	require.NoError(t, store.MarkPaid(v, p))

	got, err := store.FindByID(v.ID)
	require.NoError(t, err)
	require.Equal(t, VoucherPaid, got.State)
	// Purchase-bound package: window runs from payment.
	require.WithinDuration(t, paidAt.Add(60*time.Minute), got.ExpiresAt, time.Second)
	require.Equal(t, "TX123456", got.TransactionID)
}

func TestFindSellableExcludesSoldAndExpired(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)

	sellable := seedVoucher(t, gdb, VoucherActive)

	paid := seedVoucher(t, gdb, VoucherPaid)

	stale := &Voucher{
		CustomerID: 1, DeviceID: 1, Code: "STALECODE", PaymentReference: "STALE1",
		DurationMinutes: 60, State: VoucherActive, ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, gdb.Create(stale).Error)

	got, err := store.FindSellable(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, sellable.ID, got[0].ID)
	require.NotEqual(t, paid.ID, got[0].ID)
}

func TestMarkPaidLateConfirmationExpires(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)

	v := seedVoucher(t, gdb, VoucherActive)
	v.DurationFromPurchase = true
	require.NoError(t, gdb.Save(v).Error)

	// Confirmation lands two hours after payment on a one-hour window:
	// the purchase deadline is already past.
	paidAt := time.Now().Add(-2 * time.Hour)
	p := &Payment{TransactionID: "TXLATE123", Amount: 1000, PaidAt: paidAt}
	require.NoError(t, store.MarkPaid(v, p))

	got, err := store.FindByID(v.ID)
	require.NoError(t, err)
	require.Equal(t, VoucherExpired, got.State)
	// The payment snapshot is still on record.
	require.Equal(t, "TXLATE123", got.TransactionID)
	require.NotNil(t, got.PaidAt)
}

func TestPaymentReferenceGloballyUnique(t *testing.T) {
	gdb := openTestDB(t)

	first := &Voucher{
		CustomerID: 1, DeviceID: 1, Code: "CODEAAAA", PaymentReference: "REFSAME",
		DurationMinutes: 60, State: VoucherActive, ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, gdb.Create(first).Error)

	// A second device may not reuse the reference: webhook references
	// resolve globally, so a duplicate would misroute the payment.
	dup := &Voucher{
		CustomerID: 2, DeviceID: 2, Code: "CODEBBBB", PaymentReference: "REFSAME",
		DurationMinutes: 60, State: VoucherActive, ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.Error(t, gdb.Create(dup).Error)

	// Codes stay unique per device only: the same code on another
	// device is fine.
	sameCode := &Voucher{
		CustomerID: 2, DeviceID: 2, Code: "CODEAAAA", PaymentReference: "REFOTHER",
		DurationMinutes: 60, State: VoucherActive, ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, gdb.Create(sameCode).Error)

	store := NewVoucherStore(gdb)
	got, err := store.FindByReference("REFSAME")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
}

func TestCreateBatchRollsBackAndRetriesClean(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)

	taken := seedVoucher(t, gdb, VoucherActive)

	batch := &VoucherBatch{BatchID: "batch-1", CustomerID: 1, DeviceID: 1, Count: 1}
	vouchers := []*Voucher{{
		CustomerID: 1, DeviceID: 1, Code: taken.Code, PaymentReference: "REFNEW1",
		DurationMinutes: 60, State: VoucherActive, ExpiresAt: time.Now().Add(24 * time.Hour),
	}}
	require.Error(t, store.CreateBatch(batch, vouchers))

	// The failed insert rolled back completely.
	var n int64
	require.NoError(t, gdb.Model(&VoucherBatch{}).Where("batch_id = ?", "batch-1").Count(&n).Error)
	require.EqualValues(t, 0, n)

	// Retrying with fresh codes and cleared ids inserts cleanly.
	batch.ID = 0
	for _, v := range vouchers {
		v.ID = 0
		v.Code = "FRESH123"
	}
	require.NoError(t, store.CreateBatch(batch, vouchers))
	require.NoError(t, gdb.Model(&VoucherBatch{}).Where("batch_id = ?", "batch-1").Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestCountRecentAttemptsSkipsRateLimited(t *testing.T) {
	gdb := openTestDB(t)
	store := NewVoucherStore(gdb)
	mac := "AA:BB:CC:DD:EE:FF"

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordAttempt(&VerificationAttempt{
			DeviceMac: mac, TransactionCode: "TX1234567", ErrorCode: "transaction_not_found",
		}))
	}
	require.NoError(t, store.RecordAttempt(&VerificationAttempt{
		DeviceMac: mac, TransactionCode: "TX1234567", ErrorCode: "rate_limit_exceeded",
	}))

	n, err := store.CountRecentAttempts(mac, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
}
