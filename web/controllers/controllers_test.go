package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&db.Customer{}, &db.Device{}, &db.VoucherBatch{}, &db.Voucher{}, &db.Payment{}, &db.VerificationAttempt{},
	))
	db.DB = gdb
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/verify", Verify)
	r.POST("/activate", Activate)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

// seedRedeemable creates customer, device, and a paid-for voucher wired
// to a completed, reconciled payment.
func seedRedeemable(t *testing.T) (*db.Device, *db.Voucher, *db.Payment) {
	t.Helper()
	customer := &db.Customer{Name: "Acme WiFi", Email: "ops@acme.test", Paybill: "555111"}
	require.NoError(t, db.DB.Create(customer).Error)

	device := &db.Device{CustomerID: customer.ID, Name: "gate-1", Address: "https://10.0.0.1", Secret: "s3cret"}
	require.NoError(t, db.DB.Create(device).Error)

	v := &db.Voucher{
		CustomerID: customer.ID, DeviceID: device.ID,
		Code: "WIFICODE", PaymentReference: "REF101",
		PackageType: "1hr", DurationMinutes: 60,
		UploadKbps: 2000, DownloadKbps: 10000,
		Price: 10, Currency: "KES", ExpiryDays: 30,
		State: db.VoucherPaid, ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.DB.Create(v).Error)

	p := &db.Payment{
		TransactionID: "TXABC12345", CustomerID: customer.ID,
		Amount: 10, Currency: "KES", Status: db.PaymentCompleted,
		Reconciled: true, PaymentReference: "REF101",
		VoucherID: &v.ID, PaidAt: time.Now(),
	}
	require.NoError(t, db.DB.Create(p).Error)

	return device, v, p
}
