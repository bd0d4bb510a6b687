package controllers

import (
	"fmt"
	"net/http"
	"regexp"
	"time"

	"go-hotspot/utils"
	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
)

// Verification error codes. Every not-found stage collapses to
// ErrTransactionNotFound in the response so callers cannot probe which
// stage failed; the audit row keeps the precise stage.
const (
	ErrInvalidInput        = "invalid_input"
	ErrRateLimitExceeded   = "rate_limit_exceeded"
	ErrTransactionNotFound = "transaction_not_found"
	ErrPaymentPending      = "payment_pending"
	ErrPaymentFailed       = "payment_failed"
	ErrWrongRouter         = "wrong_router"
	ErrVoucherUsed         = "voucher_used"
	ErrVoucherExpired      = "voucher_expired"
)

const (
	maxAttemptsPerMAC = 5
	attemptWindow     = time.Hour
)

// Provider receipt codes are 8-12 alphanumerics.
var transactionCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{8,12}$`)

type VerifyRequest struct {
	TransactionCode string `json:"transaction_code"`
	DeviceID        uint   `json:"device_id"`
	DeviceMac       string `json:"device_mac"`
}

type VoucherDetails struct {
	Code            string    `json:"code"`
	DisplayPackage  string    `json:"display_package"`
	DurationDisplay string    `json:"duration_display"`
	Bandwidth       string    `json:"bandwidth"`
	Price           int       `json:"price"`
	Currency        string    `json:"currency"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "valid": false, "error": ErrInvalidInput})
		return
	}

	mac, err := utils.NormalizeMAC(req.DeviceMac)
	if err != nil {
		// No canonical MAC to audit against.
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "valid": false, "error": ErrInvalidInput})
		return
	}

	store := db.NewVoucherStore(db.DB)

	if !transactionCodePattern.MatchString(req.TransactionCode) {
		respondVerify(c, store, req, mac, http.StatusBadRequest, ErrInvalidInput, nil)
		return
	}

	// Rate limit before any lookup. Rejected attempts are audited but
	// excluded from the count, so backing off for the window resets it.
	since := time.Now().Add(-attemptWindow)
	attempts, err := store.CountRecentAttempts(mac, since)
	if err != nil {
		respondVerify(c, store, req, mac, http.StatusInternalServerError, ErrTransactionNotFound, nil)
		return
	}
	if attempts >= maxAttemptsPerMAC {
		c.Header("Retry-After", fmt.Sprintf("%d", int(attemptWindow.Seconds())))
		respondVerify(c, store, req, mac, http.StatusTooManyRequests, ErrRateLimitExceeded, nil)
		return
	}

	status, errCode, details := verifyTransaction(store, req, mac)
	respondVerify(c, store, req, mac, status, errCode, details)
}

// verifyTransaction walks device -> payment -> voucher per the
// redemption chain. Each stage short-circuits.
func verifyTransaction(store *db.VoucherStore, req VerifyRequest, mac string) (int, string, *VoucherDetails) {
	var device db.Device
	if err := db.DB.First(&device, req.DeviceID).Error; err != nil {
		return http.StatusOK, ErrTransactionNotFound, nil
	}

	var p db.Payment
	if err := db.DB.Where("transaction_id = ?", req.TransactionCode).First(&p).Error; err != nil {
		return http.StatusOK, ErrTransactionNotFound, nil
	}

	// Another customer's payment is indistinguishable from an unknown
	// transaction, even before its status is known. Payments that have
	// not been linked yet carry no owner and may still report pending.
	if p.CustomerID != 0 && p.CustomerID != device.CustomerID {
		return http.StatusOK, ErrTransactionNotFound, nil
	}

	switch {
	case p.Status == db.PaymentPending:
		return http.StatusOK, ErrPaymentPending, nil
	case p.Status == db.PaymentFailed:
		return http.StatusOK, ErrPaymentFailed, nil
	case !p.Reconciled:
		return http.StatusOK, ErrPaymentPending, nil
	}

	if p.VoucherID == nil {
		return http.StatusOK, ErrTransactionNotFound, nil
	}
	v, err := store.FindByID(*p.VoucherID)
	if err != nil {
		return http.StatusOK, ErrTransactionNotFound, nil
	}

	// A voucher of another customer's fleet stays indistinguishable
	// from an unknown transaction.
	if v.CustomerID != device.CustomerID {
		return http.StatusOK, ErrTransactionNotFound, nil
	}
	if v.DeviceID != device.ID {
		return http.StatusOK, ErrWrongRouter, nil
	}

	if v.Used {
		return http.StatusOK, ErrVoucherUsed, nil
	}
	if v.ExpiresAt.Before(time.Now()) {
		return http.StatusOK, ErrVoucherExpired, nil
	}
	if v.State != db.VoucherPaid {
		return http.StatusOK, ErrVoucherExpired, nil
	}

	// Only now is the private code revealed.
	return http.StatusOK, "", &VoucherDetails{
		Code:            v.Code,
		DisplayPackage:  v.PackageType,
		DurationDisplay: utils.DisplayDuration(v.DurationMinutes),
		Bandwidth:       formatBandwidth(v.UploadKbps, v.DownloadKbps),
		Price:           v.Price,
		Currency:        v.Currency,
		ExpiresAt:       v.ExpiresAt,
	}
}

// respondVerify writes the audit row first, then the response, so a
// crash in between leaves the attempt on record.
func respondVerify(c *gin.Context, store *db.VoucherStore, req VerifyRequest, mac string, status int, errCode string, details *VoucherDetails) {
	attempt := &db.VerificationAttempt{
		DeviceMac:       mac,
		DeviceID:        req.DeviceID,
		TransactionCode: req.TransactionCode,
		Success:         errCode == "",
		ErrorCode:       errCode,
	}
	if err := store.RecordAttempt(attempt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "valid": false, "error": ErrTransactionNotFound})
		return
	}

	if errCode != "" {
		c.JSON(status, gin.H{"success": status < 500, "valid": false, "error": errCode})
		return
	}
	c.JSON(status, gin.H{"success": true, "valid": true, "voucher": details})
}

func formatBandwidth(upKbps, downKbps int) string {
	return fmt.Sprintf("%s/%s", formatRate(upKbps), formatRate(downKbps))
}

func formatRate(kbps int) string {
	if kbps >= 1000 && kbps%1000 == 0 {
		return fmt.Sprintf("%dM", kbps/1000)
	}
	return fmt.Sprintf("%dk", kbps)
}
