package controllers

import (
	"errors"
	"net/http"
	"time"

	"go-hotspot/payment/qrcode"
	"go-hotspot/utils"
	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GenerateRequest struct {
	DeviceID             uint   `json:"device_id"`
	Count                int    `json:"count"`
	PackageType          string `json:"package_type"`
	DurationMinutes      int    `json:"duration_minutes"`
	UploadKbps           int    `json:"upload_kbps"`
	DownloadKbps         int    `json:"download_kbps"`
	DataCapMB            int    `json:"data_cap_mb"`
	Price                int    `json:"price"`
	Currency             string `json:"currency"`
	ExpiryDays           int    `json:"expiry_days"`
	DurationFromPurchase bool   `json:"duration_from_purchase"`
	AutoDelete           bool   `json:"auto_delete"`
}

// GenerateVouchers creates a batch of sellable vouchers for one device.
func GenerateVouchers(c *gin.Context) {
	var req GenerateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Count < 1 || req.Count > 1000 || req.DurationMinutes < 1 || req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch parameters"})
		return
	}
	if req.ExpiryDays < 1 {
		req.ExpiryDays = 30
	}
	if req.Currency == "" {
		req.Currency = "KES"
	}

	var device db.Device
	if err := db.DB.First(&device, req.DeviceID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}

	batch := &db.VoucherBatch{
		BatchID:     uuid.New().String(),
		CustomerID:  device.CustomerID,
		DeviceID:    device.ID,
		PackageType: req.PackageType,
		Count:       req.Count,
	}

	now := time.Now()
	vouchers := make([]*db.Voucher, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		vouchers = append(vouchers, &db.Voucher{
			CustomerID:           device.CustomerID,
			DeviceID:             device.ID,
			BatchID:              batch.BatchID,
			Code:                 utils.NewVoucherCode(),
			PaymentReference:     utils.NewPaymentReference(),
			PackageType:          req.PackageType,
			DurationMinutes:      req.DurationMinutes,
			UploadKbps:           req.UploadKbps,
			DownloadKbps:         req.DownloadKbps,
			DataCapMB:            req.DataCapMB,
			Price:                req.Price,
			Currency:             req.Currency,
			ExpiryDays:           req.ExpiryDays,
			DurationFromPurchase: req.DurationFromPurchase,
			AutoDelete:           req.AutoDelete,
			State:                db.VoucherActive,
			ExpiresAt:            now.AddDate(0, 0, req.ExpiryDays),
		})
	}

	store := db.NewVoucherStore(db.DB)
	if err := store.CreateBatch(batch, vouchers); err != nil {
		// Random code or reference collision is the realistic failure
		// here; one retry with fresh values covers it. The rolled-back
		// insert left ids behind, clear them so the retry inserts clean
		// rows.
		batch.ID = 0
		for _, v := range vouchers {
			v.ID = 0
			v.Code = utils.NewVoucherCode()
			v.PaymentReference = utils.NewPaymentReference()
		}
		if err := store.CreateBatch(batch, vouchers); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vouchers"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"batch_id": batch.BatchID, "vouchers": vouchers})
}

func CancelVoucher(c *gin.Context) {
	var v db.Voucher
	if err := db.DB.First(&v, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Voucher not found"})
		return
	}

	store := db.NewVoucherStore(db.DB)
	err := store.Cancel(v.ID)
	if errors.Is(err, db.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "Voucher is not cancellable", "state": v.State})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel voucher"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Voucher cancelled"})
}

func ListVouchers(c *gin.Context) {
	query := db.DB.Order("id desc").Limit(500)
	if deviceID := c.Query("device_id"); deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}
	if state := c.Query("state"); state != "" {
		query = query.Where("state = ?", state)
	}
	if batch := c.Query("batch_id"); batch != "" {
		query = query.Where("batch_id = ?", batch)
	}

	var vouchers []db.Voucher
	if err := query.Find(&vouchers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vouchers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": vouchers})
}

// VoucherQR renders the scan-to-pay image for a payment reference. The
// reference is public, so this endpoint needs no auth; it never touches
// the private code.
func VoucherQR(c *gin.Context) {
	store := db.NewVoucherStore(db.DB)
	v, err := store.FindByReference(c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown reference"})
		return
	}

	var customer db.Customer
	if err := db.DB.First(&customer, v.CustomerID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown reference"})
		return
	}

	png, err := qrcode.PayInstruction(customer.Paybill, v.PaymentReference, v.Price, v.Currency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
