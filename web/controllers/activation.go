package controllers

import (
	"errors"
	"net/http"
	"time"

	"go-hotspot/utils"
	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
)

type ActivateRequest struct {
	VoucherCode string `json:"voucher_code"`
	DeviceID    uint   `json:"device_id"`
	DeviceMac   string `json:"device_mac"`
	DeviceIP    string `json:"device_ip"`
}

// Activate is the captive portal's post-login callback. The portal may
// retry on network flake and several portal instances may fire at once,
// so the handler must be idempotent: exactly one call sets the start
// time, every call reports the same expected end.
func Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.BindJSON(&req); err != nil || req.VoucherCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_input"})
		return
	}

	mac := ""
	if req.DeviceMac != "" {
		normalized, err := utils.NormalizeMAC(req.DeviceMac)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_input"})
			return
		}
		mac = normalized
	}

	store := db.NewVoucherStore(db.DB)

	v, err := store.FindByCode(req.DeviceID, req.VoucherCode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "voucher_not_found"})
		return
	}

	if v.UsageStart != nil {
		respondActivated(c, v, true)
		return
	}

	now := time.Now()
	expectedEnd := v.UsageDeadline(now)

	err = store.BeginUsage(v.ID, now, expectedEnd, mac, req.DeviceIP)
	if err == nil {
		v, err = store.FindByID(v.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal"})
			return
		}
		respondActivated(c, v, false)
		return
	}
	if !errors.Is(err, db.ErrConflict) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal"})
		return
	}

	// Lost the race or the voucher was not activatable. Re-read to tell
	// the two apart; a concurrent winner's values are authoritative.
	v, err = store.FindByID(v.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal"})
		return
	}
	if v.UsageStart != nil {
		respondActivated(c, v, true)
		return
	}
	c.JSON(http.StatusConflict, gin.H{"success": false, "error": "voucher_not_activatable", "state": v.State})
}

func respondActivated(c *gin.Context, v *db.Voucher, alreadyStarted bool) {
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"already_started":   alreadyStarted,
		"start_time":        v.UsageStart.Format(time.RFC3339),
		"expected_end_time": v.ExpectedEnd.Format(time.RFC3339),
	})
}
