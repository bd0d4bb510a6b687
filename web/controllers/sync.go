package controllers

import (
	"context"
	"errors"
	"net/http"

	"go-hotspot/device"
	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
)

// SyncDevice pushes the device's sellable vouchers onto it and reports
// per-voucher outcomes. An unreachable device fails the whole call with
// device_offline instead of marking every voucher failed.
func SyncDevice(c *gin.Context) {
	var dev db.Device
	if err := db.DB.First(&dev, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}

	store := db.NewVoucherStore(db.DB)
	vouchers, err := store.FindSellable(dev.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vouchers"})
		return
	}

	result, err := RunDeviceSync(c.Request.Context(), &dev, vouchers)
	if errors.Is(err, device.ErrOffline) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device_offline"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunDeviceSync maps vouchers to device credentials and runs one sync
// batch. Shared by the HTTP endpoint and the syncjob entrypoint.
func RunDeviceSync(ctx context.Context, dev *db.Device, vouchers []db.Voucher) (*device.Result, error) {
	creds := make([]device.Credential, 0, len(vouchers))
	for _, v := range vouchers {
		creds = append(creds, device.Credential{
			// The code doubles as username and password: hotspot logins
			// are a single field on the portal.
			Name:        v.Code,
			Password:    v.Code,
			Profile:     v.PackageType,
			UptimeLimit: device.UptimeLimit(v.DurationMinutes),
			Comment:     "ref:" + v.PaymentReference + " batch:" + v.BatchID,
		})
	}

	client := device.NewClient(dev.Address, dev.Username, dev.Password)
	return device.NewSynchronizer(client).Sync(ctx, creds)
}
