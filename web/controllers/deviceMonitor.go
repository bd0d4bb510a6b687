package controllers

import (
	"log"
	"net/http"
	"time"

	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
)

const (
	DEVICE_HEARTBEAT_TIMEOUT        = 5 * time.Minute
	DEVICE_HEARTBEAT_CHECK_INTERVAL = time.Minute
)

// DeviceHeartbeat is called by routers on a timer so the platform knows
// which devices are reachable without polling them all.
func DeviceHeartbeat(c *gin.Context) {
	var req struct {
		DeviceID uint   `json:"device_id"`
		Secret   string `json:"secret"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var dev db.Device
	if err := db.DB.First(&dev, req.DeviceID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}
	if dev.Secret == "" || dev.Secret != req.Secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid secret"})
		return
	}

	err := db.DB.Model(&dev).Updates(map[string]interface{}{
		"online":    true,
		"last_seen": time.Now(),
	}).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// StartDeviceMonitor sweeps the device table and flips devices offline
// once their heartbeat goes stale. The flag is advisory; sync still
// pings before every batch.
func StartDeviceMonitor() {
	go func() {
		log.Println("Starting device monitor...")

		for {
			time.Sleep(DEVICE_HEARTBEAT_CHECK_INTERVAL)

			cutoff := time.Now().Add(-DEVICE_HEARTBEAT_TIMEOUT)
			res := db.DB.Model(&db.Device{}).
				Where("online = ? AND last_seen < ?", true, cutoff).
				Update("online", false)
			if res.Error != nil {
				log.Printf("device monitor: %v", res.Error)
				continue
			}
			if res.RowsAffected > 0 {
				log.Printf("device monitor: marked %d devices offline", res.RowsAffected)
			}
		}
	}()
}
