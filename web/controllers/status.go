package controllers

import (
	"net/http"
	"time"

	"go-hotspot/web/db"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status reports host health plus voucher stock counts for the admin
// dashboard.
func Status(c *gin.Context) {
	cpuUsage, err := cpu.Percent(time.Second, false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read CPU"})
		return
	}
	memInfo, err := mem.VirtualMemory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read memory"})
		return
	}

	counts := map[string]int64{}
	for _, state := range []db.VoucherState{db.VoucherActive, db.VoucherPaid, db.VoucherUsed, db.VoucherExpired} {
		var n int64
		if err := db.DB.Model(&db.Voucher{}).Where("state = ?", state).Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count vouchers"})
			return
		}
		counts[string(state)] = n
	}

	c.JSON(http.StatusOK, gin.H{
		"cpu_usage":           cpuUsage[0],
		"memory_total":        memInfo.Total,
		"memory_used":         memInfo.Used,
		"memory_used_percent": memInfo.UsedPercent,
		"vouchers":            counts,
	})
}
